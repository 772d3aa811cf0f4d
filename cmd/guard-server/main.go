package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	env_config "github.com/veritid/identity-guard/pkg/config/env"
	guard_data "github.com/veritid/identity-guard/pkg/data"
	pg "github.com/veritid/identity-guard/pkg/database/postgres"
	"github.com/veritid/identity-guard/pkg/guard"
	"github.com/veritid/identity-guard/pkg/metrics"
	"github.com/veritid/identity-guard/pkg/rate"
	"github.com/veritid/identity-guard/pkg/server/web/registration"
	"github.com/veritid/identity-guard/pkg/sms"
	sms_memory_client "github.com/veritid/identity-guard/pkg/sms/memory"
	sms_twilio_client "github.com/veritid/identity-guard/pkg/sms/twilio"

	xrate "golang.org/x/time/rate"
)

const (
	listenAddressConfigEnvName = "GUARD_LISTEN_ADDRESS"
	defaultListenAddress       = ":8080"

	dbUserConfigEnvName     = "GUARD_DB_USER"
	dbPasswordConfigEnvName = "GUARD_DB_PASSWORD"
	dbHostConfigEnvName     = "GUARD_DB_HOST"
	dbPortConfigEnvName     = "GUARD_DB_PORT"
	dbNameConfigEnvName     = "GUARD_DB_NAME"

	redisAddressConfigEnvName = "GUARD_REDIS_ADDRESS"

	twilioAccountSidConfigEnvName = "GUARD_TWILIO_ACCOUNT_SID"
	twilioServiceSidConfigEnvName = "GUARD_TWILIO_SERVICE_SID"
	twilioAuthTokenConfigEnvName  = "GUARD_TWILIO_AUTH_TOKEN"

	newRelicAppNameConfigEnvName    = "GUARD_NEW_RELIC_APP_NAME"
	newRelicLicenseKeyConfigEnvName = "GUARD_NEW_RELIC_LICENSE_KEY"

	codeSendCooldownConfigEnvName = "GUARD_CODE_SEND_COOLDOWN"
	floodShieldRateConfigEnvName  = "GUARD_FLOOD_SHIELD_RPS"

	shutdownTimeout = 10 * time.Second
)

func main() {
	log := logrus.StandardLogger().WithField("type", "guard-server/main")

	ctx := context.Background()

	listenAddress := env_config.NewStringConfig(listenAddressConfigEnvName, defaultListenAddress).Get(ctx)

	dataProvider, err := newDataProvider(ctx)
	if err != nil {
		log.WithError(err).Fatal("failure initializing data provider")
	}

	cooldown := env_config.NewDurationConfig(codeSendCooldownConfigEnvName, time.Minute).Get(ctx)
	g := guard.NewGuard(
		dataProvider,
		guard.WithCodeSendCooldown(cooldown),
	)

	recorder := guard.NewRecorder(dataProvider)
	defer recorder.Close()

	floodShieldRate := env_config.NewFloat64Config(floodShieldRateConfigEnvName, 25).Get(ctx)
	limiter := rate.NewLocalRateLimiter(xrate.Limit(floodShieldRate))

	server := registration.NewRegistrationServer(g, recorder, newSmsSender(ctx), limiter)

	mux := http.NewServeMux()
	for path, handler := range server.GetHandlers() {
		mux.HandleFunc(path, handler)
	}

	httpServer := &http.Server{
		Addr:    listenAddress,
		Handler: withNewRelic(ctx, log, mux),
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("address", listenAddress).Info("listening for http requests")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}

func newDataProvider(ctx context.Context) (guard_data.Provider, error) {
	dbConfig := &pg.Config{
		User:     env_config.NewStringConfig(dbUserConfigEnvName, "postgres").Get(ctx),
		Password: env_config.NewStringConfig(dbPasswordConfigEnvName, "").Get(ctx),
		Host:     env_config.NewStringConfig(dbHostConfigEnvName, "localhost").Get(ctx),
		Port:     int(env_config.NewUint64Config(dbPortConfigEnvName, 5432).Get(ctx)),
		DbName:   env_config.NewStringConfig(dbNameConfigEnvName, "identityguard").Get(ctx),
	}

	redisAddress := env_config.NewStringConfig(redisAddressConfigEnvName, "").Get(ctx)
	if len(redisAddress) > 0 {
		redisClient := redis.NewClient(&redis.Options{
			Addr: redisAddress,
		})
		return guard_data.NewDataProviderWithRedisCounters(dbConfig, redisClient)
	}
	return guard_data.NewDataProvider(dbConfig)
}

// newSmsSender falls back to an in memory sender when Twilio credentials
// aren't configured, so local environments never dispatch real SMS.
func newSmsSender(ctx context.Context) sms.Sender {
	accountSid := env_config.NewStringConfig(twilioAccountSidConfigEnvName, "").Get(ctx)
	serviceSid := env_config.NewStringConfig(twilioServiceSidConfigEnvName, "").Get(ctx)
	authToken := env_config.NewStringConfig(twilioAuthTokenConfigEnvName, "").Get(ctx)

	if len(accountSid) > 0 && len(serviceSid) > 0 && len(authToken) > 0 {
		return sms_twilio_client.NewSender(accountSid, serviceSid, authToken)
	}
	return sms_memory_client.NewSender()
}

// withNewRelic injects the metrics application into every request context
// when a license key is configured.
func withNewRelic(ctx context.Context, log *logrus.Entry, next http.Handler) http.Handler {
	appName := env_config.NewStringConfig(newRelicAppNameConfigEnvName, "identity-guard").Get(ctx)
	licenseKey := env_config.NewStringConfig(newRelicLicenseKeyConfigEnvName, "").Get(ctx)
	if len(licenseKey) == 0 {
		return next
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(appName),
		newrelic.ConfigLicense(licenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		log.WithError(err).Fatal("error connecting to new relic")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(metrics.InjectApplication(r.Context(), app)))
	})
}
