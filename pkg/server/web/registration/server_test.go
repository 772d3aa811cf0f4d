package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrate "golang.org/x/time/rate"

	guard_data "github.com/veritid/identity-guard/pkg/data"
	"github.com/veritid/identity-guard/pkg/data/cooldown"
	"github.com/veritid/identity-guard/pkg/data/ratelimit"
	"github.com/veritid/identity-guard/pkg/guard"
	"github.com/veritid/identity-guard/pkg/rate"
	"github.com/veritid/identity-guard/pkg/sms"
	sms_memory_client "github.com/veritid/identity-guard/pkg/sms/memory"
)

type testEnv struct {
	ctx      context.Context
	data     guard_data.Provider
	sender   sms.Sender
	recorder *guard.Recorder
	server   *Server
}

func setup(t *testing.T, limiter rate.Limiter, opts ...guard.Option) (env testEnv) {
	env.ctx = context.Background()
	env.data = guard_data.NewTestDataProvider()
	env.sender = sms_memory_client.NewSender()
	env.recorder = guard.NewRecorder(env.data)

	env.server = NewRegistrationServer(
		guard.NewGuard(env.data, opts...),
		env.recorder,
		env.sender,
		limiter,
	)

	return env
}

func (env testEnv) post(t *testing.T, path string, body map[string]any) *httptest.ResponseRecorder {
	marshalled, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(marshalled))
	req.RemoteAddr = "203.0.113.7:51234"

	rr := httptest.NewRecorder()
	env.server.GetHandlers()[path](rr, req)
	return rr
}

func parseBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func newCheckRequestBody() map[string]any {
	return map[string]any{
		"identifier":         "identifier-1",
		"identifier_type":    "phone",
		"device_fingerprint": "fingerprint-1",
	}
}

func TestCheckRegistrationLimit_MethodNotAllowed(t *testing.T) {
	env := setup(t, nil)

	req := httptest.NewRequest(http.MethodGet, v1CheckRegistrationLimitPath, nil)
	rr := httptest.NewRecorder()
	env.server.GetHandlers()[v1CheckRegistrationLimitPath](rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCheckRegistrationLimit_CorsPreflight(t *testing.T) {
	env := setup(t, nil)

	req := httptest.NewRequest(http.MethodOptions, v1CheckRegistrationLimitPath, nil)
	rr := httptest.NewRecorder()
	env.server.GetHandlers()[v1CheckRegistrationLimitPath](rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCheckRegistrationLimit_Validation(t *testing.T) {
	env := setup(t, nil)

	for _, missingField := range []string{"identifier", "identifier_type", "device_fingerprint"} {
		body := newCheckRequestBody()
		delete(body, missingField)

		rr := env.post(t, v1CheckRegistrationLimitPath, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, false, parseBody(t, rr)["success"])
	}

	body := newCheckRequestBody()
	body["identifier_type"] = "passport"
	rr := env.post(t, v1CheckRegistrationLimitPath, body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckRegistrationLimit_DisposableEmail(t *testing.T) {
	env := setup(t, nil)

	body := newCheckRequestBody()
	body["identifier_type"] = "email"
	body["email_domain"] = "Mailinator.com"

	rr := env.post(t, v1CheckRegistrationLimitPath, body)
	require.Equal(t, http.StatusOK, rr.Code)

	respBody := parseBody(t, rr)
	assert.Equal(t, false, respBody["allowed"])
	assert.Equal(t, false, respBody["requires_captcha"])
	assert.Equal(t, "disposable-email", respBody["reason"])
}

func TestCheckRegistrationLimit_RateLimited(t *testing.T) {
	env := setup(
		t,
		nil,
		guard.WithDimensionLimit(guard.PolicyDefault, ratelimit.DimensionIP, 5, time.Hour),
		guard.WithDimensionLimit(guard.PolicyDefault, ratelimit.DimensionFingerprint, 5, time.Hour),
		guard.WithDimensionLimit(guard.PolicyDefault, ratelimit.DimensionIdentifier, 5, time.Hour),
		guard.WithCaptchaThresholdFraction(guard.PolicyDefault, 1.1),
	)

	for i := 0; i < 5; i++ {
		rr := env.post(t, v1CheckRegistrationLimitPath, newCheckRequestBody())
		require.Equal(t, http.StatusOK, rr.Code)

		respBody := parseBody(t, rr)
		assert.Equal(t, true, respBody["allowed"])
		assert.Equal(t, false, respBody["requires_captcha"])
	}

	// The 6th request in the window is denied with a retry hint, as an HTTP
	// success. Denial is a computed verdict, not an error.
	rr := env.post(t, v1CheckRegistrationLimitPath, newCheckRequestBody())
	require.Equal(t, http.StatusOK, rr.Code)

	respBody := parseBody(t, rr)
	assert.Equal(t, false, respBody["allowed"])
	assert.Equal(t, "rate-limited", respBody["reason"])
	assert.True(t, respBody["retry_after"].(float64) > 0)
}

func TestCheckRegistrationLimit_CaptchaEscalation(t *testing.T) {
	env := setup(
		t,
		nil,
		guard.WithDimensionLimit(guard.PolicyDefault, ratelimit.DimensionIP, 100, time.Hour),
		guard.WithDimensionLimit(guard.PolicyDefault, ratelimit.DimensionFingerprint, 5, time.Hour),
		guard.WithDimensionLimit(guard.PolicyDefault, ratelimit.DimensionIdentifier, 100, time.Hour),
	)

	for i := 0; i < 3; i++ {
		rr := env.post(t, v1CheckRegistrationLimitPath, newCheckRequestBody())
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, false, parseBody(t, rr)["requires_captcha"])
	}

	rr := env.post(t, v1CheckRegistrationLimitPath, newCheckRequestBody())
	require.Equal(t, http.StatusOK, rr.Code)

	respBody := parseBody(t, rr)
	assert.Equal(t, true, respBody["allowed"])
	assert.Equal(t, true, respBody["requires_captcha"])

	body := newCheckRequestBody()
	body["captcha_passed"] = true
	rr = env.post(t, v1CheckRegistrationLimitPath, body)
	require.Equal(t, http.StatusOK, rr.Code)

	respBody = parseBody(t, rr)
	assert.Equal(t, true, respBody["allowed"])
	assert.Equal(t, false, respBody["requires_captcha"])
}

func TestCheckRegistrationLimit_LegacyPath(t *testing.T) {
	env := setup(t, nil)

	rr := env.post(t, legacyCheckRegistrationLimitPath, newCheckRequestBody())
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, parseBody(t, rr)["allowed"])
}

func TestCheckRegistrationLimit_FloodShield(t *testing.T) {
	env := setup(t, rate.NewLocalRateLimiter(xrate.Limit(1)))

	rr := env.post(t, v1CheckRegistrationLimitPath, newCheckRequestBody())
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.post(t, v1CheckRegistrationLimitPath, newCheckRequestBody())
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func newSendCodeRequestBody() map[string]any {
	return map[string]any{
		"identifier":         "identifier-1",
		"identifier_type":    "phone",
		"device_fingerprint": "fingerprint-1",
		"phone_number":       "+12223334444",
	}
}

func TestSendVerificationCode_HappyPath(t *testing.T) {
	env := setup(t, nil, guard.WithCodeSendCooldown(time.Minute))

	rr := env.post(t, v1SendVerificationCodePath, newSendCodeRequestBody())
	require.Equal(t, http.StatusOK, rr.Code)

	respBody := parseBody(t, rr)
	assert.Equal(t, true, respBody["allowed"])
	assert.EqualValues(t, 60, respBody["cooldown_remaining"])
	assert.Equal(t, 1, sms_memory_client.GetSendCount(env.sender, "+12223334444"))

	// A resend within the window doesn't dispatch another code
	rr = env.post(t, v1SendVerificationCodePath, newSendCodeRequestBody())
	require.Equal(t, http.StatusOK, rr.Code)

	respBody = parseBody(t, rr)
	assert.Equal(t, false, respBody["allowed"])
	assert.Equal(t, "cooldown-active", respBody["reason"])
	remaining := respBody["cooldown_remaining"].(float64)
	assert.True(t, remaining > 0)
	assert.True(t, remaining <= 60)
}

func TestSendVerificationCode_InvalidPhoneNumber(t *testing.T) {
	env := setup(t, nil)

	body := newSendCodeRequestBody()
	body["phone_number"] = "5551234"
	rr := env.post(t, v1SendVerificationCodePath, body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body = newSendCodeRequestBody()
	body["identifier_type"] = "email"
	rr = env.post(t, v1SendVerificationCodePath, body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type unavailableCooldownData struct {
	guard_data.Provider
}

func (p *unavailableCooldownData) GetCooldownState(ctx context.Context, identifier string) (*cooldown.State, error) {
	return nil, errors.New("store unavailable")
}

func TestSendVerificationCode_CooldownStoreFailure(t *testing.T) {
	env := setup(t, nil)

	env.server = NewRegistrationServer(
		guard.NewGuard(&unavailableCooldownData{env.data}, guard.WithCodeSendCooldown(time.Minute)),
		env.recorder,
		env.sender,
		nil,
	)

	// A cooldown store outage reads exactly like an active cooldown. No
	// status code or body shape distinguishes it, and no code goes out.
	rr := env.post(t, v1SendVerificationCodePath, newSendCodeRequestBody())
	require.Equal(t, http.StatusOK, rr.Code)

	respBody := parseBody(t, rr)
	assert.Equal(t, false, respBody["allowed"])
	assert.Equal(t, "cooldown-active", respBody["reason"])
	assert.EqualValues(t, 60, respBody["retry_after"])
	assert.EqualValues(t, 60, respBody["cooldown_remaining"])
	assert.Equal(t, 0, sms_memory_client.GetSendCount(env.sender, "+12223334444"))
}
