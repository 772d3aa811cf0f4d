package guard

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veritid/identity-guard/pkg/data/attempt"
	"github.com/veritid/identity-guard/pkg/data/ratelimit"
	"github.com/veritid/identity-guard/pkg/metrics"
)

var evaluatedDimensions = []ratelimit.Dimension{
	ratelimit.DimensionIP,
	ratelimit.DimensionFingerprint,
	ratelimit.DimensionIdentifier,
}

type dimensionOutcome struct {
	limit       DimensionLimit
	count       uint64
	withinLimit bool
}

// Evaluate judges one registration attempt.
//
// A policy denial is a successfully computed verdict, not an error. Only
// validation failures surface as errors. A counter store failure produces
// a generic denial indistinguishable from a policy one, so outages aren't
// observable to callers probing the system.
func (g *Guard) Evaluate(ctx context.Context, intent *Intent) (*Verdict, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Evaluate")
	defer tracer.End()

	if err := intent.Validate(); err != nil {
		return nil, err
	}

	log := g.log.WithFields(logrus.Fields{
		"method":      "Evaluate",
		"ip_address":  intent.IPAddress,
		"fingerprint": intent.DeviceFingerprint,
	})

	policy := g.conf.getPolicy(intent.Policy)

	// Disposable identifiers will never be allowed, so deny before wasting
	// a counted attempt on them. The lookup fails open, it's defense in
	// depth and registration availability must not depend on it.
	if intent.IdentifierType == attempt.IdentifierTypeEmail && len(intent.EmailDomain) > 0 {
		isDisposable, err := g.data.IsDisposableDomain(ctx, intent.EmailDomain)
		if err != nil {
			log.WithError(err).Warn("failure checking disposable domain, failing open")
		} else if isDisposable {
			log.Info("denying disposable email domain")
			recordDenialEvent(ctx, actionCheckRegistration, "disposable email")
			return &Verdict{
				Allowed: false,
				Reason:  ReasonDisposableEmail,
			}, nil
		}
	}

	// Every dimension is counted even when an earlier one is already over
	// its limit. An abuser rotating IPs against one fingerprint must still
	// accumulate against the fingerprint.
	now := time.Now()
	var storeFailed bool
	outcomes := make(map[ratelimit.Dimension]*dimensionOutcome)
	for _, dimension := range evaluatedDimensions {
		limit := policy.Limits[dimension]

		count, withinLimit, err := g.data.CheckAndIncrementAttemptCount(
			ctx,
			dimension,
			getDimensionKey(dimension, intent),
			now,
			limit.Window,
			limit.MaxPerWindow,
		)
		if err != nil {
			tracer.OnError(err)
			log.WithError(err).WithField("dimension", dimension.String()).Warn("failure incrementing attempt counter")
			storeFailed = true
			continue
		}

		outcomes[dimension] = &dimensionOutcome{
			limit:       limit,
			count:       count,
			withinLimit: withinLimit,
		}
	}

	// The counter store is the primary gate, so it fails closed. Silently
	// failing open would defeat the entire subsystem.
	if storeFailed {
		recordDenialEvent(ctx, actionCheckRegistration, "counter store failure")
		return &Verdict{
			Allowed:    false,
			Reason:     ReasonRateLimited,
			RetryAfter: policy.DenyRetryAfter,
		}, nil
	}

	var denied bool
	retryAfter := policy.DenyRetryAfter
	for _, outcome := range outcomes {
		if outcome.withinLimit {
			continue
		}

		remaining := ratelimit.WindowRemaining(now, outcome.limit.Window)
		if !denied || remaining < retryAfter {
			retryAfter = remaining
		}
		denied = true
	}
	if denied {
		log.Info("attempt is rate limited")
		recordDenialEvent(ctx, actionCheckRegistration, "rate limit exceeded")
		return &Verdict{
			Allowed:    false,
			Reason:     ReasonRateLimited,
			RetryAfter: retryAfter,
		}, nil
	}

	for _, outcome := range outcomes {
		if float64(outcome.count) < policy.CaptchaThresholdFraction*float64(outcome.limit.MaxPerWindow) {
			continue
		}

		// A passed challenge satisfies the requirement for this attempt
		// only. It doesn't reset counters.
		if intent.CaptchaPassed != nil && *intent.CaptchaPassed {
			break
		}

		recordDenialEvent(ctx, actionCheckRegistration, "captcha required")
		return &Verdict{
			Allowed:         true,
			RequiresCaptcha: true,
			Reason:          ReasonCaptchaRequired,
		}, nil
	}

	return &Verdict{
		Allowed: true,
	}, nil
}

func getDimensionKey(dimension ratelimit.Dimension, intent *Intent) string {
	switch dimension {
	case ratelimit.DimensionIP:
		return intent.IPAddress
	case ratelimit.DimensionFingerprint:
		return intent.DeviceFingerprint
	case ratelimit.DimensionIdentifier:
		return intent.IdentifierHash
	}
	return ""
}
