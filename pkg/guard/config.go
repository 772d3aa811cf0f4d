package guard

import (
	"time"

	"github.com/veritid/identity-guard/pkg/data/ratelimit"
)

const (
	// PolicyDefault is the policy applied when a request doesn't name one.
	PolicyDefault = "default"

	// PolicyHighRisk tightens limits for traffic flagged by upstream risk
	// scoring.
	PolicyHighRisk = "high-risk"
)

const (
	defaultAttemptsPerIP          = 10
	defaultAttemptsPerFingerprint = 5
	defaultAttemptsPerIdentifier  = 3
	defaultAttemptWindow          = time.Hour

	highRiskAttemptsPerIP          = 3
	highRiskAttemptsPerFingerprint = 2
	highRiskAttemptsPerIdentifier  = 1

	defaultCaptchaThresholdFraction = 0.7
	defaultDenyRetryAfter           = 5 * time.Minute

	defaultCodeSendCooldown = time.Minute
)

// DimensionLimit is a hard threshold for one rate limit axis.
type DimensionLimit struct {
	MaxPerWindow uint64
	Window       time.Duration
}

// Policy is a named set of per-dimension thresholds. Policies are read-only
// at decision time.
type Policy struct {
	Limits map[ratelimit.Dimension]DimensionLimit

	CaptchaThresholdFraction float64
	DenyRetryAfter           time.Duration
}

type conf struct {
	policies map[string]*Policy

	codeSendCooldown time.Duration
}

func defaultPolicy() *Policy {
	return &Policy{
		Limits: map[ratelimit.Dimension]DimensionLimit{
			ratelimit.DimensionIP:          {MaxPerWindow: defaultAttemptsPerIP, Window: defaultAttemptWindow},
			ratelimit.DimensionFingerprint: {MaxPerWindow: defaultAttemptsPerFingerprint, Window: defaultAttemptWindow},
			ratelimit.DimensionIdentifier:  {MaxPerWindow: defaultAttemptsPerIdentifier, Window: defaultAttemptWindow},
		},
		CaptchaThresholdFraction: defaultCaptchaThresholdFraction,
		DenyRetryAfter:           defaultDenyRetryAfter,
	}
}

func highRiskPolicy() *Policy {
	return &Policy{
		Limits: map[ratelimit.Dimension]DimensionLimit{
			ratelimit.DimensionIP:          {MaxPerWindow: highRiskAttemptsPerIP, Window: defaultAttemptWindow},
			ratelimit.DimensionFingerprint: {MaxPerWindow: highRiskAttemptsPerFingerprint, Window: defaultAttemptWindow},
			ratelimit.DimensionIdentifier:  {MaxPerWindow: highRiskAttemptsPerIdentifier, Window: defaultAttemptWindow},
		},
		CaptchaThresholdFraction: defaultCaptchaThresholdFraction,
		DenyRetryAfter:           defaultDenyRetryAfter,
	}
}

// Option configures a Guard with an overrided configuration value
type Option func(c *conf)

// WithDimensionLimit overrides a single dimension's threshold within the
// named policy. The policy is created from defaults if it doesn't exist.
func WithDimensionLimit(policyName string, dimension ratelimit.Dimension, maxPerWindow uint64, window time.Duration) Option {
	return func(c *conf) {
		policy, ok := c.policies[policyName]
		if !ok {
			policy = defaultPolicy()
			c.policies[policyName] = policy
		}
		policy.Limits[dimension] = DimensionLimit{
			MaxPerWindow: maxPerWindow,
			Window:       window,
		}
	}
}

// WithPolicy registers or replaces a named policy.
func WithPolicy(name string, policy *Policy) Option {
	return func(c *conf) {
		c.policies[name] = policy
	}
}

// WithCaptchaThresholdFraction overrides the fraction of a hard limit at
// which a challenge is demanded, for the named policy.
func WithCaptchaThresholdFraction(policyName string, fraction float64) Option {
	return func(c *conf) {
		policy, ok := c.policies[policyName]
		if !ok {
			policy = defaultPolicy()
			c.policies[policyName] = policy
		}
		policy.CaptchaThresholdFraction = fraction
	}
}

// WithDenyRetryAfter overrides the baseline retry hint returned when a
// verdict can't be derived from a window rollover, for the named policy.
func WithDenyRetryAfter(policyName string, d time.Duration) Option {
	return func(c *conf) {
		policy, ok := c.policies[policyName]
		if !ok {
			policy = defaultPolicy()
			c.policies[policyName] = policy
		}
		policy.DenyRetryAfter = d
	}
}

// WithCodeSendCooldown overrides the minimum interval between verification
// code sends to the same identifier.
func WithCodeSendCooldown(d time.Duration) Option {
	return func(c *conf) {
		c.codeSendCooldown = d
	}
}

func applyOptions(opts ...Option) *conf {
	defaultConfig := &conf{
		policies: map[string]*Policy{
			PolicyDefault:  defaultPolicy(),
			PolicyHighRisk: highRiskPolicy(),
		},

		codeSendCooldown: defaultCodeSendCooldown,
	}

	for _, opt := range opts {
		opt(defaultConfig)
	}

	return defaultConfig
}

// CodeSendCooldown returns the configured minimum interval between code
// sends, so callers can surface a full countdown after a dispatch.
func (g *Guard) CodeSendCooldown() time.Duration {
	return g.conf.codeSendCooldown
}

func (c *conf) getPolicy(name string) *Policy {
	if policy, ok := c.policies[name]; ok {
		return policy
	}
	return c.policies[PolicyDefault]
}
