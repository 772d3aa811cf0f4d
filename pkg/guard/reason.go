package guard

type Reason int

const (
	ReasonUnspecified Reason = iota
	ReasonDisposableEmail
	ReasonRateLimited
	ReasonCaptchaRequired
	ReasonCooldownActive
)

func (r Reason) String() string {
	switch r {
	case ReasonDisposableEmail:
		return "disposable-email"
	case ReasonRateLimited:
		return "rate-limited"
	case ReasonCaptchaRequired:
		return "captcha-required"
	case ReasonCooldownActive:
		return "cooldown-active"
	}
	return ""
}
