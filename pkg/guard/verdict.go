package guard

import "time"

// Verdict is the engine's decision for one intent. Produced fresh per
// request and never persisted directly.
type Verdict struct {
	Allowed         bool
	RequiresCaptcha bool
	Reason          Reason
	RetryAfter      time.Duration
}
