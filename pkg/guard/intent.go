package guard

import (
	"errors"

	"github.com/veritid/identity-guard/pkg/data/attempt"
)

var (
	// ErrInvalidIntent is returned when a required intent field is missing
	// or malformed. No counters are touched and no ledger entry is written.
	ErrInvalidIntent = errors.New("intent is invalid")
)

// Intent is one registration or send-code attempt to be judged. The
// identifier is always pre-hashed by the caller, the engine never sees
// raw PII. EmailDomain is the only exception, it carries just the domain
// portion so the disposable filter can run.
type Intent struct {
	IPAddress         string
	DeviceFingerprint string
	IdentifierHash    string
	IdentifierType    attempt.IdentifierType

	EmailDomain string

	CaptchaPassed *bool
	BehaviorScore *float64

	Policy string
}

// Validate validates an Intent
func (i *Intent) Validate() error {
	if i == nil {
		return errors.New("intent is nil")
	}

	if len(i.IPAddress) == 0 {
		return errors.New("ip address is required")
	}

	if len(i.DeviceFingerprint) == 0 {
		return errors.New("device fingerprint is required")
	}

	if len(i.IdentifierHash) == 0 {
		return errors.New("identifier hash is required")
	}

	switch i.IdentifierType {
	case attempt.IdentifierTypePhone, attempt.IdentifierTypeEmail, attempt.IdentifierTypeUsername:
	default:
		return errors.New("identifier type is invalid")
	}

	return nil
}
