package cooldown

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStateNotFound is returned when no dispatch state exists for an
	// identifier.
	ErrStateNotFound = errors.New("cooldown state not found")

	// ErrInvalidState is returned if the state is invalid.
	ErrInvalidState = errors.New("cooldown state is invalid")

	// ErrStaleState is returned when saving a state older than the one
	// already stored.
	ErrStaleState = errors.New("cooldown state is stale")
)

// State tracks when a verification code was last dispatched to an
// identifier. The identifier is always a hash, never the raw value.
type State struct {
	Identifier string
	LastSentAt time.Time
	SendCount  uint64
}

type Store interface {
	// Get gets the dispatch state for an identifier.
	//
	// Returns ErrStateNotFound if no code has ever been sent.
	Get(ctx context.Context, identifier string) (*State, error)

	// Save upserts a dispatch state. Updates only occur when LastSentAt
	// is newer than the stored value, otherwise ErrStaleState is returned.
	Save(ctx context.Context, state *State) error
}

// Validate validates a State
func (s *State) Validate() error {
	if s == nil {
		return errors.New("state is nil")
	}

	if len(s.Identifier) == 0 {
		return errors.New("identifier is required")
	}

	if s.LastSentAt.IsZero() {
		return errors.New("last sent time is zero")
	}

	if s.SendCount == 0 {
		return errors.New("send count must be positive")
	}

	return nil
}

// Clone returns a copy of the State
func (s *State) Clone() *State {
	return &State{
		Identifier: s.Identifier,
		LastSentAt: s.LastSentAt,
		SendCount:  s.SendCount,
	}
}

// Remaining derives the time left in a cooldown window of the provided
// duration, as observed at the provided time. Zero means the identifier
// is idle and a code may be sent.
func (s *State) Remaining(now time.Time, window time.Duration) time.Duration {
	elapsed := now.Sub(s.LastSentAt)
	if elapsed >= window {
		return 0
	}
	return window - elapsed
}
