package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidLimit is returned when a check is issued with a zero limit or
	// a non-positive window.
	ErrInvalidLimit = errors.New("rate limit configuration is invalid")
)

// Dimension is an independent rate limit axis. Each dimension carries its own
// thresholds and windows, and counters for different dimensions never share
// state.
type Dimension uint8

const (
	DimensionUnknown Dimension = iota
	DimensionIP
	DimensionFingerprint
	DimensionIdentifier
)

func (d Dimension) String() string {
	switch d {
	case DimensionIP:
		return "ip"
	case DimensionFingerprint:
		return "fingerprint"
	case DimensionIdentifier:
		return "identifier"
	default:
		return "unknown"
	}
}

type Store interface {
	// CheckAndIncrement atomically increments the counter for the provided
	// (dimension, key) pair within the window bucket containing now, but only
	// when the current count is below limit. The returned count reflects the
	// counter after the call.
	//
	// The comparison and increment MUST happen as a single atomic operation
	// against the backing store. Two concurrent callers observing the same
	// counter must never both be told they are the Nth request for the same N.
	//
	// Counts are monotonic within a bucket. There is no decrement; a failed
	// downstream step never hands an attempt back.
	CheckAndIncrement(ctx context.Context, dimension Dimension, key string, now time.Time, window time.Duration, limit uint64) (count uint64, withinLimit bool, err error)
}

// WindowBucket computes the start of the fixed window containing ts. Window
// rollover is implicit: a new bucket value starts a fresh counter row, so
// expiry needs no background process.
func WindowBucket(ts time.Time, window time.Duration) int64 {
	windowSeconds := int64(window / time.Second)
	if windowSeconds <= 0 {
		return ts.Unix()
	}
	return ts.Unix() - ts.Unix()%windowSeconds
}

// WindowRemaining computes the time until the window containing ts rolls
// over, which is the longest a denied caller could need to wait.
func WindowRemaining(ts time.Time, window time.Duration) time.Duration {
	windowSeconds := int64(window / time.Second)
	if windowSeconds <= 0 {
		return 0
	}

	bucketEnd := WindowBucket(ts, window) + windowSeconds
	remaining := time.Duration(bucketEnd-ts.Unix()) * time.Second
	if remaining < 0 {
		return 0
	}
	return remaining
}
