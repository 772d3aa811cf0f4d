package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowBucket(t *testing.T) {
	window := 5 * time.Minute

	ts := time.Date(2024, 6, 1, 12, 3, 17, 0, time.UTC)
	bucket := WindowBucket(ts, window)
	assert.EqualValues(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Unix(), bucket)

	// Every timestamp within the window maps to the same bucket
	assert.Equal(t, bucket, WindowBucket(ts.Add(time.Minute), window))
	assert.NotEqual(t, bucket, WindowBucket(ts.Add(window), window))
}

func TestWindowRemaining(t *testing.T) {
	window := time.Minute

	ts := time.Date(2024, 6, 1, 12, 0, 45, 0, time.UTC)
	assert.Equal(t, 15*time.Second, WindowRemaining(ts, window))

	// Remaining time strictly decreases as the window approaches rollover
	assert.Equal(t, 5*time.Second, WindowRemaining(ts.Add(10*time.Second), window))

	// A fresh bucket has the full window remaining
	assert.Equal(t, window, WindowRemaining(ts.Add(15*time.Second), window))
}
