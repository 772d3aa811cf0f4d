package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritid/identity-guard/pkg/data/ratelimit"
)

func RunTests(t *testing.T, s ratelimit.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s ratelimit.Store){
		testHappyPath,
		testDimensionAndKeyPartitioning,
		testWindowRollover,
		testInvalidLimit,
		testConcurrentCheckAndIncrement,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s ratelimit.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		now := time.Now()
		window := time.Minute
		limit := uint64(5)

		for i := uint64(1); i <= limit; i++ {
			count, withinLimit, err := s.CheckAndIncrement(ctx, ratelimit.DimensionFingerprint, "fingerprint-1", now, window, limit)
			require.NoError(t, err)
			assert.True(t, withinLimit)
			assert.Equal(t, i, count)
		}

		// Counter is saturated, all subsequent calls in the bucket are refused
		// and the count never moves.
		for i := 0; i < 3; i++ {
			count, withinLimit, err := s.CheckAndIncrement(ctx, ratelimit.DimensionFingerprint, "fingerprint-1", now, window, limit)
			require.NoError(t, err)
			assert.False(t, withinLimit)
			assert.Equal(t, limit, count)
		}
	})
}

func testDimensionAndKeyPartitioning(t *testing.T, s ratelimit.Store) {
	t.Run("testDimensionAndKeyPartitioning", func(t *testing.T) {
		ctx := context.Background()

		now := time.Now()
		window := time.Minute

		_, _, err := s.CheckAndIncrement(ctx, ratelimit.DimensionIP, "shared-key", now, window, 1)
		require.NoError(t, err)

		// Same key under another dimension starts fresh
		count, withinLimit, err := s.CheckAndIncrement(ctx, ratelimit.DimensionIdentifier, "shared-key", now, window, 1)
		require.NoError(t, err)
		assert.True(t, withinLimit)
		assert.EqualValues(t, 1, count)

		// Different key under the same dimension starts fresh
		count, withinLimit, err = s.CheckAndIncrement(ctx, ratelimit.DimensionIP, "other-key", now, window, 1)
		require.NoError(t, err)
		assert.True(t, withinLimit)
		assert.EqualValues(t, 1, count)

		// Original counter is saturated
		_, withinLimit, err = s.CheckAndIncrement(ctx, ratelimit.DimensionIP, "shared-key", now, window, 1)
		require.NoError(t, err)
		assert.False(t, withinLimit)
	})
}

func testWindowRollover(t *testing.T, s ratelimit.Store) {
	t.Run("testWindowRollover", func(t *testing.T) {
		ctx := context.Background()

		window := time.Minute
		now := time.Now().Truncate(window)

		_, withinLimit, err := s.CheckAndIncrement(ctx, ratelimit.DimensionIP, "1.2.3.4", now, window, 1)
		require.NoError(t, err)
		assert.True(t, withinLimit)

		_, withinLimit, err = s.CheckAndIncrement(ctx, ratelimit.DimensionIP, "1.2.3.4", now, window, 1)
		require.NoError(t, err)
		assert.False(t, withinLimit)

		// A timestamp in the next bucket starts a fresh counter
		count, withinLimit, err := s.CheckAndIncrement(ctx, ratelimit.DimensionIP, "1.2.3.4", now.Add(window), window, 1)
		require.NoError(t, err)
		assert.True(t, withinLimit)
		assert.EqualValues(t, 1, count)
	})
}

func testInvalidLimit(t *testing.T, s ratelimit.Store) {
	t.Run("testInvalidLimit", func(t *testing.T) {
		ctx := context.Background()

		_, _, err := s.CheckAndIncrement(ctx, ratelimit.DimensionIP, "1.2.3.4", time.Now(), time.Minute, 0)
		assert.Equal(t, ratelimit.ErrInvalidLimit, err)

		_, _, err = s.CheckAndIncrement(ctx, ratelimit.DimensionIP, "1.2.3.4", time.Now(), 0, 5)
		assert.Equal(t, ratelimit.ErrInvalidLimit, err)
	})
}

func testConcurrentCheckAndIncrement(t *testing.T, s ratelimit.Store) {
	t.Run("testConcurrentCheckAndIncrement", func(t *testing.T) {
		ctx := context.Background()

		now := time.Now()
		window := time.Minute
		limit := uint64(16)
		callers := 64

		var wg sync.WaitGroup
		results := make(chan bool, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, withinLimit, err := s.CheckAndIncrement(ctx, ratelimit.DimensionFingerprint, "contended", now, window, limit)
				assert.NoError(t, err)
				results <- withinLimit
			}()
		}
		wg.Wait()
		close(results)

		var allowed, denied int
		for withinLimit := range results {
			if withinLimit {
				allowed++
			} else {
				denied++
			}
		}

		// Exactly limit callers got through, with no overcount
		assert.EqualValues(t, limit, allowed)
		assert.EqualValues(t, callers-int(limit), denied)
	})
}
