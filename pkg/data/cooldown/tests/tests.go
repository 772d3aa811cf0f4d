package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritid/identity-guard/pkg/data/cooldown"
)

func RunTests(t *testing.T, s cooldown.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s cooldown.Store){
		testHappyPath,
		testStaleUpdate,
		testInvalidState,
		testRemaining,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s cooldown.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.Get(ctx, "identifier-1")
		assert.Equal(t, cooldown.ErrStateNotFound, err)

		start := time.Now().Truncate(time.Second)
		expected := &cooldown.State{
			Identifier: "identifier-1",
			LastSentAt: start,
			SendCount:  1,
		}
		require.NoError(t, s.Save(ctx, expected))

		actual, err := s.Get(ctx, "identifier-1")
		require.NoError(t, err)
		assert.Equal(t, expected.Identifier, actual.Identifier)
		assert.Equal(t, expected.LastSentAt.Unix(), actual.LastSentAt.Unix())
		assert.EqualValues(t, 1, actual.SendCount)

		// A later dispatch moves the clock forward
		expected.LastSentAt = start.Add(time.Minute)
		expected.SendCount = 2
		require.NoError(t, s.Save(ctx, expected))

		actual, err = s.Get(ctx, "identifier-1")
		require.NoError(t, err)
		assert.Equal(t, expected.LastSentAt.Unix(), actual.LastSentAt.Unix())
		assert.EqualValues(t, 2, actual.SendCount)

		// Other identifiers are untouched
		_, err = s.Get(ctx, "identifier-2")
		assert.Equal(t, cooldown.ErrStateNotFound, err)
	})
}

func testStaleUpdate(t *testing.T, s cooldown.Store) {
	t.Run("testStaleUpdate", func(t *testing.T) {
		ctx := context.Background()

		start := time.Now().Truncate(time.Second)
		require.NoError(t, s.Save(ctx, &cooldown.State{
			Identifier: "identifier-1",
			LastSentAt: start,
			SendCount:  3,
		}))

		// Writes that don't advance the clock are refused
		for _, lastSentAt := range []time.Time{start, start.Add(-time.Minute)} {
			err := s.Save(ctx, &cooldown.State{
				Identifier: "identifier-1",
				LastSentAt: lastSentAt,
				SendCount:  4,
			})
			assert.Equal(t, cooldown.ErrStaleState, err)
		}

		actual, err := s.Get(ctx, "identifier-1")
		require.NoError(t, err)
		assert.Equal(t, start.Unix(), actual.LastSentAt.Unix())
		assert.EqualValues(t, 3, actual.SendCount)
	})
}

func testInvalidState(t *testing.T, s cooldown.Store) {
	t.Run("testInvalidState", func(t *testing.T) {
		ctx := context.Background()

		for _, invalid := range []*cooldown.State{
			{LastSentAt: time.Now(), SendCount: 1},
			{Identifier: "identifier-1", SendCount: 1},
			{Identifier: "identifier-1", LastSentAt: time.Now()},
		} {
			assert.Error(t, s.Save(ctx, invalid))
		}

		_, err := s.Get(ctx, "identifier-1")
		assert.Equal(t, cooldown.ErrStateNotFound, err)
	})
}

func testRemaining(t *testing.T, s cooldown.Store) {
	t.Run("testRemaining", func(t *testing.T) {
		ctx := context.Background()

		start := time.Now().Truncate(time.Second)
		require.NoError(t, s.Save(ctx, &cooldown.State{
			Identifier: "identifier-1",
			LastSentAt: start,
			SendCount:  1,
		}))

		actual, err := s.Get(ctx, "identifier-1")
		require.NoError(t, err)

		window := time.Minute
		assert.Equal(t, 30*time.Second, actual.Remaining(start.Add(30*time.Second), window))
		assert.Equal(t, time.Duration(0), actual.Remaining(start.Add(window), window))
		assert.Equal(t, time.Duration(0), actual.Remaining(start.Add(2*window), window))
	})
}
