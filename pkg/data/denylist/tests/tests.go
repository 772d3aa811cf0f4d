package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritid/identity-guard/pkg/data/denylist"
)

func RunTests(t *testing.T, s denylist.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s denylist.Store){
		testHappyPath,
		testCaseInsensitiveLookup,
		testDuplicateEntry,
		testInvalidEntry,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s denylist.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		isDisposable, err := s.IsDisposableDomain(ctx, "burner.example")
		require.NoError(t, err)
		assert.False(t, isDisposable)

		require.NoError(t, s.Put(ctx, &denylist.Entry{
			Domain:    "burner.example",
			Reason:    "abuse reports",
			CreatedAt: time.Now(),
		}))

		isDisposable, err = s.IsDisposableDomain(ctx, "burner.example")
		require.NoError(t, err)
		assert.True(t, isDisposable)

		// Lookups are exact, subdomains aren't implied
		isDisposable, err = s.IsDisposableDomain(ctx, "mail.burner.example")
		require.NoError(t, err)
		assert.False(t, isDisposable)
	})
}

func testCaseInsensitiveLookup(t *testing.T, s denylist.Store) {
	t.Run("testCaseInsensitiveLookup", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, &denylist.Entry{
			Domain:    "burner.example",
			Reason:    "abuse reports",
			CreatedAt: time.Now(),
		}))

		for _, domain := range []string{"burner.example", "Burner.Example", "BURNER.EXAMPLE"} {
			isDisposable, err := s.IsDisposableDomain(ctx, domain)
			require.NoError(t, err)
			assert.True(t, isDisposable)
		}
	})
}

func testDuplicateEntry(t *testing.T, s denylist.Store) {
	t.Run("testDuplicateEntry", func(t *testing.T) {
		ctx := context.Background()

		entry := &denylist.Entry{
			Domain:    "burner.example",
			Reason:    "abuse reports",
			CreatedAt: time.Now(),
		}
		require.NoError(t, s.Put(ctx, entry))
		assert.Equal(t, denylist.ErrEntryExists, s.Put(ctx, entry))
	})
}

func testInvalidEntry(t *testing.T, s denylist.Store) {
	t.Run("testInvalidEntry", func(t *testing.T) {
		ctx := context.Background()

		for _, invalid := range []*denylist.Entry{
			{Reason: "abuse reports", CreatedAt: time.Now()},
			{Domain: "Burner.Example", CreatedAt: time.Now()},
			{Domain: "user@burner.example", CreatedAt: time.Now()},
			{Domain: "burner.example"},
		} {
			assert.Error(t, s.Put(ctx, invalid))
		}
	})
}
