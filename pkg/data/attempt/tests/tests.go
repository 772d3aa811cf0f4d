package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritid/identity-guard/pkg/data/attempt"
	"github.com/veritid/identity-guard/pkg/database/query"
	"github.com/veritid/identity-guard/pkg/pointer"
)

func RunTests(t *testing.T, s attempt.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s attempt.Store){
		testHappyPath,
		testInvalidRecord,
		testCountForFingerprintSinceTimestamp,
		testGetAllByIdentifier,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s attempt.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		record := &attempt.Record{
			Id: uuid.New().String(),

			IPAddress:         "203.0.113.7",
			DeviceFingerprint: "fingerprint-1",
			IdentifierHash:    "a1b2c3",
			IdentifierType:    attempt.IdentifierTypePhone,
			AttemptType:       attempt.TypeRegister,

			Success:         false,
			FailureReason:   pointer.String("rate-limited"),
			CaptchaRequired: true,
			CaptchaPassed:   pointer.Bool(false),

			BehaviorScore: pointer.Float64(0.42),
			UserAgent:     pointer.String("Veritid/1.2.3"),

			CreatedAt: time.Now(),
		}

		require.NoError(t, s.Put(ctx, record))

		count, err := s.CountForFingerprintSinceTimestamp(ctx, record.DeviceFingerprint, record.CreatedAt.Add(-time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func testInvalidRecord(t *testing.T, s attempt.Store) {
	t.Run("testInvalidRecord", func(t *testing.T) {
		ctx := context.Background()

		// Required fields are missing
		assert.Error(t, s.Put(ctx, &attempt.Record{
			Id:        uuid.New().String(),
			CreatedAt: time.Now(),
		}))

		count, err := s.CountForFingerprintSinceTimestamp(ctx, "fingerprint-1", time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func testCountForFingerprintSinceTimestamp(t *testing.T, s attempt.Store) {
	t.Run("testCountForFingerprintSinceTimestamp", func(t *testing.T) {
		ctx := context.Background()

		now := time.Now()
		for i := 0; i < 5; i++ {
			record := &attempt.Record{
				Id: uuid.New().String(),

				IPAddress:         fmt.Sprintf("203.0.113.%d", i),
				DeviceFingerprint: "shared-fingerprint",
				IdentifierHash:    fmt.Sprintf("hash-%d", i),
				IdentifierType:    attempt.IdentifierTypeEmail,
				AttemptType:       attempt.TypeRegister,

				Success: true,

				CreatedAt: now.Add(time.Duration(-i) * time.Hour),
			}
			require.NoError(t, s.Put(ctx, record))
		}

		count, err := s.CountForFingerprintSinceTimestamp(ctx, "shared-fingerprint", now.Add(-150*time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)

		count, err = s.CountForFingerprintSinceTimestamp(ctx, "other-fingerprint", now.Add(-150*time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func testGetAllByIdentifier(t *testing.T, s attempt.Store) {
	t.Run("testGetAllByIdentifier", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByIdentifier(ctx, "paged-hash", query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, attempt.ErrNotFound, err)

		expected := make([]*attempt.Record, 0)
		for i := 0; i < 5; i++ {
			record := &attempt.Record{
				Id: uuid.New().String(),

				IPAddress:         "203.0.113.7",
				DeviceFingerprint: fmt.Sprintf("fingerprint-%d", i),
				IdentifierHash:    "paged-hash",
				IdentifierType:    attempt.IdentifierTypePhone,
				AttemptType:       attempt.TypeSendCode,

				Success: i%2 == 0,

				CreatedAt: time.Now(),
			}
			require.NoError(t, s.Put(ctx, record))
			require.True(t, record.LedgerId > 0)
			expected = append(expected, record)
		}

		// Unrelated record for another identifier
		require.NoError(t, s.Put(ctx, &attempt.Record{
			Id: uuid.New().String(),

			IPAddress:         "203.0.113.8",
			DeviceFingerprint: "fingerprint-other",
			IdentifierHash:    "other-hash",
			IdentifierType:    attempt.IdentifierTypePhone,
			AttemptType:       attempt.TypeSendCode,

			Success: true,

			CreatedAt: time.Now(),
		}))

		actual, err := s.GetAllByIdentifier(ctx, "paged-hash", query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i, record := range actual {
			assert.Equal(t, expected[i].Id, record.Id)
			assert.Equal(t, expected[i].LedgerId, record.LedgerId)
			assert.Equal(t, expected[i].DeviceFingerprint, record.DeviceFingerprint)
		}

		actual, err = s.GetAllByIdentifier(ctx, "paged-hash", query.EmptyCursor, 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, expected[0].Id, actual[0].Id)
		assert.Equal(t, expected[1].Id, actual[1].Id)

		actual, err = s.GetAllByIdentifier(ctx, "paged-hash", query.ToCursor(expected[1].LedgerId), 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assert.Equal(t, expected[2].Id, actual[0].Id)

		actual, err = s.GetAllByIdentifier(ctx, "paged-hash", query.EmptyCursor, 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		assert.Equal(t, expected[4].Id, actual[0].Id)
		assert.Equal(t, expected[0].Id, actual[4].Id)
	})
}
