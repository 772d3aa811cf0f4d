package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritid/identity-guard/pkg/data/attempt"
	"github.com/veritid/identity-guard/pkg/pointer"
)

func TestRecordModelConversion(t *testing.T) {
	record := &attempt.Record{
		Id: uuid.New().String(),

		IPAddress:         "203.0.113.7",
		DeviceFingerprint: "fingerprint-1",
		IdentifierHash:    "a1b2c3",
		IdentifierType:    attempt.IdentifierTypePhone,
		AttemptType:       attempt.TypeSendCode,

		Success:         false,
		FailureReason:   pointer.String("rate-limited"),
		CaptchaRequired: true,
		CaptchaPassed:   pointer.Bool(true),

		BehaviorScore: pointer.Float64(0.8),
		UserAgent:     pointer.String("Veritid/1.2.3"),
		OsVersion:     pointer.String("17.5"),
		HardwareModel: pointer.String("iPhone16,1"),

		CreatedAt: time.Now(),
	}

	model, err := toRecordModel(record)
	require.NoError(t, err)

	actual := fromRecordModel(model)
	assert.EqualValues(t, record, actual)
}

func TestRecordModelConversion_OptionalFieldsAbsent(t *testing.T) {
	record := &attempt.Record{
		Id: uuid.New().String(),

		IPAddress:         "203.0.113.7",
		DeviceFingerprint: "fingerprint-1",
		IdentifierHash:    "a1b2c3",
		IdentifierType:    attempt.IdentifierTypeUsername,
		AttemptType:       attempt.TypeRegister,

		Success: true,

		CreatedAt: time.Now(),
	}

	model, err := toRecordModel(record)
	require.NoError(t, err)

	actual := fromRecordModel(model)
	assert.EqualValues(t, record, actual)
}

func TestRecordModelConversion_InvalidRecord(t *testing.T) {
	_, err := toRecordModel(&attempt.Record{
		Id:        uuid.New().String(),
		CreatedAt: time.Now(),
	})
	assert.Error(t, err)
}
