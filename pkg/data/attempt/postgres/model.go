package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/veritid/identity-guard/pkg/database/postgres"
	q "github.com/veritid/identity-guard/pkg/database/query"
	"github.com/veritid/identity-guard/pkg/pointer"

	"github.com/veritid/identity-guard/pkg/data/attempt"
)

const (
	attemptTableName = "identityguard__core_registrationattempt"
)

type recordModel struct {
	Id sql.NullInt64 `db:"id"`

	AttemptId string `db:"attempt_id"`

	IpAddress         string `db:"ip_address"`
	DeviceFingerprint string `db:"device_fingerprint"`
	IdentifierHash    string `db:"identifier_hash"`
	IdentifierType    uint8  `db:"identifier_type"`
	AttemptType       uint8  `db:"attempt_type"`

	Success         bool           `db:"success"`
	FailureReason   sql.NullString `db:"failure_reason"`
	CaptchaRequired bool           `db:"captcha_required"`
	CaptchaPassed   sql.NullBool   `db:"captcha_passed"`

	BehaviorScore sql.NullFloat64 `db:"behavior_score"`
	UserAgent     sql.NullString  `db:"user_agent"`
	OsVersion     sql.NullString  `db:"os_version"`
	HardwareModel sql.NullString  `db:"hardware_model"`

	CreatedAt time.Time `db:"created_at"`
}

func toRecordModel(obj *attempt.Record) (*recordModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	model := &recordModel{
		AttemptId: obj.Id,

		IpAddress:         obj.IPAddress,
		DeviceFingerprint: obj.DeviceFingerprint,
		IdentifierHash:    obj.IdentifierHash,
		IdentifierType:    uint8(obj.IdentifierType),
		AttemptType:       uint8(obj.AttemptType),

		Success:         obj.Success,
		CaptchaRequired: obj.CaptchaRequired,

		CreatedAt: obj.CreatedAt,
	}

	if obj.FailureReason != nil {
		model.FailureReason = sql.NullString{Valid: true, String: *obj.FailureReason}
	}
	if obj.CaptchaPassed != nil {
		model.CaptchaPassed = sql.NullBool{Valid: true, Bool: *obj.CaptchaPassed}
	}
	if obj.BehaviorScore != nil {
		model.BehaviorScore = sql.NullFloat64{Valid: true, Float64: *obj.BehaviorScore}
	}
	if obj.UserAgent != nil {
		model.UserAgent = sql.NullString{Valid: true, String: *obj.UserAgent}
	}
	if obj.OsVersion != nil {
		model.OsVersion = sql.NullString{Valid: true, String: *obj.OsVersion}
	}
	if obj.HardwareModel != nil {
		model.HardwareModel = sql.NullString{Valid: true, String: *obj.HardwareModel}
	}

	return model, nil
}

func fromRecordModel(obj *recordModel) *attempt.Record {
	return &attempt.Record{
		LedgerId: uint64(obj.Id.Int64),

		Id: obj.AttemptId,

		IPAddress:         obj.IpAddress,
		DeviceFingerprint: obj.DeviceFingerprint,
		IdentifierHash:    obj.IdentifierHash,
		IdentifierType:    attempt.IdentifierType(obj.IdentifierType),
		AttemptType:       attempt.Type(obj.AttemptType),

		Success:         obj.Success,
		FailureReason:   pointer.StringIfValid(obj.FailureReason.Valid, obj.FailureReason.String),
		CaptchaRequired: obj.CaptchaRequired,
		CaptchaPassed:   boolIfValid(obj.CaptchaPassed),

		BehaviorScore: float64IfValid(obj.BehaviorScore),
		UserAgent:     pointer.StringIfValid(obj.UserAgent.Valid, obj.UserAgent.String),
		OsVersion:     pointer.StringIfValid(obj.OsVersion.Valid, obj.OsVersion.String),
		HardwareModel: pointer.StringIfValid(obj.HardwareModel.Valid, obj.HardwareModel.String),

		CreatedAt: obj.CreatedAt,
	}
}

func boolIfValid(value sql.NullBool) *bool {
	if value.Valid {
		return pointer.Bool(value.Bool)
	}
	return nil
}

func float64IfValid(value sql.NullFloat64) *float64 {
	if value.Valid {
		return pointer.Float64(value.Float64)
	}
	return nil
}

func (m *recordModel) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + attemptTableName + `
			(
				attempt_id, ip_address, device_fingerprint, identifier_hash, identifier_type, attempt_type,
				success, failure_reason, captcha_required, captcha_passed,
				behavior_score, user_agent, os_version, hardware_model, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			RETURNING id`

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.AttemptId,
			m.IpAddress,
			m.DeviceFingerprint,
			m.IdentifierHash,
			m.IdentifierType,
			m.AttemptType,
			m.Success,
			m.FailureReason,
			m.CaptchaRequired,
			m.CaptchaPassed,
			m.BehaviorScore,
			m.UserAgent,
			m.OsVersion,
			m.HardwareModel,
			m.CreatedAt.UTC(),
		).Scan(&m.Id)
		return pgutil.CheckUniqueViolation(err, attempt.ErrInvalidRecord)
	})
}

func dbCountForFingerprintSinceTimestamp(ctx context.Context, db *sqlx.DB, fingerprint string, since time.Time) (uint64, error) {
	var count uint64

	query := `SELECT COUNT(*) FROM ` + attemptTableName + `
		WHERE device_fingerprint = $1 AND created_at >= $2
	`

	err := db.GetContext(ctx, &count, query, fingerprint, since.UTC())
	if err != nil {
		return 0, err
	}
	return count, nil
}

func dbGetAllByIdentifier(ctx context.Context, db *sqlx.DB, identifierHash string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*recordModel, error) {
	res := []*recordModel{}

	query := `SELECT
		id, attempt_id, ip_address, device_fingerprint, identifier_hash, identifier_type, attempt_type,
		success, failure_reason, captcha_required, captcha_passed,
		behavior_score, user_agent, os_version, hardware_model, created_at
		FROM ` + attemptTableName + `
		WHERE (identifier_hash = $1)
	`

	opts := []interface{}{identifierHash}
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, attempt.ErrNotFound)
	}
	if len(res) == 0 {
		return nil, attempt.ErrNotFound
	}

	return res, nil
}
