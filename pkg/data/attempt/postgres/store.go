package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/veritid/identity-guard/pkg/data/attempt"
	"github.com/veritid/identity-guard/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a postgres backed attempt.Store.
func New(db *sql.DB) attempt.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements attempt.Store.Put
func (s *store) Put(ctx context.Context, record *attempt.Record) error {
	model, err := toRecordModel(record)
	if err != nil {
		return err
	}

	if err := model.dbSave(ctx, s.db); err != nil {
		return err
	}

	record.LedgerId = uint64(model.Id.Int64)

	return nil
}

// CountForFingerprintSinceTimestamp implements attempt.Store.CountForFingerprintSinceTimestamp
func (s *store) CountForFingerprintSinceTimestamp(ctx context.Context, fingerprint string, since time.Time) (uint64, error) {
	return dbCountForFingerprintSinceTimestamp(ctx, s.db, fingerprint, since)
}

// GetAllByIdentifier implements attempt.Store.GetAllByIdentifier
func (s *store) GetAllByIdentifier(ctx context.Context, identifierHash string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*attempt.Record, error) {
	models, err := dbGetAllByIdentifier(ctx, s.db, identifierHash, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	res := make([]*attempt.Record, len(models))
	for i, model := range models {
		res[i] = fromRecordModel(model)
	}
	return res, nil
}
