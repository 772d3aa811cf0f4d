package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/veritid/identity-guard/pkg/data/ratelimit"
)

type store struct {
	db *sqlx.DB
}

// New returns a postgres backed ratelimit.Store.
func New(db *sql.DB) ratelimit.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// CheckAndIncrement implements ratelimit.Store.CheckAndIncrement
func (s *store) CheckAndIncrement(ctx context.Context, dimension ratelimit.Dimension, key string, now time.Time, window time.Duration, limit uint64) (uint64, bool, error) {
	if limit == 0 || window < time.Second {
		return 0, false, ratelimit.ErrInvalidLimit
	}

	return dbCheckAndIncrement(ctx, s.db, dimension, key, ratelimit.WindowBucket(now, window), limit)
}
