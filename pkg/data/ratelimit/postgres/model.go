package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/veritid/identity-guard/pkg/database/postgres"

	"github.com/veritid/identity-guard/pkg/data/ratelimit"
)

const (
	counterTableName = "identityguard__core_ratelimitcounter"
)

type counterModel struct {
	Id           sql.NullInt64 `db:"id"`
	Dimension    uint8         `db:"dimension"`
	KeyValue     string        `db:"key_value"`
	WindowBucket int64         `db:"window_bucket"`
	Count        uint64        `db:"count"`
}

// dbCheckAndIncrement performs the compare and increment in a single
// statement. The guarded DO UPDATE is what makes concurrent callers safe: the
// row is locked for the compare, so no two requests can both observe count =
// limit-1 and both proceed. A refused call falls through to a plain read so
// the caller still sees the standing count.
func dbCheckAndIncrement(ctx context.Context, db *sqlx.DB, dimension ratelimit.Dimension, key string, windowBucket int64, limit uint64) (uint64, bool, error) {
	var count uint64

	query := `INSERT INTO ` + counterTableName + `
		(
			dimension, key_value, window_bucket, count
		)
		VALUES ($1,$2,$3,1)
		ON CONFLICT (dimension, key_value, window_bucket)
		DO UPDATE
			SET count = ` + counterTableName + `.count + 1
			WHERE ` + counterTableName + `.count < $4
		RETURNING count`

	err := db.QueryRowxContext(
		ctx,
		query,
		uint8(dimension),
		key,
		windowBucket,
		limit,
	).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !pgutil.IsNoRows(err) {
		return 0, false, err
	}

	// The guard refused the increment, so the bucket is at its limit. Read
	// the standing count for the caller.
	count, err = dbGetCount(ctx, db, dimension, key, windowBucket)
	if err != nil {
		return 0, false, err
	}
	return count, false, nil
}

func dbGetCount(ctx context.Context, db *sqlx.DB, dimension ratelimit.Dimension, key string, windowBucket int64) (uint64, error) {
	res := &counterModel{}

	query := `SELECT id, dimension, key_value, window_bucket, count FROM ` + counterTableName + `
		WHERE dimension = $1 AND key_value = $2 AND window_bucket = $3
	`

	err := db.GetContext(ctx, res, query, uint8(dimension), key, windowBucket)
	if err != nil {
		if pgutil.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return res.Count, nil
}
