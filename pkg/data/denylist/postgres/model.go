package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/veritid/identity-guard/pkg/data/denylist"
	pgutil "github.com/veritid/identity-guard/pkg/database/postgres"
)

const (
	entryTableName = "identityguard__core_disposabledomain"
)

type entryModel struct {
	Id        sql.NullInt64 `db:"id"`
	Domain    string        `db:"domain"`
	Reason    string        `db:"reason"`
	CreatedAt time.Time     `db:"created_at"`
}

func toEntryModel(obj *denylist.Entry) (*entryModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &entryModel{
		Domain:    obj.Domain,
		Reason:    obj.Reason,
		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromEntryModel(obj *entryModel) *denylist.Entry {
	return &denylist.Entry{
		Domain:    obj.Domain,
		Reason:    obj.Reason,
		CreatedAt: obj.CreatedAt,
	}
}

func (m *entryModel) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + entryTableName + `
			(
				domain, reason, created_at
			)
			VALUES ($1,$2,$3)
			RETURNING id, domain, reason, created_at`

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.Domain,
			m.Reason,
			m.CreatedAt.UTC(),
		).StructScan(m)
		return pgutil.CheckUniqueViolation(err, denylist.ErrEntryExists)
	})
}

func dbCheckDomain(ctx context.Context, db *sqlx.DB, domain string) (bool, error) {
	var res int

	query := `SELECT 1 FROM ` + entryTableName + `
		WHERE domain = $1
	`

	err := db.GetContext(ctx, &res, query, domain)
	if err != nil {
		if pgutil.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
