package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/veritid/identity-guard/pkg/data/denylist"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres denylist.Store
func New(db *sql.DB) denylist.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// IsDisposableDomain implements denylist.Store.IsDisposableDomain
func (s *store) IsDisposableDomain(ctx context.Context, domain string) (bool, error) {
	return dbCheckDomain(ctx, s.db, strings.ToLower(domain))
}

// Put implements denylist.Store.Put
func (s *store) Put(ctx context.Context, entry *denylist.Entry) error {
	model, err := toEntryModel(entry)
	if err != nil {
		return err
	}
	return model.dbSave(ctx, s.db)
}
