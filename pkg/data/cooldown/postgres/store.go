package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/veritid/identity-guard/pkg/data/cooldown"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres cooldown.Store
func New(db *sql.DB) cooldown.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Get implements cooldown.Store.Get
func (s *store) Get(ctx context.Context, identifier string) (*cooldown.State, error) {
	model, err := dbGetState(ctx, s.db, identifier)
	if err != nil {
		return nil, err
	}
	return fromStateModel(model), nil
}

// Save implements cooldown.Store.Save
func (s *store) Save(ctx context.Context, state *cooldown.State) error {
	model, err := toStateModel(state)
	if err != nil {
		return err
	}
	return model.dbSave(ctx, s.db)
}
