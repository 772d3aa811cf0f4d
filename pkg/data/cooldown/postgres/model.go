package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/veritid/identity-guard/pkg/data/cooldown"
	pgutil "github.com/veritid/identity-guard/pkg/database/postgres"
)

const (
	stateTableName = "identityguard__core_dispatchcooldown"
)

type stateModel struct {
	Id         sql.NullInt64 `db:"id"`
	Identifier string        `db:"identifier"`
	LastSentAt time.Time     `db:"last_sent_at"`
	SendCount  uint64        `db:"send_count"`
}

func toStateModel(obj *cooldown.State) (*stateModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &stateModel{
		Identifier: obj.Identifier,
		LastSentAt: obj.LastSentAt,
		SendCount:  obj.SendCount,
	}, nil
}

func fromStateModel(obj *stateModel) *cooldown.State {
	return &cooldown.State{
		Identifier: obj.Identifier,
		LastSentAt: obj.LastSentAt,
		SendCount:  obj.SendCount,
	}
}

func (m *stateModel) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + stateTableName + `
			(
				identifier, last_sent_at, send_count
			)
			VALUES ($1,$2,$3)
			ON CONFLICT (identifier)
			DO UPDATE
				SET last_sent_at = $2, send_count = $3
				WHERE ` + stateTableName + `.identifier = $1 AND ` + stateTableName + `.last_sent_at < $2
			RETURNING id, identifier, last_sent_at, send_count`

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.Identifier,
			m.LastSentAt.UTC(),
			m.SendCount,
		).StructScan(m)
		return pgutil.CheckNoRows(err, cooldown.ErrStaleState)
	})
}

func dbGetState(ctx context.Context, db *sqlx.DB, identifier string) (*stateModel, error) {
	res := &stateModel{}

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `SELECT id, identifier, last_sent_at, send_count FROM ` + stateTableName + `
			WHERE identifier = $1
		`

		err := tx.GetContext(ctx, res, query, identifier)
		return pgutil.CheckNoRows(err, cooldown.ErrStateNotFound)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
