package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritid/identity-guard/pkg/data/cooldown"
	"github.com/veritid/identity-guard/pkg/data/cooldown/tests"

	pg "github.com/veritid/identity-guard/pkg/database/postgres"
	postgrestest "github.com/veritid/identity-guard/pkg/database/postgres/test"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	// Used for testing ONLY, the table and migrations are external to this repository
	tableCreate = `
	CREATE TABLE identityguard__core_dispatchcooldown (
		id serial NOT NULL PRIMARY KEY,

		identifier TEXT NOT NULL,
		last_sent_at TIMESTAMP WITH TIME ZONE NOT NULL,
		send_count BIGINT NOT NULL,

		CONSTRAINT identityguard__core_dispatchcooldown__uniq__identifier UNIQUE (identifier)
	);
	`

	// Used for testing ONLY, the table and migrations are external to this repository
	tableDestroy = `
		DROP TABLE identityguard__core_dispatchcooldown;
	`
)

var (
	testStore cooldown.Store
	testDb    *sqlx.DB
	teardown  func()
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	testPool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	var cleanUpFunc func()
	db, cleanUpFunc, err := postgrestest.StartPostgresDB(testPool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}

	if err := createTestTables(db); err != nil {
		logrus.StandardLogger().WithError(err).Error("Error creating test tables")
		cleanUpFunc()
		os.Exit(1)
	}

	testStore = New(db)
	testDb = sqlx.NewDb(db, "pgx")
	teardown = func() {
		if pc := recover(); pc != nil {
			cleanUpFunc()
			panic(pc)
		}

		if err := resetTestTables(db); err != nil {
			logrus.StandardLogger().WithError(err).Error("Error resetting test tables")
			cleanUpFunc()
			os.Exit(1)
		}
	}

	code := m.Run()
	cleanUpFunc()
	os.Exit(code)
}

func TestCooldownPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}

func TestCooldownPostgresStore_TxWithinCtx(t *testing.T) {
	defer teardown()

	ctx := context.Background()

	// A save inside a rolled back transaction is discarded.
	err := pg.ExecuteTxWithinCtx(ctx, testDb, sql.LevelDefault, func(ctx context.Context) error {
		require.NoError(t, testStore.Save(ctx, &cooldown.State{
			Identifier: "tx-identifier",
			LastSentAt: time.Now(),
			SendCount:  1,
		}))
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = testStore.Get(ctx, "tx-identifier")
	assert.Equal(t, cooldown.ErrStateNotFound, err)

	// A committed transaction persists the save.
	err = pg.ExecuteTxWithinCtx(ctx, testDb, sql.LevelDefault, func(ctx context.Context) error {
		return testStore.Save(ctx, &cooldown.State{
			Identifier: "tx-identifier",
			LastSentAt: time.Now(),
			SendCount:  1,
		})
	})
	require.NoError(t, err)

	state, err := testStore.Get(ctx, "tx-identifier")
	require.NoError(t, err)
	assert.EqualValues(t, 1, state.SendCount)
}

func createTestTables(db *sql.DB) error {
	_, err := db.Exec(tableCreate)
	if err != nil {
		logrus.StandardLogger().WithError(err).Error("could not create test tables")
		return err
	}
	return nil
}

func resetTestTables(db *sql.DB) error {
	_, err := db.Exec(tableDestroy)
	if err != nil {
		logrus.StandardLogger().WithError(err).Error("could not drop test tables")
		return err
	}

	return createTestTables(db)
}
