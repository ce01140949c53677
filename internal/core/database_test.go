// AngelaMos | 2026
// database_test.go

package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestInTxCommitAndRollback(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, InTx(context.Background(), db, func(*sqlx.Tx) error { return nil }))

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err := InTx(context.Background(), db, func(*sqlx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = InTx(context.Background(), db, func(*sqlx.Tx) error { panic("kaboom") })
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsDuplicateKeyError(errors.New("plain")))
}

func TestMigrateRunsGooseAgainstPool(t *testing.T) {
	db, _ := newMockDB(t)

	var gotDir string
	var gotDB *sql.DB
	orig := gooseUp
	gooseUp = func(_ context.Context, d *sql.DB, dir string) error {
		gotDB, gotDir = d, dir
		return nil
	}
	t.Cleanup(func() { gooseUp = orig })

	migrations := fstest.MapFS{"00001_init.sql": {Data: []byte("-- +goose Up\n")}}
	require.NoError(t, (&Database{DB: db}).Migrate(context.Background(), migrations))

	assert.Equal(t, ".", gotDir)
	assert.Same(t, db.DB, gotDB)
}
