// AngelaMos | 2026
// transactor_test.go

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/accountd/internal/auth"
)

type noopHasher struct{}

func (noopHasher) Hash(p string) (string, error) { return p, nil }

func newMockTransactor(t *testing.T) (*SQLTransactor, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSQLTransactor(sqlx.NewDb(db, "sqlmock"), noopHasher{}), mock
}

func TestWithinTxCommits(t *testing.T) {
	tx, mock := newMockTransactor(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := tx.WithinTx(context.Background(), func(_ context.Context, s auth.Stores) error {
		assert.NotNil(t, s.Sessions)
		assert.NotNil(t, s.Users)
		return nil
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	tx, mock := newMockTransactor(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tx.WithinTx(context.Background(), func(context.Context, auth.Stores) error {
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
