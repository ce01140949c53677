// AngelaMos | 2026
// repository_test.go

package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/accountd/internal/core"
)

var recordCols = []string{
	"id", "user_id", "jti", "family_id", "issued_at", "expires_at", "revoked",
}

func newMockRepo(t *testing.T) (*repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := &repository{
		db:  sqlx.NewDb(db, "sqlmock"),
		now: time.Now,
	}
	return repo, mock
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rec := &RefreshTokenRecord{
		ID:        "01J0000000000000000000000A",
		UserID:    "u1",
		JTI:       "j1",
		FamilyID:  "f1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(rec.ID, "u1", "j1", "f1", sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &RefreshTokenRecord{ID: "x"})
	require.ErrorIs(t, err, core.ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindBySession(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(recordCols).
		AddRow("r2", "u1", "j2", "f1", now, now.Add(time.Hour), false).
		AddRow("r1", "u1", "j1", "f1", now.Add(-time.Minute), now.Add(time.Hour), false)

	mock.ExpectQuery(`FROM refresh_tokens\s+WHERE user_id = \$1 AND family_id = \$2 AND revoked = FALSE`).
		WithArgs("u1", "f1").
		WillReturnRows(rows)

	records, err := repo.FindBySession(context.Background(), "u1", "f1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "j2", records[0].JTI)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindByUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(recordCols).
		AddRow("r1", "u1", "j1", "f1", now, now.Add(time.Hour), false).
		AddRow("r2", "u1", "j2", "f2", now, now.Add(time.Hour), false)

	mock.ExpectQuery(`FROM refresh_tokens\s+WHERE user_id = \$1 AND revoked = FALSE`).
		WithArgs("u1").
		WillReturnRows(rows)

	records, err := repo.FindByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindOneMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`WHERE user_id = \$1 AND jti = \$2 AND family_id = \$3`).
		WithArgs("u1", "j1", "f1").
		WillReturnRows(sqlmock.NewRows(recordCols))

	_, err := repo.FindOne(context.Background(), "u1", "j1", "f1")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryIsValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	plusFive := time.FixedZone("UTC+5", 5*60*60)

	tests := []struct {
		name string
		rows *sqlmock.Rows
		want bool
	}{
		{
			name: "live",
			rows: sqlmock.NewRows(recordCols).
				AddRow("r1", "u1", "j1", "f1", now, now.Add(time.Minute), false),
			want: true,
		},
		{
			name: "revoked",
			rows: sqlmock.NewRows(recordCols).
				AddRow("r1", "u1", "j1", "f1", now, now.Add(time.Minute), true),
			want: false,
		},
		{
			name: "expired",
			rows: sqlmock.NewRows(recordCols).
				AddRow("r1", "u1", "j1", "f1", now.Add(-time.Hour), now.Add(-time.Second), false),
			want: false,
		},
		{
			name: "expiry equal to now",
			rows: sqlmock.NewRows(recordCols).
				AddRow("r1", "u1", "j1", "f1", now.Add(-time.Hour), now, false),
			want: false,
		},
		{
			name: "offset zone compared as utc",
			rows: sqlmock.NewRows(recordCols).
				AddRow("r1", "u1", "j1", "f1", now, now.Add(time.Minute).In(plusFive), false),
			want: true,
		},
		{
			name: "missing",
			rows: sqlmock.NewRows(recordCols),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			repo.now = func() time.Time { return now }

			mock.ExpectQuery(`WHERE user_id = \$1 AND jti = \$2 AND family_id = \$3`).
				WithArgs("u1", "j1", "f1").
				WillReturnRows(tt.rows)

			ok, err := repo.IsValid(context.Background(), "u1", "j1", "f1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepositoryIsValidPropagatesErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(`FROM refresh_tokens`).WillReturnError(boom)

	_, err := repo.IsValid(context.Background(), "u1", "j1", "f1")
	require.ErrorIs(t, err, boom)
}

func TestRepositoryRevokeIsIdempotent(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := &RefreshTokenRecord{ID: "r1"}

	for range 2 {
		mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE WHERE id = \$1`).
			WithArgs("r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, repo.Revoke(context.Background(), rec))
	require.NoError(t, repo.Revoke(context.Background(), rec))
	assert.True(t, rec.Revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}
