// AngelaMos | 2026
// transactor.go

package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/accountd/internal/auth"
	"github.com/carterperez-dev/accountd/internal/core"
	"github.com/carterperez-dev/accountd/internal/user"
)

// SQLTransactor binds the session and user stores to one database
// transaction per call.
type SQLTransactor struct {
	db     *sqlx.DB
	hasher user.PasswordHasher
}

func NewSQLTransactor(db *sqlx.DB, hasher user.PasswordHasher) *SQLTransactor {
	return &SQLTransactor{db: db, hasher: hasher}
}

func (t *SQLTransactor) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, s auth.Stores) error,
) error {
	return core.InTx(ctx, t.db, func(tx *sqlx.Tx) error {
		return fn(ctx, auth.Stores{
			Sessions: auth.NewRepository(tx),
			Users:    user.NewService(user.NewRepository(tx), t.hasher),
		})
	})
}

var _ auth.Transactor = (*SQLTransactor)(nil)
