// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/accountd/internal/core"
)

type Repository interface {
	Create(ctx context.Context, record *RefreshTokenRecord) error
	FindBySession(
		ctx context.Context,
		userID, familyID string,
	) ([]RefreshTokenRecord, error)
	FindByUser(ctx context.Context, userID string) ([]RefreshTokenRecord, error)
	FindOne(
		ctx context.Context,
		userID, jti, familyID string,
	) (*RefreshTokenRecord, error)
	IsValid(ctx context.Context, userID, jti, familyID string) (bool, error)
	Revoke(ctx context.Context, record *RefreshTokenRecord) error
}

type repository struct {
	db  core.DBTX
	now func() time.Time
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db, now: time.Now}
}

const recordColumns = `id, user_id, jti, family_id, issued_at, expires_at, revoked`

func (r *repository) Create(
	ctx context.Context,
	record *RefreshTokenRecord,
) error {
	query := `
		INSERT INTO refresh_tokens (
			id, user_id, jti, family_id, issued_at, expires_at, revoked
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.JTI,
		record.FamilyID,
		record.IssuedAt.UTC(),
		record.ExpiresAt.UTC(),
		record.Revoked,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create refresh token: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindBySession(
	ctx context.Context,
	userID, familyID string,
) ([]RefreshTokenRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND family_id = $2 AND revoked = FALSE
		ORDER BY issued_at DESC`

	var records []RefreshTokenRecord
	if err := r.db.SelectContext(ctx, &records, query, userID, familyID); err != nil {
		return nil, fmt.Errorf("find session tokens: %w", err)
	}

	return records, nil
}

func (r *repository) FindByUser(
	ctx context.Context,
	userID string,
) ([]RefreshTokenRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked = FALSE
		ORDER BY issued_at DESC`

	var records []RefreshTokenRecord
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("find user tokens: %w", err)
	}

	return records, nil
}

func (r *repository) FindOne(
	ctx context.Context,
	userID, jti, familyID string,
) (*RefreshTokenRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND jti = $2 AND family_id = $3`

	var record RefreshTokenRecord
	err := r.db.GetContext(ctx, &record, query, userID, jti, familyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &record, nil
}

// IsValid compares expiry in Go against UTC now so the result does not
// depend on the database session time zone.
func (r *repository) IsValid(
	ctx context.Context,
	userID, jti, familyID string,
) (bool, error) {
	record, err := r.FindOne(ctx, userID, jti, familyID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if record.Revoked {
		return false, nil
	}

	return !record.ExpiredAt(r.now()), nil
}

func (r *repository) Revoke(
	ctx context.Context,
	record *RefreshTokenRecord,
) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, record.ID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	record.Revoked = true
	return nil
}
