// AngelaMos | 2026
// entity.go

package auth

import (
	"time"

	"github.com/carterperez-dev/accountd/internal/core"
)

// RefreshTokenRecord is one row per issued refresh token. Rows are never
// deleted; Revoked only moves from false to true.
type RefreshTokenRecord struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	JTI       string    `db:"jti"`
	FamilyID  string    `db:"family_id"`
	IssuedAt  time.Time `db:"issued_at"`
	ExpiresAt time.Time `db:"expires_at"`
	Revoked   bool      `db:"revoked"`
}

func (r *RefreshTokenRecord) ExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.UTC().After(now.UTC())
}

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

type Claims struct {
	Subject   string
	Type      TokenType
	JTI       string
	FamilyID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type UserInfo struct {
	ID           string
	Name         string
	PasswordHash string
	Role         core.Role
	IsActive     bool
}

// Session is the outcome of a login or a rotation.
type Session struct {
	AccessToken      string
	RefreshToken     string
	FamilyID         string
	RefreshExpiresAt time.Time
	User             *UserInfo
}

type SessionInfo struct {
	FamilyID  string    `json:"family_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
