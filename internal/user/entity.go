// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/accountd/internal/core"
)

type User struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Role         core.Role `db:"role"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin()
}

// Stats is an account census used by the admin overview.
type Stats struct {
	Total  int `db:"total"  json:"total"`
	Active int `db:"active" json:"active"`
	Admins int `db:"admins" json:"admins"`
}
