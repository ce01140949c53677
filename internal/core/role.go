// AngelaMos | 2026
// role.go

package core

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("parse role %q: %w", s, ErrInvalidInput)
	}
	return r, nil
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
