// AngelaMos | 2026
// errors.go

package auth

import (
	"errors"
	"fmt"

	"github.com/carterperez-dev/accountd/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingToken       = fmt.Errorf("refresh token missing: %w", core.ErrUnauthorized)
	ErrUserNotFound       = fmt.Errorf("user: %w", core.ErrNotFound)
	ErrInactiveUser       = fmt.Errorf("inactive user: %w", core.ErrForbidden)
	ErrTokenNotFound      = errors.New("refresh token not found")
	ErrTokenReuse         = fmt.Errorf("refresh token reuse detected: %w", core.ErrTokenInvalid)
)
