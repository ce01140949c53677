// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/carterperez-dev/accountd/internal/core"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	requestIDKey contextKey = "request_id"
)

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID string
	Name   string
	Role   core.Role
}

type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// ErrorWriter renders an authentication failure. The auth package supplies
// one that knows its own error taxonomy.
type ErrorWriter func(w http.ResponseWriter, err error)

func Authenticator(
	gate TokenAuthenticator,
	onError ErrorWriter,
) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ error) {
			core.JSONError(w, core.TokenInvalidError(""))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				core.JSONError(w, core.UnauthorizedError("not authenticated"))
				return
			}

			principal, err := gate.Authenticate(r.Context(), token)
			if err != nil {
				onError(w, err)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(roles ...core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				core.JSONError(w, core.UnauthorizedError(""))
				return
			}

			if !HasRole(principal, roles...) {
				core.JSONError(w, core.ForbiddenError("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(core.RoleAdmin)(next)
}

// HasRole is the pure role check behind RequireRole.
func HasRole(p *Principal, roles ...core.Role) bool {
	if p == nil {
		return false
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

func GetUserID(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.UserID
	}
	return ""
}
