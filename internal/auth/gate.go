// AngelaMos | 2026
// gate.go

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/accountd/internal/core"
	"github.com/carterperez-dev/accountd/internal/middleware"
)

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*UserInfo, error)
}

// Gate resolves a bearer access token to an active user.
type Gate struct {
	tokens *TokenCodec
	users  UserLookup
}

func NewGate(tokens *TokenCodec, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

func (g *Gate) Authenticate(
	ctx context.Context,
	token string,
) (*middleware.Principal, error) {
	claims, err := g.tokens.Decode(token, TokenAccess)
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	return &middleware.Principal{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
	}, nil
}

var _ middleware.TokenAuthenticator = (*Gate)(nil)
