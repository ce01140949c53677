// AngelaMos | 2026
// dto.go

package auth

import (
	"github.com/carterperez-dev/accountd/internal/core"
)

type LoginForm struct {
	Username string `validate:"required,max=100"`
	Password string `validate:"required,max=128"`
}

type UserResponse struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Role     core.Role `json:"userRole"`
	IsActive bool      `json:"isActive"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

func ToUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		UserID:   u.ID,
		Name:     u.Name,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

func toTokenResponse(s *Session) TokenResponse {
	return TokenResponse{
		AccessToken: s.AccessToken,
		TokenType:   "bearer",
		User:        ToUserResponse(s.User),
	}
}
