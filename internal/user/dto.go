// AngelaMos | 2026
// dto.go

package user

import (
	"math"

	"github.com/carterperez-dev/accountd/internal/core"
)

type CreateUserRequest struct {
	Name     string    `json:"name"     validate:"required,min=1,max=100"`
	Password string    `json:"password" validate:"required,min=8,max=128"`
	Role     core.Role `json:"userRole" validate:"omitempty,oneof=admin user"`
}

type UpdateUserRequest struct {
	Name     *string    `json:"name,omitempty"     validate:"omitempty,min=1,max=100"`
	Password *string    `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	Role     *core.Role `json:"userRole,omitempty" validate:"omitempty,oneof=admin user"`
}

type UserResponse struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Role     core.Role `json:"userRole"`
	IsActive bool      `json:"isActive"`
}

type RevokeSessionsResponse struct {
	Revoked int `json:"revoked"`
}

// maxOffset keeps OFFSET inside a Postgres int4 on every platform.
const maxOffset = math.MaxInt32

type ListUsersParams struct {
	Page     int
	PageSize int
	Search   string
	Role     core.Role
	Active   *bool
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	if maxPage := maxOffset/p.PageSize + 1; p.Page > maxPage {
		p.Page = maxPage
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		UserID:   u.ID,
		Name:     u.Name,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}
