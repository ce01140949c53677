// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/accountd/internal/auth"
	"github.com/carterperez-dev/accountd/internal/core"
)

var (
	ErrUserExists       = fmt.Errorf("user already exists: %w", core.ErrDuplicateKey)
	ErrSelfDeactivation = fmt.Errorf("cannot deactivate own account: %w", core.ErrForbidden)
	errMalformedID      = fmt.Errorf("malformed user id: %w", core.ErrNotFound)
)

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type Service struct {
	repo   Repository
	hasher PasswordHasher
}

func NewService(repo Repository, hasher PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// GetActiveByName reports inactive accounts as not found so login cannot
// tell them apart from unknown names.
func (s *Service) GetActiveByName(
	ctx context.Context,
	name string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("get active user: %w", core.ErrNotFound)
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, id, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errMalformedID
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	role := req.Role
	if role == "" {
		role = core.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("create user: invalid role %q: %w", role, core.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return user, nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, fmt.Errorf("update user: invalid role %q: %w", *req.Role, core.ErrInvalidInput)
		}
		user.Role = *req.Role
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return user, nil
}

// SetActive toggles an account. An account cannot deactivate itself.
func (s *Service) SetActive(
	ctx context.Context,
	requesterID, id string,
	active bool,
) (*User, error) {
	if !active && requesterID == id {
		return nil, ErrSelfDeactivation
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	user.IsActive = active

	return user, nil
}

// EnsureAdmin creates the named admin account unless a user with that name
// already exists. The existing account is left untouched.
func (s *Service) EnsureAdmin(
	ctx context.Context,
	name, password string,
) (*User, bool, error) {
	existing, err := s.repo.GetByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, false, err
	}

	user, err := s.Create(ctx, CreateUserRequest{
		Name:     name,
		Password: password,
		Role:     core.RoleAdmin,
	})
	if err != nil {
		return nil, false, err
	}

	return user, true, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		IsActive:     u.IsActive,
	}
}

var (
	_ auth.UserProvider = (*Service)(nil)
	_ auth.UserLookup   = (*Service)(nil)
)
