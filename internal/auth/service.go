// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/accountd/internal/audit"
	"github.com/carterperez-dev/accountd/internal/core"
)

type UserProvider interface {
	// GetActiveByName returns core.ErrNotFound for unknown or inactive users.
	GetActiveByName(ctx context.Context, name string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Stores are the handles an engine operation works with, bound to a single
// transaction.
type Stores struct {
	Sessions Repository
	Users    UserProvider
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

type PasswordVerifier interface {
	VerifyTimingSafe(password, encodedHash string) (bool, string, error)
}

type ServiceConfig struct {
	Tokens              *TokenCodec
	Passwords           PasswordVerifier
	Tx                  Transactor
	Events              audit.Publisher
	Logger              *slog.Logger
	Tracer              trace.Tracer
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	RevokeFamilyOnReuse bool
	EventTimeout        time.Duration
}

type Service struct {
	tokens              *TokenCodec
	passwords           PasswordVerifier
	tx                  Transactor
	events              audit.Publisher
	logger              *slog.Logger
	tracer              trace.Tracer
	accessTTL           time.Duration
	refreshTTL          time.Duration
	revokeFamilyOnReuse bool
	eventTimeout        time.Duration
	now                 func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		tokens:              cfg.Tokens,
		passwords:           cfg.Passwords,
		tx:                  cfg.Tx,
		events:              cfg.Events,
		logger:              cfg.Logger,
		tracer:              cfg.Tracer,
		accessTTL:           cfg.AccessTTL,
		refreshTTL:          cfg.RefreshTTL,
		revokeFamilyOnReuse: cfg.RevokeFamilyOnReuse,
		eventTimeout:        cfg.EventTimeout,
		now:                 time.Now,
	}

	if s.events == nil {
		s.events = audit.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = core.Tracer("accountd/auth")
	}
	if s.eventTimeout <= 0 {
		s.eventTimeout = 2 * time.Second
	}

	return s
}

func (s *Service) Login(
	ctx context.Context,
	username, password string,
) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	user, err := s.lookupActive(ctx, username)
	if err != nil {
		return nil, s.loginFailed(ctx, username, err)
	}
	if user == nil {
		//nolint:errcheck // dummy verify keeps unknown-user timing in line
		_, _, _ = s.passwords.VerifyTimingSafe(password, "")
		return nil, s.loginFailed(ctx, username, ErrInvalidCredentials)
	}

	valid, rehash, err := s.passwords.VerifyTimingSafe(password, user.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored password digest unreadable",
			"user_id", user.ID,
			"error", err,
		)
		return nil, s.loginFailed(ctx, username, ErrInvalidCredentials)
	}
	if !valid {
		return nil, s.loginFailed(ctx, username, ErrInvalidCredentials)
	}

	var session *Session
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		current, err := st.Users.GetByID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return ErrInvalidCredentials
			}
			return fmt.Errorf("get user: %w", err)
		}
		if !current.IsActive {
			return ErrInvalidCredentials
		}

		session, err = s.mint(ctx, st, current, uuid.NewString())
		return err
	})
	if err != nil {
		return nil, s.loginFailed(ctx, username, err)
	}

	if rehash != "" {
		s.upgradeHash(ctx, session.User.ID, rehash)
	}

	span.SetAttributes(attribute.String("user.id", session.User.ID))
	s.publish(ctx, audit.Event{
		Type:     audit.LoginSucceeded,
		UserID:   session.User.ID,
		Username: session.User.Name,
		FamilyID: session.FamilyID,
	})

	return session, nil
}

// lookupActive reads the user in its own transaction. Password hashing runs
// after it commits. A nil user means no active match.
func (s *Service) lookupActive(ctx context.Context, username string) (*UserInfo, error) {
	var user *UserInfo
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		u, err := st.Users.GetActiveByName(ctx, username)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		user = u
		return nil
	})
	return user, err
}

func (s *Service) loginFailed(ctx context.Context, username string, err error) error {
	if errors.Is(err, ErrInvalidCredentials) {
		s.publish(ctx, audit.Event{Type: audit.LoginFailed, Username: username})
	} else {
		core.SetSpanError(ctx, err)
	}
	return err
}

// LogoutCurrentSession revokes every record of the token's family. Repeating
// it is harmless.
func (s *Service) LogoutCurrentSession(ctx context.Context, refreshToken string) error {
	ctx, span := s.tracer.Start(ctx, "auth.LogoutCurrentSession")
	defer span.End()

	claims, err := s.decodeRefresh(refreshToken)
	if err != nil {
		return err
	}

	var revoked int
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		records, err := st.Sessions.FindBySession(ctx, claims.Subject, claims.FamilyID)
		if err != nil {
			return err
		}
		revoked, err = revokeAll(ctx, st.Sessions, records)
		return err
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return fmt.Errorf("logout session: %w", err)
	}

	s.publish(ctx, audit.Event{
		Type:     audit.SessionLoggedOut,
		UserID:   claims.Subject,
		FamilyID: claims.FamilyID,
		Revoked:  revoked,
	})
	return nil
}

func (s *Service) LogoutAllSessions(ctx context.Context, refreshToken string) error {
	ctx, span := s.tracer.Start(ctx, "auth.LogoutAllSessions")
	defer span.End()

	claims, err := s.decodeRefresh(refreshToken)
	if err != nil {
		return err
	}

	if _, err := s.RevokeUserSessions(ctx, claims.Subject); err != nil {
		core.SetSpanError(ctx, err)
		return err
	}
	return nil
}

// RevokeUserSessions revokes every live refresh record of userID and reports
// how many were revoked.
func (s *Service) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	var revoked int
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		records, err := st.Sessions.FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		revoked, err = revokeAll(ctx, st.Sessions, records)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("logout all sessions: %w", err)
	}

	s.publish(ctx, audit.Event{
		Type:    audit.AllSessionsLoggedOut,
		UserID:  userID,
		Revoked: revoked,
	})
	return revoked, nil
}

// Refresh rotates a refresh token: the presented record is revoked before
// its successor is minted under the same family.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	claims, err := s.decodeRefresh(refreshToken)
	if err != nil {
		s.publish(ctx, audit.Event{Type: audit.RefreshRejected})
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.family_id", claims.FamilyID))

	var (
		session *Session
		reused  bool
		revoked int
	)

	err = s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		valid, err := st.Sessions.IsValid(ctx, claims.Subject, claims.JTI, claims.FamilyID)
		if err != nil {
			return err
		}

		if !valid {
			reused, revoked, err = s.handleRejected(ctx, st, claims)
			if err != nil {
				return err
			}
			if reused && s.revokeFamilyOnReuse {
				return nil
			}
			return invalidRefresh(reused)
		}

		record, err := st.Sessions.FindOne(ctx, claims.Subject, claims.JTI, claims.FamilyID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		if err := st.Sessions.Revoke(ctx, record); err != nil {
			return err
		}

		user, err := st.Users.GetByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}
		if !user.IsActive {
			return ErrInactiveUser
		}

		session, err = s.mint(ctx, st, user, claims.FamilyID)
		return err
	})

	if reused {
		s.logger.WarnContext(ctx, "refresh token reuse detected",
			"user_id", claims.Subject,
			"family_id", claims.FamilyID,
			"family_revoked", s.revokeFamilyOnReuse,
		)
		core.AddSpanEvent(ctx, "refresh.reuse_detected",
			attribute.Bool("auth.family_revoked", s.revokeFamilyOnReuse),
			attribute.Int("auth.revoked", revoked),
		)
		s.publish(ctx, audit.Event{
			Type:     audit.RefreshReuseDetected,
			UserID:   claims.Subject,
			FamilyID: claims.FamilyID,
			JTI:      claims.JTI,
			Revoked:  revoked,
		})
		if err == nil {
			err = invalidRefresh(true)
		}
	}

	if err != nil {
		if !reused {
			s.publish(ctx, audit.Event{
				Type:     audit.RefreshRejected,
				UserID:   claims.Subject,
				FamilyID: claims.FamilyID,
			})
		}
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.publish(ctx, audit.Event{
		Type:     audit.TokenRefreshed,
		UserID:   session.User.ID,
		FamilyID: session.FamilyID,
	})
	return session, nil
}

// handleRejected classifies a token that failed IsValid. A record that
// exists but is already revoked means the token was replayed.
func (s *Service) handleRejected(
	ctx context.Context,
	st Stores,
	claims *Claims,
) (bool, int, error) {
	record, err := st.Sessions.FindOne(ctx, claims.Subject, claims.JTI, claims.FamilyID)
	if errors.Is(err, core.ErrNotFound) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if !record.Revoked {
		return false, 0, nil
	}

	if !s.revokeFamilyOnReuse {
		return true, 0, nil
	}

	family, err := st.Sessions.FindBySession(ctx, claims.Subject, claims.FamilyID)
	if err != nil {
		return true, 0, err
	}
	revoked, err := revokeAll(ctx, st.Sessions, family)
	return true, revoked, err
}

func invalidRefresh(reused bool) error {
	if reused {
		return fmt.Errorf("refresh: %w", ErrTokenReuse)
	}
	return fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
}

// ActiveSessions lists the user's live families, newest first.
func (s *Service) ActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	var records []RefreshTokenRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		records, err = st.Sessions.FindByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := s.now()
	latest := make(map[string]SessionInfo)
	for _, r := range records {
		if r.Revoked || r.ExpiredAt(now) {
			continue
		}
		if cur, ok := latest[r.FamilyID]; ok && !r.IssuedAt.After(cur.IssuedAt) {
			continue
		}
		latest[r.FamilyID] = SessionInfo{
			FamilyID:  r.FamilyID,
			IssuedAt:  r.IssuedAt,
			ExpiresAt: r.ExpiresAt,
		}
	}

	sessions := make([]SessionInfo, 0, len(latest))
	for _, info := range latest {
		sessions = append(sessions, info)
	}
	slices.SortFunc(sessions, func(a, b SessionInfo) int {
		return b.IssuedAt.Compare(a.IssuedAt)
	})

	return sessions, nil
}

func (s *Service) decodeRefresh(refreshToken string) (*Claims, error) {
	if refreshToken == "" {
		return nil, ErrMissingToken
	}
	return s.tokens.Decode(refreshToken, TokenRefresh)
}

func (s *Service) mint(
	ctx context.Context,
	st Stores,
	user *UserInfo,
	familyID string,
) (*Session, error) {
	access, err := s.tokens.IssueAccess(user.ID, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	jti := uuid.NewString()
	refresh, err := s.tokens.IssueRefresh(user.ID, s.refreshTTL, jti, familyID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := s.now().UTC()
	record := &RefreshTokenRecord{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		UserID:    user.ID,
		JTI:       jti,
		FamilyID:  familyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}

	if err := st.Sessions.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		AccessToken:      access,
		RefreshToken:     refresh,
		FamilyID:         familyID,
		RefreshExpiresAt: record.ExpiresAt,
		User:             user,
	}, nil
}

func (s *Service) upgradeHash(ctx context.Context, userID, hash string) {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		return st.Users.UpdatePassword(ctx, userID, hash)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", userID, "error", err)
	}
}

// publish runs after commit and never alters the caller's result.
func (s *Service) publish(ctx context.Context, e audit.Event) {
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.eventTimeout)
	defer cancel()

	if err := s.events.Publish(pubCtx, e); err != nil {
		s.logger.WarnContext(ctx, "publish auth event failed", "type", e.Type, "error", err)
	}
}

func revokeAll(ctx context.Context, repo Repository, records []RefreshTokenRecord) (int, error) {
	for i := range records {
		if err := repo.Revoke(ctx, &records[i]); err != nil {
			return i, err
		}
	}
	return len(records), nil
}
