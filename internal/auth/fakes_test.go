// AngelaMos | 2026
// fakes_test.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/accountd/internal/audit"
	"github.com/carterperez-dev/accountd/internal/core"
)

type memSessions struct {
	records []RefreshTokenRecord
	now     func() time.Time
}

func (m *memSessions) Create(_ context.Context, r *RefreshTokenRecord) error {
	for _, existing := range m.records {
		if existing.JTI == r.JTI || existing.ID == r.ID {
			return fmt.Errorf("create refresh token: %w", core.ErrDuplicateKey)
		}
	}
	m.records = append(m.records, *r)
	return nil
}

func (m *memSessions) FindBySession(_ context.Context, userID, familyID string) ([]RefreshTokenRecord, error) {
	var out []RefreshTokenRecord
	for _, r := range m.records {
		if r.UserID == userID && r.FamilyID == familyID && !r.Revoked {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memSessions) FindByUser(_ context.Context, userID string) ([]RefreshTokenRecord, error) {
	var out []RefreshTokenRecord
	for _, r := range m.records {
		if r.UserID == userID && !r.Revoked {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memSessions) FindOne(_ context.Context, userID, jti, familyID string) (*RefreshTokenRecord, error) {
	for _, r := range m.records {
		if r.UserID == userID && r.JTI == jti && r.FamilyID == familyID {
			found := r
			return &found, nil
		}
	}
	return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
}

func (m *memSessions) IsValid(ctx context.Context, userID, jti, familyID string) (bool, error) {
	r, err := m.FindOne(ctx, userID, jti, familyID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !r.Revoked && !r.ExpiredAt(m.now()), nil
}

func (m *memSessions) Revoke(_ context.Context, r *RefreshTokenRecord) error {
	for i := range m.records {
		if m.records[i].ID == r.ID {
			m.records[i].Revoked = true
		}
	}
	r.Revoked = true
	return nil
}

type memUsers struct {
	byID    map[string]*UserInfo
	updated map[string]string
}

func newMemUsers(users ...*UserInfo) *memUsers {
	m := &memUsers{byID: map[string]*UserInfo{}, updated: map[string]string{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) GetActiveByName(_ context.Context, name string) (*UserInfo, error) {
	for _, u := range m.byID {
		if u.Name == name && u.IsActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
}

func (m *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}
	m.updated[id] = hash
	m.byID[id].PasswordHash = hash
	return nil
}

// memTx serialises transactions and restores the session snapshot when fn
// fails.
type memTx struct {
	mu       sync.Mutex
	sessions *memSessions
	users    *memUsers
}

func (m *memTx) WithinTx(ctx context.Context, fn func(context.Context, Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := slices.Clone(m.sessions.records)
	if err := fn(ctx, Stores{Sessions: m.sessions, Users: m.users}); err != nil {
		m.sessions.records = snapshot
		return err
	}
	return nil
}

// plainHasher stores "hash:<password>"; "old:" digests verify and ask for an
// upgrade, "bad:" digests fail to decode. Calls made while tx is held are
// counted in heldCalls.
type plainHasher struct {
	tx         *memTx
	dummyCalls int
	heldCalls  int
}

func (p *plainHasher) VerifyTimingSafe(password, encoded string) (bool, string, error) {
	if p.tx != nil {
		if p.tx.mu.TryLock() {
			p.tx.mu.Unlock()
		} else {
			p.heldCalls++
		}
	}
	if strings.HasPrefix(encoded, "bad:") {
		return false, "", errors.New("malformed digest")
	}
	if encoded == "" {
		p.dummyCalls++
		return false, "", nil
	}
	if legacy, ok := strings.CutPrefix(encoded, "old:"); ok {
		if legacy == password {
			return true, "hash:" + password, nil
		}
		return false, "", nil
	}
	return encoded == "hash:"+password, "", nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingEvents) Publish(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) Close() error { return nil }

func (r *recordingEvents) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type engineFixture struct {
	svc      *Service
	codec    *TokenCodec
	sessions *memSessions
	users    *memUsers
	hasher   *plainHasher
	events   *recordingEvents
}

func newEngineFixture(t *testing.T, revokeFamilyOnReuse bool) *engineFixture {
	t.Helper()

	codec := newTestCodec(t)
	sessions := &memSessions{now: time.Now}
	users := newMemUsers(
		&UserInfo{ID: "u-admin", Name: "admin", PasswordHash: "hash:adminpw", Role: core.RoleAdmin, IsActive: true},
		&UserInfo{ID: "u-bob", Name: "bob", PasswordHash: "hash:bobpw", Role: core.RoleUser, IsActive: true},
		&UserInfo{ID: "u-eve", Name: "eve", PasswordHash: "hash:evepw", Role: core.RoleUser, IsActive: false},
		&UserInfo{ID: "u-old", Name: "legacy", PasswordHash: "old:legacypw", Role: core.RoleUser, IsActive: true},
		&UserInfo{ID: "u-bent", Name: "bent", PasswordHash: "bad:digest", Role: core.RoleUser, IsActive: true},
	)
	tx := &memTx{sessions: sessions, users: users}
	hasher := &plainHasher{tx: tx}
	events := &recordingEvents{}

	svc := NewService(ServiceConfig{
		Tokens:              codec,
		Passwords:           hasher,
		Tx:                  tx,
		Events:              events,
		AccessTTL:           15 * time.Minute,
		RefreshTTL:          time.Hour,
		RevokeFamilyOnReuse: revokeFamilyOnReuse,
	})

	return &engineFixture{
		svc:      svc,
		codec:    codec,
		sessions: sessions,
		users:    users,
		hasher:   hasher,
		events:   events,
	}
}

func (f *engineFixture) login(t *testing.T, name, password string) *Session {
	t.Helper()
	s, err := f.svc.Login(context.Background(), name, password)
	require.NoError(t, err)
	return s
}

func (f *engineFixture) refreshClaims(t *testing.T, token string) *Claims {
	t.Helper()
	c, err := f.codec.Decode(token, TokenRefresh)
	require.NoError(t, err)
	return c
}

func (f *engineFixture) isValid(t *testing.T, token string) bool {
	t.Helper()
	c := f.refreshClaims(t, token)
	ok, err := f.sessions.IsValid(context.Background(), c.Subject, c.JTI, c.FamilyID)
	require.NoError(t, err)
	return ok
}
