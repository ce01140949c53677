// AngelaMos | 2026
// event.go

package audit

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	LoginSucceeded       EventType = "login_succeeded"
	LoginFailed          EventType = "login_failed"
	TokenRefreshed       EventType = "token_refreshed"
	RefreshRejected      EventType = "refresh_rejected"
	RefreshReuseDetected EventType = "refresh_reuse_detected"
	SessionLoggedOut     EventType = "session_logged_out"
	AllSessionsLoggedOut EventType = "all_sessions_logged_out"
)

// Event never carries token material, only identifiers.
type Event struct {
	Type     EventType `json:"type"`
	UserID   string    `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	FamilyID string    `json:"family_id,omitempty"`
	JTI      string    `json:"jti,omitempty"`
	Revoked  int       `json:"revoked,omitempty"`
	At       time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
