package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// Well-known session payload keys.
const (
	SessionUserIDKey = "user_id"
	SessionCSRFKey   = "csrf_token"
)

// Session is server-side state bound to a browser through a cookie that
// carries only the ID.
type Session struct {
	ID        string            `json:"id"`
	Data      map[string]string `json:"data"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
}

// UserID returns the authenticated user's ID, or "" for an anonymous session.
func (s *Session) UserID() string {
	if s == nil || s.Data == nil {
		return ""
	}
	return s.Data[SessionUserIDKey]
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionRepository defines the interface for session data access.
// Every method is a single atomic mutation of one session row; callers
// never hold locks across calls. Get, Set, Take and Touch treat an
// expired session as missing and return ErrSessionNotFound.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Set(ctx context.Context, id, key, value string) error
	Remove(ctx context.Context, id, key string) error
	// Take removes key and returns the value it held. ok is false when the
	// key was absent.
	Take(ctx context.Context, id, key string) (value string, ok bool, err error)
	Touch(ctx context.Context, id string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
