package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hoofprint/internal/domain"
)

// Counter for generating unique emails and names
var idCounter atomic.Int64

// UserOptions allows customizing user fixture creation
type UserOptions struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Groups       []string
	CreatedAt    time.Time
}

// NewTestUser creates a test user with sensible defaults
// Pass options to override specific fields
func NewTestUser(opts ...func(*UserOptions)) *domain.User {
	n := idCounter.Add(1)
	o := &UserOptions{
		ID:           uuid.NewString(),
		Email:        fmt.Sprintf("user%d@example.com", n),
		DisplayName:  fmt.Sprintf("Test User %d", n),
		PasswordHash: "$argon2id$v=19$m=8,t=1,p=1$placeholder$placeholder",
		Groups:       []string{},
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	return &domain.User{
		ID:           o.ID,
		Email:        o.Email,
		DisplayName:  o.DisplayName,
		PasswordHash: o.PasswordHash,
		Groups:       o.Groups,
		CreatedAt:    o.CreatedAt,
	}
}

// User option functions

// WithUserID sets the user ID
func WithUserID(id string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.ID = id
	}
}

// WithEmail sets the email
func WithEmail(email string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Email = email
	}
}

// WithDisplayName sets the display name
func WithDisplayName(name string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.DisplayName = name
	}
}

// WithPasswordHash sets the password hash
func WithPasswordHash(hash string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.PasswordHash = hash
	}
}

// WithGroups sets the user's groups
func WithGroups(groups ...string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Groups = groups
	}
}

// SessionOptions allows customizing session fixture creation
type SessionOptions struct {
	ID        string
	Data      map[string]string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewTestSession creates a test session with sensible defaults
func NewTestSession(opts ...func(*SessionOptions)) *domain.Session {
	o := &SessionOptions{
		ID:        fmt.Sprintf("session%042d", idCounter.Add(1)),
		Data:      map[string]string{},
		ExpiresAt: time.Now().Add(5 * time.Minute),
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Session{
		ID:        o.ID,
		Data:      o.Data,
		ExpiresAt: o.ExpiresAt,
		CreatedAt: o.CreatedAt,
	}
}

// Session option functions

// WithSessionID sets the session ID
func WithSessionID(id string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.ID = id
	}
}

// WithSessionUserID binds the session to a user
func WithSessionUserID(userID string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.Data[domain.SessionUserIDKey] = userID
	}
}

// WithSessionValue sets an arbitrary session key
func WithSessionValue(key, value string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.Data[key] = value
	}
}

// WithExpiresAt sets the session expiration time
func WithExpiresAt(t time.Time) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.ExpiresAt = t
	}
}

// WithExpired creates an expired session
func WithExpired() func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.ExpiresAt = time.Now().Add(-1 * time.Hour)
	}
}

// SiteOptions allows customizing site fixture creation
type SiteOptions struct {
	ID   string
	Name string
	URL  string
}

// NewTestSite creates a test site with sensible defaults
func NewTestSite(opts ...func(*SiteOptions)) *domain.Site {
	o := &SiteOptions{
		ID:   uuid.NewString(),
		Name: fmt.Sprintf("Test Site %d", idCounter.Add(1)),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Site{
		ID:        o.ID,
		Name:      o.Name,
		URL:       o.URL,
		CreatedAt: time.Now(),
	}
}

// WithSiteName sets the site name
func WithSiteName(name string) func(*SiteOptions) {
	return func(o *SiteOptions) {
		o.Name = name
	}
}

// NewTestCode creates a barcode owned by userID on siteID
func NewTestCode(userID, siteID string) *domain.Code {
	n := idCounter.Add(1)
	return &domain.Code{
		ID:        uuid.NewString(),
		UserID:    userID,
		SiteID:    siteID,
		Type:      domain.CodeTypeBarcode,
		Value:     fmt.Sprintf("%012d", n),
		Name:      fmt.Sprintf("Card %d", n),
		CreatedAt: time.Now(),
	}
}

// NewTestUsers creates multiple test users
func NewTestUsers(count int) []*domain.User {
	users := make([]*domain.User, count)
	for i := 0; i < count; i++ {
		users[i] = NewTestUser()
	}
	return users
}
