package domain

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// GroupAdmin is the only group with privileged access.
const GroupAdmin = "admin"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// AdminUserID is reserved for the administrator seeded at bootstrap.
var AdminUserID = uuid.Nil.String()

// User represents an account that can log in
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Groups       []string  `json:"groups"`
	CreatedAt    time.Time `json:"created_at"`
}

// InGroup reports whether the user belongs to group.
func (u *User) InGroup(group string) bool {
	return slices.Contains(u.Groups, group)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Identity is the per-request view of an authenticated user. It is built
// from a fresh user load on every request and must not be cached.
type Identity struct {
	UserID      string
	SessionID   string
	Email       string
	DisplayName string
	Groups      []string
}

// NewIdentity builds the request identity for user bound to sessionID.
func NewIdentity(user *User, sessionID string) *Identity {
	return &Identity{
		UserID:      user.ID,
		SessionID:   sessionID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Groups:      slices.Clone(user.Groups),
	}
}

// RequireGroup returns ErrForbidden unless the identity is in group.
func (i *Identity) RequireGroup(group string) error {
	if i == nil || !slices.Contains(i.Groups, group) {
		return ErrForbidden
	}
	return nil
}

// IsAdmin is a template convenience around RequireGroup.
func (i *Identity) IsAdmin() bool {
	return i.RequireGroup(GroupAdmin) == nil
}
