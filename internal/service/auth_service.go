package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"hoofprint/internal/domain"
	"hoofprint/internal/observability"
	"hoofprint/internal/security"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Input bounds for registration. The password bound caps hashing work.
const (
	maxEmailLength       = 255
	maxDisplayNameLength = 100
	maxPasswordLength    = 1024
)

// PasswordHasher is the Credential Manager as seen by the auth flows.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) error
	DummyHash() string
}

type AuthService struct {
	userRepo    domain.UserRepository
	sessionRepo domain.SessionRepository
	hasher      PasswordHasher
	audit       domain.AuditPublisher
	sessionTTL  time.Duration
	now         func() time.Time
}

func NewAuthService(
	userRepo domain.UserRepository,
	sessionRepo domain.SessionRepository,
	hasher PasswordHasher,
	audit domain.AuditPublisher,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		audit:       audit,
		sessionTTL:  sessionTTL,
		now:         time.Now,
	}
}

// SessionTTL is the sliding inactivity window.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// NormalizeEmail trims and lower-cases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. Email uniqueness is checked before field
// validation so a taken address always reports ErrEmailExists.
func (s *AuthService) Register(ctx context.Context, displayName, email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)
	displayName = strings.TrimSpace(displayName)

	if email != "" {
		_, err := s.userRepo.GetByEmail(ctx, email)
		if err == nil {
			return nil, domain.ErrEmailExists
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}

	v := domain.NewValidationError()
	switch {
	case email == "":
		v.Add("email", "Email is required")
	case len(email) > maxEmailLength || !emailRegex.MatchString(email):
		v.Add("email", "Email is not a valid address")
	}
	switch {
	case strings.TrimSpace(password) == "":
		v.Add("password", "Password is required")
	case len(password) > maxPasswordLength:
		v.Add("password", fmt.Sprintf("Password must be at most %d characters", maxPasswordLength))
	}
	if len(displayName) > maxDisplayNameLength {
		v.Add("name", fmt.Sprintf("Name must be at most %d characters", maxDisplayNameLength))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if displayName == "" {
		displayName = email
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Groups:       []string{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.AuditUserRegistered, user.ID, user.ID, user.Email)
	return user, nil
}

// Login verifies credentials and starts a fresh session. Any session the
// caller presented is deleted first so an attacker-planted ID never becomes
// authenticated. Unknown email, wrong password and corrupt hashes all
// return ErrInvalidCredentials after the same amount of hashing work.
func (s *AuthService) Login(ctx context.Context, email, password, presentedSessionID string) (*domain.Session, *domain.User, error) {
	logger := observability.FromContext(ctx)
	email = NormalizeEmail(email)

	if email == "" || password == "" {
		s.loginFailed(ctx, email)
		return nil, nil, domain.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = s.hasher.Verify(password, s.hasher.DummyHash())
		s.loginFailed(ctx, email)
		return nil, nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		observability.LoginAttemptsTotal.WithLabelValues(observability.LoginErrored).Inc()
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, security.ErrCorruptHash) {
			logger.Error("stored password hash is corrupt", "user_id", user.ID)
		}
		s.loginFailed(ctx, email)
		return nil, nil, domain.ErrInvalidCredentials
	}

	if presentedSessionID != "" {
		if err := s.sessionRepo.Delete(ctx, presentedSessionID); err != nil {
			logger.Warn("failed to delete previous session", "error", err)
		}
	}

	id, err := security.GenerateSecret(security.SessionIDLength)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	session := &domain.Session{
		ID:        id,
		Data:      map[string]string{domain.SessionUserIDKey: user.ID},
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		observability.LoginAttemptsTotal.WithLabelValues(observability.LoginErrored).Inc()
		return nil, nil, err
	}

	observability.LoginAttemptsTotal.WithLabelValues(observability.LoginSucceeded).Inc()
	s.publish(ctx, domain.AuditLoginSucceeded, user.ID, user.ID, user.Email)
	return session, user, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string) {
	observability.LoginAttemptsTotal.WithLabelValues(observability.LoginRejected).Inc()
	observability.FromContext(ctx).Warn("login failed")
	s.publish(ctx, domain.AuditLoginFailed, "", "", email)
}

// Logout deletes the session. Unknown or empty IDs are not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	var userID string
	if session, err := s.sessionRepo.Get(ctx, sessionID); err == nil {
		userID = session.UserID()
	}
	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		return err
	}
	if userID != "" {
		s.publish(ctx, domain.AuditLogout, userID, userID, "")
	}
	return nil
}

// Resolve maps a session ID to the identity of a live user and slides the
// session's expiry forward. Every failure to authenticate is ErrNeedsLogin;
// a session pointing at a user that no longer exists is deleted.
func (s *AuthService) Resolve(ctx context.Context, sessionID string) (*domain.Identity, error) {
	if sessionID == "" {
		return nil, domain.ErrNeedsLogin
	}

	session, err := s.sessionRepo.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrNeedsLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	userID := session.UserID()
	if userID == "" {
		return nil, domain.ErrNeedsLogin
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		observability.FromContext(ctx).Warn("deleting session for missing user", "user_id", userID)
		if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("failed to delete stale session: %w", err)
		}
		return nil, domain.ErrNeedsLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	err = s.sessionRepo.Touch(ctx, sessionID, s.now().Add(s.sessionTTL))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrNeedsLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	return domain.NewIdentity(user, sessionID), nil
}

// ResetPassword replaces userID's password with a random one and returns
// it. The plaintext is never stored. actorID is empty for the CLI path.
func (s *AuthService) ResetPassword(ctx context.Context, actorID, userID string) (string, *domain.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	password, err := security.GenerateSecret(security.PasswordDefaultLength)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate password: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", nil, err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return "", nil, err
	}
	user.PasswordHash = hash

	observability.FromContext(ctx).Info("password reset", "actor_id", actorID, "target_user_id", user.ID)
	s.publish(ctx, domain.AuditPasswordReset, actorID, user.ID, user.Email)
	return password, user, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.List(ctx)
}

// GetUser loads a user by ID. Malformed IDs are reported as ErrUserNotFound.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, domain.ErrUserNotFound
	}
	return s.userRepo.GetByID(ctx, userID)
}

func (s *AuthService) publish(ctx context.Context, eventType, actorID, subjectID, email string) {
	if s.audit == nil {
		return
	}
	event := &domain.AuditEvent{
		Type:      eventType,
		ActorID:   actorID,
		SubjectID: subjectID,
		Email:     email,
		Timestamp: s.now().UTC(),
	}
	if err := s.audit.PublishAuditEvent(ctx, event); err != nil {
		observability.AuditPublishFailuresTotal.Inc()
		observability.FromContext(ctx).Warn("failed to publish audit event", "type", eventType, "error", err)
	}
}
