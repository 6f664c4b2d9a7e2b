package security

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"

	"hoofprint/internal/domain"
)

// TokenManager issues single-use CSRF tokens stored in the session payload.
//
// A token is bound to a scope (for example the user an admin form acts on)
// so a token rendered for one target cannot be replayed against another.
type TokenManager struct {
	sessions domain.SessionRepository
}

// NewTokenManager creates a CSRF token manager backed by sessions.
func NewTokenManager(sessions domain.SessionRepository) *TokenManager {
	return &TokenManager{sessions: sessions}
}

// Issue generates a token for scope, replacing any pending token in the session.
func (tm *TokenManager) Issue(ctx context.Context, sessionID, scope string) (string, error) {
	token, err := GenerateSecret(CSRFTokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}

	if err := tm.sessions.Set(ctx, sessionID, domain.SessionCSRFKey, bindScope(scope, token)); err != nil {
		return "", fmt.Errorf("failed to store csrf token: %w", err)
	}
	return token, nil
}

// Validate consumes the pending token and compares it with submitted.
// The stored token is removed whatever the outcome, so a failed attempt
// cannot be retried with the same token.
func (tm *TokenManager) Validate(ctx context.Context, sessionID, scope, submitted string) error {
	stored, ok, err := tm.sessions.Take(ctx, sessionID, domain.SessionCSRFKey)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.ErrMissingCSRFToken
	}
	if err != nil {
		return fmt.Errorf("failed to read csrf token: %w", err)
	}

	if !ok || submitted == "" {
		return domain.ErrMissingCSRFToken
	}
	if !hmac.Equal([]byte(stored), []byte(bindScope(scope, submitted))) {
		return domain.ErrInvalidCSRFToken
	}
	return nil
}

func bindScope(scope, token string) string {
	return scope + ":" + token
}
