package domain

import (
	"context"
	"time"
)

// Audit event types.
const (
	AuditUserRegistered = "user.registered"
	AuditLoginSucceeded = "login.succeeded"
	AuditLoginFailed    = "login.failed"
	AuditLogout         = "session.logout"
	AuditPasswordReset  = "admin.password_reset"
)

// AuditEvent records a security-relevant action
type AuditEvent struct {
	Type      string    `json:"type"`
	ActorID   string    `json:"actor_id,omitempty"`
	SubjectID string    `json:"subject_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditPublisher ships audit events somewhere durable.
type AuditPublisher interface {
	PublishAuditEvent(ctx context.Context, event *AuditEvent) error
}
