package messaging

import (
	"context"
	"log/slog"

	"hoofprint/internal/domain"
)

// LogPublisher writes audit events to the structured log. It is used when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	p.logger.InfoContext(ctx, "audit",
		slog.String("type", event.Type),
		slog.String("actor_id", event.ActorID),
		slog.String("subject_id", event.SubjectID),
		slog.String("email", event.Email),
		slog.Time("timestamp", event.Timestamp),
	)
	return nil
}
