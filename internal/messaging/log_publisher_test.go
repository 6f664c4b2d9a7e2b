package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoofprint/internal/domain"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := p.PublishAuditEvent(context.Background(), &domain.AuditEvent{
		Type:      domain.AuditPasswordReset,
		ActorID:   domain.AdminUserID,
		SubjectID: "u1",
		Email:     "bob@example.com",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["msg"])
	assert.Equal(t, domain.AuditPasswordReset, line["type"])
	assert.Equal(t, "u1", line["subject_id"])
	assert.Equal(t, "bob@example.com", line["email"])
}

func TestLogPublisher_DefaultLogger(t *testing.T) {
	p := NewLogPublisher(nil)
	assert.NoError(t, p.PublishAuditEvent(context.Background(), &domain.AuditEvent{Type: domain.AuditLogout}))
}
