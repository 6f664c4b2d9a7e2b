//go:build integration

package messaging_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"hoofprint/internal/domain"
	"hoofprint/internal/messaging"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRabbitMQContainer manages RabbitMQ container lifecycle for integration tests
type TestRabbitMQContainer struct {
	container testcontainers.Container
	url       string
}

// setupRabbitMQ starts a RabbitMQ container and returns connection URL
func setupRabbitMQ(t *testing.T) (*TestRabbitMQContainer, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.12-management-alpine",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server startup complete"),
			wait.ForListeningPort("5672/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start RabbitMQ container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())

	// Wait for RabbitMQ to be fully ready
	time.Sleep(2 * time.Second)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return &TestRabbitMQContainer{
		container: container,
		url:       url,
	}, cleanup
}

// TestRabbitMQConnection tests basic connection establishment
func TestRabbitMQConnection(t *testing.T) {
	testContainer, cleanup := setupRabbitMQ(t)
	defer cleanup()

	t.Run("successful_connection", func(t *testing.T) {
		rmq, err := messaging.NewRabbitMQ(testContainer.url)
		require.NoError(t, err)
		defer rmq.Close()

		assert.False(t, rmq.IsClosed())
		assert.NoError(t, rmq.Ping(context.Background()))
	})

	t.Run("invalid_url_fails", func(t *testing.T) {
		_, err := messaging.NewRabbitMQ("amqp://invalid:9999/")
		assert.Error(t, err)
	})

	t.Run("close_connection", func(t *testing.T) {
		rmq, err := messaging.NewRabbitMQ(testContainer.url)
		require.NoError(t, err)

		require.NoError(t, rmq.Close())
		assert.True(t, rmq.IsClosed())
		assert.Error(t, rmq.Ping(context.Background()))
	})
}

// consumeAudit reads deliveries from the audit queue on a separate connection.
func consumeAudit(t *testing.T, url string) <-chan amqp.Delivery {
	t.Helper()

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ch, err := conn.Channel()
	require.NoError(t, err)

	msgs, err := ch.Consume(messaging.AuditQueue, "", true, false, false, false, nil)
	require.NoError(t, err)
	return msgs
}

func TestPublishAuditEvent(t *testing.T) {
	testContainer, cleanup := setupRabbitMQ(t)
	defer cleanup()

	rmq, err := messaging.NewRabbitMQ(testContainer.url)
	require.NoError(t, err)
	defer rmq.Close()

	msgs := consumeAudit(t, testContainer.url)

	tests := []struct {
		name  string
		event *domain.AuditEvent
	}{
		{
			name:  "login_succeeded",
			event: &domain.AuditEvent{Type: domain.AuditLoginSucceeded, ActorID: "u1", SubjectID: "u1", Email: "a@example.com"},
		},
		{
			name:  "password_reset",
			event: &domain.AuditEvent{Type: domain.AuditPasswordReset, ActorID: domain.AdminUserID, SubjectID: "u2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tt.event.Timestamp = time.Now().UTC().Truncate(time.Second)
			require.NoError(t, rmq.PublishAuditEvent(ctx, tt.event))

			select {
			case msg := <-msgs:
				assert.Equal(t, tt.event.Type, msg.RoutingKey)
				assert.Equal(t, "application/json", msg.ContentType)
				assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)

				var got domain.AuditEvent
				require.NoError(t, json.Unmarshal(msg.Body, &got))
				assert.Equal(t, tt.event.Type, got.Type)
				assert.Equal(t, tt.event.SubjectID, got.SubjectID)
				assert.True(t, tt.event.Timestamp.Equal(got.Timestamp))
			case <-time.After(5 * time.Second):
				t.Fatal("timeout waiting for audit event")
			}
		})
	}
}

func TestPublishAuditEvent_Concurrent(t *testing.T) {
	testContainer, cleanup := setupRabbitMQ(t)
	defer cleanup()

	rmq, err := messaging.NewRabbitMQ(testContainer.url)
	require.NoError(t, err)
	defer rmq.Close()

	msgs := consumeAudit(t, testContainer.url)

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errs <- rmq.PublishAuditEvent(context.Background(), &domain.AuditEvent{
				Type:      domain.AuditLoginFailed,
				Email:     fmt.Sprintf("user%d@example.com", i),
				Timestamp: time.Now(),
			})
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	for i := 0; i < n; i++ {
		select {
		case <-msgs:
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of %d events", i, n)
		}
	}
}

func TestPublishAfterClose(t *testing.T) {
	testContainer, cleanup := setupRabbitMQ(t)
	defer cleanup()

	rmq, err := messaging.NewRabbitMQ(testContainer.url)
	require.NoError(t, err)
	require.NoError(t, rmq.Close())

	err = rmq.PublishAuditEvent(context.Background(), &domain.AuditEvent{Type: domain.AuditLogout})
	assert.Error(t, err)
}
