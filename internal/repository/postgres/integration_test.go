//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"hoofprint/internal/bootstrap"
	"hoofprint/internal/domain"
	"hoofprint/internal/repository/postgres"
	"hoofprint/internal/security"
)

// setupPostgres starts a PostgreSQL container and returns a bootstrapped connection
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err, "failed to connect to PostgreSQL")

	t.Cleanup(func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	return db
}

func newRunner(t *testing.T, db *sql.DB) *bootstrap.Runner {
	t.Helper()
	migrations, err := bootstrap.Migrations()
	require.NoError(t, err)
	hasher := security.NewPasswordHasher(security.HashParams{Time: 1, MemoryKiB: 64, Threads: 1, KeyLen: 32, SaltLen: 16})
	return bootstrap.NewRunner(postgres.NewTxManager(db), hasher, migrations, nil)
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func TestBootstrap_Integration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	first, err := newRunner(t, db).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001", "0002", "0003"}, first.Applied)
	assert.True(t, first.AdminCreated)

	second, err := newRunner(t, db).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Applied)
	assert.False(t, second.AdminCreated)
	assert.False(t, second.SiteCreated)

	assert.Equal(t, 1, count(t, db, "users"))
	assert.Equal(t, 1, count(t, db, "sites"))

	admin, err := postgres.NewUserRepository(db).GetByID(ctx, domain.AdminUserID)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.GroupAdmin}, admin.Groups)
}

func TestBootstrap_ConcurrentRuns_Integration(t *testing.T) {
	db := setupPostgres(t)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = newRunner(t, db).Run(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, count(t, db, "users"))
}

func TestUserRepository_Integration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	_, err := newRunner(t, db).Run(ctx)
	require.NoError(t, err)

	repo := postgres.NewUserRepository(db)

	user := &domain.User{
		ID:           "4d3c2b1a-0000-4000-8000-000000000001",
		Email:        "one@example.com",
		DisplayName:  "One",
		PasswordHash: "hash",
	}
	require.NoError(t, repo.Create(ctx, user))
	assert.False(t, user.CreatedAt.IsZero())

	dup := *user
	dup.ID = "4d3c2b1a-0000-4000-8000-000000000002"
	assert.ErrorIs(t, repo.Create(ctx, &dup), domain.ErrEmailExists)

	got, err := repo.GetByEmail(ctx, "one@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Empty(t, got.Groups)

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "newhash"))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)
}

func TestSessionRepository_Integration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	_, err := newRunner(t, db).Run(ctx)
	require.NoError(t, err)

	repo := postgres.NewSessionRepository(db)

	session := &domain.Session{ID: "live-session", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, session))

	require.NoError(t, repo.Set(ctx, session.ID, domain.SessionUserIDKey, domain.AdminUserID))
	require.NoError(t, repo.Set(ctx, session.ID, domain.SessionCSRFKey, "scope:token"))

	got, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AdminUserID, got.UserID())

	t.Run("take_is_single_use_under_concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		hits := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := repo.Take(ctx, session.ID, domain.SessionCSRFKey)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					hits++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, hits)
	})

	t.Run("concurrent_sets_do_not_clobber", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, repo.Set(ctx, session.ID, fmt.Sprintf("k%d", i), "v"))
			}(i)
		}
		wg.Wait()

		got, err := repo.Get(ctx, session.ID)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			assert.Equal(t, "v", got.Data[fmt.Sprintf("k%d", i)])
		}
		assert.Equal(t, domain.AdminUserID, got.UserID())
	})

	t.Run("touch_extends_expiry", func(t *testing.T) {
		before, err := repo.Get(ctx, session.ID)
		require.NoError(t, err)
		require.NoError(t, repo.Touch(ctx, session.ID, before.ExpiresAt.Add(time.Minute)))
		after, err := repo.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, after.ExpiresAt.After(before.ExpiresAt))
	})

	t.Run("expired_sessions_are_invisible_and_swept", func(t *testing.T) {
		expired := &domain.Session{ID: "expired-session", ExpiresAt: time.Now().Add(-time.Minute)}
		require.NoError(t, repo.Create(ctx, expired))

		_, err := repo.Get(ctx, expired.ID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.ErrorIs(t, repo.Touch(ctx, expired.ID, time.Now().Add(time.Hour)), domain.ErrSessionNotFound)

		n, err := repo.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = repo.Get(ctx, session.ID)
		assert.NoError(t, err)
	})
}
