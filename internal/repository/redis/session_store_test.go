package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoofprint/internal/domain"
	"hoofprint/internal/testutil"
)

// setupSessionStore creates a miniredis instance and a store whose clock
// the test controls.
func setupSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis, *testutil.Clock) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := testutil.NewClock(time.Now().Truncate(time.Millisecond))
	mr.SetTime(clock.Now())

	store := NewSessionStore(client)
	store.now = clock.Now
	return store, mr, clock
}

func createSession(t *testing.T, store *SessionStore, clock *testutil.Clock, data map[string]string) *domain.Session {
	t.Helper()
	s := &domain.Session{ID: "sid", Data: data, ExpiresAt: clock.Now().Add(5 * time.Minute)}
	require.NoError(t, store.Create(context.Background(), s))
	return s
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, addr := range []string{mr.Addr(), "redis://" + mr.Addr()} {
		client, err := Connect(context.Background(), addr)
		require.NoError(t, err, addr)
		client.Close()
	}

	_, err := Connect(context.Background(), "redis://%zz")
	assert.Error(t, err)
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store, mr, clock := setupSessionStore(t)
	ctx := context.Background()

	s := createSession(t, store, clock, map[string]string{domain.SessionUserIDKey: "u1"})
	assert.True(t, s.CreatedAt.Equal(clock.Now()))

	got, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID())
	assert.True(t, got.ExpiresAt.Equal(s.ExpiresAt))
	assert.Len(t, got.Data, 1, "metadata fields must not leak into the payload")

	assert.True(t, mr.Exists(keyPrefix+"sid"))
	assert.Equal(t, 5*time.Minute, mr.TTL(keyPrefix+"sid"))
}

func TestSessionStore_CreateDuplicate(t *testing.T) {
	store, _, clock := setupSessionStore(t)
	createSession(t, store, clock, nil)

	err := store.Create(context.Background(), &domain.Session{ID: "sid", ExpiresAt: clock.Now().Add(time.Minute)})
	assert.Error(t, err)
}

func TestSessionStore_GetMissing(t *testing.T) {
	store, _, _ := setupSessionStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionStore_SetRemoveTake(t *testing.T) {
	store, _, clock := setupSessionStore(t)
	ctx := context.Background()
	createSession(t, store, clock, nil)

	require.NoError(t, store.Set(ctx, "sid", domain.SessionCSRFKey, "scope:token"))
	require.NoError(t, store.Set(ctx, "sid", "other", "x"))
	require.NoError(t, store.Remove(ctx, "sid", "other"))

	value, ok, err := store.Take(ctx, "sid", domain.SessionCSRFKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "scope:token", value)

	_, ok, err = store.Take(ctx, "sid", domain.SessionCSRFKey)
	require.NoError(t, err)
	assert.False(t, ok, "take must remove the key")

	got, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, got.Data)
}

func TestSessionStore_MutationsOnMissingSession(t *testing.T) {
	store, _, clock := setupSessionStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Set(ctx, "missing", "k", "v"), domain.ErrSessionNotFound)
	assert.ErrorIs(t, store.Touch(ctx, "missing", clock.Now().Add(time.Minute)), domain.ErrSessionNotFound)
	_, _, err := store.Take(ctx, "missing", "k")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoError(t, store.Remove(ctx, "missing", "k"))
	assert.NoError(t, store.Delete(ctx, "missing"))
}

func TestSessionStore_TakeIsAtomic(t *testing.T) {
	store, _, clock := setupSessionStore(t)
	ctx := context.Background()
	createSession(t, store, clock, map[string]string{domain.SessionCSRFKey: "token"})

	var wg sync.WaitGroup
	var mu sync.Mutex
	hits := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.Take(ctx, "sid", domain.SessionCSRFKey)
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
}

func TestSessionStore_TouchSlidesExpiry(t *testing.T) {
	store, mr, clock := setupSessionStore(t)
	ctx := context.Background()
	s := createSession(t, store, clock, nil)

	clock.Advance(4 * time.Minute)
	mr.SetTime(clock.Now())
	next := clock.Now().Add(5 * time.Minute)
	require.NoError(t, store.Touch(ctx, "sid", next))

	got, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.After(s.ExpiresAt))
	assert.True(t, got.ExpiresAt.Equal(next))
}

func TestSessionStore_Expiry(t *testing.T) {
	t.Run("stored_expiry_hides_session", func(t *testing.T) {
		store, _, clock := setupSessionStore(t)
		ctx := context.Background()
		createSession(t, store, clock, map[string]string{domain.SessionCSRFKey: "token"})

		clock.Advance(5 * time.Minute)

		_, err := store.Get(ctx, "sid")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.ErrorIs(t, store.Touch(ctx, "sid", clock.Now().Add(time.Minute)), domain.ErrSessionNotFound)
		assert.ErrorIs(t, store.Set(ctx, "sid", "k", "v"), domain.ErrSessionNotFound)
		_, _, err = store.Take(ctx, "sid", domain.SessionCSRFKey)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("redis_evicts_key", func(t *testing.T) {
		store, mr, clock := setupSessionStore(t)
		createSession(t, store, clock, nil)

		mr.FastForward(5*time.Minute + time.Second)

		assert.False(t, mr.Exists(keyPrefix+"sid"))
	})

	t.Run("sweep_is_noop", func(t *testing.T) {
		store, _, _ := setupSessionStore(t)

		n, err := store.DeleteExpired(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestSessionStore_Delete(t *testing.T) {
	store, mr, clock := setupSessionStore(t)
	createSession(t, store, clock, nil)

	require.NoError(t, store.Delete(context.Background(), "sid"))
	assert.False(t, mr.Exists(keyPrefix+"sid"))
}

func TestSessionStore_Ping(t *testing.T) {
	store, _, _ := setupSessionStore(t)
	require.NoError(t, store.Ping(context.Background()))
}
