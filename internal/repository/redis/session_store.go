// Package redis stores sessions as Redis hashes with native expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"hoofprint/internal/domain"
)

const keyPrefix = "hoofprint:session:"

// Hash layout: metadata fields start with "_", payload keys with "d:".
const (
	fieldCreated = "_created"
	fieldExpires = "_expires"
	dataPrefix   = "d:"
)

// Each script first checks the session exists and has not passed its
// stored expiry, so a mutation never resurrects a dead session.
var (
	createScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], '_created', ARGV[1], '_expires', ARGV[2])
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('PEXPIREAT', KEYS[1], ARGV[2])
return 1
`)

	setScript = goredis.NewScript(`
local exp = redis.call('HGET', KEYS[1], '_expires')
if not exp or tonumber(exp) <= tonumber(ARGV[3]) then return 0 end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

	takeScript = goredis.NewScript(`
local exp = redis.call('HGET', KEYS[1], '_expires')
if not exp or tonumber(exp) <= tonumber(ARGV[2]) then return {0} end
local v = redis.call('HGET', KEYS[1], ARGV[1])
if not v then return {1} end
redis.call('HDEL', KEYS[1], ARGV[1])
return {1, v}
`)

	touchScript = goredis.NewScript(`
local exp = redis.call('HGET', KEYS[1], '_expires')
if not exp or tonumber(exp) <= tonumber(ARGV[2]) then return 0 end
redis.call('HSET', KEYS[1], '_expires', ARGV[1])
redis.call('PEXPIREAT', KEYS[1], ARGV[1])
return 1
`)
)

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	var client *goredis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := goredis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = goredis.NewClient(opt)
	} else {
		client = goredis.NewClient(&goredis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// SessionStore implements domain.SessionRepository on Redis.
type SessionStore struct {
	client *goredis.Client
	now    func() time.Time
}

func NewSessionStore(client *goredis.Client) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

func sessionKey(id string) string { return keyPrefix + id }

func (s *SessionStore) nowMillis() string {
	return strconv.FormatInt(s.now().UnixMilli(), 10)
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	created := s.now()
	args := []any{created.UnixMilli(), session.ExpiresAt.UnixMilli()}
	for k, v := range session.Data {
		args = append(args, dataPrefix+k, v)
	}

	ok, err := createScript.Run(ctx, s.client, []string{sessionKey(session.ID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if ok == 0 {
		return errors.New("failed to create session: id already in use")
	}
	session.CreatedAt = time.UnixMilli(created.UnixMilli())
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	expires, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		// Missing key, or a hash without our metadata.
		return nil, domain.ErrSessionNotFound
	}
	session := &domain.Session{
		ID:        id,
		Data:      make(map[string]string),
		ExpiresAt: time.UnixMilli(expires),
	}
	if session.Expired(s.now()) {
		return nil, domain.ErrSessionNotFound
	}
	if created, err := strconv.ParseInt(fields[fieldCreated], 10, 64); err == nil {
		session.CreatedAt = time.UnixMilli(created)
	}

	for k, v := range fields {
		if key, ok := strings.CutPrefix(k, dataPrefix); ok {
			session.Data[key] = v
		}
	}
	return session, nil
}

func (s *SessionStore) Set(ctx context.Context, id, key, value string) error {
	ok, err := setScript.Run(ctx, s.client, []string{sessionKey(id)}, dataPrefix+key, value, s.nowMillis()).Int()
	if err != nil {
		return fmt.Errorf("failed to set session value: %w", err)
	}
	if ok == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) Remove(ctx context.Context, id, key string) error {
	if err := s.client.HDel(ctx, sessionKey(id), dataPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove session value: %w", err)
	}
	return nil
}

func (s *SessionStore) Take(ctx context.Context, id, key string) (string, bool, error) {
	res, err := takeScript.Run(ctx, s.client, []string{sessionKey(id)}, dataPrefix+key, s.nowMillis()).Slice()
	if err != nil {
		return "", false, fmt.Errorf("failed to take session value: %w", err)
	}
	if len(res) == 0 || res[0] == int64(0) {
		return "", false, domain.ErrSessionNotFound
	}
	if len(res) < 2 {
		return "", false, nil
	}
	value, _ := res[1].(string)
	return value, true, nil
}

func (s *SessionStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	ok, err := touchScript.Run(ctx, s.client, []string{sessionKey(id)}, expiresAt.UnixMilli(), s.nowMillis()).Int()
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if ok == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts keys at their PEXPIREAT deadline.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// Ping checks the Redis connection.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("session store unreachable: %w", err)
	}
	return nil
}
