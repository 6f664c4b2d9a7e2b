// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the hoofprint application.
package testutil

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"hoofprint/internal/domain"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockStorage        = errors.New("mock: storage failure")
)

// Clock is a manually advanced clock for expiry tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc  func(ctx context.Context, user *domain.User) error
	GetByIDFunc func(ctx context.Context, id string) (*domain.User, error)

	// In-memory storage keyed by user ID
	Users map[string]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository with initialized maps
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Users[user.ID]; ok {
		return errors.New("mock: duplicate user id")
	}
	for _, u := range m.Users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrEmailExists
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.Users[user.ID] = cloneUser(user)
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if u, ok := m.Users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.Users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*domain.User, 0, len(m.Users))
	for _, u := range m.Users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// Remove deletes a user outright, simulating an account removed behind the
// application's back.
func (m *MockUserRepository) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Users, id)
}

// Count returns the number of stored users.
func (m *MockUserRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Users)
}

func (m *MockUserRepository) snapshot() map[string]*domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*domain.User, len(m.Users))
	for k, u := range m.Users {
		out[k] = cloneUser(u)
	}
	return out
}

func (m *MockUserRepository) restore(users map[string]*domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users = users
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Groups = slices.Clone(u.Groups)
	return &c
}

// MockSessionRepository implements domain.SessionRepository for testing.
// Stored sessions are copied on every read and write, so tests observe
// the same isolation a database gives.
type MockSessionRepository struct {
	mu sync.RWMutex

	// Function overrides
	GetFunc           func(ctx context.Context, id string) (*domain.Session, error)
	DeleteExpiredFunc func(ctx context.Context) (int64, error)

	// Now is the clock used for expiry checks; defaults to time.Now
	Now func() time.Time

	// In-memory storage
	Sessions map[string]*domain.Session
}

// NewMockSessionRepository creates a new MockSessionRepository with initialized maps
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Now:      time.Now,
		Sessions: make(map[string]*domain.Session),
	}
}

func (m *MockSessionRepository) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// live returns the stored session if it exists and has not expired.
// Caller must hold m.mu.
func (m *MockSessionRepository) live(id string) (*domain.Session, bool) {
	s, ok := m.Sessions[id]
	if !ok || s.Expired(m.now()) {
		return nil, false
	}
	return s, true
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Sessions[session.ID]; ok {
		return errors.New("mock: duplicate session id")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = m.now()
	}
	m.Sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *MockSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.live(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *MockSessionRepository) Set(ctx context.Context, id, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Data[key] = value
	return nil
}

func (m *MockSessionRepository) Remove(ctx context.Context, id, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.Sessions[id]; ok {
		delete(s.Data, key)
	}
	return nil
}

func (m *MockSessionRepository) Take(ctx context.Context, id, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(id)
	if !ok {
		return "", false, domain.ErrSessionNotFound
	}
	v, ok := s.Data[key]
	delete(s.Data, key)
	return v, ok, nil
}

func (m *MockSessionRepository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.ExpiresAt = expiresAt
	return nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Sessions, id)
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	now := m.now()
	for id, s := range m.Sessions {
		if s.Expired(now) {
			delete(m.Sessions, id)
			count++
		}
	}
	return count, nil
}

// Has reports whether a session row exists, expired or not.
func (m *MockSessionRepository) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.Sessions[id]
	return ok
}

// Count returns the number of stored session rows.
func (m *MockSessionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Sessions)
}

func cloneSession(s *domain.Session) *domain.Session {
	c := *s
	c.Data = maps.Clone(s.Data)
	if c.Data == nil {
		c.Data = make(map[string]string)
	}
	return &c
}

// MockSiteRepository implements domain.SiteRepository for testing
type MockSiteRepository struct {
	mu sync.RWMutex

	CreateFunc func(ctx context.Context, site *domain.Site) error

	Sites map[string]*domain.Site
}

// NewMockSiteRepository creates a new MockSiteRepository with initialized maps
func NewMockSiteRepository() *MockSiteRepository {
	return &MockSiteRepository{
		Sites: make(map[string]*domain.Site),
	}
}

func (m *MockSiteRepository) Create(ctx context.Context, site *domain.Site) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, site)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Sites[site.ID]; ok {
		return errors.New("mock: duplicate site id")
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now()
	}
	c := *site
	m.Sites[site.ID] = &c
	return nil
}

func (m *MockSiteRepository) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.Sites[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, domain.ErrSiteNotFound
}

func (m *MockSiteRepository) List(ctx context.Context) ([]*domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sites := make([]*domain.Site, 0, len(m.Sites))
	for _, s := range m.Sites {
		c := *s
		sites = append(sites, &c)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })
	return sites, nil
}

// Count returns the number of stored sites.
func (m *MockSiteRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Sites)
}

func (m *MockSiteRepository) snapshot() map[string]*domain.Site {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*domain.Site, len(m.Sites))
	for k, s := range m.Sites {
		c := *s
		out[k] = &c
	}
	return out
}

func (m *MockSiteRepository) restore(sites map[string]*domain.Site) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sites = sites
}

// MockCodeRepository implements domain.CodeRepository for testing
type MockCodeRepository struct {
	mu sync.RWMutex

	Sites *MockSiteRepository
	Codes map[string]*domain.Code
}

// NewMockCodeRepository creates a MockCodeRepository that resolves site
// names through sites.
func NewMockCodeRepository(sites *MockSiteRepository) *MockCodeRepository {
	return &MockCodeRepository{
		Sites: sites,
		Codes: make(map[string]*domain.Code),
	}
}

func (m *MockCodeRepository) Create(ctx context.Context, code *domain.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	c := *code
	m.Codes[code.ID] = &c
	return nil
}

func (m *MockCodeRepository) GetByID(ctx context.Context, id string) (*domain.Code, error) {
	m.mu.RLock()
	c, ok := m.Codes[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrCodeNotFound
	}
	return m.withSite(ctx, c), nil
}

func (m *MockCodeRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Code, error) {
	m.mu.RLock()
	var codes []*domain.Code
	for _, c := range m.Codes {
		if c.UserID == userID {
			codes = append(codes, c)
		}
	}
	m.mu.RUnlock()

	out := make([]*domain.Code, 0, len(codes))
	for _, c := range codes {
		out = append(out, m.withSite(ctx, c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockCodeRepository) Update(ctx context.Context, code *domain.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.Codes[code.ID]
	if !ok {
		return domain.ErrCodeNotFound
	}
	now := time.Now()
	stored.SiteID = code.SiteID
	stored.Type = code.Type
	stored.Value = code.Value
	stored.Name = code.Name
	stored.LastUpdated = &now
	code.LastUpdated = &now
	return nil
}

func (m *MockCodeRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Codes[id]; !ok {
		return domain.ErrCodeNotFound
	}
	delete(m.Codes, id)
	return nil
}

func (m *MockCodeRepository) withSite(ctx context.Context, code *domain.Code) *domain.Code {
	c := *code
	if m.Sites != nil {
		if site, err := m.Sites.GetByID(ctx, c.SiteID); err == nil {
			c.SiteName = site.Name
		}
	}
	return &c
}

// MockStore implements domain.TxStore over the mock repositories. A failed
// transaction restores users, sites and applied migrations to their state
// before WithTx was called.
type MockStore struct {
	txMu sync.Mutex

	Users *MockUserRepository
	Sites *MockSiteRepository

	// FailMigration makes ApplyMigration fail for the given version.
	FailMigration string

	mu      sync.Mutex
	applied []string
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		Users: NewMockUserRepository(),
		Sites: NewMockSiteRepository(),
	}
}

// Applied returns the applied migration versions in order.
func (s *MockStore) Applied() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.applied)
}

func (s *MockStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	users := s.Users.snapshot()
	sites := s.Sites.snapshot()
	applied := s.Applied()

	if err := fn(ctx, &mockTx{store: s}); err != nil {
		s.Users.restore(users)
		s.Sites.restore(sites)
		s.mu.Lock()
		s.applied = applied
		s.mu.Unlock()
		return err
	}
	return nil
}

type mockTx struct {
	store *MockStore
}

func (t *mockTx) Users() domain.UserRepository { return t.store.Users }
func (t *mockTx) Sites() domain.SiteRepository { return t.store.Sites }

func (t *mockTx) AppliedMigrations(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, v := range t.store.Applied() {
		out[v] = true
	}
	return out, nil
}

func (t *mockTx) ApplyMigration(ctx context.Context, m domain.Migration) error {
	if t.store.FailMigration != "" && t.store.FailMigration == m.Version {
		return ErrMockStorage
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.applied = append(t.store.applied, m.Version)
	return nil
}

// MockAuditPublisher records published audit events
type MockAuditPublisher struct {
	mu     sync.Mutex
	Events []*domain.AuditEvent
	Err    error
}

func (m *MockAuditPublisher) PublishAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.Err
}

// Types returns the published event types in order.
func (m *MockAuditPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}
