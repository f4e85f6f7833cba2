package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider        = (*FakeIdentityProvider)(nil)
	_ ports.FederatedProvider       = (*MockFederatedProvider)(nil)
	_ ports.SessionRepository       = (*MemorySessionRepository)(nil)
	_ ports.ClientBindingRepository = (*MemoryBindingRepository)(nil)
	_ ports.CacheRepository         = (*MemoryCache)(nil)
	_ ports.AccountRepository       = (*MemoryAccountRepository)(nil)
	_ ports.ProfileRecordStore      = (*MemoryAccountRepository)(nil)
	_ ports.RoleMapper              = (*StaticRoleMapper)(nil)
)

// FakeAccount is a credential known to FakeIdentityProvider.
type FakeAccount struct {
	Password string
	Identity domainauth.Identity
}

// FakeIdentityProvider is an in-memory identity provider that dispatches events
// synchronously, like the real provider. Tests can inject events at any point
// with Emit, including from inside CurrentSession via BeforeCurrentSession.
type FakeIdentityProvider struct {
	mu       sync.Mutex
	accounts map[string]FakeAccount
	session  *domainauth.Session
	subs     map[int]func(domainauth.AuthEvent)
	nextSub  int
	nextID   int
	calls    map[string]int

	dispatching int
	reentrant   int

	SignInErr  error
	SignUpErr  error
	SignOutErr error
	CurrentErr error
	RefreshErr error

	// BeforeCurrentSession runs inside CurrentSession before the session is read.
	BeforeCurrentSession func()

	SessionTTL time.Duration
}

// NewFakeIdentityProvider creates an empty provider.
func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{
		accounts:   make(map[string]FakeAccount),
		subs:       make(map[int]func(domainauth.AuthEvent)),
		calls:      make(map[string]int),
		SessionTTL: time.Hour,
	}
}

// AddAccount registers a password account.
func (p *FakeIdentityProvider) AddAccount(email, password string, id domainauth.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id.Email == "" {
		id.Email = email
	}
	p.accounts[strings.ToLower(email)] = FakeAccount{Password: password, Identity: id}
}

// SetSession seeds the current session without dispatching an event.
func (p *FakeIdentityProvider) SetSession(sess *domainauth.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = sess
}

// Calls reports how many times the named method was invoked.
func (p *FakeIdentityProvider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// TotalCalls reports the number of provider calls across all methods except OnStateChange.
func (p *FakeIdentityProvider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for m, c := range p.calls {
		if m != "OnStateChange" {
			n += c
		}
	}
	return n
}

// ReentrantCalls counts provider calls made while a state-change callback was running.
func (p *FakeIdentityProvider) ReentrantCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reentrant
}

// Subscribers reports the number of active subscriptions.
func (p *FakeIdentityProvider) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *FakeIdentityProvider) record(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[method]++
	if p.dispatching > 0 {
		p.reentrant++
	}
}

func (p *FakeIdentityProvider) newSession(id domainauth.Identity) *domainauth.Session {
	p.nextID++
	return &domainauth.Session{
		ID:          fmt.Sprintf("session-%d", p.nextID),
		AccessToken: fmt.Sprintf("token-%d", p.nextID),
		ExpiresAt:   time.Now().Add(p.SessionTTL),
		Identity:    id,
	}
}

// SignIn implements ports.IdentityProvider.
func (p *FakeIdentityProvider) SignIn(_ context.Context, email, password string) error {
	p.record("SignIn")
	p.mu.Lock()
	if p.SignInErr != nil {
		err := p.SignInErr
		p.mu.Unlock()
		return err
	}
	acct, ok := p.accounts[strings.ToLower(email)]
	if !ok || acct.Password != password {
		p.mu.Unlock()
		return domainauth.ErrInvalidCredentials
	}
	sess := p.newSession(acct.Identity)
	p.session = sess
	p.mu.Unlock()

	p.Emit(domainauth.AuthEvent{Kind: domainauth.EventSignedIn, Session: sess})
	return nil
}

// SignUp implements ports.IdentityProvider.
func (p *FakeIdentityProvider) SignUp(_ context.Context, email, password string, meta domainauth.IdentityMetadata) error {
	p.record("SignUp")
	p.mu.Lock()
	if p.SignUpErr != nil {
		err := p.SignUpErr
		p.mu.Unlock()
		return err
	}
	key := strings.ToLower(email)
	if _, exists := p.accounts[key]; exists {
		p.mu.Unlock()
		return domainauth.ErrEmailTaken
	}
	p.nextID++
	id := domainauth.Identity{ID: fmt.Sprintf("user-%d", p.nextID), Email: email, Metadata: meta}
	p.accounts[key] = FakeAccount{Password: password, Identity: id}
	sess := p.newSession(id)
	p.session = sess
	p.mu.Unlock()

	p.Emit(domainauth.AuthEvent{Kind: domainauth.EventSignedIn, Session: sess})
	return nil
}

// SignInWithIdentity implements ports.IdentityProvider.
func (p *FakeIdentityProvider) SignInWithIdentity(_ context.Context, fed domainauth.FederatedIdentity) error {
	p.record("SignInWithIdentity")
	p.mu.Lock()
	if p.SignInErr != nil {
		err := p.SignInErr
		p.mu.Unlock()
		return err
	}
	id := domainauth.Identity{
		ID:       "fed-" + fed.Subject,
		Email:    fed.Email,
		Metadata: domainauth.IdentityMetadata{FullName: fed.FullName(), Role: string(fed.Role)},
	}
	sess := p.newSession(id)
	p.session = sess
	p.mu.Unlock()

	p.Emit(domainauth.AuthEvent{Kind: domainauth.EventSignedIn, Session: sess})
	return nil
}

// SignOut implements ports.IdentityProvider. When SignOutErr is set the session is kept
// and no event is dispatched.
func (p *FakeIdentityProvider) SignOut(_ context.Context) error {
	p.record("SignOut")
	p.mu.Lock()
	if p.SignOutErr != nil {
		err := p.SignOutErr
		p.mu.Unlock()
		return err
	}
	p.session = nil
	p.mu.Unlock()

	p.Emit(domainauth.AuthEvent{Kind: domainauth.EventSignedOut})
	return nil
}

// CurrentSession implements ports.IdentityProvider.
func (p *FakeIdentityProvider) CurrentSession(_ context.Context) (*domainauth.Session, error) {
	p.record("CurrentSession")
	if p.BeforeCurrentSession != nil {
		p.BeforeCurrentSession()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CurrentErr != nil {
		return nil, p.CurrentErr
	}
	if p.session == nil {
		return nil, nil
	}
	sess := *p.session
	return &sess, nil
}

// RefreshSession implements ports.IdentityProvider.
func (p *FakeIdentityProvider) RefreshSession(_ context.Context) (*domainauth.Session, error) {
	p.record("RefreshSession")
	p.mu.Lock()
	if p.RefreshErr != nil {
		err := p.RefreshErr
		p.mu.Unlock()
		return nil, err
	}
	if p.session == nil {
		p.mu.Unlock()
		return nil, nil
	}
	refreshed := *p.session
	refreshed.ExpiresAt = time.Now().Add(p.SessionTTL)
	p.nextID++
	refreshed.AccessToken = fmt.Sprintf("token-%d", p.nextID)
	p.session = &refreshed
	p.mu.Unlock()

	out := refreshed
	p.Emit(domainauth.AuthEvent{Kind: domainauth.EventTokenRefreshed, Session: &out})
	return &refreshed, nil
}

// OnStateChange implements ports.IdentityProvider.
func (p *FakeIdentityProvider) OnStateChange(cb func(domainauth.AuthEvent)) ports.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["OnStateChange"]++
	p.nextSub++
	id := p.nextSub
	p.subs[id] = cb
	return ports.SubscriptionFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	})
}

// Emit dispatches ev to every subscriber synchronously.
func (p *FakeIdentityProvider) Emit(ev domainauth.AuthEvent) {
	p.mu.Lock()
	cbs := make([]func(domainauth.AuthEvent), 0, len(p.subs))
	for _, cb := range p.subs {
		cbs = append(cbs, cb)
	}
	p.dispatching++
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.dispatching--
		p.mu.Unlock()
	}()

	for _, cb := range cbs {
		cb(ev)
	}
}

// MockFederatedProvider simulates an external IdP for tests with deterministic state/nonce handling.
type MockFederatedProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.FederatedIdentity, error)

	// Deterministic values for predictable testing
	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.FederatedIdentity

	mu        sync.Mutex
	callCount int
}

// NewMockFederatedProvider creates a MockFederatedProvider with sensible defaults.
func NewMockFederatedProvider() *MockFederatedProvider {
	return &MockFederatedProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: defaultFederatedUser(),
	}
}

func defaultFederatedUser() domainauth.FederatedIdentity {
	return domainauth.FederatedIdentity{
		Subject:   "mock-user-1",
		FirstName: "Mock",
		LastName:  "User",
		Email:     "mock.user@example.edu",
		Groups:    []string{"researchers"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func (m *MockFederatedProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockFederatedProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.FederatedIdentity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}

	user := m.DefaultUser
	if user.Subject == "" {
		user = defaultFederatedUser()
	}
	user.ExpiresAt = time.Now().Add(time.Hour)
	return user, nil
}

// MemorySessionRepository is an in-memory session repository for unit tests.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionRepository creates a new in-memory session repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]domainauth.Session)}
}

func (m *MemorySessionRepository) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionRepository) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || sess.Expired(time.Now()) {
		return domainauth.Session{}, ports.ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports the number of stored sessions.
func (m *MemorySessionRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MemoryBindingRepository is an in-memory client binding repository.
type MemoryBindingRepository struct {
	mu       sync.Mutex
	bindings map[string]string
}

// NewMemoryBindingRepository creates an empty binding repository.
func NewMemoryBindingRepository() *MemoryBindingRepository {
	return &MemoryBindingRepository{bindings: make(map[string]string)}
}

func (m *MemoryBindingRepository) Bind(_ context.Context, clientID, sessionID string, _ time.Duration) error {
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[clientID] = sessionID
	return nil
}

func (m *MemoryBindingRepository) Lookup(_ context.Context, clientID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bindings[clientID]
	if !ok {
		return "", ports.ErrNotFound
	}
	return id, nil
}

func (m *MemoryBindingRepository) Unbind(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, clientID)
	return nil
}

// MemoryCache is an in-memory CacheRepository. TTLs are ignored.
type MemoryCache struct {
	mu     sync.Mutex
	values map[string][]byte

	SetErr    error
	DeleteErr error
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string][]byte)}
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return false, m.DeleteErr
	}
	_, ok := m.values[key]
	delete(m.values, key)
	return ok, nil
}

func (m *MemoryCache) Health(context.Context) error { return nil }

// Has reports whether key is present.
func (m *MemoryCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

// MemoryAccountRepository stores accounts and their profile rows in memory.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]domainauth.Account
	profiles map[string]domainauth.ProfileRecord
	nextID   int

	// ProfileErr, when set, is returned by GetProfileByID.
	ProfileErr error
}

// NewMemoryAccountRepository creates an empty repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]domainauth.Account),
		profiles: make(map[string]domainauth.ProfileRecord),
	}
}

func (m *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (domainauth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return domainauth.Account{}, ports.ErrNotFound
}

func (m *MemoryAccountRepository) GetByID(_ context.Context, id string) (domainauth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domainauth.Account{}, ports.ErrNotFound
	}
	return a, nil
}

func (m *MemoryAccountRepository) CreateWithProfile(_ context.Context, in ports.NewAccountInput) (domainauth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, in.Email) {
			return domainauth.Account{}, domainauth.ErrEmailTaken
		}
	}
	m.nextID++
	acct := domainauth.Account{
		ID:           fmt.Sprintf("acct-%d", m.nextID),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Metadata:     domainauth.IdentityMetadata{FullName: in.FullName, Role: string(in.Role)},
		CreatedAt:    time.Now(),
	}
	m.accounts[acct.ID] = acct
	m.profiles[acct.ID] = domainauth.ProfileRecord{
		ID:       acct.ID,
		FullName: in.FullName,
		Email:    in.Email,
		Role:     string(in.Role),
	}
	return acct, nil
}

func (m *MemoryAccountRepository) UpsertFederated(_ context.Context, fed domainauth.FederatedIdentity) (domainauth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.accounts {
		if a.Subject == fed.Subject {
			if fed.Role.Valid() {
				rec := m.profiles[id]
				rec.Role = string(fed.Role)
				m.profiles[id] = rec
				a.Metadata.Role = string(fed.Role)
				m.accounts[id] = a
			}
			return a, nil
		}
	}
	m.nextID++
	acct := domainauth.Account{
		ID:        fmt.Sprintf("acct-%d", m.nextID),
		Email:     fed.Email,
		Subject:   fed.Subject,
		Metadata:  domainauth.IdentityMetadata{FullName: fed.FullName(), Role: string(fed.Role)},
		CreatedAt: time.Now(),
	}
	m.accounts[acct.ID] = acct
	m.profiles[acct.ID] = domainauth.ProfileRecord{
		ID:       acct.ID,
		FullName: fed.FullName(),
		Email:    fed.Email,
		Role:     string(fed.Role),
	}
	return acct, nil
}

func (m *MemoryAccountRepository) SetRole(_ context.Context, email string, role domainauth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			rec := m.profiles[id]
			rec.Role = string(role)
			m.profiles[id] = rec
			return nil
		}
	}
	return ports.ErrNotFound
}

// GetProfileByID implements ports.ProfileRecordStore.
func (m *MemoryAccountRepository) GetProfileByID(_ context.Context, id string) (domainauth.ProfileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProfileErr != nil {
		return domainauth.ProfileRecord{}, m.ProfileErr
	}
	rec, ok := m.profiles[id]
	if !ok {
		return domainauth.ProfileRecord{}, ports.ErrNotFound
	}
	return rec, nil
}

// PutProfile stores a profile row directly.
func (m *MemoryAccountRepository) PutProfile(rec domainauth.ProfileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[rec.ID] = rec
}

// StaticRoleMapper maps groups by simple string membership rules.
type StaticRoleMapper struct {
	AdminGroup    string
	ReviewerGroup string
}

func (m StaticRoleMapper) Map(id domainauth.FederatedIdentity) domainauth.Role {
	for _, g := range id.Groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	for _, g := range id.Groups {
		if m.ReviewerGroup != "" && g == m.ReviewerGroup {
			return domainauth.RoleReviewer
		}
	}
	return domainauth.RoleResearcher
}
