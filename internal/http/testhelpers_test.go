package httpx

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	grantportal "github.com/target/grant-portal"
	domainauth "github.com/target/grant-portal/internal/domain/auth"
	mockauth "github.com/target/grant-portal/internal/mocks/auth"
	"github.com/target/grant-portal/internal/observability/notify"
	"github.com/target/grant-portal/internal/ports"
	"github.com/target/grant-portal/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// requireTemplateRenderer parses the embedded portal templates.
func requireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	sub, err := fs.Sub(grantportal.TemplateFS, "web/templates")
	require.NoError(t, err)
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: sub, Logger: discardLogger()})
	require.NoError(t, err)
	return tr
}

// containsAll checks if a string contains all the given substrings.
func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// gatedRecords holds profile lookups until gate is closed.
type gatedRecords struct {
	ports.ProfileRecordStore
	gate chan struct{}
}

func (g *gatedRecords) GetProfileByID(ctx context.Context, id string) (domainauth.ProfileRecord, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return domainauth.ProfileRecord{}, ctx.Err()
		}
	}
	return g.ProfileRecordStore.GetProfileByID(ctx, id)
}

type recordingAudit struct {
	mu     sync.Mutex
	events []notify.AuditEvent
}

func (a *recordingAudit) NotifyAuditAsync(_ context.Context, ev notify.AuditEvent, _ time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *recordingAudit) Events() []notify.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]notify.AuditEvent(nil), a.events...)
}

// testClock is a settable clock shared by the registry and the guard.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock { return &testClock{now: start} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seedAccount struct {
	email    string
	password string
	identity domainauth.Identity
}

// portalFixture is a session registry backed by fake providers and in-memory profile rows.
type portalFixture struct {
	registry *service.SessionRegistry
	accounts *mockauth.MemoryAccountRepository
	records  *gatedRecords
	audit    *recordingAudit
	clock    *testClock

	mu        sync.Mutex
	providers map[string]*mockauth.FakeIdentityProvider
	seeds     []seedAccount
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()
	f := &portalFixture{
		accounts:  mockauth.NewMemoryAccountRepository(),
		audit:     &recordingAudit{},
		clock:     newTestClock(time.Now()),
		providers: make(map[string]*mockauth.FakeIdentityProvider),
	}
	f.records = &gatedRecords{ProfileRecordStore: f.accounts}
	reg, err := service.NewSessionRegistry(service.SessionRegistryOptions{
		Providers: func(clientID string) ports.IdentityProvider { return f.provider(clientID) },
		Records:   f.records,
		Audit:     f.audit,
		Logger:    discardLogger(),
		Now:       f.clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	f.registry = reg
	return f
}

// provider returns the client's fake provider, creating it with every seeded account.
func (f *portalFixture) provider(clientID string) *mockauth.FakeIdentityProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.providers[clientID]; ok {
		return p
	}
	p := mockauth.NewFakeIdentityProvider()
	for _, s := range f.seeds {
		p.AddAccount(s.email, s.password, s.identity)
	}
	f.providers[clientID] = p
	return p
}

// addAccount registers a password account with a profile row for clients created afterwards.
func (f *portalFixture) addAccount(email, password string, rec domainauth.ProfileRecord) {
	rec.Email = email
	f.accounts.PutProfile(rec)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeds = append(f.seeds, seedAccount{
		email:    email,
		password: password,
		identity: domainauth.Identity{ID: rec.ID, Email: email},
	})
}

// signedIn seeds an active session for clientID before its store is created.
func (f *portalFixture) signedIn(clientID string, rec domainauth.ProfileRecord, expiresIn time.Duration) {
	f.accounts.PutProfile(rec)
	f.provider(clientID).SetSession(&domainauth.Session{
		ID:          "session-" + clientID,
		AccessToken: "token-" + clientID,
		ExpiresAt:   f.clock.Now().Add(expiresIn),
		Identity:    domainauth.Identity{ID: rec.ID, Email: rec.Email},
	})
}

// holdResolutions blocks profile lookups until the returned func is called.
func (f *portalFixture) holdResolutions(t *testing.T) func() {
	t.Helper()
	gate := make(chan struct{})
	f.records.gate = gate
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return release
}
