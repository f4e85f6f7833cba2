package devauth

// Package devauth provides a config-driven FederatedProvider for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

// CallbackPath is where Begin sends the browser.
const CallbackPath = "/auth/oidc/callback"

var _ ports.FederatedProvider = (*Provider)(nil)

// Config controls the dev provider. Subject and Email are required.
type Config struct {
	Subject         string
	Email           string
	FirstName       string
	LastName        string
	Groups          []string
	Claims          map[string]any
	SessionDuration time.Duration // default 8h when zero
}

// Provider short-circuits the OIDC flow by redirecting straight back to the
// portal's callback with locally generated state. Exchange ignores the code
// and returns the configured identity.
type Provider struct {
	mu              sync.Mutex
	identity        domainauth.FederatedIdentity
	sessionDuration time.Duration
}

// NewProvider constructs a dev provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Subject == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	return &Provider{
		identity: domainauth.FederatedIdentity{
			Subject:   cfg.Subject,
			Email:     cfg.Email,
			FirstName: cfg.FirstName,
			LastName:  cfg.LastName,
			Groups:    append([]string(nil), cfg.Groups...),
			Claims:    cfg.Claims,
			ExpiresAt: time.Now().Add(dur),
		},
		sessionDuration: dur,
	}, nil
}

// Begin returns the local callback URL with a fresh state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	q := url.Values{"code": {"dev"}, "state": {state}}
	return CallbackPath + "?" + q.Encode(), state, nonce, nil
}

// Exchange returns the configured identity. State and nonce checks are done by the caller.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (domainauth.FederatedIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Until(p.identity.ExpiresAt) < 5*time.Minute {
		p.identity.ExpiresAt = time.Now().Add(p.sessionDuration)
	}
	return p.identity, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, (n*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
