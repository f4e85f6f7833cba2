package oidc

// Package oidc provides the OIDC code-flow adapter used for institutional sign-in.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

var _ ports.FederatedProvider = (*Provider)(nil)

// Provider implements ports.FederatedProvider using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	logoutURL  string
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	LogoutURL    string
	HTTPClient   *http.Client // Optional, defaults to a 30s timeout client
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider creates a new OIDC provider. It fetches the discovery document once.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       strings.Fields(config.Scope),
			Endpoint:     op.Endpoint(),
		},
		logoutURL:    config.LogoutURL,
		httpClient:   httpClient,
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
	}, nil
}

// LogoutURL returns the IdP end-session URL, or "" when none is configured.
func (p *Provider) LogoutURL() string { return p.logoutURL }

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri comes from the configured RedirectURL and must match it exactly.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.FederatedIdentity, error) {
	if in.Code == "" {
		return domainauth.FederatedIdentity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.FederatedIdentity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.FederatedIdentity{}, errors.New("nonce is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.FederatedIdentity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	fields, raw, err := p.extractFromIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.FederatedIdentity{}, fmt.Errorf("extract id_token: %w", err)
	}

	if fields.email == "" || fields.subject == "" {
		if fillErr := p.fillFromUserInfo(ctx, token.AccessToken, &fields); fillErr != nil {
			return domainauth.FederatedIdentity{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}

	expiresAt := time.Now().Add(time.Hour)
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}

	return domainauth.FederatedIdentity{
		Subject:   fields.subject,
		Email:     fields.email,
		FirstName: fields.givenName,
		LastName:  fields.familyName,
		Groups:    fields.groups,
		Claims:    raw,
		ExpiresAt: expiresAt,
	}, nil
}

// UserInfo is the subset of userinfo claims the portal reads. Both standard
// OIDC names and the AD/ADFS shape are accepted.
type UserInfo struct {
	Subject        string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	Email          string   `json:"email"`
	Mail           string   `json:"mail"`
	GivenName      string   `json:"given_name"`
	FamilyName     string   `json:"family_name"`
	FirstName      string   `json:"firstname"`
	LastName       string   `json:"lastname"`
	Groups         []string `json:"groups"`
	MemberOf       []string `json:"memberof"`
}

func (p *Provider) getUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	var userInfo UserInfo
	if claimsErr := ui.Claims(&userInfo); claimsErr != nil {
		return nil, fmt.Errorf("decode user info: %w", claimsErr)
	}
	return &userInfo, nil
}

type idFields struct {
	subject    string
	email      string
	givenName  string
	familyName string
	groups     []string
}

// idTokenClaims covers standard OIDC claims and the AD/ADFS shape.
type idTokenClaims struct {
	Sub            string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	Email          string   `json:"email"`
	Mail           string   `json:"mail"`
	GivenName      string   `json:"given_name"`
	FamilyName     string   `json:"family_name"`
	FirstName      string   `json:"firstname"`
	LastName       string   `json:"lastname"`
	Groups         []string `json:"groups"`
	MemberOf       []string `json:"memberof"`
	Nonce          string   `json:"nonce"`
}

func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (idFields, map[string]any, error) {
	var f idFields
	if !p.hasOpenIDScope() {
		return f, nil, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return f, nil, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return f, nil, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return f, nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return f, nil, errors.New("invalid nonce")
	}
	var raw map[string]any
	if rawErr := idTok.Claims(&raw); rawErr != nil {
		return f, nil, fmt.Errorf("parse raw id_token claims: %w", rawErr)
	}
	return mapIDTokenClaims(claims), raw, nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, accessToken string, f *idFields) error {
	ui, err := p.getUserInfo(ctx, accessToken)
	if err != nil {
		return err
	}
	fillFromUserInfoClaims(f, *ui)
	return nil
}

// mapIDTokenClaims prefers the AD account name as subject and standard claims elsewhere.
func mapIDTokenClaims(c idTokenClaims) idFields {
	return idFields{
		subject:    firstNonEmpty(c.SamAccountName, c.Sub),
		email:      firstNonEmpty(c.Email, c.Mail),
		givenName:  firstNonEmpty(c.GivenName, c.FirstName),
		familyName: firstNonEmpty(c.FamilyName, c.LastName),
		groups:     firstNonEmptySlice(c.Groups, c.MemberOf),
	}
}

// fillFromUserInfoClaims fills only the fields the ID token left empty.
func fillFromUserInfoClaims(f *idFields, ui UserInfo) {
	if f.subject == "" {
		f.subject = firstNonEmpty(ui.SamAccountName, ui.Subject)
	}
	if f.email == "" {
		f.email = firstNonEmpty(ui.Email, ui.Mail)
	}
	if f.givenName == "" {
		f.givenName = firstNonEmpty(ui.GivenName, ui.FirstName)
	}
	if f.familyName == "" {
		f.familyName = firstNonEmpty(ui.FamilyName, ui.LastName)
	}
	if len(f.groups) == 0 {
		f.groups = firstNonEmptySlice(ui.Groups, ui.MemberOf)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptySlice(vals ...[]string) []string {
	for _, v := range vals {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}

func (p *Provider) hasOpenIDScope() bool {
	return slices.Contains(p.config.Scopes, "openid")
}

func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
