package localidp

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is the iss claim on tokens issued by the portal.
const DefaultIssuer = "grant-portal"

// SessionClaims are the claims carried by portal access tokens.
// The jti claim is the session ID.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwtlib.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. The secret must be at least 32 bytes.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl, now: now}, nil
}

// Issue signs a token for subject bound to sessionID and returns it with its expiry.
func (t *TokenIssuer) Issue(sessionID, subject, email string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			ID:        sessionID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	// Expiry is truncated to the second to match the encoded claim.
	return signed, exp.Truncate(time.Second), nil
}

// Verify parses token and checks its signature, issuer and expiry.
func (t *TokenIssuer) Verify(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwtlib.ParseWithClaims(token, claims,
		func(*jwtlib.Token) (any, error) { return t.secret, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(t.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	return claims, nil
}
