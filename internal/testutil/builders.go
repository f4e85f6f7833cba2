package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

var emailSeq atomic.Int64

// UniqueEmail returns a lowercase address that will not collide within a test run.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d-%d@example.edu", prefix, time.Now().UnixNano(), emailSeq.Add(1))
}

// AccountBuilder builds ports.NewAccountInput values with sensible defaults.
type AccountBuilder struct {
	in ports.NewAccountInput
}

// NewAccount starts a researcher account with a unique email.
func NewAccount() *AccountBuilder {
	return &AccountBuilder{in: ports.NewAccountInput{
		Email:        UniqueEmail("researcher"),
		PasswordHash: "$2a$10$placeholderplaceholderplaceholderplaceholderplacehol",
		FullName:     "Test Researcher",
		Role:         domainauth.RoleResearcher,
	}}
}

func (b *AccountBuilder) WithEmail(email string) *AccountBuilder {
	b.in.Email = email
	return b
}

func (b *AccountBuilder) WithPasswordHash(hash string) *AccountBuilder {
	b.in.PasswordHash = hash
	return b
}

func (b *AccountBuilder) WithName(name string) *AccountBuilder {
	b.in.FullName = name
	return b
}

func (b *AccountBuilder) WithRole(role domainauth.Role) *AccountBuilder {
	b.in.Role = role
	return b
}

// Build returns a copy of the input.
func (b *AccountBuilder) Build() ports.NewAccountInput {
	return b.in
}

// FederatedIdentity returns an OIDC identity for subject with a unique email.
func FederatedIdentity(subject string, groups ...string) domainauth.FederatedIdentity {
	return domainauth.FederatedIdentity{
		Subject:   subject,
		Email:     UniqueEmail(subject),
		FirstName: "Fed",
		LastName:  "User",
		Groups:    groups,
		Claims:    map[string]any{"sub": subject, "groups": groups},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// SetProfileDetails writes the optional profile columns directly, for tests that
// need institution and department populated.
func SetProfileDetails(t TestingTB, db *sql.DB, id, institution, department string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx,
		`UPDATE profiles SET institution = NULLIF($2, ''), department = NULLIF($3, '') WHERE id = $1`,
		id, institution, department,
	); err != nil {
		t.Fatalf("Failed to update profile %s: %v", id, err)
	}
}
