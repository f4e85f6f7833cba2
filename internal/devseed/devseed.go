// Package devseed creates demo accounts for local development, one per role.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/grant-portal/internal/adapters/localidp"
	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "DevPortal1"

// AccountCreator is the slice of the account repository seeding needs.
type AccountCreator interface {
	CreateWithProfile(ctx context.Context, in ports.NewAccountInput) (domainauth.Account, error)
}

// Account describes one seeded login.
type Account struct {
	Email    string
	FullName string
	Role     domainauth.Role
}

// Accounts returns the demo logins, one per role.
func Accounts() []Account {
	return []Account{
		{Email: "researcher@dev.grant-portal.test", FullName: "Rosa Researcher", Role: domainauth.RoleResearcher},
		{Email: "reviewer@dev.grant-portal.test", FullName: "Rita Reviewer", Role: domainauth.RoleReviewer},
		{Email: "inst-admin@dev.grant-portal.test", FullName: "Ivan Institution", Role: domainauth.RoleInstitutionalAdmin},
		{Email: "admin@dev.grant-portal.test", FullName: "Ada Admin", Role: domainauth.RoleAdmin},
	}
}

// Result summarises a seeding run.
type Result struct {
	Created []string
	Skipped []string
}

// Run creates every account from Accounts. Existing emails are skipped, so
// running it twice is harmless.
func Run(ctx context.Context, repo AccountCreator, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hash, err := localidp.HashPassword(DefaultPassword)
	if err != nil {
		return Result{}, err
	}

	var res Result
	failures := 0
	for _, acct := range Accounts() {
		_, err := repo.CreateWithProfile(ctx, ports.NewAccountInput{
			Email:        acct.Email,
			PasswordHash: hash,
			FullName:     acct.FullName,
			Role:         acct.Role,
		})
		switch {
		case err == nil:
			res.Created = append(res.Created, acct.Email)
			logger.InfoContext(ctx, "seeded account", "email", acct.Email, "role", acct.Role)
		case errors.Is(err, domainauth.ErrEmailTaken):
			res.Skipped = append(res.Skipped, acct.Email)
			logger.DebugContext(ctx, "seed account exists", "email", acct.Email)
		default:
			failures++
			logger.ErrorContext(ctx, "failed to seed account", "email", acct.Email, "error", err)
		}
	}
	if failures > 0 {
		return res, fmt.Errorf("%d seed errors; check logs", failures)
	}
	return res, nil
}
