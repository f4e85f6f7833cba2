package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/target/grant-portal/internal/bootstrap"
	"github.com/target/grant-portal/internal/data"
	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/migrate"
	"github.com/target/grant-portal/internal/ports"
)

// backend is the storage surface the admin commands operate on.
type backend interface {
	Migrate(ctx context.Context) error
	MigrationStatus(ctx context.Context) ([]migrate.Migration, error)
	CreateWithProfile(ctx context.Context, in ports.NewAccountInput) (domainauth.Account, error)
	SetRole(ctx context.Context, email string, role domainauth.Role) error
	List(ctx context.Context, limit, offset int) ([]data.AccountSummary, error)
	// DatabaseHost is the configured Postgres host.
	DatabaseHost() string
}

// openBackend connects a backend; the returned func releases it.
type openBackend func(ctx context.Context) (backend, func(), error)

type dbBackend struct {
	*data.AccountRepo
	db   *sql.DB
	host string
}

func (b dbBackend) DatabaseHost() string { return b.host }

func (b dbBackend) Migrate(ctx context.Context) error {
	return data.RunMigrations(ctx, b.db)
}

func (b dbBackend) MigrationStatus(ctx context.Context) ([]migrate.Migration, error) {
	return data.MigrationStatus(ctx, b.db)
}

func openDatabaseBackend(logger *slog.Logger) openBackend {
	return func(ctx context.Context) (backend, func(), error) {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			return nil, nil, err
		}
		db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
			DBConfig: cfg.Postgres,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		release := func() {
			if cerr := db.Close(); cerr != nil {
				logger.Warn("db close failed", "error", cerr)
			}
		}
		return dbBackend{AccountRepo: data.NewAccountRepo(db), db: db, host: cfg.Postgres.Host}, release, nil
	}
}
