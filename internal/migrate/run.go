// Package migrate applies the portal's embedded SQL schema migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/target/grant-portal/internal/data/pgxutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration describes one embedded migration and whether it has been applied.
type Migration struct {
	Version   string
	AppliedAt *time.Time
}

// Applied reports whether the migration has run.
func (m Migration) Applied() bool { return m.AppliedAt != nil }

// Run applies every pending migration in version order. It is safe to call multiple times.
func Run(ctx context.Context, db *sql.DB) error {
	if err := ensureTable(ctx, db); err != nil {
		return err
	}

	files, err := migrationFiles()
	if err != nil {
		return err
	}

	logger := slog.Default().With("component", "migrations")
	for _, f := range files {
		if applyErr := applyMigration(ctx, db, logger, f); applyErr != nil {
			return applyErr
		}
	}
	return nil
}

// Status lists every embedded migration with its applied time, if any.
func Status(ctx context.Context, db *sql.DB) ([]Migration, error) {
	if err := ensureTable(ctx, db); err != nil {
		return nil, err
	}
	files, err := migrationFiles()
	if err != nil {
		return nil, err
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(files))
	for _, f := range files {
		m := Migration{Version: versionOf(f)}
		if at, ok := applied[m.Version]; ok {
			m.AppliedAt = &at
		}
		out = append(out, m)
	}
	return out, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}
	return nil
}

func migrationFiles() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func versionOf(file string) string { return strings.TrimSuffix(file, ".sql") }

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]time.Time, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			v  string
			at time.Time
		)
		if scanErr := rows.Scan(&v, &at); scanErr != nil {
			return nil, fmt.Errorf("scan migration row: %w", scanErr)
		}
		out[v] = at
	}
	return out, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, logger *slog.Logger, file string) error {
	version := versionOf(file)

	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check migration %s: %w", file, err)
	}
	if exists {
		return nil
	}

	sqlBytes, err := migrationsFS.ReadFile("migrations/" + file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	logger.InfoContext(ctx, "applying migration", "version", version)
	return pgxutil.WithSQLTx(ctx, db, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if _, execErr := tx.ExecContext(ctx, string(sqlBytes)); execErr != nil {
				return fmt.Errorf("exec migration %s: %w", file, execErr)
			}
			if _, insErr := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version) VALUES ($1)`, version,
			); insErr != nil {
				return fmt.Errorf("record migration %s: %w", file, insErr)
			}
			return nil
		},
	})
}
