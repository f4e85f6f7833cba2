package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/target/grant-portal/internal/data/pgxutil"
	domainauth "github.com/target/grant-portal/internal/domain/auth"
	apperrors "github.com/target/grant-portal/internal/errors"
	"github.com/target/grant-portal/internal/ports"
)

var _ ports.AccountRepository = (*AccountRepo)(nil)

// AccountRepo stores local and federated accounts with their profile rows.
type AccountRepo struct {
	DB *sql.DB
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{DB: db}
}

type accountRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Subject      string    `db:"subject"`
	CreatedAt    time.Time `db:"created_at"`
	FullName     string    `db:"full_name"`
	Role         string    `db:"role"`
}

func (r accountRow) toDomain() domainauth.Account {
	return domainauth.Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Subject:      r.Subject,
		Metadata:     domainauth.IdentityMetadata{FullName: r.FullName, Role: r.Role},
		CreatedAt:    r.CreatedAt,
	}
}

const accountSelect = `
	SELECT a.id::text AS id, a.email, a.password_hash, COALESCE(a.subject, '') AS subject, a.created_at,
		COALESCE(p.full_name, '') AS full_name, COALESCE(p.role, '') AS role
	FROM accounts a
	LEFT JOIN profiles p ON p.id = a.id`

func (r *AccountRepo) getOne(ctx context.Context, where string, arg any) (domainauth.Account, error) {
	var row accountRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, accountSelect+" WHERE "+where, arg)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[accountRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return domainauth.Account{}, ports.ErrNotFound
	}
	if err != nil {
		return domainauth.Account{}, fmt.Errorf("get account: %w", apperrors.MapDBError(err))
	}
	return row.toDomain(), nil
}

// GetByEmail looks an account up by its lowercase email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (domainauth.Account, error) {
	return r.getOne(ctx, "a.email = $1", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID looks an account up by ID. A malformed ID is reported as not found.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (domainauth.Account, error) {
	return r.getOne(ctx, "a.id = $1", id)
}

// CreateWithProfile inserts the account and its profile row in one transaction.
func (r *AccountRepo) CreateWithProfile(ctx context.Context, in ports.NewAccountInput) (domainauth.Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return domainauth.Account{}, ErrEmailRequired
	}
	role := in.Role
	if !role.Valid() {
		role = domainauth.DefaultRole
	}

	acct := domainauth.Account{
		Email:        email,
		PasswordHash: in.PasswordHash,
		Metadata:     domainauth.IdentityMetadata{FullName: in.FullName, Role: string(role)},
	}
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO accounts (email, password_hash) VALUES ($1, $2) RETURNING id::text, created_at`,
			email, in.PasswordHash,
		).Scan(&acct.ID, &acct.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO profiles (id, full_name, email, role) VALUES ($1, $2, $3, $4)`,
			acct.ID, in.FullName, email, string(role),
		)
		return err
	}})
	if err != nil {
		if isUniqueViolation(err, "accounts_email_key") {
			return domainauth.Account{}, domainauth.ErrEmailTaken
		}
		return domainauth.Account{}, fmt.Errorf("create account: %w", apperrors.MapDBError(err))
	}
	return acct, nil
}

// UpsertFederated returns the account linked to the identity's subject, creating it
// when missing. A password account with the same email and no subject is linked
// rather than duplicated. The profile role follows the identity's mapped role.
func (r *AccountRepo) UpsertFederated(ctx context.Context, id domainauth.FederatedIdentity) (domainauth.Account, error) {
	if id.Subject == "" {
		return domainauth.Account{}, ErrSubjectRequired
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))

	var acctID string
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		found, err := linkFederated(ctx, tx, id.Subject, email)
		if err != nil {
			return err
		}
		acctID = found
		if acctID == "" {
			if err = tx.QueryRow(ctx,
				`INSERT INTO accounts (email, subject) VALUES ($1, $2) RETURNING id::text`,
				email, id.Subject,
			).Scan(&acctID); err != nil {
				return err
			}
		}

		role := ""
		if id.Role.Valid() {
			role = string(id.Role)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO profiles (id, full_name, email, role)
			VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'researcher'))
			ON CONFLICT (id) DO UPDATE SET
				full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), profiles.full_name),
				email = EXCLUDED.email,
				role = COALESCE(NULLIF($4, ''), profiles.role)`,
			acctID, id.FullName(), email, role,
		)
		return err
	}})
	if err != nil {
		if isUniqueViolation(err, "accounts_email_key") {
			return domainauth.Account{}, domainauth.ErrEmailTaken
		}
		return domainauth.Account{}, fmt.Errorf("upsert federated account: %w", apperrors.MapDBError(err))
	}
	return r.GetByID(ctx, acctID)
}

// linkFederated finds the account for subject, refreshing its email, or claims an
// unlinked account with the same email. It returns "" when neither exists.
func linkFederated(ctx context.Context, tx pgx.Tx, subject, email string) (string, error) {
	var id string
	err := tx.QueryRow(ctx,
		`UPDATE accounts SET email = COALESCE(NULLIF($2, ''), email) WHERE subject = $1 RETURNING id::text`,
		subject, email,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	if email == "" {
		return "", nil
	}

	err = tx.QueryRow(ctx,
		`UPDATE accounts SET subject = $1 WHERE email = $2 AND subject IS NULL RETURNING id::text`,
		subject, email,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// SetRole changes the profile role of the account with the given email.
func (r *AccountRepo) SetRole(ctx context.Context, email string, role domainauth.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE profiles p SET role = $2
		FROM accounts a
		WHERE a.id = p.id AND a.email = $1`,
		strings.ToLower(strings.TrimSpace(email)), string(role),
	)
	if err != nil {
		return fmt.Errorf("set role: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set role rows affected: %w", err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// AccountSummary is one row of the admin account listing.
type AccountSummary struct {
	ID        string          `db:"id"`
	Email     string          `db:"email"`
	FullName  string          `db:"full_name"`
	Role      domainauth.Role `db:"role"`
	Federated bool            `db:"federated"`
	CreatedAt time.Time       `db:"created_at"`
}

// List returns accounts ordered by creation time, newest first.
func (r *AccountRepo) List(ctx context.Context, limit, offset int) ([]AccountSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []AccountSummary
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT a.id::text AS id, a.email, COALESCE(p.full_name, '') AS full_name,
				COALESCE(p.role, '') AS role, a.subject IS NOT NULL AS federated, a.created_at
			FROM accounts a
			LEFT JOIN profiles p ON p.id = a.id
			ORDER BY a.created_at DESC, a.id
			LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[AccountSummary])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", apperrors.MapDBError(err))
	}
	// Accounts without a profile row list with the role they resolve to.
	for i := range out {
		out[i].Role = domainauth.RoleOrDefault(string(out[i].Role))
	}
	return out, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraint
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}
