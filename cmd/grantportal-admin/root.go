package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/grant-portal/internal/adapters/localidp"
	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

const defaultCommandTimeout = 5 * time.Minute

type adminApp struct {
	logger *slog.Logger
	out    io.Writer
	in     io.Reader
	open   openBackend
}

func newRootCmd(app *adminApp) *cobra.Command {
	var timeout time.Duration
	root := &cobra.Command{
		Use:           "grantportal-admin",
		Short:         "Maintenance commands for the grant portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", defaultCommandTimeout, "overall command timeout")

	withBackend := func(cmd *cobra.Command, f func(context.Context, backend) error) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		b, release, err := app.open(ctx)
		if err != nil {
			return err
		}
		defer release()
		return f(ctx, b)
	}

	root.AddCommand(
		newMigrateCmd(app, withBackend),
		newCreateAccountCmd(app, withBackend),
		newSetRoleCmd(app, withBackend),
		newListAccountsCmd(app, withBackend),
		newSeedDevCmd(app, withBackend),
	)
	return root
}

type backendRunner func(cmd *cobra.Command, f func(context.Context, backend) error) error

func newMigrateCmd(app *adminApp, run backendRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b backend) error {
				app.logger.InfoContext(ctx, "running database migrations")
				if err := b.Migrate(ctx); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				app.logger.InfoContext(ctx, "migrations completed successfully")
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether each is applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b backend) error {
				migrations, err := b.MigrationStatus(ctx)
				if err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				tw := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tAPPLIED AT")
				for _, m := range migrations {
					applied := "pending"
					if m.Applied() {
						applied = m.AppliedAt.UTC().Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\n", m.Version, applied)
				}
				return tw.Flush()
			})
		},
	})
	return cmd
}

type createAccountOptions struct {
	Email         string
	Password      string
	PasswordStdin bool
	Role          string
	Name          string
}

func newCreateAccountCmd(app *adminApp, run backendRunner) *cobra.Command {
	var opts createAccountOptions
	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Create a password account with its profile",
		Example: `  grantportal-admin create-account --email ada@uni.edu --name "Ada Lovelace" --role admin --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.PasswordStdin {
				pw, err := readPassword(app.in)
				if err != nil {
					return err
				}
				opts.Password = pw
			}
			in, err := opts.toInput()
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, b backend) error {
				acct, err := b.CreateWithProfile(ctx, in)
				if err != nil {
					return fmt.Errorf("create account: %w", err)
				}
				app.logger.InfoContext(ctx, "account created", "id", acct.ID, "email", acct.Email, "role", in.Role)
				_, err = fmt.Fprintf(app.out, "created %s (%s) with role %s\n", acct.Email, acct.ID, in.Role)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Email, "email", "", "account email (required)")
	f.StringVar(&opts.Password, "password", "", "initial password")
	f.BoolVar(&opts.PasswordStdin, "password-stdin", false, "read the password from stdin")
	f.StringVar(&opts.Role, "role", string(domainauth.RoleResearcher), "profile role")
	f.StringVar(&opts.Name, "name", "", "full name shown in the portal")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func (o createAccountOptions) toInput() (ports.NewAccountInput, error) {
	email := strings.ToLower(strings.TrimSpace(o.Email))
	if email == "" {
		return ports.NewAccountInput{}, errors.New("--email is required")
	}
	if o.Password == "" {
		return ports.NewAccountInput{}, errors.New("a password is required (--password or --password-stdin)")
	}
	if err := localidp.ValidatePasswordStrength(o.Password); err != nil {
		return ports.NewAccountInput{}, err
	}
	role, err := domainauth.ParseRole(o.Role)
	if err != nil {
		return ports.NewAccountInput{}, err
	}
	hash, err := localidp.HashPassword(o.Password)
	if err != nil {
		return ports.NewAccountInput{}, err
	}
	return ports.NewAccountInput{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(o.Name),
		Role:         role,
	}, nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newSetRoleCmd(app *adminApp, run backendRunner) *cobra.Command {
	var email, rawRole string
	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change the role of an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := domainauth.ParseRole(rawRole)
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, b backend) error {
				if err := b.SetRole(ctx, email, role); err != nil {
					if errors.Is(err, ports.ErrNotFound) {
						return fmt.Errorf("no account with email %q", email)
					}
					return fmt.Errorf("set role: %w", err)
				}
				app.logger.InfoContext(ctx, "role updated", "email", email, "role", role)
				_, err := fmt.Fprintf(app.out, "%s is now %s\n", email, role)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&rawRole, "role", "", "new role (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newListAccountsCmd(app *adminApp, run backendRunner) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list-accounts",
		Short: "List accounts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b backend) error {
				accounts, err := b.List(ctx, limit, offset)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tSIGN-IN\tCREATED")
				for _, a := range accounts {
					signIn := "password"
					if a.Federated {
						signIn = "institution"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						a.Email, a.FullName, a.Role, signIn, a.CreatedAt.UTC().Format("2006-01-02"))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}
