package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/spf13/cobra"

	"github.com/target/grant-portal/internal/devseed"
)

func newSeedDevCmd(app *adminApp, run backendRunner) *cobra.Command {
	var allowRemote bool
	cmd := &cobra.Command{
		Use:   "seed-dev",
		Short: "Create one demo account per role for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, b backend) error {
				if err := guardRemoteHost(app, b.DatabaseHost(), allowRemote, "create demo accounts"); err != nil {
					return err
				}
				res, err := devseed.Run(ctx, b, app.logger)
				for _, email := range res.Created {
					fmt.Fprintf(app.out, "created  %s\n", email)
				}
				for _, email := range res.Skipped {
					fmt.Fprintf(app.out, "exists   %s\n", email)
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(app.out, "password for new accounts: %s\n", devseed.DefaultPassword)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&allowRemote, "allow-remote", false, "permit seeding a non-local database after confirmation")
	return cmd
}

func guardRemoteHost(app *adminApp, host string, allow bool, action string) error {
	if !isLikelyRemoteHost(host) {
		return nil
	}
	if !allow {
		return fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			host,
		)
	}
	return requireRemoteHostConfirmation(app.out, app.in, action, host)
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return false
	}
	if strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func requireRemoteHostConfirmation(out io.Writer, in io.Reader, action, host string) error {
	if _, err := fmt.Fprintf(out,
		"\nWARNING: database host %q does not look like a local address.\nThis operation will %s.\nType %q to continue or press enter to abort: ",
		host, action, host,
	); err != nil {
		return fmt.Errorf("print remote host prompt: %w", err)
	}
	if in == nil {
		return errors.New("aborted by user")
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.New("aborted by user")
	}
	if strings.TrimSpace(resp) != host {
		return errors.New("remote safeguard check failed; aborted by user")
	}
	return nil
}
