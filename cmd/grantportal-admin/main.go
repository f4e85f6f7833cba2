package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/target/grant-portal/internal/bootstrap"
)

func main() {
	logger := bootstrap.InitLogger(slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &adminApp{
		logger: logger,
		out:    os.Stdout,
		in:     os.Stdin,
		open:   openDatabaseBackend(logger),
	}
	if err := newRootCmd(app).ExecuteContext(ctx); err != nil {
		logger.ErrorContext(ctx, "command failed", "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}
