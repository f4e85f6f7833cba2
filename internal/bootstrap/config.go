package bootstrap

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/grant-portal/config"
)

// InitLogger installs a JSON logger at the given level as the slog default.
func InitLogger(level slog.Level) *slog.Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from the environment and an optional .env file.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureSessionSecret fills an empty JWT secret with random bytes in dev mode.
// Sessions signed with a generated secret do not survive a restart.
func EnsureSessionSecret(cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg.Auth.Session.JWTSecret != "" {
		return nil
	}
	if !cfg.IsDev {
		return errors.New("JWT_SECRET is required outside development")
	}
	buf := make([]byte, config.MinJWTSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate session secret: %w", err)
	}
	cfg.Auth.Session.JWTSecret = base64.RawURLEncoding.EncodeToString(buf)
	if logger != nil {
		logger.Warn("JWT_SECRET not set; using a generated secret for this process")
	}
	return nil
}
