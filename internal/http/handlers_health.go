package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	healthResponse     = `{"status":"ok"}`
	readinessTimeout   = 2 * time.Second
	statusReady        = "ok"
	statusDependencyKO = "unavailable"
)

// HealthChecker is a dependency probed by the readiness endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// Health implements HealthChecker.
func (f HealthCheckFunc) Health(ctx context.Context) error { return f(ctx) }

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	// Nothing more to do if the client connection is gone.
	_, _ = io.WriteString(w, healthResponse)
}

// readyHandler probes every dependency and answers 503 when any is down.
func readyHandler(checks map[string]HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, c := range checks {
			if err := c.Health(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
				results[name] = statusDependencyKO
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = statusReady
		}
		WriteJSON(w, status, map[string]any{"checks": results})
	}
}
