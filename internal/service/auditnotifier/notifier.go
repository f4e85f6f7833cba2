package auditnotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/target/grant-portal/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the audit notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Actions limits delivery to the listed audit actions. Empty means all.
	Actions []string
}

// Service dispatches audit events to all registered sinks.
type Service struct {
	logger  *slog.Logger
	sinks   []SinkRegistration
	actions map[string]struct{}
}

// NewService constructs an audit notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "audit_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	var actions map[string]struct{}
	if len(opts.Actions) > 0 {
		actions = make(map[string]struct{}, len(opts.Actions))
		for _, a := range opts.Actions {
			actions[a] = struct{}{}
		}
	}

	return &Service{
		logger:  logger,
		sinks:   sinks,
		actions: actions,
	}
}

// NotifyAudit fan-outs the audit event to all sinks and waits for delivery.
func (s *Service) NotifyAudit(ctx context.Context, event notify.AuditEvent) {
	if s == nil || len(s.sinks) == 0 {
		return
	}

	if s.actions != nil {
		if _, ok := s.actions[event.Action]; !ok {
			s.logger.DebugContext(ctx, "skipping audit event not in allow-list", "action", event.Action)
			return
		}
	}

	if event.Severity == "" {
		event.Severity = notify.SeverityInfo
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendAuditEvent(ctx, event); err != nil {
				s.logger.Error("audit notifier delivery error",
					"sink", entry.Name,
					"action", event.Action,
					"user_id", event.UserID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// NotifyAuditAsync delivers in the background, detached from ctx cancellation but bounded by timeout.
func (s *Service) NotifyAuditAsync(ctx context.Context, event notify.AuditEvent, timeout time.Duration) {
	if !s.Enabled() {
		return
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		s.NotifyAudit(sendCtx, event)
	}()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
