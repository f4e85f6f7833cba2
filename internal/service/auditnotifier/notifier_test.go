package auditnotifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/target/grant-portal/internal/observability/notify"
)

func TestServiceNotifyAudit(t *testing.T) {
	ctx := context.Background()

	var received []notify.AuditEvent
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(ctx context.Context, event notify.AuditEvent) error {
					received = append(received, event)
					return nil
				}),
			},
		},
	})

	svc.NotifyAudit(ctx, notify.AuditEvent{
		Action: notify.ActionAccessDenied,
		UserID: "u-1",
	})

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Severity != notify.SeverityInfo {
		t.Fatalf("expected severity to default to info, got %s", received[0].Severity)
	}
	if received[0].OccurredAt.IsZero() {
		t.Fatal("expected OccurredAt to be stamped")
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	if svc.Enabled() {
		t.Fatal("expected Enabled() to be false when no sinks registered")
	}
	var nilSvc *Service
	nilSvc.NotifyAudit(context.Background(), notify.AuditEvent{})
}

func TestServiceLogsErrors(t *testing.T) {
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "fail",
				Sink: notify.SinkFunc(func(ctx context.Context, event notify.AuditEvent) error {
					return errors.New("boom")
				}),
			},
		},
	})

	svc.NotifyAudit(context.Background(), notify.AuditEvent{Action: notify.ActionSignUp})
}

func TestServiceSkipsActionsOutsideAllowList(t *testing.T) {
	var called bool
	svc := NewService(Options{
		Actions: []string{notify.ActionAccessDenied},
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(ctx context.Context, event notify.AuditEvent) error {
					called = true
					return nil
				}),
			},
		},
	})

	svc.NotifyAudit(context.Background(), notify.AuditEvent{Action: notify.ActionSignUp})

	if called {
		t.Fatal("expected sink not to be invoked for filtered action")
	}
}

func TestServiceNotifyAuditAsyncSurvivesCanceledContext(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(ctx context.Context, event notify.AuditEvent) error {
					defer wg.Done()
					return ctx.Err()
				}),
			},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.NotifyAuditAsync(ctx, notify.AuditEvent{Action: notify.ActionLogoutFailed}, time.Second)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async delivery did not run")
	}
}
