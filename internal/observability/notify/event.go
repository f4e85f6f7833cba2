package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Audit actions emitted by the auth layer.
const (
	ActionAccessDenied  = "access_denied"
	ActionLogoutFailed  = "logout_failed"
	ActionSignUp        = "sign_up"
	ActionRoleChanged   = "role_changed"
	ActionFederatedDeny = "federated_login_failed"
)

// AuditEvent captures the canonical data we emit for security-relevant auth events.
type AuditEvent struct {
	Action     string
	UserID     string
	Email      string
	Role       string
	Path       string
	ClientID   string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming audit events.
type Sink interface {
	SendAuditEvent(ctx context.Context, event AuditEvent) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, event AuditEvent) error

// SendAuditEvent implements the Sink interface.
func (f SinkFunc) SendAuditEvent(ctx context.Context, event AuditEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}
