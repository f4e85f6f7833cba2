package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/observability/metrics"
	"github.com/target/grant-portal/internal/observability/notify"
	"github.com/target/grant-portal/internal/observability/statsd"
	"github.com/target/grant-portal/internal/ports"
)

// Auth actions used for metrics and notifications.
const (
	ActionLogin     = "login"
	ActionSignUp    = "signup"
	ActionLogout    = "logout"
	ActionFederated = "federated_login"
	ActionRefresh   = "refresh"
)

const auditDeliveryTimeout = 10 * time.Second

var errStoreClosed = errors.New("session store closed")

// ProfileSource resolves identities into profiles and owns the persisted profile slot.
type ProfileSource interface {
	Resolve(ctx context.Context, id domainauth.Identity) *domainauth.Profile
	ClearCache(ctx context.Context)
}

// AuditRecorder receives security-relevant auth events without blocking the caller.
type AuditRecorder interface {
	NotifyAuditAsync(ctx context.Context, event notify.AuditEvent, timeout time.Duration)
}

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	ClientID string
	Provider ports.IdentityProvider
	Profiles ProfileSource
	Notifier ports.Notifier // optional
	Audit    AuditRecorder  // optional
	Metrics  statsd.Sink    // optional
	Logger   *slog.Logger
	// Now is overridable for tests.
	Now func() time.Time
}

// SignUpInput groups parameters for SessionStore.SignUp. Role is the raw
// role name from the form; empty means the default role.
type SignUpInput struct {
	Email    string
	Password string
	Role     string
	FullName string
}

// SessionStore holds the current Session and Profile for one client.
// It is the only writer of either value. Lifecycle: NewSessionStore, Initialize, Close.
type SessionStore struct {
	clientID string
	provider ports.IdentityProvider
	profiles ProfileSource
	notifier ports.Notifier
	audit    AuditRecorder
	metrics  statsd.Sink
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	session *domainauth.Session
	profile *domainauth.Profile
	// seq increases on every auth event and logout; resolutions carry the value
	// current at enqueue time and are dropped when it has moved on.
	seq uint64

	initOnce sync.Once
	initErr  error
	ready    chan struct{}
	sub      ports.Subscription

	tasks     *taskQueue
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewSessionStore constructs a SessionStore and starts its task worker.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = ports.NotifierFunc(nil)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionStore{
		clientID: opts.ClientID,
		provider: opts.Provider,
		profiles: opts.Profiles,
		notifier: notifier,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "session_store", "client_id", opts.ClientID),
		now:      now,
		ready:    make(chan struct{}),
		tasks:    newTaskQueue(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		s.tasks.run(ctx)
	}()

	return s
}

// ClientID returns the client this store belongs to.
func (s *SessionStore) ClientID() string { return s.clientID }

// Initialize subscribes to provider state changes and then fetches the current
// session once. It runs exactly once; later calls return the first result.
// Ready is closed once every resolution queued during initialization has been applied,
// even when the fetch fails.
func (s *SessionStore) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.initialize(ctx)
	})
	return s.initErr
}

func (s *SessionStore) initialize(ctx context.Context) error {
	if s.ctx.Err() != nil {
		return errStoreClosed
	}

	s.mu.RLock()
	seqBefore := s.seq
	s.mu.RUnlock()

	// Subscribe first so an event racing the fetch below is never lost.
	sub := s.provider.OnStateChange(s.handleAuthEvent)
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "fetch current session failed", "error", err)
		err = fmt.Errorf("fetch current session: %w", err)
		sess = nil
	}

	s.mu.Lock()
	if s.seq == seqBefore {
		s.session = sess
		if sess != nil {
			s.enqueueResolveLocked(sess.Identity)
		}
	} else {
		s.logger.DebugContext(ctx, "auth event arrived during initial fetch, keeping event state")
	}
	s.mu.Unlock()

	s.tasks.push(func(context.Context) { close(s.ready) })
	return err
}

// handleAuthEvent is the provider subscription callback. It may run inside the
// provider's own call stack, so it only updates the session and queues work.
func (s *SessionStore) handleAuthEvent(ev domainauth.AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.logger.Debug("auth event", "kind", ev.Kind, "seq", s.seq)

	if ev.Kind == domainauth.EventSignedOut || ev.Session == nil {
		s.session = nil
		s.profile = nil
		s.tasks.push(s.profiles.ClearCache)
		return
	}

	sess := *ev.Session
	if s.profile != nil && s.profile.ID != sess.Identity.ID {
		// A different identity never inherits the previous profile.
		s.profile = nil
	}
	s.session = &sess
	s.enqueueResolveLocked(sess.Identity)
}

// enqueueResolveLocked queues a profile resolution tagged with the current seq.
// Callers must hold s.mu.
func (s *SessionStore) enqueueResolveLocked(id domainauth.Identity) {
	seq := s.seq
	s.tasks.push(func(ctx context.Context) {
		if !s.current(seq) {
			return
		}
		profile := s.profiles.Resolve(ctx, id)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.seq != seq {
			s.logger.DebugContext(ctx, "dropping stale profile resolution", "seq", seq, "current", s.seq)
			return
		}
		s.profile = profile
	})
}

func (s *SessionStore) current(seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq == seq
}

// Ready is closed once initialization has settled.
func (s *SessionStore) Ready() <-chan struct{} { return s.ready }

// WaitSettled blocks until initialization has settled and every resolution queued
// before the call has been applied.
func (s *SessionStore) WaitSettled(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errStoreClosed
	}

	barrier := make(chan struct{})
	s.tasks.push(func(context.Context) { close(barrier) })

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errStoreClosed
	}
}

// Snapshot returns the read-only view of the store. An expired session is
// still reported but does not count as authenticated.
func (s *SessionStore) Snapshot() domainauth.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domainauth.Snapshot{
		IsAuthenticated: s.session != nil && s.profile != nil && !s.session.Expired(s.now()),
	}
	if s.session != nil {
		sess := *s.session
		snap.Session = &sess
	}
	if s.profile != nil {
		p := *s.profile
		snap.User = &p
	}
	return snap
}

// Login signs in with email and password. The profile arrives through the event path.
func (s *SessionStore) Login(ctx context.Context, email, password string) error {
	start := time.Now()
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		err := domainauth.ValidationError("Email and password are required", domainauth.ErrMissingCredentials)
		s.finishAction(ctx, ActionLogin, start, err)
		return err
	}

	if err := s.provider.SignIn(ctx, email, password); err != nil {
		authErr := domainauth.ProviderError(err)
		s.finishAction(ctx, ActionLogin, start, authErr)
		return authErr
	}

	s.finishAction(ctx, ActionLogin, start, nil)
	return nil
}

// SignUp creates an account with role and name passed to the provider as metadata.
func (s *SessionStore) SignUp(ctx context.Context, in SignUpInput) error {
	start := time.Now()
	email := strings.TrimSpace(in.Email)
	if email == "" || strings.TrimSpace(in.Password) == "" {
		err := domainauth.ValidationError("Email and password are required", domainauth.ErrMissingCredentials)
		s.finishAction(ctx, ActionSignUp, start, err)
		return err
	}

	role := domainauth.DefaultRole
	if strings.TrimSpace(in.Role) != "" {
		parsed, err := domainauth.ParseRole(in.Role)
		if err != nil {
			authErr := domainauth.ValidationError("Please choose a valid role", err)
			s.finishAction(ctx, ActionSignUp, start, authErr)
			return authErr
		}
		role = parsed
	}

	meta := domainauth.IdentityMetadata{
		FullName: strings.TrimSpace(in.FullName),
		Role:     string(role),
	}
	if err := s.provider.SignUp(ctx, email, in.Password, meta); err != nil {
		authErr := domainauth.ProviderError(err)
		s.finishAction(ctx, ActionSignUp, start, authErr)
		return authErr
	}

	s.finishAction(ctx, ActionSignUp, start, nil)
	s.recordAudit(ctx, notify.AuditEvent{
		Action: notify.ActionSignUp,
		Email:  email,
		Role:   string(role),
	})
	return nil
}

// LoginFederated signs in an identity already verified by an external provider.
func (s *SessionStore) LoginFederated(ctx context.Context, id domainauth.FederatedIdentity) error {
	start := time.Now()
	if strings.TrimSpace(id.Subject) == "" || strings.TrimSpace(id.Email) == "" {
		err := domainauth.ValidationError("Federated identity is missing subject or email", domainauth.ErrMissingCredentials)
		s.finishAction(ctx, ActionFederated, start, err)
		return err
	}
	if err := s.provider.SignInWithIdentity(ctx, id); err != nil {
		authErr := domainauth.ProviderError(err)
		s.finishAction(ctx, ActionFederated, start, authErr)
		s.recordAudit(ctx, notify.AuditEvent{
			Action:   notify.ActionFederatedDeny,
			Email:    id.Email,
			Severity: notify.SeverityWarning,
			Error:    authErr.Error(),
		})
		return authErr
	}
	s.finishAction(ctx, ActionFederated, start, nil)
	return nil
}

// Refresh asks the provider to reissue the session token. A revoked session
// signs the client out through the event path.
func (s *SessionStore) Refresh(ctx context.Context) error {
	start := time.Now()
	_, err := s.provider.RefreshSession(ctx)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		s.logger.WarnContext(ctx, "session refresh failed", "error", err)
	}
	metrics.EmitAuthAction(s.metrics, metrics.AuthActionMetric{
		Action:   ActionRefresh,
		Result:   result,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return nil
}

// Logout signs out with the provider and then clears local state whatever the
// provider said. It never fails; the outcome is reported as a notification.
func (s *SessionStore) Logout(ctx context.Context) {
	start := time.Now()

	s.mu.RLock()
	var userID, email string
	if s.session != nil {
		userID, email = s.session.Identity.ID, s.session.Identity.Email
	}
	s.mu.RUnlock()

	err := s.provider.SignOut(ctx)

	s.mu.Lock()
	s.seq++
	s.session = nil
	s.profile = nil
	s.mu.Unlock()
	s.profiles.ClearCache(ctx)

	if err != nil {
		s.logger.WarnContext(ctx, "provider sign out failed, local state cleared", "error", err)
		s.recordAudit(ctx, notify.AuditEvent{
			Action:   notify.ActionLogoutFailed,
			UserID:   userID,
			Email:    email,
			Severity: notify.SeverityWarning,
			Error:    err.Error(),
		})
	}
	s.finishAction(ctx, ActionLogout, start, err)
}

// Close unsubscribes from the provider and stops the worker. It is idempotent.
func (s *SessionStore) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		s.cancel()
		<-s.done
	})
}

func (s *SessionStore) finishAction(ctx context.Context, action string, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitAuthAction(s.metrics, metrics.AuthActionMetric{
		Action:   action,
		Result:   result,
		Duration: time.Since(start),
		Err:      err,
	})
	s.notifier.Notify(ctx, actionNotification(action, err))
}

func (s *SessionStore) recordAudit(ctx context.Context, ev notify.AuditEvent) {
	if s.audit == nil {
		return
	}
	ev.ClientID = s.clientID
	s.audit.NotifyAuditAsync(ctx, ev, auditDeliveryTimeout)
}

func actionNotification(action string, err error) ports.Notification {
	if err != nil {
		return ports.Notification{
			Level:   ports.NotificationError,
			Title:   failureTitle(action),
			Message: err.Error(),
		}
	}
	switch action {
	case ActionSignUp:
		return ports.Notification{Level: ports.NotificationSuccess, Title: "Account created", Message: "Your account is ready."}
	case ActionLogout:
		return ports.Notification{Level: ports.NotificationSuccess, Title: "Signed out", Message: "You have been signed out."}
	default:
		return ports.Notification{Level: ports.NotificationSuccess, Title: "Signed in", Message: "Welcome back."}
	}
}

func failureTitle(action string) string {
	switch action {
	case ActionSignUp:
		return "Sign up failed"
	case ActionLogout:
		return "Sign out failed"
	default:
		return "Sign in failed"
	}
}
