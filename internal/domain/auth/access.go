package auth

import "time"

// Outcome is the terminal state of a route guard check.
type Outcome string

const (
	OutcomeChecking        Outcome = "checking"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeAuthorized      Outcome = "authorized"
	OutcomeDenied          Outcome = "denied"
)

// AccessDecision is computed per guarded request and never persisted.
type AccessDecision struct {
	IsChecking      bool
	IsAuthenticated bool
	HasAccess       bool
	Outcome         Outcome
}

// EvaluateAccess decides whether a guarded view may render.
// ready is false while the session store is still initializing. A session
// past its expiry at now is treated as absent.
func EvaluateAccess(snap Snapshot, ready bool, allowed RoleSet, now time.Time) AccessDecision {
	if !ready {
		return AccessDecision{IsChecking: true, Outcome: OutcomeChecking}
	}
	if !snap.IsAuthenticated || snap.Session == nil || snap.User == nil || snap.Session.Expired(now) {
		return AccessDecision{Outcome: OutcomeUnauthenticated}
	}
	if !allowed.Allows(snap.User.Role) {
		return AccessDecision{IsAuthenticated: true, Outcome: OutcomeDenied}
	}
	return AccessDecision{IsAuthenticated: true, HasAccess: true, Outcome: OutcomeAuthorized}
}
