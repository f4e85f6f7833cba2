package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrInvalidRole is returned when a write names a role outside the closed set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrSubjectRequired is returned when a federated upsert has no subject.
	ErrSubjectRequired = errors.New("federated subject is required")
	// ErrEmailRequired is returned when an account is created without an email.
	ErrEmailRequired = errors.New("email is required")
)
