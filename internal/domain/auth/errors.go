package auth

import "errors"

// ErrorKind separates locally rejected input from provider rejections.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindProvider   ErrorKind = "provider"
)

// Sentinel causes surfaced through AuthError.
var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrWeakPassword       = errors.New("password does not meet strength requirements")
	ErrNoSession          = errors.New("no active session")
)

// AuthError is returned by login, sign-up and federated sign-in.
// Message is safe to show to the user.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind) + " error"
}

func (e *AuthError) Unwrap() error { return e.Cause }

// ValidationError builds a KindValidation AuthError.
func ValidationError(message string, cause error) *AuthError {
	return &AuthError{Kind: KindValidation, Message: message, Cause: cause}
}

// ProviderError builds a KindProvider AuthError using the cause's message as the user-facing text.
func ProviderError(cause error) *AuthError {
	msg := "authentication failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &AuthError{Kind: KindProvider, Message: msg, Cause: cause}
}

// IsValidation reports whether err is a validation AuthError.
func IsValidation(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == KindValidation
}

// IsProvider reports whether err is a provider AuthError.
func IsProvider(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == KindProvider
}
