package httpx

import (
	"context"
	"errors"
	"net/http"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	apperrors "github.com/target/grant-portal/internal/errors"
)

// authFailure is how a failed auth action is answered: the status, a stable
// error code for JSON clients and a message safe to show on the form.
type authFailure struct {
	Status  int
	Code    string
	Message string
}

const msgProviderUnavailable = "We could not reach the sign-in service. Please try again."

// classifyAuthError maps session store and provider errors to a form response.
// Provider internals never reach the page.
func classifyAuthError(err error) authFailure {
	switch {
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		return authFailure{http.StatusUnauthorized, "invalid_credentials", "Invalid email or password."}
	case errors.Is(err, domainauth.ErrEmailTaken), apperrors.IsConflict(err):
		return authFailure{http.StatusConflict, "email_taken", "An account with this email already exists."}
	case errors.Is(err, domainauth.ErrWeakPassword):
		return authFailure{http.StatusBadRequest, "weak_password", authMessage(err)}
	case domainauth.IsValidation(err):
		return authFailure{http.StatusBadRequest, "validation", authMessage(err)}
	case apperrors.IsValidation(err):
		return authFailure{http.StatusBadRequest, "validation", appMessage(err)}
	case errors.Is(err, context.DeadlineExceeded), apperrors.IsTimeout(err):
		return authFailure{http.StatusGatewayTimeout, "timeout", "The sign-in service took too long. Please try again."}
	default:
		return authFailure{http.StatusServiceUnavailable, "provider_unavailable", msgProviderUnavailable}
	}
}

func authMessage(err error) string {
	var ae *domainauth.AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

func appMessage(err error) string {
	var ae *apperrors.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

// statusForAppError maps an AppError code to an HTTP status. Unknown errors are 500.
func statusForAppError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict, apperrors.ErrCodeForeignKey:
		return http.StatusConflict
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
