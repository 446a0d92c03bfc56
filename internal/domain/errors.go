package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the app layer unwraps to one of these.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
)

// Error is a classified error with a short, user-facing message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	// ErrMissingCredential is returned when no bearer token accompanies a request.
	ErrMissingCredential = newError(ErrUnauthorized, "no token, authorization denied")
	// ErrInvalidCredential covers malformed, expired or wrongly signed tokens.
	ErrInvalidCredential = newError(ErrUnauthorized, "invalid token")
	// ErrInvalidLogin is returned for an unknown email or a wrong password.
	ErrInvalidLogin = newError(ErrUnauthorized, "invalid credentials")

	ErrAccessDenied     = newError(ErrForbidden, "access denied")
	ErrNotQuizOwner     = newError(ErrForbidden, "not authorized")
	ErrNotAttemptOwner  = newError(ErrForbidden, "attempt belongs to another user")
	ErrQuizNotPublished = newError(ErrForbidden, "quiz is not published")
	ErrResetNotVerified = newError(ErrForbidden, "otp verification required")
	ErrUserNotFound     = newError(ErrNotFound, "user not found")
	ErrQuizNotFound     = newError(ErrNotFound, "quiz not found")
	ErrAttemptNotFound  = newError(ErrNotFound, "attempt not found")
	ErrAlreadyAttempted = newError(ErrConflict, "already attempted this quiz")
	ErrAlreadySubmitted = newError(ErrConflict, "attempt already submitted")
	ErrEmailTaken       = newError(ErrConflict, "user already exists")
	ErrOTPNotRequested  = newError(ErrValidation, "otp expired or not requested")
	ErrOTPMismatch      = newError(ErrValidation, "invalid otp")

	// ErrOTPLocked is returned for the wrong guess that used up the code; a new one
	// has to be requested.
	ErrOTPLocked = newError(ErrValidation, "too many invalid otp attempts, request a new one")
)

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

// KindOf reports the kind an error belongs to, or nil for unclassified (internal) errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrUnauthorized, ErrForbidden, ErrNotFound, ErrValidation, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
