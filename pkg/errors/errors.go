package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
// Errors derived from one of the engine kinds (authorization, invariant,
// not found, precondition) keep a reference to that kind so callers can
// classify them with errors.Is.
type AppError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Internal   error     `json:"-"`
	Kind       *AppError `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches on code, or on the code of the kind this error was derived from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || e == nil || t == nil {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	return e.Kind != nil && e.Kind.Code == t.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a different message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Derive creates a more specific error of the same kind and status.
func (e *AppError) Derive(code, message string) *AppError {
	if e == nil {
		return nil
	}

	kind := e
	if e.Kind != nil {
		kind = e.Kind
	}

	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: e.StatusCode,
		Kind:       kind,
	}
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}

	// ErrAuthorizationDenied is returned when the actor's role does not
	// permit a membership transition.
	ErrAuthorizationDenied = &AppError{
		Code:       "AUTHORIZATION_DENIED",
		Message:    "You are not allowed to perform this action",
		StatusCode: http.StatusForbidden,
	}

	// ErrInvariantViolation is returned when a transition would break a
	// team invariant (single owner, no duplicate membership, ...).
	ErrInvariantViolation = &AppError{
		Code:       "INVARIANT_VIOLATION",
		Message:    "The requested change is not allowed in the current state",
		StatusCode: http.StatusConflict,
	}

	// ErrPreconditionFailed is returned when a guarded write observes state
	// that changed since it was read.
	ErrPreconditionFailed = &AppError{
		Code:       "PRECONDITION_FAILED",
		Message:    "The resource changed, reload and try again",
		StatusCode: http.StatusPreconditionFailed,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
