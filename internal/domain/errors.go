package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the outcomes every core operation can report. Handlers
// translate these to HTTP; nothing in the core retries on its own.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrGone            = errors.New("resource deleted or expired")
	ErrLocked          = errors.New("resource is locked")
	ErrTooManyRequests = errors.New("too many requests")
	ErrTimeout         = errors.New("operation timed out")
)

// ValidationError reports a caller input or business-rule violation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// Validation builds a ValidationError.
func Validation(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StoreError wraps an underlying store failure whose detail is preserved for
// logs but never surfaced to callers.
type StoreError struct {
	Detail string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("store error: %s", e.Detail)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a StoreError with context.
func Store(detail string, err error) error {
	return &StoreError{Detail: detail, Err: err}
}

// HTTPStatus maps a domain error to its HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGone):
		return http.StatusGone
	case errors.Is(err, ErrLocked):
		return http.StatusLocked
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case IsValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
