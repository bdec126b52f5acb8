// Package errors defines the error taxonomy shared across the pipeline and
// API: sentinel errors for expected conditions, an AppError wrapper carrying
// an HTTP status, and the mapping used at the HTTP boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPostingExists marks an insert of an already-known posting id.
	// Expected steady-state noise under overlapping ingest runs, never fatal.
	ErrPostingExists = errors.New("posting already exists")
	// ErrCollectionMissing marks a vector index collection that has not been
	// created yet. Callers reload the handle once, then surface this.
	ErrCollectionMissing = errors.New("vector collection not initialized")
	ErrPostingNotFound   = errors.New("posting not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrInvalidCandidate  = errors.New("invalid scraped candidate")
	ErrInvalidInput      = errors.New("invalid input")
	// ErrStoreUnavailable marks connectivity-level failures of either store.
	// Retryable; all writes are idempotent so re-execution is safe.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInternal         = errors.New("internal error")
)

// AppError attaches an HTTP status and human-readable message to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Retryable reports whether the error is a connectivity-level failure worth
// re-attempting at the call site.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// HTTPStatusCode translates an error into the status code returned by the
// API layer. AppError carries its own code; bare sentinels fall through to
// the category mapping.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrPostingNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPostingExists), errors.Is(err, ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCandidate), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrCollectionMissing), errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
