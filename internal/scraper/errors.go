package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureKind classifies a scrape failure for the retry policy.
type FailureKind int

const (
	// Transient failures (timeouts, 5xx, connection resets) are retried
	// with the same session after a backoff.
	Transient FailureKind = iota
	// Blocked means the site rejected the session (429, 403, captcha
	// interstitial); retried only with fresh session state.
	Blocked
	// Fatal failures (bad configuration, cancelled context, unparseable
	// payload shape) are not retried.
	Fatal
)

func (k FailureKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Blocked:
		return "blocked"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ScrapeError carries the failure classification alongside the cause.
type ScrapeError struct {
	Kind FailureKind
	Err  error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("%s scrape failure: %v", e.Kind, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

func failf(kind FailureKind, format string, args ...any) error {
	return &ScrapeError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// statusFailure maps an unexpected HTTP status to a classified error.
func statusFailure(status int, url string) error {
	switch {
	case status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return failf(Blocked, "%s returned status %d", url, status)
	case status >= 500:
		return failf(Transient, "%s returned status %d", url, status)
	default:
		return failf(Fatal, "%s returned status %d", url, status)
	}
}

// Classify extracts the failure kind from an error chain. Unclassified
// network errors count as transient; everything else is fatal.
func Classify(err error) FailureKind {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.Canceled) {
		return Fatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	return Fatal
}
