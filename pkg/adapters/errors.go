package adapters

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited marks an upstream rate-limit response (HTTP 429).
// Match it with errors.Is.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError is returned when the upstream answers 429.
type RateLimitError struct {
	// RetryAfter is the server supplied wait, zero if absent.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
	}
	return "rate limited"
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// TransientError is any other failed attempt: transport errors, non-2xx
// responses and undecodable bodies.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream status %d: %v", e.StatusCode, e.Err)
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }
