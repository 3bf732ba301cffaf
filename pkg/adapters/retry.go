package adapters

import (
	"errors"
	"time"
)

// RetryPolicy bounds the fetch state machine:
//
//	Attempting(n) -> Success
//	              -> RateLimited   -> Attempting(n+1)
//	              -> TransientFail -> Attempting(n+1)
//	              -> ExhaustedFail (n+1 == MaxRetries)
type RetryPolicy struct {
	// MaxRetries is the total number of attempts, at least 1. Rate-limited
	// attempts count against it too, so a sustained 429 still ends the fetch.
	MaxRetries int
	// RateLimitBaseDelay is multiplied by 2^attempt after a 429.
	RateLimitBaseDelay time.Duration
	// RetryDelay is the fixed wait after any other failure.
	RetryDelay time.Duration
	// MaxDelay caps every computed delay.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used when an adapter leaves it unset.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:         3,
		RateLimitBaseDelay: 2 * time.Second,
		RetryDelay:         1 * time.Second,
		MaxDelay:           time.Minute,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxRetries < 1 {
		p.MaxRetries = d.MaxRetries
	}
	if p.RateLimitBaseDelay <= 0 {
		p.RateLimitBaseDelay = d.RateLimitBaseDelay
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = d.RetryDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	return p
}

// Delay returns the wait before the attempt following a failed attempt
// (0-indexed) that ended with err. It depends only on its arguments.
func (p RetryPolicy) Delay(attempt uint, err error) time.Duration {
	var d time.Duration
	if errors.Is(err, ErrRateLimited) {
		d = p.RateLimitBaseDelay
		for i := uint(0); i < attempt && d < p.MaxDelay; i++ {
			d *= 2
		}
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > d {
			d = rl.RetryAfter
		}
	} else {
		d = p.RetryDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
