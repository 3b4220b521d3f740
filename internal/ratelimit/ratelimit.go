// Package ratelimit provides a token-bucket limiter for pacing calls to
// external extraction services (the structure service and the LLM API).
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket rate limiter. It is safe for concurrent use
// because the underlying rate.Limiter is goroutine-safe for all operations.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing ratePerSecond sustained requests with the
// given burst. A non-positive rate yields an unlimited limiter, which keeps
// call sites unconditional.
func New(ratePerSecond float64, burst int) *Limiter {
	if ratePerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a request is allowed or the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed without waiting, consuming
// one token if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetRate updates the sustained rate while preserving the burst size.
func (l *Limiter) SetRate(ratePerSecond float64) {
	l.limiter.SetLimit(rate.Limit(ratePerSecond))
}
