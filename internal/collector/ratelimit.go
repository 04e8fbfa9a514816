package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// ErrRequestBudgetReached is returned once a limiter has admitted its
// per-run request allowance.
var ErrRequestBudgetReached = errors.New("request budget reached")

// RateLimiter spaces out direct requests to one retailer and optionally caps
// the number of requests a single run may make.
type RateLimiter struct {
	limiter     *rate.Limiter
	count       atomic.Int64
	maxRequests int64
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithMaxRequests caps the number of admitted requests. Zero means no cap.
func WithMaxRequests(n int64) RateLimiterOption {
	return func(r *RateLimiter) {
		r.maxRequests = n
	}
}

// NewRateLimiter creates a token bucket limiter with the given per-second
// rate and burst size.
func NewRateLimiter(perSecond float64, burst int, opts ...RateLimiterOption) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	r := &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wait blocks until the next request is allowed, or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.maxRequests > 0 && r.count.Load() >= r.maxRequests {
		return fmt.Errorf("%w (%d/%d)", ErrRequestBudgetReached, r.count.Load(), r.maxRequests)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	r.count.Add(1)
	return nil
}

// Count returns the number of admitted requests.
func (r *RateLimiter) Count() int64 {
	return r.count.Load()
}

// Remaining returns the admitted requests left before the cap, or -1 when
// the limiter is uncapped.
func (r *RateLimiter) Remaining() int64 {
	if r.maxRequests == 0 {
		return -1
	}
	remaining := r.maxRequests - r.count.Load()
	if remaining < 0 {
		return 0
	}
	return remaining
}
