package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles provider API calls to the configured request rate.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter from a provider's rate configuration.
// A zero burst defaults to one full minute of requests.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	burst := config.BurstSize
	if burst == 0 {
		burst = config.RequestsPerMinute
	}
	perSecond := rate.Limit(float64(config.RequestsPerMinute) / 60.0)
	return &RateLimiter{
		limiter: rate.NewLimiter(perSecond, burst),
	}
}

// Wait blocks until a request slot is available or the context ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// TryAcquire claims a slot without blocking.
func (r *RateLimiter) TryAcquire() bool {
	return r.limiter.Allow()
}
