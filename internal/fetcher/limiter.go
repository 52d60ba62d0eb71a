package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter is a per-host token bucket that speeds up by 20% after each
// success (capped at 2x the initial rate) and halves after a 429 (floored at
// a quarter of the initial rate).
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	min     rate.Limit
	max     rate.Limit
}

// NewAdaptiveLimiter starts a limiter at initial requests per second.
func NewAdaptiveLimiter(initial rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(initial, burst),
		current: initial,
		min:     initial / 4,
		max:     initial * 2,
	}
}

// Wait blocks until a request may be sent.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess nudges the rate up.
func (a *AdaptiveLimiter) OnSuccess() {
	a.setLimit(a.Limit() * 1.2)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	next := a.setLimit(a.Limit() * 0.5)
	zap.L().Warn("throttled by host, reducing request rate",
		zap.Float64("new_rate", float64(next)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) setLimit(l rate.Limit) rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	l = max(a.min, min(a.max, l))
	a.current = l
	a.limiter.SetLimit(l)
	return l
}

// DefaultLimiters returns conservative limiters for the marketplace hosts.
func DefaultLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		"www.autotrader.com": NewAdaptiveLimiter(2, 2),
		"www.autolist.com":   NewAdaptiveLimiter(4, 4),
		"www.cars.com":       NewAdaptiveLimiter(2, 2),
		"www.edmunds.com":    NewAdaptiveLimiter(4, 4),
	}
}
