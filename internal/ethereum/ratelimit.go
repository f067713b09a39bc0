package ethereum

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket limiting outbound requests per second.
type RateLimiter struct {
	mu        sync.Mutex
	rate      float64 // tokens per second
	burst     float64
	tokens    float64
	lastCheck time.Time
	now       func() time.Time
}

// NewRateLimiter allows perSecond requests per second with a burst of one second's worth.
// A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64) *RateLimiter {
	burst := perSecond
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:   perSecond,
		burst:  burst,
		tokens: burst,
		now:    time.Now,
	}
}

// reserve takes a token and returns how long the caller must wait for it.
func (l *RateLimiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.lastCheck.IsZero() {
		l.tokens += now.Sub(l.lastCheck).Seconds() * l.rate
		if l.tokens > l.burst {
			l.tokens = l.burst
		}
	}
	l.lastCheck = now

	l.tokens--
	if l.tokens >= 0 {
		return 0
	}
	return time.Duration(-l.tokens / l.rate * float64(time.Second))
}

// Wait blocks until a request may proceed or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil || l.rate <= 0 {
		return ctx.Err()
	}
	d := l.reserve()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
