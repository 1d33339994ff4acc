package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket is a stricter alternative to FixedWindow: it holds at
// most Rate tokens and refills at Rate/Window, so no two consecutive
// windows can together exceed Rate plus the refill in between.
type TokenBucket struct {
	limiter *rate.Limiter
	now     Clock
}

// NewTokenBucket returns a token bucket that starts full.
func NewTokenBucket(n int, window time.Duration, clock Clock) *TokenBucket {
	if n <= 0 {
		n = DefaultRate
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = time.Now
	}
	// rate.Every(0) is rate.Inf, which ignores the burst entirely.
	every := max(window/time.Duration(n), time.Nanosecond)
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Every(every), n),
		now:     clock,
	}
}

// Allow reports whether a token is available at the clock's current
// time and consumes it.
func (b *TokenBucket) Allow() bool {
	return b.limiter.AllowN(b.now(), 1)
}
