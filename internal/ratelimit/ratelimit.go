// Package ratelimit gates outbound IRC commands against the server's
// command quota (by default 100 commands per 30 seconds).
//
// A denied command is dropped, never queued or retried: resending
// PASS/NICK blindly can get an account locked out.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultRate is the command budget per window for moderators.
	DefaultRate = 100
	// DefaultWindow is the quota window.
	DefaultWindow = 30 * time.Second
)

// Limiter decides whether one more command may be sent right now.
// Allow consumes budget when it returns true.
type Limiter interface {
	Allow() bool
}

// Clock returns the current time.  Tests inject a fake one.
type Clock func() time.Time

// FixedWindow is a fixed-window counter: at most Rate commands per
// Window, with the counter reset once more than Window has elapsed
// since the window opened.  Bursts of up to 2×Rate are possible across
// a window boundary.
//
// FixedWindow is safe for concurrent use.
type FixedWindow struct {
	rate   int
	window time.Duration
	now    Clock

	mu    sync.Mutex
	count int
	start time.Time
}

// NewFixedWindow returns a limiter allowing rate commands per window.
// Non-positive values fall back to the defaults; a nil clock uses
// time.Now.
func NewFixedWindow(rate int, window time.Duration, clock Clock) *FixedWindow {
	if rate <= 0 {
		rate = DefaultRate
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &FixedWindow{rate: rate, window: window, now: clock}
}

// Allow reports whether a command may be sent and, if so, counts it.
func (w *FixedWindow) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.start) > w.window {
		w.count = 0
		w.start = now
	}
	if w.count < w.rate {
		w.count++
		return true
	}
	return false
}

// Remaining returns how many commands the current window still allows.
// It does not open a new window.
func (w *FixedWindow) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.now().Sub(w.start) > w.window {
		return w.rate
	}
	return w.rate - w.count
}
