// Package retry repeats the initial dial to the chat gateway with
// exponentially growing pauses.  Protocol commands are never retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
	defaultMultiplier   = 2.0
)

// permanent marks a dial failure that another attempt cannot fix, such
// as a rejected SSH login.
type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it at once.  Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Backoff describes how often and how patiently to dial.  Zero fields
// take the defaults: 1s first pause, doubling, capped at 30s.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxAttempts counts every try including the first; 0 keeps going
	// until the context ends.
	MaxAttempts int
	// Jitter spreads each pause by up to a quarter either way.
	Jitter bool
	// OnRetry is told about each failed attempt that will be retried
	// and the pause before the next one.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Attempts returns a jittered Backoff that tries at most n times.
// n below 1 means a single try.
func Attempts(n int) *Backoff {
	return &Backoff{MaxAttempts: max(n, 1), Jitter: true}
}

// Do calls dial until it succeeds, returns a Permanent error, runs out
// of attempts or ctx ends.  attempt starts at 1.  With a single attempt
// the dial error is returned as is.
func (b *Backoff) Do(ctx context.Context, dial func(attempt int) error) error {
	pause := b.InitialDelay
	if pause <= 0 {
		pause = defaultInitialDelay
	}

	for attempt := 1; ; attempt++ {
		err := dial(attempt)
		if err == nil {
			return nil
		}
		var p *permanent
		if errors.As(err, &p) {
			return p.err
		}
		if b.MaxAttempts == 1 {
			return err
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := b.spread(pause)
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
		pause = b.grow(pause)
	}
}

func (b *Backoff) grow(d time.Duration) time.Duration {
	m := b.Multiplier
	if m <= 0 {
		m = defaultMultiplier
	}
	limit := b.MaxDelay
	if limit <= 0 {
		limit = defaultMaxDelay
	}
	return min(time.Duration(float64(d)*m), limit)
}

func (b *Backoff) spread(d time.Duration) time.Duration {
	if !b.Jitter {
		return d
	}
	quarter := int64(d) / 4
	if quarter <= 0 {
		return d
	}
	return d - time.Duration(quarter) + time.Duration(rand.Int63n(2*quarter+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
