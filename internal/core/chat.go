package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	ncerr "rawtwitch/internal/errors"
	"rawtwitch/internal/metrics"
	"rawtwitch/internal/ratelimit"
	"rawtwitch/internal/retry"
	"rawtwitch/internal/session"
	"rawtwitch/internal/transport"
	"rawtwitch/util"
)

// lifecycle is implemented by sinks that own a resource, such as a
// child process, for the duration of the session.
type lifecycle interface {
	Start(ctx context.Context) error
	Close() error
}

// ChatMode connects to the chat gateway and runs one session.
type ChatMode struct {
	Dialer  transport.Dialer
	Address string
	Session session.Config
	Limiter ratelimit.Limiter
	Sink    session.Handler
	Backoff *retry.Backoff // nil → a single attempt
	Metrics *metrics.Collector
	Logger  *util.Logger

	// Outcome holds the session's terminal status once Run returns.
	Outcome session.Outcome
}

// Run starts the sink, connects and drives the session until it ends.
// Timeouts, peer closes and cancellation are not errors.
func (m *ChatMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	if lc, ok := m.Sink.(lifecycle); ok {
		if err := lc.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := lc.Close(); err != nil {
				m.Logger.Warn("%v", err)
			}
		}()
	}

	ctrl := session.New(m.Session, m.connect, m.Limiter, m.Sink, m.Logger)
	ctrl.Metrics = m.Metrics

	out, err := ctrl.Run(ctx)
	m.Outcome = out
	if err != nil {
		return fmt.Errorf("session %s: %s: %w", out.SessionID[:8], out.Reason, err)
	}
	return nil
}

// connect dials the gateway, retrying per Backoff.  SSH authentication
// and host-key failures are not retried.
func (m *ChatMode) connect(ctx context.Context) (session.Conn, error) {
	b := retry.Attempts(1)
	if m.Backoff != nil {
		cp := *m.Backoff
		b = &cp
	}
	if b.OnRetry == nil {
		b.OnRetry = func(attempt int, err error, wait time.Duration) {
			m.Logger.Warn("connect attempt %d failed: %v (retrying in %s)", attempt, err, wait.Truncate(time.Millisecond))
		}
	}

	var conn *transport.Conn
	err := b.Do(ctx, func(attempt int) error {
		m.Metrics.ConnectAttempt()
		m.Logger.Verbose("connecting to %s (attempt %d)", m.Address, attempt)

		c, err := transport.Connect(ctx, m.Dialer, m.Address, m.Session.IdleTimeout)
		if err != nil {
			var se *ncerr.SSHError
			if errors.As(err, &se) && (se.Op == "auth" || se.Op == "hostkey") {
				return retry.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.Logger.Verbose("connected to %s", conn.Addr())
	return conn, nil
}
