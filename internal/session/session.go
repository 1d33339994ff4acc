// Package session drives a single chat connection: it logs in,
// requests the Twitch capabilities, joins channels and then runs the
// receive loop, answering keep-alive pings and handing every other
// line to a Handler.
//
// All outbound commands go through a rate limiter and are sent
// strictly in order from one goroutine.  Run is the only exit path and
// always closes the connection exactly once.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ncerr "rawtwitch/internal/errors"
	"rawtwitch/internal/framer"
	"rawtwitch/internal/metrics"
	"rawtwitch/internal/ratelimit"
	"rawtwitch/internal/transport"
	"rawtwitch/util"
)

// DefaultCapabilities are requested when Config.Capabilities is empty.
var DefaultCapabilities = []string{ //nolint:gochecknoglobals
	"twitch.tv/membership",
	"twitch.tv/commands",
	"twitch.tv/tags",
}

const (
	defaultPingTarget  = "tmi.twitch.tv"
	defaultRecvBufSize = 4096
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = ncerr.New("session: controller already run")

// Config describes one session.  It is copied by New.
type Config struct {
	Username            string
	Credential          string // sent verbatim in PASS
	Channels            []string
	RequestCapabilities bool
	Capabilities        []string // nil → DefaultCapabilities
	IdleTimeout         time.Duration
	PingTarget          string // "" → tmi.twitch.tv
	RecvBufSize         int
}

// Handler receives every line the session does not consume itself.
type Handler interface {
	HandleLine(line framer.Line)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(line framer.Line)

// HandleLine calls f(line).
func (f HandlerFunc) HandleLine(line framer.Line) { f(line) }

// Conn is the part of transport.Conn the controller uses.
type Conn interface {
	Send(b []byte) (int, error)
	Receive(buf []byte) transport.Result
	Close() error
}

// ConnectFunc opens the connection to the chat gateway.
type ConnectFunc func(ctx context.Context) (Conn, error)

// Controller runs the session state machine.  Create one with New; a
// Controller runs at most once.
type Controller struct {
	cfg     Config
	connect ConnectFunc
	limiter ratelimit.Limiter
	handler Handler
	logger  *util.Logger
	id      string

	// Metrics is optional.
	Metrics *metrics.Collector
	// OnTransition, if set, is called synchronously on every state
	// change.
	OnTransition func(from, to State)

	mu      sync.Mutex
	state   State
	started bool

	ping string
	pong string
}

// New builds a Controller.  A nil limiter gets the default fixed
// window, a nil handler drops lines, and a nil logger discards output.
func New(cfg Config, connect ConnectFunc, limiter ratelimit.Limiter, h Handler, logger *util.Logger) *Controller {
	cfg.Channels = append([]string(nil), cfg.Channels...)
	if len(cfg.Capabilities) == 0 {
		cfg.Capabilities = DefaultCapabilities
	}
	cfg.Capabilities = append([]string(nil), cfg.Capabilities...)
	if cfg.PingTarget == "" {
		cfg.PingTarget = defaultPingTarget
	}
	if cfg.RecvBufSize <= 0 {
		cfg.RecvBufSize = defaultRecvBufSize
	}
	if limiter == nil {
		limiter = ratelimit.NewFixedWindow(ratelimit.DefaultRate, ratelimit.DefaultWindow, nil)
	}
	if h == nil {
		h = HandlerFunc(func(framer.Line) {})
	}
	if logger == nil {
		logger = util.Discard()
	}

	id := uuid.NewString()
	return &Controller{
		cfg:     cfg,
		connect: connect,
		limiter: limiter,
		handler: h,
		logger:  logger.WithPrefix("[" + id[:8] + "]"),
		id:      id,
		ping:    "PING :" + cfg.PingTarget + framer.Terminator,
		pong:    "PONG :" + cfg.PingTarget,
	}
}

// ID returns the session's unique identifier.
func (c *Controller) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	if from == to {
		return
	}
	c.logger.Debug("state %s → %s", from, to)
	if c.OnTransition != nil {
		c.OnTransition(from, to)
	}
}

// Run connects and drives the session until it ends.  The returned
// error is non-nil only for ReasonConnectFailed and ReasonError, and is
// the same as Outcome.Err.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return Outcome{SessionID: c.id, Reason: ReasonError, Err: ErrAlreadyRun}, ErrAlreadyRun
	}
	c.started = true
	c.mu.Unlock()

	conn, err := c.connect(ctx)
	if err != nil {
		c.transition(StateClosed)
		if ctx.Err() != nil {
			return c.finish(ReasonCancelled, nil)
		}
		c.Metrics.RecordError(err.Error())
		return c.finish(ReasonConnectFailed, err)
	}

	// Cancellation closes the connection so a blocked Receive returns
	// at once; the loop then reports ReasonCancelled.
	closeConn := sync.OnceValue(conn.Close)
	stop := context.AfterFunc(ctx, func() { closeConn() })
	defer func() {
		stop()
		if err := closeConn(); err != nil {
			c.logger.Debug("close: %v", err)
		}
	}()

	c.transition(StateAuthenticating)
	c.send(conn, "PASS "+c.cfg.Credential) //nolint:errcheck
	c.send(conn, "NICK "+c.cfg.Username)   //nolint:errcheck

	if c.cfg.RequestCapabilities {
		c.transition(StateCapabilityRequest)
		for _, name := range c.cfg.Capabilities {
			c.send(conn, "CAP REQ :"+name) //nolint:errcheck
		}
	}

	c.transition(StateJoining)
	for _, ch := range c.cfg.Channels {
		if err := c.send(conn, "JOIN #"+ch); err == nil {
			c.logger.Verbose("joining #%s", ch)
		}
	}

	c.transition(StateReceiving)
	reason, err := c.receive(ctx, conn)
	c.transition(StateClosed)
	if err != nil {
		c.Metrics.RecordError(err.Error())
	}
	return c.finish(reason, err)
}

func (c *Controller) finish(reason Reason, err error) (Outcome, error) {
	if err != nil {
		c.logger.Error("session ended: %s: %v", reason, err)
	} else {
		c.logger.Verbose("session ended: %s", reason)
	}
	return Outcome{SessionID: c.id, Reason: reason, Err: err}, err
}

// send gates cmd through the limiter and writes it with its
// terminator.  Denials and failures are logged and returned; the
// caller decides whether they matter.
func (c *Controller) send(conn Conn, cmd string) error {
	if !c.limiter.Allow() {
		c.Metrics.CommandDropped()
		c.logger.Warn("rate limit reached, dropped %s", redact(cmd))
		return ncerr.ErrRateLimited
	}
	n, err := conn.Send([]byte(cmd + framer.Terminator))
	if err != nil {
		c.Metrics.CommandFailed()
		c.logger.Warn("sending %s: %v", redact(cmd), err)
		return err
	}
	c.Metrics.CommandSent(n)
	c.logger.Debug("> %s", redact(cmd))
	return nil
}

// redact hides the credential of a PASS command.
func redact(cmd string) string {
	if strings.HasPrefix(cmd, "PASS ") {
		return "PASS ***"
	}
	return cmd
}

// receive runs the read loop until the connection ends.
func (c *Controller) receive(ctx context.Context, conn Conn) (Reason, error) {
	fr := framer.New()
	buf := make([]byte, c.cfg.RecvBufSize)

	for {
		if ctx.Err() != nil {
			return ReasonCancelled, nil
		}

		res := conn.Receive(buf)
		switch res.Status {
		case transport.StatusData:
			c.Metrics.BytesReceived(len(res.Data))
			for _, line := range fr.Feed(res.Data) {
				if err := c.dispatch(conn, line); ncerr.IsBrokenConnection(err) {
					if ctx.Err() != nil {
						return ReasonCancelled, nil
					}
					return ReasonConnectionClosed, nil
				}
			}
		case transport.StatusTimeout:
			if ctx.Err() != nil {
				return ReasonCancelled, nil
			}
			c.logger.Info("no data from server for %s, closing", c.cfg.IdleTimeout)
			return ReasonTimeout, nil
		case transport.StatusClosed:
			if ctx.Err() != nil {
				return ReasonCancelled, nil
			}
			c.logger.Info("server closed the connection")
			return ReasonConnectionClosed, nil
		default:
			if ctx.Err() != nil {
				return ReasonCancelled, nil
			}
			return ReasonError, res.Err
		}
	}
}

// dispatch handles one framed line.  Only a failed PONG returns an
// error.
func (c *Controller) dispatch(conn Conn, line framer.Line) error {
	c.Metrics.LineReceived(line.Valid && !line.Truncated)

	switch {
	case line.Truncated:
		c.logger.Warn("discarding a line longer than %d bytes", framer.MaxLineLength)
		return nil
	case line.Empty():
		c.logger.Debug("empty line")
		return nil
	case line.Valid && line.Text == c.ping:
		if err := c.send(conn, c.pong); err != nil {
			return err
		}
		c.Metrics.PingAnswered()
		c.logger.Debug("answered keep-alive ping")
		return nil
	}

	if !line.Valid {
		c.logger.Verbose("received %d bytes that are not valid UTF-8", len(line.Raw))
	}
	c.handler.HandleLine(line)
	return nil
}
