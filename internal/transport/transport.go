// Package transport owns the byte stream to the chat gateway.  Dialers
// handle the "how" of reaching the server (plain TCP, TLS, or through an
// SSH bastion); Conn wraps the resulting stream with the idle-read
// timeout and reports reads as explicit results instead of raw errors.
package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ncerr "rawtwitch/internal/errors"
)

// Dialer opens outbound network connections.  Implementations include
// a plain TCP dialer, a TLS dialer layered on any other Dialer, and an
// SSH-tunnelled dialer that routes traffic through a bastion.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// Status classifies the outcome of a single Receive.
type Status int

const (
	// StatusData means bytes arrived.
	StatusData Status = iota
	// StatusTimeout means nothing arrived within the idle timeout.
	StatusTimeout
	// StatusClosed means the peer closed the stream, or Close was called.
	StatusClosed
	// StatusError is any other read failure.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusData:
		return "data"
	case StatusTimeout:
		return "timeout"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the outcome of Receive.  Data aliases the caller's buffer
// and is only valid until the next Receive.  Err is nil for StatusData.
type Result struct {
	Status Status
	Data   []byte
	Err    error
}

// Conn is an open connection to the chat gateway.
type Conn struct {
	conn net.Conn
	addr string
	idle time.Duration

	closeOnce sync.Once
	closeErr  error

	// watchdog is set once the stream has refused a read deadline, as
	// SSH direct-tcpip channels do.  The idle timeout is then enforced
	// by closing the stream, so a timeout ends the connection.
	watchdog bool
	expired  atomic.Bool
}

// NewConn wraps an established connection.  An idle of zero disables
// the read timeout.
func NewConn(c net.Conn, idle time.Duration) *Conn {
	addr := ""
	if ra := c.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Conn{conn: c, addr: addr, idle: idle}
}

// Connect dials address with d and wraps the result.  Failures are
// returned as *errors.NetworkError with Op "dial".
func Connect(ctx context.Context, d Dialer, address string, idle time.Duration) (*Conn, error) {
	c, err := d.Dial(ctx, "tcp", address)
	if err != nil {
		return nil, ncerr.Wrap("dial", address, err)
	}
	conn := NewConn(c, idle)
	conn.addr = address
	return conn, nil
}

// Addr returns the address the connection was opened to.
func (c *Conn) Addr() string { return c.addr }

// Send writes b in full.  Writing zero bytes counts as a failure since
// the peer has most likely gone away.  Failures are returned as
// *errors.NetworkError with Op "write".
func (c *Conn) Send(b []byte) (int, error) {
	n, err := c.conn.Write(b)
	if err != nil {
		return n, ncerr.Wrap("write", c.addr, err)
	}
	if n == 0 && len(b) > 0 {
		return 0, ncerr.Wrap("write", c.addr, ncerr.ErrZeroWrite)
	}
	return n, nil
}

// Receive reads up to len(buf) bytes, waiting at most the idle timeout.
func (c *Conn) Receive(buf []byte) Result {
	if c.idle > 0 && !c.watchdog {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
			if ncerr.IsBrokenConnection(err) {
				return c.classify(err)
			}
			c.watchdog = true
		}
	}
	if c.idle > 0 && c.watchdog {
		t := time.AfterFunc(c.idle, func() {
			c.expired.Store(true)
			c.Close() //nolint:errcheck
		})
		defer t.Stop()
	}

	n, err := c.conn.Read(buf)
	if n > 0 {
		// Any error is reported again by the next Read.
		return Result{Status: StatusData, Data: buf[:n]}
	}
	if err == nil {
		return Result{Status: StatusData, Data: buf[:0]}
	}
	return c.classify(err)
}

func (c *Conn) classify(err error) Result {
	return classifyRead(c.addr, err, c.expired.Load())
}

func classifyRead(addr string, err error, expired bool) Result {
	switch {
	case expired, ncerr.IsTimeout(err):
		return Result{Status: StatusTimeout, Err: &ncerr.NetworkError{Op: "read", Addr: addr, Err: ncerr.ErrTimeout}}
	case ncerr.IsBrokenConnection(err):
		return Result{Status: StatusClosed, Err: &ncerr.NetworkError{Op: "read", Addr: addr, Err: ncerr.ErrConnectionClosed}}
	default:
		return Result{Status: StatusError, Err: ncerr.Wrap("read", addr, err)}
	}
}

// Close releases the socket.  Only the first call closes; later calls
// return the first call's result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
