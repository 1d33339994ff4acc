// Package metrics provides lightweight, lock-free counters for tracking
// the traffic of a chat session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one session.
type Collector struct {
	commandsSent    atomic.Int64
	commandsDropped atomic.Int64
	commandsFailed  atomic.Int64
	linesReceived   atomic.Int64
	invalidLines    atomic.Int64
	pingsAnswered   atomic.Int64
	connectAttempts atomic.Int64
	bytesIn         atomic.Int64
	bytesOut        atomic.Int64
	errorsTotal     atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastPing     time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Outbound commands ────────────────────────────────────────────────

// CommandSent records a command written in full, n bytes long.
func (c *Collector) CommandSent(n int) {
	if c == nil {
		return
	}
	c.commandsSent.Add(1)
	c.bytesOut.Add(int64(n))
}

// CommandDropped records a command refused by the rate limiter.
func (c *Collector) CommandDropped() {
	if c == nil {
		return
	}
	c.commandsDropped.Add(1)
}

// CommandFailed records a command the transport could not write.
func (c *Collector) CommandFailed() {
	if c == nil {
		return
	}
	c.commandsFailed.Add(1)
}

// CommandsSent returns the number of commands written.
func (c *Collector) CommandsSent() int64 {
	if c == nil {
		return 0
	}
	return c.commandsSent.Load()
}

// CommandsDropped returns the number of rate-limited commands.
func (c *Collector) CommandsDropped() int64 {
	if c == nil {
		return 0
	}
	return c.commandsDropped.Load()
}

// CommandsFailed returns the number of failed writes.
func (c *Collector) CommandsFailed() int64 {
	if c == nil {
		return 0
	}
	return c.commandsFailed.Load()
}

// ── Inbound traffic ──────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int) {
	if c == nil {
		return
	}
	c.bytesIn.Add(int64(n))
}

// LineReceived records one framed line.  valid is false when the
// bytes were not well-formed UTF-8 or the line was cut at the limit.
func (c *Collector) LineReceived(valid bool) {
	if c == nil {
		return
	}
	c.linesReceived.Add(1)
	if !valid {
		c.invalidLines.Add(1)
	}
}

// PingAnswered records a keepalive reply.
func (c *Collector) PingAnswered() {
	if c == nil {
		return
	}
	c.pingsAnswered.Add(1)
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// LinesReceived returns the number of framed lines.
func (c *Collector) LinesReceived() int64 {
	if c == nil {
		return 0
	}
	return c.linesReceived.Load()
}

// PingsAnswered returns the number of keepalive replies sent.
func (c *Collector) PingsAnswered() int64 {
	if c == nil {
		return 0
	}
	return c.pingsAnswered.Load()
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Connection ───────────────────────────────────────────────────────

// ConnectAttempt records one dial attempt.
func (c *Collector) ConnectAttempt() {
	if c == nil {
		return
	}
	c.connectAttempts.Add(1)
}

// ConnectAttempts returns the number of dial attempts.
func (c *Collector) ConnectAttempts() int64 {
	if c == nil {
		return 0
	}
	return c.connectAttempts.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	ConnectAttempts  int64  `json:"connect_attempts"`
	CommandsSent     int64  `json:"commands_sent"`
	CommandsDropped  int64  `json:"commands_dropped"`
	CommandsFailed   int64  `json:"commands_failed"`
	LinesReceived    int64  `json:"lines_received"`
	InvalidLines     int64  `json:"invalid_lines"`
	PingsAnswered    int64  `json:"pings_answered"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastPing         string `json:"last_ping,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:          time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectAttempts: c.connectAttempts.Load(),
		CommandsSent:    c.commandsSent.Load(),
		CommandsDropped: c.commandsDropped.Load(),
		CommandsFailed:  c.commandsFailed.Load(),
		LinesReceived:   c.linesReceived.Load(),
		InvalidLines:    c.invalidLines.Load(),
		PingsAnswered:   c.pingsAnswered.Load(),
		BytesIn:         c.bytesIn.Load(),
		BytesOut:        c.bytesOut.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
	}
	if !c.lastPing.IsZero() {
		s.LastPing = c.lastPing.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
