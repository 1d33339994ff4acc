package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestCollector_Commands(t *testing.T) {
	c := New()

	c.CommandSent(len("NICK bot\r\n"))
	c.CommandSent(len("JOIN #chan\r\n"))
	c.CommandDropped()
	c.CommandFailed()

	if c.CommandsSent() != 2 {
		t.Errorf("sent = %d, want 2", c.CommandsSent())
	}
	if c.TotalBytesOut() != 22 {
		t.Errorf("bytes out = %d, want 22", c.TotalBytesOut())
	}
	if c.CommandsDropped() != 1 {
		t.Errorf("dropped = %d, want 1", c.CommandsDropped())
	}
	if c.CommandsFailed() != 1 {
		t.Errorf("failed = %d, want 1", c.CommandsFailed())
	}
}

func TestCollector_Inbound(t *testing.T) {
	c := New()

	c.BytesReceived(1024)
	c.BytesReceived(100)
	c.LineReceived(true)
	c.LineReceived(false)
	c.PingAnswered()

	if c.TotalBytesIn() != 1124 {
		t.Errorf("bytes in = %d, want 1124", c.TotalBytesIn())
	}
	if c.LinesReceived() != 2 {
		t.Errorf("lines = %d, want 2", c.LinesReceived())
	}
	if c.PingsAnswered() != 1 {
		t.Errorf("pings = %d, want 1", c.PingsAnswered())
	}
	snap := c.Snapshot()
	if snap.InvalidLines != 1 {
		t.Errorf("invalid = %d, want 1", snap.InvalidLines)
	}
	if snap.LastPing == "" {
		t.Error("expected non-empty last ping timestamp")
	}
}

func TestCollector_ConnectAttempts(t *testing.T) {
	c := New()
	for i := 0; i < 3; i++ {
		c.ConnectAttempt()
	}
	if c.ConnectAttempts() != 3 {
		t.Errorf("attempts = %d, want 3", c.ConnectAttempts())
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	if got := c.Snapshot().LastErrorMessage; got != "second error" {
		t.Errorf("last error = %q", got)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.CommandSent(1)
				c.LineReceived(true)
			}
		}()
	}
	wg.Wait()

	if c.CommandsSent() != 800 || c.LinesReceived() != 800 {
		t.Errorf("sent=%d lines=%d, want 800 each", c.CommandsSent(), c.LinesReceived())
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.CommandSent(42)
	c.PingAnswered()

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.CommandsSent != 1 {
		t.Errorf("JSON commands sent = %d", snap.CommandsSent)
	}
	if snap.BytesOut != 42 {
		t.Errorf("JSON bytes out = %d", snap.BytesOut)
	}
	if snap.PingsAnswered != 1 {
		t.Errorf("JSON pings = %d", snap.PingsAnswered)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.CommandSent(10)
	c.CommandDropped()
	c.CommandFailed()
	c.BytesReceived(100)
	c.LineReceived(false)
	c.PingAnswered()
	c.ConnectAttempt()
	c.RecordError("test")

	if c.CommandsSent() != 0 || c.TotalBytesIn() != 0 || c.ErrorCount() != 0 {
		t.Error("nil collector should return 0")
	}

	snap := c.Snapshot()
	if snap.CommandsSent != 0 {
		t.Error("nil snapshot should be zero")
	}

	if j := c.JSON(); j == "" {
		t.Error("nil JSON should return valid JSON")
	}
}
