// Package framer splits a chunked IRC byte stream into complete
// CRLF-terminated lines.
package framer

import (
	"bytes"
	"unicode/utf8"
)

// Terminator ends every IRC line.
const Terminator = "\r\n"

// MaxLineLength bounds the bytes buffered for one line: 8191 bytes of
// IRCv3 message tags plus the classic 512-byte message.
const MaxLineLength = 8191 + 512

var crlf = []byte(Terminator)

// Line is one complete protocol line, terminator included.  When the
// bytes are not valid UTF-8, Valid is false, Text is empty and Raw
// holds the undecoded bytes so the caller can still log them.
//
// A Truncated line is the head of a line that outgrew the limit before
// its terminator arrived; it has no terminator and the rest of that
// line is discarded.
type Line struct {
	Text      string
	Raw       []byte
	Valid     bool
	Truncated bool
}

// String returns the decoded text, or the raw bytes when decoding
// failed.
func (l Line) String() string {
	if l.Valid {
		return l.Text
	}
	return string(l.Raw)
}

// Empty reports whether the line carries nothing but its terminator.
func (l Line) Empty() bool {
	if l.Valid {
		return l.Text == Terminator
	}
	return bytes.Equal(l.Raw, crlf)
}

// Framer accumulates bytes until they form complete lines.  A Framer
// belongs to exactly one connection; it is not safe for concurrent use.
type Framer struct {
	buf  []byte
	max  int
	skip bool // discarding the tail of a truncated line
}

// New returns an empty Framer limited to MaxLineLength.
func New() *Framer {
	return NewWithLimit(MaxLineLength)
}

// NewWithLimit returns an empty Framer that buffers at most limit
// bytes of an unterminated line.  limit <= 0 means no limit.
func NewWithLimit(limit int) *Framer {
	return &Framer{max: limit}
}

// Feed appends b to the pending bytes and returns every line completed
// by it, in stream order.  Bytes after the last terminator stay
// buffered for the next call, up to the limit.
func (f *Framer) Feed(b []byte) []Line {
	f.buf = append(f.buf, b...)

	var lines []Line
	for {
		i := bytes.Index(f.buf, crlf)
		if i < 0 {
			break
		}
		end := i + len(crlf)
		if f.skip {
			f.skip = false
		} else {
			lines = append(lines, decode(f.buf[:end]))
		}
		f.buf = f.buf[end:]
	}

	if f.max > 0 && len(f.buf) > f.max {
		if !f.skip {
			head := decode(f.buf[:f.max])
			head.Truncated = true
			lines = append(lines, head)
			f.skip = true
		}
		// Keep a trailing CR: it may be the first half of the terminator.
		if f.buf[len(f.buf)-1] == '\r' {
			f.buf = append(f.buf[:0], '\r')
		} else {
			f.buf = f.buf[:0]
		}
	}

	// Compact so a long-lived connection does not pin old backing
	// arrays.
	if len(f.buf) == 0 {
		f.buf = nil
	} else if cap(f.buf) > 2*len(f.buf)+4096 {
		f.buf = append([]byte(nil), f.buf...)
	}
	return lines
}

// Pending returns the number of buffered bytes not yet forming a line.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset drops any buffered partial line.
func (f *Framer) Reset() {
	f.buf = nil
	f.skip = false
}

func decode(b []byte) Line {
	if utf8.Valid(b) {
		return Line{Text: string(b), Valid: true}
	}
	raw := make([]byte, len(b))
	copy(raw, b)
	return Line{Raw: raw}
}
