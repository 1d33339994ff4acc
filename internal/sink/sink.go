// Package sink decides what happens to the lines a session forwards.
// Each sink is a session.Handler: Raw relays lines unchanged, Console
// renders chat for a human, and Exec pipes lines into a child process.
package sink

import (
	"fmt"
	"io"
	"strings"

	"rawtwitch/internal/framer"
)

// text returns the line without its terminator.  Undecodable lines are
// quoted so control bytes never reach the terminal raw.
func text(line framer.Line) string {
	if !line.Valid {
		return fmt.Sprintf("%q", strings.TrimSuffix(string(line.Raw), framer.Terminator))
	}
	return strings.TrimSuffix(line.Text, framer.Terminator)
}

// Raw writes every line as received, one per output line.
type Raw struct {
	Out io.Writer
}

// HandleLine writes the line followed by a newline.
func (r *Raw) HandleLine(line framer.Line) {
	fmt.Fprintln(r.Out, text(line))
}
