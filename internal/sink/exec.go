package sink

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"rawtwitch/internal/framer"
	"rawtwitch/util"
)

// Exec feeds every line, one per newline, to a child process's stdin.
// Either Program (--exec) or Command (--command) must be set.  The child's
// stdout and stderr go to Stdout and Stderr.
type Exec struct {
	Program string // run directly
	Command string // run via the system shell
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *util.Logger

	cmd   *exec.Cmd
	stdin io.WriteCloser
	dead  bool
}

// Start launches the child.  It is killed when ctx is cancelled.
func (e *Exec) Start(ctx context.Context) error {
	switch {
	case e.Command != "":
		if runtime.GOOS == "windows" {
			e.cmd = exec.CommandContext(ctx, "cmd.exe", "/C", e.Command)
		} else {
			e.cmd = exec.CommandContext(ctx, "/bin/sh", "-c", e.Command)
		}
	case e.Program != "":
		e.cmd = exec.CommandContext(ctx, e.Program)
	default:
		return fmt.Errorf("no command specified for exec mode")
	}
	if e.Logger == nil {
		e.Logger = util.Discard()
	}

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("exec %q: %w", e.cmd.Path, err)
	}
	e.stdin = stdin
	e.cmd.Stdout = e.Stdout
	e.cmd.Stderr = e.Stderr

	e.Logger.Debug("exec: %s", e.cmd.String())
	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("exec %q: %w", e.cmd.Path, err)
	}
	return nil
}

// HandleLine writes the line to the child.  After the first write
// failure the child is considered gone and further lines are dropped.
func (e *Exec) HandleLine(line framer.Line) {
	if e.stdin == nil || e.dead {
		return
	}
	if _, err := io.WriteString(e.stdin, text(line)+"\n"); err != nil {
		e.dead = true
		e.Logger.Warn("exec: child stopped reading: %v", err)
	}
}

// Close closes the child's stdin and waits for it to exit.
func (e *Exec) Close() error {
	if e.cmd == nil {
		return nil
	}
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("exec %q: %w", e.cmd.Path, err)
	}
	return nil
}
