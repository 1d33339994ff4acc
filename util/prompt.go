package util

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNoTerminal is returned by PromptSecret when stdin is not a TTY.
var ErrNoTerminal = errors.New("stdin is not a terminal")

// SecretPrompter reads a secret after printing label.  Components take
// one so tests and non-interactive callers can replace PromptSecret.
type SecretPrompter func(label string) ([]byte, error)

// PromptSecret prints label to stderr and reads a line from the
// terminal without echo.
func PromptSecret(label string) ([]byte, error) {
	return promptFrom(os.Stdin, os.Stderr, label)
}

func promptFrom(in *os.File, out io.Writer, label string) ([]byte, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNoTerminal
	}
	fmt.Fprint(out, label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	return secret, nil
}

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
