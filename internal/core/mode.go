// Package core is the orchestration layer.  It composes a dialer, a
// rate limiter, a line sink and the session controller into a runnable
// mode, and provides a builder that assembles one from a Config.
//
// Architecture layers (bottom → top):
//
//	transport / framer / ratelimit  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of rawtwitch.  Each mode owns
// its full lifecycle from connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
