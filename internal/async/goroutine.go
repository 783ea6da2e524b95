// Package async spawns the engine's background goroutines with panic
// containment: jobs started by the HTTP layer, post-restart resumes, and
// per-guideline heartbeats.
package async

import (
	"runtime/debug"

	"guardrail/internal/logging"
)

// Go runs fn on a new goroutine named for logs. A panicking heartbeat or job
// must never take the server down with it.
func Go(logger logging.Logger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover logs a panic and swallows it. Deferred directly by goroutines not
// started through Go.
func Recover(logger logging.Logger, name string) {
	if rec := recover(); rec != nil {
		logging.OrNop(logger).Error("panic in %s: %v\n%s", name, rec, debug.Stack())
	}
}
