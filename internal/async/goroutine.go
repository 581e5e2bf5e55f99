// Package async starts the engine's fire-and-forget goroutines: alert
// delivery, batch ingestion, reconcile nudges, the listener. A panicking task
// must not take the process down with it.
package async

import "runtime/debug"

// PanicLogger is the slice of the logging contract needed to report a
// recovered panic.
type PanicLogger interface {
	Error(format string, args ...any)
}

// Go runs fn on its own goroutine. A panic inside fn is logged with its stack
// and swallowed; name identifies the task in that log line. A nil logger
// still recovers, silently.
func Go(logger PanicLogger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.Error("background task %s panicked: %v\n%s", name, r, debug.Stack())
			}
		}()
		fn()
	}()
}
