package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers a panic in a background goroutine and logs it
// with the stack trace instead of crashing the server. Call in a defer.
func RecoverPanic(logger *Logger, operation string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("operation", operation).
			WithField("stack", string(debug.Stack())).
			Error("Panic recovered")
	}
}
