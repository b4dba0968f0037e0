package audit

import (
	"context"
	"time"

	"github.com/grantorhq/grantor/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// NewEvent builds an event stamped with the current time and the request
// id from the context, if one is set.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now(),
		EventType: eventType,
		Status:    status,
	}
	if requestID, ok := ctx.Value(contextkeys.RequestIDKey).(string); ok {
		event.RequestID = requestID
	}
	return event
}

// NopLogger discards all events. Useful for tests and for hosts that wire
// auditing elsewhere.
type NopLogger struct{}

// Log discards the event.
func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }

// Close is a no-op.
func (NopLogger) Close() error { return nil }
