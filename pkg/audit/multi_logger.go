package audit

import (
	"context"
	"fmt"
	"sync"
)

// MultiLogger fans events out to multiple audit loggers, typically a
// database logger for search plus a file logger for retention.
type MultiLogger struct {
	loggers []Logger
	async   bool

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// NewMultiLogger creates a multi-logger writing to all given destinations.
// Logging is asynchronous by default.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers, async: true}
}

// SetAsync sets whether logging should be asynchronous
func (m *MultiLogger) SetAsync(async bool) {
	m.async = async
}

// Log writes the event to every destination. In async mode the writes
// happen in the background and Log never fails; in sync mode the first
// destination error is returned, but every destination is still written.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	if len(m.loggers) == 0 {
		return nil
	}

	if !m.async {
		var firstErr error
		for _, l := range m.loggers {
			if err := l.Log(ctx, event); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, l := range m.loggers {
		m.wg.Add(1)
		go func(l Logger) {
			defer m.wg.Done()
			if err := l.Log(ctx, event); err != nil {
				m.mu.Lock()
				m.errs = append(m.errs, err)
				m.mu.Unlock()
			}
		}(l)
	}
	return nil
}

// Wait blocks until all pending async writes have finished.
func (m *MultiLogger) Wait() {
	m.wg.Wait()
}

// GetErrors drains and returns errors collected from async writes.
func (m *MultiLogger) GetErrors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	errs := m.errs
	m.errs = nil
	return errs
}

// Close waits for pending writes and closes all destinations.
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close audit destination: %w", err)
		}
	}
	return firstErr
}
