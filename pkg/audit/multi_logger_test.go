package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger captures events for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (r *recordingLogger) Log(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingLogger) Close() error { return nil }

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestMultiLogger_Sync(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}

	multi := NewMultiLogger(a, b)
	multi.SetAsync(false)

	event := NewEvent(context.Background(), EventTypeRoleCreate, EventStatusSuccess)
	require.NoError(t, multi.Log(context.Background(), event))

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestMultiLogger_SyncContinuesPastFailure(t *testing.T) {
	failing := &recordingLogger{err: errors.New("disk full")}
	healthy := &recordingLogger{}

	multi := NewMultiLogger(failing, healthy)
	multi.SetAsync(false)

	event := NewEvent(context.Background(), EventTypeRoleCreate, EventStatusSuccess)
	err := multi.Log(context.Background(), event)

	assert.Error(t, err)
	assert.Equal(t, 1, healthy.count(), "healthy logger should still receive the event")
}

func TestMultiLogger_Async(t *testing.T) {
	a := &recordingLogger{}
	failing := &recordingLogger{err: errors.New("unavailable")}

	multi := NewMultiLogger(a, failing)

	event := NewEvent(context.Background(), EventTypeAccessDenied, EventStatusDenied)
	require.NoError(t, multi.Log(context.Background(), event))
	multi.Wait()

	assert.Equal(t, 1, a.count())
	assert.Len(t, multi.GetErrors(), 1)
}

func TestMultiLogger_Empty(t *testing.T) {
	multi := NewMultiLogger()
	event := NewEvent(context.Background(), EventTypeRoleCreate, EventStatusSuccess)
	assert.NoError(t, multi.Log(context.Background(), event))
	assert.NoError(t, multi.Close())
}
