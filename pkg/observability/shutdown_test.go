package observability

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestNewShutdownManager_DefaultTimeout(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	sm := NewShutdownManager(logger, nil, 0)
	if sm.timeout != 30*time.Second {
		t.Errorf("Expected default 30s timeout, got %v", sm.timeout)
	}

	sm = NewShutdownManager(logger, nil, 5*time.Second)
	if sm.timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", sm.timeout)
	}
}

func TestShutdownManager_RegisterShutdownFunc(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, time.Second)

	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
	}
	if len(sm.cleanups) != 3 {
		t.Errorf("Expected 3 registered shutdown funcs, got %d", len(sm.cleanups))
	}
}
