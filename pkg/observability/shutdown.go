package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a cleanup step run during graceful shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager drives graceful shutdown: the HTTP server stops
// accepting new checks first, then the registered cleanups (audit
// logger flush, database close) run in parallel under one deadline.
type ShutdownManager struct {
	logger   *Logger
	server   *http.Server
	timeout  time.Duration
	mu       sync.Mutex
	cleanups []ShutdownFunc
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
	}
}

// RegisterShutdownFunc registers a cleanup step
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cleanups = append(sm.cleanups, fn)
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then shuts down.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.Infof("Received signal %s, starting graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if sm.server != nil {
		sm.logger.Info("Shutting down HTTP server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
	}

	sm.mu.Lock()
	cleanups := sm.cleanups
	sm.mu.Unlock()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		failed int
	)
	for i, fn := range cleanups {
		wg.Add(1)
		go func(index int, cleanup ShutdownFunc) {
			defer wg.Done()
			if err := cleanup(ctx); err != nil {
				sm.logger.WithError(err).Errorf("Shutdown step %d failed", index)
				errMu.Lock()
				failed++
				errMu.Unlock()
			}
		}(i, fn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("Shutdown timeout reached, forcing shutdown")
		return fmt.Errorf("shutdown timeout reached")
	}

	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d errors", failed)
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
