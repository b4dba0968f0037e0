package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger appends audit events as JSON lines to a file, rotating by
// size. It backs the optional on-disk retention trail next to the
// database logger.
type FileLogger struct {
	mu       sync.Mutex
	dir      string
	file     *os.File
	size     int64
	rotate   bool
	maxSize  int64
	maxFiles int
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	BasePath string // Base directory for audit logs
	Rotate   bool   // Enable log rotation
	MaxSize  int64  // Max file size in bytes (default: 100MB)
	MaxFiles int    // Max number of rotated files to keep (default: 10)
}

// DefaultFileLoggerConfig returns default configuration
func DefaultFileLoggerConfig() FileLoggerConfig {
	return FileLoggerConfig{
		BasePath: "/var/log/grantor/audit",
		Rotate:   true,
		MaxSize:  100 * 1024 * 1024,
		MaxFiles: 10,
	}
}

// NewFileLogger creates a file-based audit logger rooted at
// config.BasePath, creating the directory if needed.
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	l := &FileLogger{
		dir:      config.BasePath,
		rotate:   config.Rotate,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}
	if l.maxSize <= 0 {
		l.maxSize = 100 * 1024 * 1024
	}
	if l.maxFiles <= 0 {
		l.maxFiles = 10
	}

	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) currentPath() string {
	return filepath.Join(l.dir, "audit.log")
}

// open opens the live log file for appending and records its size so
// rotation decisions don't need a stat per write.
func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}
	l.file = file
	l.size = info.Size()
	return nil
}

// Log appends the event as one JSON line, rotating first if the write
// would push the live file past the size limit.
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotate && l.size > 0 && l.size+int64(len(line)) > l.maxSize {
		if err := l.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := l.file.Write(line)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// rotateLocked moves the live file aside under a timestamped name,
// prunes rotations beyond the retention limit, and reopens.
func (l *FileLogger) rotateLocked() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	rotated := filepath.Join(l.dir, fmt.Sprintf("audit-%s.log", time.Now().Format("2006-01-02-15-04-05.000")))
	if err := os.Rename(l.currentPath(), rotated); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	// Timestamped names sort oldest first
	if old, err := filepath.Glob(filepath.Join(l.dir, "audit-*.log")); err == nil && len(old) > l.maxFiles {
		for _, f := range old[:len(old)-l.maxFiles] {
			if err := os.Remove(f); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old audit log %s: %v\n", f, err)
			}
		}
	}

	return l.open()
}

// Close closes the live log file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadLogs reads up to count events back from the live log file. A
// count of zero reads everything. Rotated files are not consulted.
func (l *FileLogger) ReadLogs(count int) ([]*Event, error) {
	file, err := os.Open(l.currentPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("failed to decode audit log entry: %w", err)
		}
		events = append(events, &event)
		if count > 0 && len(events) >= count {
			return events, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}
