// Package diag emits line-oriented diagnostics for transfer batches.
//
// Diagnostics are a side channel: a nil logger is a no-op and write errors
// are swallowed so logging can never block or fail a transfer.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger appends one line per resolution, skip, or failure decision.
type Logger struct {
	mu    sync.Mutex
	w     io.Writer
	clock func() time.Time
}

// New creates a logger over the given writer. A nil writer yields a no-op
// logger.
func New(w io.Writer) *Logger {
	if w == nil {
		return nil
	}
	return &Logger{w: w, clock: time.Now}
}

// OpenFile creates a logger appending to the file at path. The returned
// close function flushes nothing (lines are written eagerly) but releases
// the file handle.
func OpenFile(path string) (*Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open diagnostics log: %w", err)
	}
	return New(f), f.Close, nil
}

// Logf appends one formatted line stamped with the batch run id.
func (l *Logger) Logf(runID, format string, args ...any) {
	if l == nil || l.w == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	timestamp := l.clock().UTC().Format(time.RFC3339)
	// Write errors are deliberately ignored; diagnostics never fail a batch.
	fmt.Fprintf(l.w, "%s run=%s %s\n", timestamp, runID, fmt.Sprintf(format, args...))
}
