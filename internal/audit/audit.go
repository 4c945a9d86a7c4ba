// Package audit records configuration lifecycle events and MCP tool calls as
// newline-delimited JSON.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ErrNilWriter is returned by Logger.Log when the logger was constructed
// with a nil writer.
var ErrNilWriter = errors.New("audit logger: writer is nil")

// Result values shared by callers.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Entry captures a single audited event.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Params    map[string]any `json:"params"`
	Result    string         `json:"result"`
	Duration  time.Duration  `json:"duration_ns"`
}

// Logger writes Entry records as newline-delimited JSON to an io.Writer. It
// is safe for concurrent use.
type Logger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLogger returns a Logger that writes to w. If w is nil the returned
// logger is also nil.
func NewLogger(w io.Writer) *Logger {
	if w == nil {
		return nil
	}
	return &Logger{w: w}
}

// OpenFile opens path for appending and returns a Logger writing to it along
// with the file, which the caller must close.
func OpenFile(path string) (*Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log %q: %w", path, err)
	}
	return NewLogger(f), f, nil
}

// Log serialises entry as a single JSON line.
func (l *Logger) Log(entry Entry) error {
	if l == nil || l.w == nil {
		return ErrNilWriter
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	_, err = l.w.Write(data)
	l.mu.Unlock()

	return err
}

// Record logs event with a duration measured from start. A nil Logger is a
// no-op, and write failures are dropped.
func (l *Logger) Record(event string, params map[string]any, result string, start time.Time) {
	if l == nil {
		return
	}
	_ = l.Log(Entry{
		Timestamp: start,
		Event:     event,
		Params:    params,
		Result:    result,
		Duration:  time.Since(start),
	})
}

// ResultOf returns ResultSuccess for a nil error and "error: <msg>" otherwise.
func ResultOf(err error) string {
	if err == nil {
		return ResultSuccess
	}
	return ResultError + ": " + err.Error()
}
