package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func Test_Logger_Log_Format_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	entry := Entry{
		Timestamp: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Event:     "setup_submit",
		Params:    map[string]any{"port": "4000", "theme": "dark"},
		Result:    ResultSuccess,
		Duration:  250 * time.Millisecond,
	}
	if err := logger.Log(entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := strings.TrimSpace(buf.String())
	var parsed map[string]any
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, output)
	}
	if parsed["event"] != "setup_submit" {
		t.Errorf("event = %v, want setup_submit", parsed["event"])
	}
	if parsed["result"] != ResultSuccess {
		t.Errorf("result = %v, want %q", parsed["result"], ResultSuccess)
	}
	if parsed["duration_ns"] != float64(250*time.Millisecond) {
		t.Errorf("duration_ns = %v, want %d", parsed["duration_ns"], 250*time.Millisecond)
	}
}

func Test_Logger_Log_MultipleEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	events := []string{"bootstrap", "restart", "ward_usage"}
	for _, ev := range events {
		if err := logger.Log(Entry{Timestamp: time.Now(), Event: ev}); err != nil {
			t.Fatalf("Log(%q) error: %v", ev, err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(events) {
		t.Fatalf("expected %d JSON lines, got %d", len(events), len(lines))
	}
	for i, line := range lines {
		var parsed Entry
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
			continue
		}
		if parsed.Event != events[i] {
			t.Errorf("line %d event = %q, want %q", i, parsed.Event, events[i])
		}
	}
}

func Test_Logger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Record("reload", nil, ResultSuccess, time.Now())
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Errorf("line %d is interleaved: %q", i, line)
		}
	}
}

func Test_Logger_Nil(t *testing.T) {
	if NewLogger(nil) != nil {
		t.Fatal("NewLogger(nil) should return nil")
	}

	var logger *Logger
	if err := logger.Log(Entry{Event: "x"}); !errors.Is(err, ErrNilWriter) {
		t.Errorf("Log() on nil logger error = %v, want ErrNilWriter", err)
	}
	// Record on a nil logger must not panic.
	logger.Record("x", nil, ResultSuccess, time.Now())
}

func Test_OpenFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	for i := 0; i < 2; i++ {
		logger, closer, err := OpenFile(path)
		if err != nil {
			t.Fatalf("OpenFile() error: %v", err)
		}
		logger.Record("bootstrap", map[string]any{"run": i}, ResultSuccess, time.Now())
		if err := closer.Close(); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("audit file has %d lines, want 2", n)
	}
}

func Test_OpenFile_MissingDirectory(t *testing.T) {
	_, _, err := OpenFile(filepath.Join(t.TempDir(), "missing", "audit.log"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func Test_ResultOf_Cases(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil error", err: nil, want: "success"},
		{name: "error", err: errors.New("boom"), want: "error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResultOf(tt.err); got != tt.want {
				t.Errorf("ResultOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
