package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/config"
)

func Test_New_Cases(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantErr   bool
		wantLevel zerolog.Level
	}{
		{name: "defaults", cfg: config.LogConfig{}, wantLevel: zerolog.InfoLevel},
		{name: "debug json", cfg: config.LogConfig{Level: "debug", Format: "json"}, wantLevel: zerolog.DebugLevel},
		{name: "uppercase level", cfg: config.LogConfig{Level: "WARN", Format: "console"}, wantLevel: zerolog.WarnLevel},
		{name: "bad level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: config.LogConfig{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg, &bytes.Buffer{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if logger.GetLevel() != tt.wantLevel {
				t.Errorf("level = %s, want %s", logger.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func Test_New_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "settings").Msg("configuration loaded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["message"] != "configuration loaded" || entry["component"] != "settings" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry has no timestamp")
	}
}

func Test_New_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Format: "console"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Msg("listener serving")
	if !strings.Contains(buf.String(), "listener serving") {
		t.Errorf("output = %q", buf.String())
	}
	if json.Valid(buf.Bytes()) {
		t.Error("console format produced JSON")
	}
}
