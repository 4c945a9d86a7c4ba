package system

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jamesprial/ward/internal/audit"
)

type fakeMonitor struct {
	usage *Usage
	err   error
}

func (f *fakeMonitor) Usage(context.Context) (*Usage, error) { return f.usage, f.err }

func (f *fakeMonitor) Info(context.Context) (*Info, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Info{Machine: MachineInfo{OperatingSystem: "debian 12"}}, nil
}

func (f *fakeMonitor) Uptime(context.Context) (*Uptime, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := SplitUptime(90061)
	return &u, nil
}

type gate bool

func (g gate) IsConfigured() bool { return bool(g) }

func text(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if r == nil || len(r.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Content[0] is %T, want mcp.TextContent", r.Content[0])
	}
	return tc.Text
}

func Test_SystemTools_Names(t *testing.T) {
	regs := SystemTools(&fakeMonitor{}, gate(true), nil)
	want := []string{"ward_usage", "ward_info", "ward_uptime"}
	if len(regs) != len(want) {
		t.Fatalf("got %d tools, want %d", len(regs), len(want))
	}
	for i, r := range regs {
		if r.Tool.Name != want[i] {
			t.Errorf("tool %d = %q, want %q", i, r.Tool.Name, want[i])
		}
		if r.Tool.Description == "" {
			t.Errorf("tool %q has no description", r.Tool.Name)
		}
	}
}

func Test_SystemTools_Handlers(t *testing.T) {
	tests := []struct {
		name     string
		tool     int
		gate     gate
		mon      *fakeMonitor
		validate func(t *testing.T, text string)
	}{
		{
			name: "usage when unconfigured",
			tool: 0,
			gate: false,
			mon:  &fakeMonitor{usage: &Usage{Processor: 1}},
			validate: func(t *testing.T, text string) {
				t.Helper()
				if text != "error: application is not configured" {
					t.Errorf("text = %q", text)
				}
			},
		},
		{
			name: "usage when configured",
			tool: 0,
			gate: true,
			mon:  &fakeMonitor{usage: &Usage{Processor: 12, RAM: 34, Storage: 56}},
			validate: func(t *testing.T, text string) {
				t.Helper()
				var u Usage
				if err := json.Unmarshal([]byte(text), &u); err != nil {
					t.Fatalf("invalid JSON: %v", err)
				}
				if u != (Usage{Processor: 12, RAM: 34, Storage: 56}) {
					t.Errorf("usage = %+v", u)
				}
			},
		},
		{
			name: "info error",
			tool: 1,
			gate: true,
			mon:  &fakeMonitor{err: errors.New("no host")},
			validate: func(t *testing.T, text string) {
				t.Helper()
				if text != "error: no host" {
					t.Errorf("text = %q", text)
				}
			},
		},
		{
			name: "uptime",
			tool: 2,
			gate: true,
			mon:  &fakeMonitor{},
			validate: func(t *testing.T, text string) {
				t.Helper()
				if !strings.Contains(text, `"days": "01"`) || !strings.Contains(text, `"seconds": "01"`) {
					t.Errorf("text = %q", text)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			regs := SystemTools(tt.mon, tt.gate, audit.NewLogger(&buf))
			result, err := regs[tt.tool].Handler(context.Background(), mcp.CallToolRequest{})
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			tt.validate(t, text(t, result))
			if !strings.Contains(buf.String(), regs[tt.tool].Tool.Name) {
				t.Errorf("call not audited: %q", buf.String())
			}
		})
	}
}
