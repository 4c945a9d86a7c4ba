package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/settings"
	"github.com/jamesprial/ward/internal/setup"
)

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`

func Test_NewMCPHandler_ToolNames(t *testing.T) {
	f := newFixture(t, settings.InitialPort)
	_, names := NewMCPHandler(f.settings, fakePorts{port: 4000}, f.monitor, nil, "", zerolog.Nop())
	want := []string{"ward_status", "ward_usage", "ward_info", "ward_uptime"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("tools = %v, want %v", names, want)
	}
}

func Test_MCPEndpoint_Auth_Cases(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing token", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, settings.InitialPort)
			mcpHandler, _ := NewMCPHandler(f.settings, fakePorts{port: 4000}, f.monitor, nil, "secret", zerolog.Nop())
			h := NewRouter(Deps{
				Settings: f.settings,
				Setup:    setup.NewService(f.settings),
				Monitor:  f.monitor,
				MCP:      mcpHandler,
				Logger:   zerolog.Nop(),
			})

			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initializeBody))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusOK && !strings.Contains(rec.Body.String(), `"ward"`) {
				t.Errorf("initialize response does not name the server: %s", rec.Body.String())
			}
		})
	}
}

func Test_StatusTool_Cases(t *testing.T) {
	tests := []struct {
		name      string
		configure bool
		ports     settings.PortSource
		want      Status
	}{
		{
			name:  "unconfigured",
			ports: fakePorts{port: 4000},
			want:  Status{Configured: false, BoundPort: 4000, Version: Version},
		},
		{
			name: "no port source",
			want: Status{Configured: false, Version: Version},
		},
		{
			name:      "configured",
			configure: true,
			ports:     fakePorts{port: 4000},
			want:      Status{Configured: true, BoundPort: 4000, Version: Version},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, settings.InitialPort)
			if tt.configure {
				f.configure(t)
			}
			reg := statusTool(f.settings, tt.ports, nil)
			result, err := reg.Handler(context.Background(), mcp.CallToolRequest{})
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			tc, ok := result.Content[0].(mcp.TextContent)
			if !ok {
				t.Fatalf("Content[0] is %T, want mcp.TextContent", result.Content[0])
			}
			var got Status
			if err := json.Unmarshal([]byte(tc.Text), &got); err != nil {
				t.Fatalf("result is not JSON: %v\n%s", err, tc.Text)
			}
			if got.Configured != tt.want.Configured || got.BoundPort != tt.want.BoundPort || got.Version != tt.want.Version {
				t.Errorf("status = %+v, want %+v", got, tt.want)
			}
			if tt.configure {
				if got.Settings == nil || got.Settings.Theme != settings.ThemeDark {
					t.Errorf("settings = %+v, want dark theme", got.Settings)
				}
			} else if got.Settings != nil {
				t.Errorf("settings reported before setup: %+v", got.Settings)
			}
		})
	}
}
