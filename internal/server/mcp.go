package server

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/audit"
	"github.com/jamesprial/ward/internal/auth"
	"github.com/jamesprial/ward/internal/settings"
	"github.com/jamesprial/ward/internal/system"
	"github.com/jamesprial/ward/internal/tools"
)

// Status is the result of the ward_status tool.
type Status struct {
	Configured bool             `json:"configured"`
	BoundPort  int              `json:"boundPort"`
	Settings   *settings.Record `json:"settings,omitempty"`
	Version    string           `json:"version"`
}

// NewMCPHandler builds the bearer-protected MCP endpoint and returns it with
// the names of the registered tools. An empty token disables authentication.
func NewMCPHandler(svc *settings.Service, ports settings.PortSource, mon system.Monitor, auditLog *audit.Logger, token string, logger zerolog.Logger) (http.Handler, []string) {
	s := mcpserver.NewMCPServer(
		"ward",
		Version,
		mcpserver.WithToolCapabilities(false),
	)

	registrations := []tools.Registration{statusTool(svc, ports, auditLog)}
	registrations = append(registrations, system.SystemTools(mon, svc, auditLog)...)
	names := tools.RegisterAll(s, registrations)

	h := mcpserver.NewStreamableHTTPServer(s)
	return auth.NewAuthMiddleware(token, logger)(h), names
}

// statusTool answers whether setup has completed. It is available before
// setup so an operator can tell why the other tools refuse to run.
func statusTool(svc *settings.Service, ports settings.PortSource, auditLog *audit.Logger) tools.Registration {
	return tools.Registration{
		Tool: mcp.NewTool("ward_status",
			mcp.WithDescription("Report whether Ward is configured, the active settings and the bound port."),
		),
		Handler: tools.ReadOnly("ward_status", nil, nil, auditLog, func(context.Context) (any, error) {
			st := Status{Configured: svc.IsConfigured(), Version: Version}
			if ports != nil {
				st.BoundPort = ports.BoundPort()
			}
			if st.Configured {
				rec := svc.Snapshot()
				st.Settings = &rec
			}
			return st, nil
		}),
	}
}
