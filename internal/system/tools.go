package system

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jamesprial/ward/internal/audit"
	"github.com/jamesprial/ward/internal/settings"
	"github.com/jamesprial/ward/internal/tools"
)

// SystemTools returns the read-only MCP tools backed by mon. They report
// settings.ErrNotConfigured until gate reports the application configured.
func SystemTools(mon Monitor, gate tools.Gate, logger *audit.Logger) []tools.Registration {
	return []tools.Registration{
		{
			Tool: mcp.NewTool("ward_usage",
				mcp.WithDescription("Get current processor, RAM and storage utilisation as whole percentages."),
			),
			Handler: tools.ReadOnly("ward_usage", gate, settings.ErrNotConfigured, logger,
				func(ctx context.Context) (any, error) { return mon.Usage(ctx) }),
		},
		{
			Tool: mcp.NewTool("ward_info",
				mcp.WithDescription("Get processor, machine and storage details of the host."),
			),
			Handler: tools.ReadOnly("ward_info", gate, settings.ErrNotConfigured, logger,
				func(ctx context.Context) (any, error) { return mon.Info(ctx) }),
		},
		{
			Tool: mcp.NewTool("ward_uptime",
				mcp.WithDescription("Get the host uptime split into days, hours, minutes and seconds."),
			),
			Handler: tools.ReadOnly("ward_uptime", gate, settings.ErrNotConfigured, logger,
				func(ctx context.Context) (any, error) { return mon.Uptime(ctx) }),
		},
	}
}
