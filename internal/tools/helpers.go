// Package tools provides shared helper utilities for MCP tool handlers.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jamesprial/ward/internal/audit"
)

// JSONResult marshals v to indented JSON and returns an mcp.CallToolResult.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error marshaling result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// ErrorResult returns an mcp.CallToolResult that describes an error condition.
func ErrorResult(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultText(fmt.Sprintf("error: %s", msg))
}

// LogAudit logs a tool invocation, silently ignoring a nil logger.
func LogAudit(logger *audit.Logger, toolName string, params map[string]any, result string, start time.Time) {
	logger.Record(toolName, params, result, start)
}

// Gate reports whether tools that read the dashboard may run.
type Gate interface {
	IsConfigured() bool
}

// Query is the body of a read-only tool: it returns the value to render.
type Query func(ctx context.Context) (any, error)

// ReadOnly builds a handler that runs q once gate reports the application
// configured, renders its value as JSON and audits the call. notConfigured
// is the error reported before that.
func ReadOnly(name string, gate Gate, notConfigured error, logger *audit.Logger, q Query) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		params := map[string]any{}

		if gate != nil && !gate.IsConfigured() {
			LogAudit(logger, name, params, audit.ResultOf(notConfigured), start)
			return ErrorResult(notConfigured.Error()), nil
		}

		v, err := q(ctx)
		if err != nil {
			LogAudit(logger, name, params, audit.ResultOf(err), start)
			return ErrorResult(err.Error()), nil
		}

		LogAudit(logger, name, params, "ok", start)
		return JSONResult(v), nil
	}
}
