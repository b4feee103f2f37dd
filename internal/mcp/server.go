package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/daylog/internal/event"
	"github.com/hpungsan/daylog/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"event", "report"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = buildRegistry()

func buildRegistry() map[string]toolEntry {
	reg := map[string]toolEntry{
		"report_generate": {
			def:     generateToolDef,
			handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGenerate },
		},
		"report_fetch": {
			def:     fetchToolDef,
			handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
		},
		"report_list": {
			def:     listToolDef,
			handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
		},
	}

	// One record tool per event type.
	for _, t := range event.AllTypes {
		typ := t
		reg[eventToolName(typ)] = toolEntry{
			def:     eventToolDef(typ),
			handler: func(h *Handlers) server.ToolHandlerFunc { return h.recordHandler(typ) },
		}
	}
	return reg
}

func eventToolName(t event.Type) string {
	return "event_" + string(t)
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "event_idle_start" → "event").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the daylog tools registered.
// Tools listed in DisabledTools or belonging to DisabledTypes are not
// registered.
func NewServer(env *ops.Env, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"daylog",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(env)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(env.Config.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range env.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(env *ops.Env, version string) error {
	return server.ServeStdio(NewServer(env, version))
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
