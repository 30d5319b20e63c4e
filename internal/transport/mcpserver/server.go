// Package mcpserver exposes the record tools over the Model Context Protocol
// so external assistants can work with the same product store as the agents.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/Nasti98RS/swarm-db-api/internal/policy"
	"github.com/Nasti98RS/swarm-db-api/internal/tools"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// AgentID identifies MCP callers to the tool policy.
const AgentID = "mcp"

// RecordTool bridges one registry tool to MCP.
type RecordTool struct {
	def      tools.Definition
	registry *tools.Registry
	policy   *policy.Engine
	logger   *zap.Logger
}

// Definition returns the MCP tool definition, reusing the registry's schema.
func (t *RecordTool) Definition() mcp.Tool {
	schema, err := json.Marshal(t.def.Parameters)
	if err != nil {
		schema = []byte(`{"type":"object","properties":{}}`)
	}
	return mcp.NewToolWithRawSchema(t.def.Name, t.def.Description, schema)
}

// Handle runs the tool. Failures are reported as tool errors, not protocol
// errors, so the client can show them.
func (t *RecordTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if args == nil {
		args = map[string]any{}
	}

	if t.policy != nil {
		decision, reason, err := t.policy.Evaluate(ctx, policy.Input{
			ToolName: t.def.Name,
			AgentID:  AgentID,
			Args:     args,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("policy evaluation failed: %v", err)), nil
		}
		if decision == policy.DecisionBlock {
			return mcp.NewToolResultError("blocked by policy: " + reason), nil
		}
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	out, err := t.registry.Execute(ctx, t.def.Name, tools.Call{Args: raw})
	if err != nil {
		t.logger.Warn("mcp tool failed", zap.String("tool", t.def.Name), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", t.def.Name, err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

// Tools wraps the named registry tools, or every tool when names is empty.
func Tools(registry *tools.Registry, engine *policy.Engine, logger *zap.Logger, names ...string) ([]*RecordTool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var defs []tools.Definition
	if len(names) == 0 {
		defs = registry.Definitions()
	}
	for _, name := range names {
		def, ok := registry.Definition(name)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		defs = append(defs, def)
	}

	out := make([]*RecordTool, 0, len(defs))
	for _, def := range defs {
		out = append(out, &RecordTool{def: def, registry: registry, policy: engine, logger: logger})
	}
	return out, nil
}

// New creates the MCP server with the given tools registered.
func New(registry *tools.Registry, engine *policy.Engine, logger *zap.Logger, names ...string) (*server.MCPServer, error) {
	recordTools, err := Tools(registry, engine, logger, names...)
	if err != nil {
		return nil, err
	}

	s := server.NewMCPServer(
		"swarm-db",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Product catalogue tools backed by the swarm record store."),
	)
	for _, t := range recordTools {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s, nil
}
