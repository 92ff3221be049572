package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"maps"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/tool"
)

const sessionArg = "session_id"

// registerTools registers one MCP tool per agent tool, using the same schemas
// the language model sees plus an optional session_id.
func (s *Server) registerTools() {
	defs := tool.Definitions()
	tools := make([]mcpserver.ServerTool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, s.agentTool(def))
	}
	s.mcpServer.AddTools(tools...)
}

func (s *Server) agentTool(def tool.Definition) mcpserver.ServerTool {
	params := maps.Clone(def.Parameters)
	props := maps.Clone(params["properties"].(map[string]any))
	props[sessionArg] = map[string]any{
		"type":        "string",
		"description": "Conversation session; omit for a one-off call",
	}
	params["properties"] = props

	schema, err := json.Marshal(params)
	if err != nil {
		// Definitions are static literals.
		panic(err)
	}
	name := string(def.Name)
	return mcpserver.ServerTool{
		Tool: mcplib.NewToolWithRawSchema(name, def.Description, schema),
		Handler: func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
			return s.handleAgentTool(ctx, name, req)
		},
	}
}

func (s *Server) handleAgentTool(ctx context.Context, name string, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tools == nil {
		return mcplib.NewToolResultError("tool runner not configured"), nil
	}
	args := maps.Clone(req.GetArguments())
	if args == nil {
		args = map[string]any{}
	}
	sessionID, _ := args[sessionArg].(string)
	delete(args, sessionArg)
	if sessionID == "" {
		sessionID = "mcp-" + uuid.NewString()
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	call, err := tool.Decode(name, raw)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	res, err := s.deps.Tools.CallTool(ctx, sessionID, call)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return mcplib.NewToolResultError(err.Error()), nil
		}
		return mcplib.NewToolResultErrorFromErr("tool failed", err), nil
	}
	data, err := json.Marshal(struct {
		SessionID string `json:"session_id"`
		Result    any    `json:"result"`
	}{sessionID, res})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
