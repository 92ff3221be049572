package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/health"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/tool"
)

const (
	agentHealthURI = "assistant://agents/health"
	toolsURI       = "assistant://tools"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			agentHealthURI,
			"Agent Health",
			mcplib.WithResourceDescription("Health record of every supervised agent and the degradation flag"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAgentHealthResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			toolsURI,
			"Tool Definitions",
			mcplib.WithResourceDescription("Schemas of the agent tools"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleToolsResource,
	)
}

func (s *Server) handleAgentHealthResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return jsonContents(req.Params.URI, `{"error":"agent health not configured"}`), nil
	}
	records := s.deps.Agents.Health()
	if records == nil {
		records = []health.Record{}
	}
	data, err := json.Marshal(struct {
		DegradationMode bool            `json:"degradation_mode"`
		Agents          []health.Record `json:"agents"`
	}{s.deps.Agents.DegradationMode(), records})
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, string(data)), nil
}

func (s *Server) handleToolsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	data, err := json.Marshal(tool.Definitions())
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, string(data)), nil
}

func jsonContents(uri, text string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}
}
