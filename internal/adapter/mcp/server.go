// Package mcp exposes the assistant's agent tools over the Model Context
// Protocol (streamable HTTP transport).
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/health"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/tool"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/service"
)

// ToolRunner runs one agent tool against a session.
type ToolRunner interface {
	CallTool(ctx context.Context, sessionID string, call tool.Call) (service.ToolResult, error)
}

// HealthReporter exposes per-agent health.
type HealthReporter interface {
	Health() []health.Record
	DegradationMode() bool
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	// APIKey is a comma-separated list of accepted keys; empty disables authentication.
	APIKey string
}

// ServerDeps are the services the MCP tools and resources read from.
type ServerDeps struct {
	Tools  ToolRunner
	Agents HealthReporter
}

// Server is the MCP server.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates the MCP server and registers tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the authenticated streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return RequireAPIKey(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer, mcpserver.WithStateLess(true)))
}

// Start listens on cfg.Addr and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/mcp", s.Handler())
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	slog.Info("mcp server started", "addr", ln.Addr().String(), "auth", s.cfg.APIKey != "")
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
