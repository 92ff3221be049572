// Package llm defines the language model provider port.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnavailable is returned when no provider is configured or it cannot be reached.
// Callers treat it as a signal to take their deterministic path.
var ErrUnavailable = errors.New("llm: provider unavailable")

// Role of a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one chat message.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a tool the model chose to invoke.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolSpec describes a callable tool offered to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a completion request.
type Request struct {
	Messages    []Message
	Tools       []ToolSpec
	Temperature float64
	MaxTokens   int
	JSONMode    bool // ask for a JSON object response
}

// Response is a completion result: free text, tool calls, or both.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Model     string
	TokensIn  int
	TokensOut int
}

// Provider completes chat requests.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	// Available reports whether the provider is configured.
	Available() bool
}

// Embedder turns texts into vectors for semantic search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Available() bool
}

// Prompt builds a two-message request from a system and a user prompt.
func Prompt(system, user string) Request {
	return Request{
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
	}
}
