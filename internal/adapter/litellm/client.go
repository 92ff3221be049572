// Package litellm implements the llm port against a LiteLLM proxy using the
// OpenAI-compatible chat completion and embedding endpoints.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/otel"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/resilience"
)

// Client talks to the LiteLLM proxy.
type Client struct {
	baseURL        string
	masterKey      string
	model          string
	embeddingModel string
	httpClient     *http.Client
}

var (
	_ llm.Provider = (*Client)(nil)
	_ llm.Embedder = (*Client)(nil)
)

// NewClient creates a LiteLLM client. An empty baseURL yields a client whose
// Available reports false and whose calls return llm.ErrUnavailable.
func NewClient(baseURL, masterKey, model, embeddingModel string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		masterKey:      masterKey,
		model:          model,
		embeddingModel: embeddingModel,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otel.HTTPTransport(nil),
		},
	}
}

// Available reports whether a proxy URL and chat model are configured.
func (c *Client) Available() bool {
	return c.baseURL != "" && c.model != ""
}

type chatTool struct {
	Type     string       `json:"type"`
	Function llm.ToolSpec `json:"function"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatMessage struct {
	Role       llm.Role       `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Tools          []chatTool        `json:"tools,omitempty"`
	ToolChoice     string            `json:"tool_choice,omitempty"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if !c.Available() {
		return nil, llm.ErrUnavailable
	}

	body := chatRequest{
		Model:       c.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		cm := chatMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			var wire chatToolCall
			wire.ID, wire.Type = tc.ID, "function"
			wire.Function.Name, wire.Function.Arguments = tc.Name, string(tc.Arguments)
			cm.ToolCalls = append(cm.ToolCalls, wire)
		}
		body.Messages = append(body.Messages, cm)
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, chatTool{Type: "function", Function: t})
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	raw, err := c.post(ctx, "/v1/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("chat completion: no choices")
	}

	msg := out.Choices[0].Message
	resp := &llm.Response{
		Content:   msg.Content,
		Model:     out.Model,
		TokensIn:  out.Usage.PromptTokens,
		TokensOut: out.Usage.CompletionTokens,
	}
	for _, tc := range msg.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage("{}")
		}
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return resp, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.baseURL == "" || c.embeddingModel == "" {
		return nil, llm.ErrUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}

	raw, err := c.post(ctx, "/v1/embeddings", map[string]any{
		"model": c.embeddingModel,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("embeddings: missing vector %d", i)
		}
	}
	return vecs, nil
}

// Health checks whether the proxy answers its liveness probe.
func (c *Client) Health(ctx context.Context) (bool, error) {
	if c.baseURL == "" {
		return false, llm.ErrUnavailable
	}
	_, err := c.do(ctx, http.MethodGet, "/health/liveliness", nil)
	return err == nil, err
}

func (c *Client) post(ctx context.Context, path string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body)
}

// do performs one request. 4xx responses other than 408 and 429 are
// permanent so the supervisor does not retry them.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.masterKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.masterKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := fmt.Errorf("litellm API error %d: %s", resp.StatusCode, truncate(string(data), 300))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusRequestTimeout {
			return nil, resilience.Permanent(apiErr)
		}
		return nil, apiErr
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
