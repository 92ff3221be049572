package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
)

// maxPromptInput bounds user text embedded into prompts.
const maxPromptInput = 2000

// completeJSON sends a system/user prompt in JSON mode and decodes the
// answer into a T. Providers that wrap JSON in prose or code fences are tolerated.
func completeJSON[T any](ctx context.Context, p llm.Provider, system, user string) (T, error) {
	var out T
	if p == nil || !p.Available() {
		return out, llm.ErrUnavailable
	}
	req := llm.Prompt(system, user)
	req.JSONMode = true
	req.Temperature = 0.1
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return out, err
	}
	raw := extractJSON(resp.Content)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("parse model json: %w", err)
	}
	return out, nil
}

// completeText sends a system/user prompt and returns the trimmed answer.
func completeText(ctx context.Context, p llm.Provider, system, user string, temperature float64) (string, error) {
	if p == nil || !p.Available() {
		return "", llm.ErrUnavailable
	}
	req := llm.Prompt(system, user)
	req.Temperature = temperature
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("empty model response")
	}
	return text, nil
}

// extractJSON pulls a JSON object out of a model response.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// sanitizePromptInput strips control characters and neutralizes role markers
// at line starts so user text cannot pose as instructions.
func sanitizePromptInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		for _, prefix := range []string{"system:", "assistant:", "[system]", "<|im_start|>", "### instruction"} {
			if strings.HasPrefix(trimmed, prefix) {
				lines[i] = "[user text] " + line
				break
			}
		}
	}
	return truncate(strings.Join(lines, "\n"), maxPromptInput)
}

// truncate shortens s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
