package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/tool"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/logger"
)

// ToolResult is the outcome of a tool invoked outside a chat turn.
type ToolResult struct {
	Tool         tool.Name                  `json:"tool"`
	Output       string                     `json:"output"`
	Intent       *intent.Result             `json:"intent,omitempty"`
	Action       *action.Result             `json:"action,omitempty"`
	QuickActions []conversation.QuickAction `json:"quick_actions,omitempty"`
	Metadata     conversation.Metadata      `json:"metadata"`
}

// CallTool runs a single tool for an external client. The call goes through
// the supervisor and updates the session's dialogue state exactly like the
// same tool chosen during a chat turn.
func (o *Orchestrator) CallTool(ctx context.Context, sessionID string, call tool.Call) (ToolResult, error) {
	if sessionID == "" {
		return ToolResult{}, fmt.Errorf("%w: session_id is required", domain.ErrValidation)
	}
	start := o.now()
	ctx = logger.WithSessionID(ctx, sessionID)

	unlock, err := o.sessions.Lock(ctx, sessionID)
	if err != nil {
		return ToolResult{}, err
	}
	defer unlock()

	t := o.buildContext(ctx, conversation.Request{SessionID: sessionID, Message: callText(call)})
	o.runCalls(ctx, t, []tool.Call{call})
	t.state.UpdatedAt = o.now()
	if err := o.sessions.Save(ctx, t.state); err != nil {
		slog.WarnContext(ctx, "session save failed", "error", err)
	}
	if t.executed != nil && t.executed.Success {
		o.remember(ctx, t)
	}

	texts := make([]string, 0, len(t.outputs))
	for _, out := range t.outputs {
		texts = append(texts, out.Text)
	}
	slog.InfoContext(ctx, "tool called", "tool", call.Tool(), "tools", t.tools)
	return ToolResult{
		Tool:         call.Tool(),
		Output:       strings.Join(texts, "\n"),
		Intent:       t.intent,
		Action:       t.executed,
		QuickActions: t.quick,
		Metadata:     o.metadata(t, start),
	}, nil
}

func callText(call tool.Call) string {
	switch c := call.(type) {
	case tool.ClassifyIntent:
		return c.Message
	case tool.FillSlots:
		return c.Message
	case tool.AnswerQuestion:
		return c.Question
	}
	return ""
}
