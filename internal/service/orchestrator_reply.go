package service

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
)

//go:embed templates/responder_system.tmpl
var responderSystemTmpl string

var responderTmpl = template.Must(template.New("responder_system").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(responderSystemTmpl))

type responderPromptData struct {
	Outputs     []string
	Categories  []string
	RecentTurns []string
}

// respond composes the single reply of the turn. One verbatim output is
// returned as is; several are composed by the model with a deterministic
// summary as fallback; no output gets a model reply or a greeting.
func (o *Orchestrator) respond(ctx context.Context, t *turn) string {
	defer func() {
		if len(t.quick) > maxQuickActions {
			t.quick = t.quick[:maxQuickActions]
		}
	}()

	switch {
	case len(t.outputs) == 0 && t.direct != "":
		return t.direct
	case len(t.outputs) == 0:
		text, out := ExecuteWithHealing(ctx, o.sup, AgentResponder,
			func(ctx context.Context) (string, error) { return o.compose(ctx, t) },
			func(context.Context, error) (string, error) { return greeting(t), nil },
		)
		t.record(out)
		if len(t.quick) == 0 {
			t.quick = browseActions(t)
		}
		return text
	case len(t.outputs) == 1 && t.outputs[0].Verbatim:
		return t.outputs[0].Text
	}

	text, out := ExecuteWithHealing(ctx, o.sup, AgentResponder,
		func(ctx context.Context) (string, error) { return o.compose(ctx, t) },
		func(context.Context, error) (string, error) { return summarize(t.outputs), nil },
	)
	t.record(out)
	if strings.TrimSpace(text) == "" {
		return genericApology
	}
	return text
}

// compose asks the model for the reply and rejects answers that lose a
// confirmation code or a pending question.
func (o *Orchestrator) compose(ctx context.Context, t *turn) (string, error) {
	data := responderPromptData{
		Categories:  t.snap.Categories(),
		RecentTurns: t.state.RecentTurns(routerRecentTurns),
	}
	for _, out := range t.outputs {
		data.Outputs = append(data.Outputs, out.Text)
	}
	var buf bytes.Buffer
	if err := responderTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render responder prompt: %w", err)
	}
	text, err := completeText(ctx, o.llm, buf.String(), sanitizePromptInput(t.req.Message), 0.5)
	if err != nil {
		return "", err
	}
	if r := t.executed; r != nil && r.ConfirmationCode != "" && !strings.Contains(text, r.ConfirmationCode) {
		return "", errors.New("reply dropped the confirmation code")
	}
	if t.state.Stage == conversation.StageCollecting && !strings.Contains(text, "?") {
		return "", errors.New("reply dropped the pending question")
	}
	return text, nil
}

// summarize joins tool outputs, keeping user-facing text and dropping
// internal notes unless nothing else is left.
func summarize(outputs []toolOutput) string {
	var parts []string
	for _, out := range outputs {
		if out.Verbatim {
			parts = append(parts, out.Text)
		}
	}
	if len(parts) == 0 {
		for _, out := range outputs {
			parts = append(parts, out.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// greeting is the deterministic reply to small talk.
func greeting(t *turn) string {
	cats := t.snap.Categories()
	if len(cats) == 0 {
		return "Hi! I can answer questions about local businesses and take care of bookings and orders. What can I do for you?"
	}
	if len(cats) > 5 {
		cats = cats[:5]
	}
	return fmt.Sprintf("Hi! I can answer questions about local businesses and take care of bookings and orders. "+
		"Right now I can help with: %s. What can I do for you?", strings.Join(cats, ", "))
}

// browseActions suggests categories to explore.
func browseActions(t *turn) []conversation.QuickAction {
	var out []conversation.QuickAction
	for _, c := range t.snap.Categories() {
		out = append(out, conversation.QuickAction{ID: "browse:" + c, Title: "Show " + strings.ReplaceAll(c, "_", " ") + " options"})
		if len(out) == 3 {
			break
		}
	}
	return out
}
