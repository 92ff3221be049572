package service

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/tool"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/resilience"
)

//go:embed templates/router_system.tmpl
var routerSystemTmpl string

var routerTmpl = template.Must(template.New("router_system").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(routerSystemTmpl))

const (
	// maxToolCalls bounds the tools run for one turn.
	maxToolCalls      = 4
	routerBusinesses  = 30
	routerRecentTurns = 6
)

var (
	reConfirmation = regexp.MustCompile(`(?i)\b(BK|OR)-[A-Z0-9]{8}\b`)
	cancelWords    = []string{"cancel", "call off", "drop"}
	changeWords    = []string{"change", "reschedule", "move", "update", "modify", "push"}
)

type routerPromptData struct {
	When        string
	Categories  []string
	Businesses  []string
	Selected    string
	Memories    []string
	RecentTurns []string
}

// route decides what the turn does and runs the chosen tools. Follow-ups to
// a listed set and in-progress dialogues are continued without the router.
func (o *Orchestrator) route(ctx context.Context, t *turn) {
	st := t.state
	switch st.Stage {
	case conversation.StageAwaitingSelection:
		if o.continueSelection(ctx, t) {
			return
		}
		st.Listed = nil
		st.Stage = conversation.StageIdle
	case conversation.StageCollecting:
		if st.Slots != nil && st.Slots.Status == slot.StatusCollecting {
			t.capability = capabilityFor(st.Slots.Intent)
			o.runCalls(ctx, t, []tool.Call{tool.FillSlots{Message: t.req.Message, Intent: string(st.Slots.Intent)}})
			return
		}
		st.Reset()
	}

	decision, out := ExecuteWithHealing(ctx, o.sup, AgentRouter,
		func(ctx context.Context) (RoutingDecision, error) { return o.routeWithModel(ctx, t) },
		func(ctx context.Context, _ error) (RoutingDecision, error) { return o.routeDeterministic(ctx, t), nil },
	)
	t.record(out)
	t.capability = decision.Capability
	t.direct = decision.Reply
	o.runCalls(ctx, t, decision.Calls)
}

// routeWithModel lets the model choose tools. Unknown tools and bad
// arguments fail the decision without retries.
func (o *Orchestrator) routeWithModel(ctx context.Context, t *turn) (RoutingDecision, error) {
	if o.llm == nil || !o.llm.Available() {
		return RoutingDecision{}, llm.ErrUnavailable
	}
	system, err := o.routerPrompt(t)
	if err != nil {
		return RoutingDecision{}, resilience.Permanent(err)
	}

	defs := tool.Definitions()
	specs := make([]llm.ToolSpec, len(defs))
	for i, d := range defs {
		specs[i] = llm.ToolSpec{Name: string(d.Name), Description: d.Description, Parameters: d.Parameters}
	}
	req := llm.Prompt(system, sanitizePromptInput(t.req.Message))
	req.Tools = specs
	req.Temperature = 0.1

	resp, err := o.llm.Complete(ctx, req)
	if err != nil {
		return RoutingDecision{}, fmt.Errorf("route: %w", err)
	}

	var calls []tool.Call
	for _, tc := range resp.ToolCalls {
		call, err := tool.Decode(tc.Name, tc.Arguments)
		if err != nil {
			return RoutingDecision{}, resilience.Permanent(fmt.Errorf("route: %w", err))
		}
		calls = append(calls, call)
	}
	if len(calls) == 0 {
		reply := strings.TrimSpace(resp.Content)
		if reply == "" {
			return RoutingDecision{}, errors.New("route: empty decision")
		}
		return RoutingDecision{Capability: CapabilityGeneral, Reply: reply, Reasoning: "model replied directly"}, nil
	}
	return RoutingDecision{Capability: capabilityOf(calls), Calls: calls, Reasoning: "model tool choice"}, nil
}

func (o *Orchestrator) routerPrompt(t *turn) (string, error) {
	data := routerPromptData{
		When:        timeContext(t.now),
		Categories:  t.snap.Categories(),
		Businesses:  t.snap.BusinessNames(),
		RecentTurns: t.state.RecentTurns(routerRecentTurns),
	}
	if len(data.Businesses) > routerBusinesses {
		data.Businesses = data.Businesses[:routerBusinesses]
	}
	if b := t.selectedBusiness(); b != nil {
		data.Selected = b.Name
	}
	for _, m := range t.memories {
		data.Memories = append(data.Memories, truncate(m.Key+": "+m.Value, 200))
	}
	for _, m := range t.recalled {
		data.Memories = append(data.Memories, truncate(m.Key+": "+m.Value, 200))
	}
	var buf bytes.Buffer
	if err := routerTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render router prompt: %w", err)
	}
	return buf.String(), nil
}

// routeDeterministic maps the classified intent onto tools. Confirmation
// codes with cancel or change words become booking management actions.
func (o *Orchestrator) routeDeterministic(ctx context.Context, t *turn) RoutingDecision {
	msg := t.req.Message
	lower := " " + strings.ToLower(msg) + " "

	if code := reConfirmation.FindString(msg); code != "" {
		code = strings.ToUpper(code)
		switch {
		case countTerms(lower, cancelWords) > 0:
			return RoutingDecision{
				Capability: CapabilityManage,
				Calls:      []tool.Call{tool.ExecuteAction{Payload: action.Payload{Action: action.CancelBooking, Reference: code}}},
				Reasoning:  "confirmation code with cancel request",
			}
		case countTerms(lower, changeWords) > 0:
			p := action.Payload{Action: action.UpdateBooking, Reference: code}
			schema, _ := slot.SchemaFor(intent.ServiceBooking, "")
			values := extractSlots(reConfirmation.ReplaceAllString(msg, " "), schema, "", nil, t.now)
			p.Date, p.Time, p.Phone = values[slot.Date], values[slot.Time], values[slot.Phone]
			if n, ok := parseCount(values[slot.PartySize]); ok {
				p.PartySize = n
			}
			return RoutingDecision{
				Capability: CapabilityManage,
				Calls:      []tool.Call{tool.ExecuteAction{Payload: p}},
				Reasoning:  "confirmation code with change request",
			}
		}
	}

	res := o.classify(ctx, t, msg)
	d := RoutingDecision{Capability: capabilityFor(res.Intent), Reasoning: res.Reasoning}
	switch res.Intent {
	case intent.ServiceBooking, intent.ProductOrder:
		d.Calls = []tool.Call{tool.FillSlots{Message: msg, Intent: string(res.Intent)}}
	case intent.Information:
		d.Calls = []tool.Call{tool.AnswerQuestion{Question: msg}}
	}
	return d
}

// classify runs the intent classifier with the keyword classifier as fallback.
func (o *Orchestrator) classify(ctx context.Context, t *turn, msg string) intent.Result {
	ic := intent.Context{
		Categories:  t.snap.Categories(),
		Businesses:  t.snap.BusinessNames(),
		RecentTurns: t.state.RecentTurns(routerRecentTurns),
	}
	res, out := ExecuteWithHealing(ctx, o.sup, AgentIntent,
		func(ctx context.Context) (intent.Result, error) { return o.agents.Intent.Classify(ctx, msg, ic) },
		func(context.Context, error) (intent.Result, error) { return o.agents.Intent.ClassifyKeywords(msg, ic), nil },
	)
	t.record(out)
	t.intent = &res
	return res
}

// continueSelection handles a short follow-up to listed businesses. It
// returns false when the message is not a follow-up.
func (o *Orchestrator) continueSelection(ctx context.Context, t *turn) bool {
	st := t.state
	sel, ok := conversation.DetectSelection(t.req.Message, st.Listed)
	if !ok {
		return false
	}
	if sel.Kind == conversation.SelectionDecline {
		st.Reset()
		t.capability = CapabilityGeneral
		t.addOutput(tool.Name(""), "No problem. What else can I help you with?", true)
		return true
	}
	b, found := t.snap.Business(sel.Business.ID)
	if !found || !b.Active {
		return false
	}
	st.SelectedBusinessID = b.ID
	st.Listed = nil
	st.Stage = conversation.StageIdle

	if st.ActiveIntent.Actionable() {
		t.capability = capabilityFor(st.ActiveIntent)
		o.fillSlots(ctx, t, tool.FillSlots{Message: t.req.Message, Intent: string(st.ActiveIntent)}, &b)
		return true
	}

	t.capability = CapabilityInformation
	verb := "book"
	if catalog.KindOf(b.Category) == catalog.KindRetail {
		verb = "place an order"
	}
	text := fmt.Sprintf("Great choice! %s (%s).", b.Name, b.Category)
	if b.Hours != "" {
		text += " Hours: " + b.Hours + "."
	}
	text += fmt.Sprintf(" Would you like to %s, or ask something about them?", verb)
	t.addOutput(tool.Name(""), text, true)
	t.quick = businessActions(b)
	return true
}

func capabilityFor(tag intent.Tag) Capability {
	switch tag {
	case intent.ServiceBooking:
		return CapabilityBooking
	case intent.ProductOrder:
		return CapabilityOrder
	case intent.Information:
		return CapabilityInformation
	}
	return CapabilityGeneral
}

// capabilityOf derives the capability from the first decisive tool call.
func capabilityOf(calls []tool.Call) Capability {
	for _, c := range calls {
		switch c := c.(type) {
		case tool.FillSlots:
			if tag, ok := intent.ParseTag(c.Intent); ok && tag.Actionable() {
				return capabilityFor(tag)
			}
			return CapabilityBooking
		case tool.AnswerQuestion:
			return CapabilityInformation
		case tool.ExecuteAction:
			switch c.Payload.Action {
			case action.CreateBooking:
				return CapabilityBooking
			case action.CreateOrder:
				return CapabilityOrder
			case action.GetInformation:
				return CapabilityInformation
			}
			return CapabilityManage
		}
	}
	return CapabilityGeneral
}

// timeContext describes the moment for prompts, e.g. "Friday evening in autumn".
func timeContext(now time.Time) string {
	var part string
	switch h := now.Hour(); {
	case h < 5:
		part = "night"
	case h < 12:
		part = "morning"
	case h < 17:
		part = "afternoon"
	case h < 22:
		part = "evening"
	default:
		part = "night"
	}
	var season string
	switch now.Month() {
	case time.December, time.January, time.February:
		season = "winter"
	case time.March, time.April, time.May:
		season = "spring"
	case time.June, time.July, time.August:
		season = "summer"
	default:
		season = "autumn"
	}
	return fmt.Sprintf("%s %s in %s (%s)", now.Weekday(), part, season, now.Format("2006-01-02 15:04"))
}
