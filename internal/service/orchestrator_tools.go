package service

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	aotel "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/otel"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/retrieval"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/tool"
)

const (
	maxQuickActions = 4
	maxListed       = 5
)

// executionUnavailable is the caller fallback of the execution agent.
const executionUnavailable = "I couldn't complete that just now and nothing was saved. Please try again in a moment."

// runCalls executes tool calls in order through the supervisor.
func (o *Orchestrator) runCalls(ctx context.Context, t *turn, calls []tool.Call) {
	if len(calls) > maxToolCalls {
		slog.WarnContext(ctx, "too many tool calls, truncating", "count", len(calls))
		calls = calls[:maxToolCalls]
	}
	for _, call := range calls {
		tctx, span := aotel.StartToolSpan(ctx, string(call.Tool()))
		switch c := call.(type) {
		case tool.ClassifyIntent:
			res := o.classify(tctx, t, c.Message)
			t.tools = append(t.tools, string(c.Tool()))
			t.addOutput(c.Tool(), "intent: "+string(res.Intent), false)
		case tool.FillSlots:
			o.fillSlots(tctx, t, c, nil)
		case tool.AnswerQuestion:
			o.answer(tctx, t, c)
		case tool.ExecuteAction:
			o.execute(tctx, t, c.Payload, nil)
		}
		span.End()
	}
}

// fillSlots advances the booking or order dialogue. picked is a business the
// user just chose from a list.
func (o *Orchestrator) fillSlots(ctx context.Context, t *turn, c tool.FillSlots, picked *catalog.Business) {
	t.tools = append(t.tools, string(tool.FillSlotsTool))
	st := t.state

	tag, _ := intent.ParseTag(c.Intent)
	if !tag.Actionable() {
		switch {
		case st.Slots != nil && st.Slots.Intent.Actionable():
			tag = st.Slots.Intent
		case t.intent != nil && t.intent.Intent.Actionable():
			tag = t.intent.Intent
		default:
			tag = o.classify(ctx, t, c.Message).Intent
		}
	}
	if !tag.Actionable() {
		t.addOutput(tool.FillSlotsTool, "What would you like to book or order?", true)
		return
	}

	in := SlotInput{
		SessionID: t.req.SessionID,
		Message:   c.Message,
		Intent:    tag,
		Snapshot:  t.snap,
		Selected:  t.selectedBusiness(),
		Picked:    picked,
	}
	if t.intent != nil {
		in.Category = t.intent.Category
		in.Entities = t.intent.Entities
	}
	if st.Slots != nil && st.Slots.Intent == tag && st.Slots.Status == slot.StatusCollecting {
		in.State = st.Slots
		if picked == nil && st.Slots.Asked == slot.BusinessName && len(st.Listed) > 0 {
			if sel, ok := conversation.DetectSelection(c.Message, st.Listed); ok && sel.Kind != conversation.SelectionDecline {
				if b, found := t.snap.Business(sel.Business.ID); found {
					in.Picked = &b
				}
			}
		}
	}

	res, out := ExecuteWithHealing(ctx, o.sup, AgentSlotFilling,
		func(ctx context.Context) (SlotTurn, error) { return o.agents.Slots.Fill(ctx, in) },
		func(ctx context.Context, _ error) (SlotTurn, error) { return o.agents.Slots.FillDeterministic(ctx, in), nil },
	)
	t.record(out)
	if res.Business != nil {
		st.SelectedBusinessID = res.Business.ID
	}

	switch res.Status {
	case slot.StatusAbandoned:
		st.Reset()
		t.capability = CapabilityGeneral
		t.addOutput(tool.FillSlotsTool, res.Question, true)
	case slot.StatusComplete:
		if res.Payload == nil || res.State == nil {
			t.addOutput(tool.FillSlotsTool, genericClarifyingQuestion, true)
			return
		}
		st.StartCollecting(res.State)
		o.execute(ctx, t, *res.Payload, res.State)
	default:
		if res.State != nil {
			st.StartCollecting(res.State)
			if res.State.Asked == slot.BusinessName {
				st.Listed = listedInCategory(t.snap, res.State.Category)
			}
		}
		t.addOutput(tool.FillSlotsTool, res.Question, true)
		t.quick = append(t.quick, conversation.QuickAction{ID: "cancel", Title: "Cancel"})
		for _, l := range st.Listed {
			t.quick = append(t.quick, conversation.QuickAction{ID: "select:" + l.ID, Title: l.Name})
		}
	}
}

// answer runs the retrieval agent and offers the businesses it found.
func (o *Orchestrator) answer(ctx context.Context, t *turn, c tool.AnswerQuestion) {
	t.tools = append(t.tools, string(tool.AnswerQuestionTool))
	res, out := ExecuteWithHealing(ctx, o.sup, AgentRetrieval,
		func(ctx context.Context) (retrieval.Result, error) {
			return o.agents.Retrieval.Answer(ctx, c.Question, t.snap)
		}, nil)
	t.record(out)
	t.addOutput(tool.AnswerQuestionTool, res.Answer, true)

	if t.state.Stage == conversation.StageCollecting {
		return
	}
	listed := listedFrom(res.Documents, t.snap)
	switch {
	case len(listed) >= 2:
		if len(listed) > maxListed {
			listed = listed[:maxListed]
		}
		t.state.AwaitSelection(listed)
		for _, l := range listed {
			t.quick = append(t.quick, conversation.QuickAction{ID: "select:" + l.ID, Title: l.Name})
		}
	case len(listed) == 1:
		if b, ok := t.snap.Business(listed[0].ID); ok {
			t.state.SelectedBusinessID = b.ID
			t.quick = append(t.quick, businessActions(b)...)
		}
	}
}

// execute runs an action. slots is the dialogue that produced the payload,
// if any; validation failures on its fields reopen it.
func (o *Orchestrator) execute(ctx context.Context, t *turn, p action.Payload, slots *slot.State) {
	t.tools = append(t.tools, string(tool.ExecuteActionTool))
	if p.SessionID == "" {
		p.SessionID = t.req.SessionID
	}
	res, out := ExecuteWithHealing(ctx, o.sup, AgentExecution,
		func(ctx context.Context) (action.Result, error) { return o.agents.Execution.Execute(ctx, p) },
		func(context.Context, error) (action.Result, error) {
			return action.Fail(p.Action, action.KindTransient, executionUnavailable), nil
		},
	)
	t.record(out)
	t.executed = &res
	if o.metrics != nil {
		o.metrics.ActionsExecuted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", string(p.Action)),
			attribute.Bool("success", res.Success),
		))
	}

	st := t.state
	if res.Success {
		if slots != nil {
			st.Reset()
		}
		t.addOutput(tool.ExecuteActionTool, res.Confirmation, true)
		if res.ConfirmationCode != "" && strings.HasPrefix(res.ConfirmationCode, action.BookingPrefix) && p.Action != action.CancelBooking {
			t.quick = append(t.quick, conversation.QuickAction{ID: "cancel_booking:" + res.ConfirmationCode, Title: "Cancel booking"})
		}
		return
	}

	if slots == nil {
		slots = slotsFromPayload(p, t.snap)
	}
	if slots != nil && res.Error != nil && res.Error.Kind == action.KindValidation && len(res.Error.Fields) > 0 {
		slots = reopenSlots(slots, res.Error.Fields)
		if def, ok := slots.Next(); ok {
			slots.Asked = def.Name
			st.StartCollecting(slots)
			t.addOutput(tool.ExecuteActionTool, res.Confirmation+" "+bankQuestion(def, slots), true)
			t.quick = append(t.quick, conversation.QuickAction{ID: "cancel", Title: "Cancel"})
			return
		}
	}
	if st.Stage == conversation.StageCollecting {
		st.Reset()
	}
	t.addOutput(tool.ExecuteActionTool, res.Confirmation, true)
}

func (t *turn) addOutput(name tool.Name, text string, verbatim bool) {
	if strings.TrimSpace(text) == "" {
		return
	}
	t.outputs = append(t.outputs, toolOutput{Tool: name, Text: text, Verbatim: verbatim})
}

// reopenSlots clears the named fields so the dialogue asks for them again.
func reopenSlots(st *slot.State, fields []string) *slot.State {
	for _, f := range fields {
		if f == "business_id" {
			f = slot.BusinessName
		}
		delete(st.Values, f)
	}
	st.Status = slot.StatusCollecting
	st.Recompute()
	return st
}

// slotsFromPayload rebuilds a dialogue from a create payload so missing
// fields can be collected. Other actions have no dialogue.
func slotsFromPayload(p action.Payload, snap *catalog.Snapshot) *slot.State {
	var tag intent.Tag
	switch p.Action {
	case action.CreateBooking:
		tag = intent.ServiceBooking
	case action.CreateOrder:
		tag = intent.ProductOrder
	default:
		return nil
	}
	category := ""
	if b, ok := catalog.Resolve(snap.Businesses, p.BusinessName); p.BusinessName != "" && ok {
		category = b.Category
	}
	st := slot.NewState(tag, category)
	values := map[string]string{
		slot.BusinessName:   p.BusinessName,
		slot.CustomerName:   p.CustomerName,
		slot.Phone:          p.Phone,
		slot.Date:           p.Date,
		slot.Time:           p.Time,
		slot.DeliveryMethod: p.DeliveryMethod,
		slot.Address:        p.Address,
		slot.Notes:          p.Notes,
		slot.Items:          strings.Join(p.Items, ", "),
	}
	if p.PartySize > 0 {
		values[slot.PartySize] = strconv.Itoa(p.PartySize)
	}
	st.Merge(values)
	return st
}

func listedInCategory(snap *catalog.Snapshot, category string) []conversation.ListedBusiness {
	names := businessOptions(snap, category)
	var out []conversation.ListedBusiness
	for _, b := range snap.Businesses {
		if b.Active && slices.Contains(names, b.Name) {
			out = append(out, conversation.ListedBusiness{ID: b.ID, Name: b.Name, Category: b.Category})
		}
	}
	return out
}

// businessActions are the follow-ups offered for one business.
func businessActions(b catalog.Business) []conversation.QuickAction {
	if catalog.KindOf(b.Category) == catalog.KindRetail {
		return []conversation.QuickAction{
			{ID: "order:" + b.ID, Title: "Order from " + b.Name},
			{ID: "info:" + b.ID, Title: "More about " + b.Name},
		}
	}
	return []conversation.QuickAction{
		{ID: "book:" + b.ID, Title: "Book at " + b.Name},
		{ID: "info:" + b.ID, Title: "More about " + b.Name},
	}
}
