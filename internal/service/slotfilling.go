package service

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
)

//go:embed templates/slot_extract.tmpl
var slotExtractTmpl string

var slotTmpl = template.Must(template.New("slot_extract").Parse(slotExtractTmpl))

// SlotInput is one user message inside a booking or order dialogue.
type SlotInput struct {
	SessionID string
	Message   string
	Intent    intent.Tag
	Category  string
	// State is the dialogue so far; nil starts a new one.
	State *slot.State
	// Entities are values already extracted by the intent classifier.
	Entities map[string]string
	Snapshot *catalog.Snapshot
	// Selected is the business the session already has in focus. It only
	// fills an empty business_name.
	Selected *catalog.Business
	// Picked is a business chosen from a listed set this turn. It replaces
	// whatever business_name was extracted from the message.
	Picked *catalog.Business
}

// SlotTurn is the result of one slot-filling step.
type SlotTurn struct {
	Status   slot.Status `json:"status"`
	State    *slot.State `json:"state,omitempty"`
	Question string      `json:"question,omitempty"`
	Changed  []string    `json:"changed,omitempty"`
	// Unresolved is a business name the user gave that matched nothing.
	Unresolved string            `json:"unresolved,omitempty"`
	Business   *catalog.Business `json:"business,omitempty"`
	// Payload is set once every required slot is filled.
	Payload *action.Payload `json:"payload,omitempty"`
}

// SlotFillingAgent drives multi-turn collection of the details an action needs.
type SlotFillingAgent struct {
	llm llm.Provider
	now func() time.Time
}

// NewSlotFillingAgent creates a slot-filling agent. Without a usable model
// only FillDeterministic succeeds.
func NewSlotFillingAgent(p llm.Provider) *SlotFillingAgent {
	return &SlotFillingAgent{llm: p, now: time.Now}
}

type slotPromptData struct {
	Today   string
	Weekday string
	Intent  intent.Tag
	Slots   []slot.Definition
	Known   map[string]string
	Asked   string
}

type slotExtractResponse struct {
	Values map[string]any `json:"values"`
}

// Fill extracts values with the language model, fills any gaps with the
// pattern extractor and advances the dialogue. It returns an error only when
// the model call fails; the input state is never modified.
func (a *SlotFillingAgent) Fill(ctx context.Context, in SlotInput) (SlotTurn, error) {
	st := startState(in)
	if isCancelPhrase(in.Message) {
		return abandon(st), nil
	}

	now := a.now()
	schema := st.Schema()
	var buf bytes.Buffer
	if err := slotTmpl.Execute(&buf, slotPromptData{
		Today:   now.Format(time.DateOnly),
		Weekday: now.Weekday().String(),
		Intent:  st.Intent,
		Slots:   schema.Slots,
		Known:   st.Values,
		Asked:   st.Asked,
	}); err != nil {
		return SlotTurn{}, fmt.Errorf("render slot prompt: %w", err)
	}

	resp, err := completeJSON[slotExtractResponse](ctx, a.llm, buf.String(), sanitizePromptInput(in.Message))
	if err != nil {
		return SlotTurn{}, fmt.Errorf("extract slots: %w", err)
	}

	values := extractSlots(in.Message, schema, st.Asked, in.Snapshot, now)
	for k, v := range resp.Values {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			values[k] = s
		}
	}
	return a.advance(ctx, st, values, in, true), nil
}

// FillDeterministic advances the dialogue using pattern extraction and the
// question bank only. It never fails.
func (a *SlotFillingAgent) FillDeterministic(ctx context.Context, in SlotInput) SlotTurn {
	st := startState(in)
	if isCancelPhrase(in.Message) {
		return abandon(st)
	}
	values := extractSlots(in.Message, st.Schema(), st.Asked, in.Snapshot, a.now())
	return a.advance(ctx, st, values, in, false)
}

// SelfTest checks that the model answers a trivial extraction.
func (a *SlotFillingAgent) SelfTest(ctx context.Context) error {
	_, err := a.Fill(ctx, SlotInput{Message: "My name is Ana", Intent: intent.ServiceBooking})
	return err
}

func (a *SlotFillingAgent) advance(ctx context.Context, st *slot.State, raw map[string]string, in SlotInput, phrase bool) SlotTurn {
	now := a.now()
	schema := st.Schema()

	values := make(map[string]string, len(raw))
	for name, v := range raw {
		def, ok := schema.Lookup(name)
		if !ok {
			continue
		}
		if norm, ok := normalizeSlotValue(def, v, now); ok {
			values[name] = norm
		}
	}
	if in.Picked != nil {
		values[slot.BusinessName] = in.Picked.Name
	}
	if name := in.Entities[slot.BusinessName]; name != "" && values[slot.BusinessName] == "" && st.Values[slot.BusinessName] == "" {
		values[slot.BusinessName] = name
	}
	if in.Selected != nil && values[slot.BusinessName] == "" && st.Values[slot.BusinessName] == "" {
		values[slot.BusinessName] = in.Selected.Name
	}

	turn := SlotTurn{Changed: st.Merge(values)}
	st.Turns++

	if ref := st.Values[slot.BusinessName]; ref != "" && in.Snapshot != nil {
		if b, ok := catalog.Resolve(in.Snapshot.Businesses, ref); ok {
			st.Values[slot.BusinessName] = b.Name
			st.SetCategory(b.Category)
			turn.Business = &b
		} else {
			delete(st.Values, slot.BusinessName)
			st.Recompute()
			turn.Unresolved = ref
		}
	}

	turn.State = st
	turn.Status = st.Status
	if st.Complete() {
		st.Asked = ""
		turn.Payload = buildPayload(st, turn.Business, in.SessionID)
		return turn
	}

	def, _ := st.Next()
	st.Asked = def.Name
	question := ""
	if phrase && turn.Unresolved == "" {
		question = phraseQuestion(ctx, a.llm, def, st)
	}
	if question == "" {
		question = bankQuestion(def, st)
	}
	if turn.Unresolved != "" {
		question = fmt.Sprintf("I couldn't find a business called %q. %s", turn.Unresolved, question)
	}
	if def.Name == slot.BusinessName {
		if opts := businessOptions(in.Snapshot, st.Category); len(opts) > 0 {
			question += " Options include: " + strings.Join(opts, ", ") + "."
		}
	}
	turn.Question = question
	return turn
}

// startState copies the input state, or starts a new dialogue.
func startState(in SlotInput) *slot.State {
	if in.State == nil {
		return slot.NewState(in.Intent, in.Category)
	}
	st := *in.State
	st.Values = maps.Clone(in.State.Values)
	if st.Values == nil {
		st.Values = make(map[string]string)
	}
	st.Missing = slices.Clone(in.State.Missing)
	if st.Category == "" && in.Category != "" {
		st.SetCategory(in.Category)
	}
	return &st
}

func abandon(st *slot.State) SlotTurn {
	st.Abandon()
	st.Asked = ""
	return SlotTurn{
		Status:   slot.StatusAbandoned,
		State:    st,
		Question: "No problem, I've cancelled that. Is there anything else I can help with?",
	}
}

// buildPayload converts a complete dialogue into an action payload.
func buildPayload(st *slot.State, b *catalog.Business, sessionID string) *action.Payload {
	p := &action.Payload{
		SessionID:      sessionID,
		BusinessName:   st.Values[slot.BusinessName],
		CustomerName:   st.Values[slot.CustomerName],
		Phone:          st.Values[slot.Phone],
		Date:           st.Values[slot.Date],
		Time:           st.Values[slot.Time],
		DeliveryMethod: st.Values[slot.DeliveryMethod],
		Address:        st.Values[slot.Address],
		Notes:          st.Values[slot.Notes],
	}
	if b != nil {
		p.BusinessID = b.ID
		p.BusinessName = b.Name
	}
	if n, err := strconv.Atoi(st.Values[slot.PartySize]); err == nil {
		p.PartySize = n
	}
	if items := st.Values[slot.Items]; items != "" {
		p.Items = splitItems(items)
	}
	switch st.Intent {
	case intent.ProductOrder:
		p.Action = action.CreateOrder
	default:
		p.Action = action.CreateBooking
	}
	return p
}

func splitItems(s string) []string {
	s = strings.ReplaceAll(s, " and ", ",")
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
