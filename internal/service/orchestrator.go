package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	aotel "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/otel"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/config"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/memory"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/retrieval"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/tool"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/logger"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
)

// genericApology is the only failure text a user ever sees.
const genericApology = "I'm sorry, something went wrong on my side. Could you try that again?"

// contextMemories bounds the memories loaded into a turn.
const contextMemories = 5

// Capability is the coarse kind of help a turn provides.
type Capability string

const (
	CapabilityInformation Capability = "information"
	CapabilityBooking     Capability = "booking"
	CapabilityOrder       Capability = "order"
	CapabilityManage      Capability = "manage_booking"
	CapabilityGeneral     Capability = "general"
)

// RoutingDecision is the router's plan for a turn: zero or more tool calls
// run in order.
type RoutingDecision struct {
	Capability Capability  `json:"capability"`
	Calls      []tool.Call `json:"-"`
	Reasoning  string      `json:"reasoning"`
	// Reply is the model's direct answer when it chose no tools.
	Reply string `json:"reply,omitempty"`
}

// Agents bundles the specialized agents the orchestrator drives.
type Agents struct {
	Intent    *IntentAgent
	Slots     *SlotFillingAgent
	Retrieval *RAGAgent
	Execution *ExecutionAgent
	Memory    *MemoryManager
}

// Orchestrator runs conversation turns: it builds context, lets the router
// choose tools, dispatches them through the supervisor and composes one reply.
type Orchestrator struct {
	sup      *Supervisor
	llm      llm.Provider
	agents   Agents
	catalog  *CatalogService
	sessions *SessionStore
	stream   config.Stream
	metrics  *aotel.Metrics
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. p may be nil, in which case
// routing and replies are deterministic.
func NewOrchestrator(sup *Supervisor, p llm.Provider, agents Agents, cat *CatalogService, sessions *SessionStore, stream config.Stream) *Orchestrator {
	return &Orchestrator{
		sup:      sup,
		llm:      p,
		agents:   agents,
		catalog:  cat,
		sessions: sessions,
		stream:   stream,
		now:      time.Now,
	}
}

// SetMetrics enables turn metrics.
func (o *Orchestrator) SetMetrics(m *aotel.Metrics) {
	o.metrics = m
}

// RegisterAgents registers every agent the orchestrator uses with the supervisor.
func (o *Orchestrator) RegisterAgents() error {
	specs := []AgentSpec{
		{Name: AgentIntent, Category: CategoryIntent, SelfTest: o.agents.Intent.SelfTest},
		{Name: AgentSlotFilling, Category: CategorySlotFilling, SelfTest: o.agents.Slots.SelfTest},
		{Name: AgentRetrieval, Category: CategoryRetrieval, SelfTest: o.agents.Retrieval.SelfTest},
		{Name: AgentExecution, Category: CategoryExecution, SelfTest: o.agents.Execution.SelfTest},
		{Name: AgentRouter, Category: CategoryOrchestrator, SelfTest: o.routerSelfTest},
		{Name: AgentResponder, Category: CategoryOrchestrator, SelfTest: o.routerSelfTest},
	}
	if o.agents.Memory != nil {
		specs = append(specs, AgentSpec{
			Name:     AgentMemory,
			Category: CategoryMemory,
			SelfTest: func(ctx context.Context) error {
				_, err := o.agents.Memory.Retrieve(ctx, "self-test", 1)
				return err
			},
		})
	}
	for _, spec := range specs {
		if err := o.sup.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) routerSelfTest(ctx context.Context) error {
	_, err := completeText(ctx, o.llm, "Reply with the single word OK.", "ping", 0)
	return err
}

// turn accumulates everything produced while handling one message.
type turn struct {
	req      conversation.Request
	state    *conversation.State
	snap     *catalog.Snapshot
	memories []memory.Memory
	recalled []memory.ScoredMemory
	now      time.Time

	capability Capability
	intent     *intent.Result
	outputs    []toolOutput
	outcomes   []Outcome
	tools      []string
	executed   *action.Result
	quick      []conversation.QuickAction
	direct     string
}

// toolOutput is what one tool contributed to the reply.
type toolOutput struct {
	Tool tool.Name `json:"tool"`
	Text string    `json:"text"`
	// Verbatim outputs carry text that must reach the user unchanged, such
	// as a question or a confirmation.
	Verbatim bool `json:"-"`
}

func (t *turn) record(out Outcome) {
	t.outcomes = append(t.outcomes, out)
}

// HandleMessage processes one user message and returns exactly one reply.
// Turns of the same session run strictly one after another. Errors are only
// returned for invalid requests or when ctx ends while waiting for the session.
func (o *Orchestrator) HandleMessage(ctx context.Context, req conversation.Request) (reply conversation.Reply, err error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.SessionID == "" || req.Message == "" {
		return conversation.Reply{}, fmt.Errorf("%w: session_id and message are required", domain.ErrValidation)
	}
	start := o.now()
	ctx = logger.WithSessionID(ctx, req.SessionID)
	ctx, span := aotel.StartTurnSpan(ctx, req.SessionID)
	defer span.End()

	unlock, err := o.sessions.Lock(ctx, req.SessionID)
	if err != nil {
		return conversation.Reply{}, err
	}
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "turn panicked", "panic", r)
			reply = conversation.Reply{
				SessionID: req.SessionID,
				Message:   genericApology,
				Metadata: conversation.Metadata{
					Capability:      string(CapabilityGeneral),
					ToolsUsed:       []string{},
					Degraded:        true,
					DegradationMode: o.sup.DegradationMode(),
					Stage:           conversation.StageIdle,
					ProcessingTime:  o.now().Sub(start),
				},
			}
			err = nil
		}
	}()

	t := o.buildContext(ctx, req)
	t.state.AppendTurn(conversation.RoleUser, req.Message, t.now)

	o.route(ctx, t)
	message := o.respond(ctx, t)
	t.state.AppendTurn(conversation.RoleAssistant, message, o.now())
	t.state.UpdatedAt = o.now()

	if err := o.sessions.Save(ctx, t.state); err != nil {
		slog.WarnContext(ctx, "session save failed", "error", err)
	}
	o.remember(ctx, t)

	reply = conversation.Reply{
		SessionID:    req.SessionID,
		Message:      message,
		QuickActions: t.quick,
		Metadata:     o.metadata(t, start),
	}
	span.SetAttributes(
		attribute.String("turn.capability", reply.Metadata.Capability),
		attribute.Bool("turn.degraded", reply.Metadata.Degraded),
	)
	if o.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("capability", reply.Metadata.Capability))
		o.metrics.TurnsProcessed.Add(ctx, 1, attrs)
		o.metrics.TurnDuration.Record(ctx, reply.Metadata.ProcessingTime.Seconds(), attrs)
	}
	slog.InfoContext(ctx, "turn handled",
		"capability", reply.Metadata.Capability,
		"tools", reply.Metadata.ToolsUsed,
		"degraded", reply.Metadata.Degraded,
		"stage", reply.Metadata.Stage,
	)
	return reply, nil
}

// buildContext loads the session state, catalog snapshot and memories concurrently.
func (o *Orchestrator) buildContext(ctx context.Context, req conversation.Request) *turn {
	t := &turn{req: req, now: o.now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := o.sessions.Load(gctx, req.SessionID)
		if err != nil {
			slog.WarnContext(gctx, "session load failed, starting fresh", "error", err)
			st = conversation.NewState(req.SessionID)
		}
		t.state = st
		return nil
	})
	g.Go(func() error {
		snap, err := o.catalog.Snapshot(gctx)
		if err != nil {
			slog.WarnContext(gctx, "catalog unavailable", "error", err)
			snap = &catalog.Snapshot{TakenAt: t.now}
		}
		t.snap = snap
		return nil
	})
	var memOut Outcome
	mm := o.agents.Memory
	if mm != nil {
		g.Go(func() error {
			t.memories, memOut = ExecuteWithHealing(gctx, o.sup, AgentMemory,
				func(ctx context.Context) ([]memory.Memory, error) {
					return mm.Retrieve(ctx, req.SessionID, contextMemories)
				},
				func(context.Context, error) ([]memory.Memory, error) { return nil, nil },
			)
			return nil
		})
		g.Go(func() error {
			t.recalled = mm.SemanticSearch(gctx, req.SessionID, req.Message, contextMemories)
			return nil
		})
	}
	_ = g.Wait()
	if mm != nil {
		t.record(memOut)
	}

	if id := req.Context.SelectedBusinessID; id != "" {
		if _, ok := t.snap.Business(id); ok {
			t.state.SelectedBusinessID = id
		}
	}
	return t
}

// selectedBusiness returns the business the session has picked, if any.
func (t *turn) selectedBusiness() *catalog.Business {
	if t.state.SelectedBusinessID == "" {
		return nil
	}
	if b, ok := t.snap.Business(t.state.SelectedBusinessID); ok && b.Active {
		return &b
	}
	return nil
}

// remember stores the turn in short-term memory. Actions are kept with high importance.
func (o *Orchestrator) remember(ctx context.Context, t *turn) {
	mm := o.agents.Memory
	if mm == nil {
		return
	}
	req := memory.StoreRequest{
		SessionID:  t.req.SessionID,
		UserID:     t.req.UserID,
		Type:       memory.ShortTerm,
		Key:        "user_message",
		Value:      truncate(t.req.Message, 500),
		Importance: 0.3,
	}
	if r := t.executed; r != nil && r.Success {
		req.Key = string(r.Action)
		req.Value = r.Confirmation
		req.Importance = 0.9
	}
	_, out := ExecuteWithHealing(ctx, o.sup, AgentMemory,
		func(ctx context.Context) (*memory.Memory, error) { return mm.Store(ctx, req) },
		func(context.Context, error) (*memory.Memory, error) { return nil, nil },
	)
	t.record(out)
}

func (o *Orchestrator) metadata(t *turn, start time.Time) conversation.Metadata {
	md := conversation.Metadata{
		Capability:      string(t.capability),
		ToolsUsed:       append([]string{}, t.tools...),
		DegradationMode: o.sup.DegradationMode(),
		Stage:           t.state.Stage,
		ProcessingTime:  o.now().Sub(start),
	}
	if md.Capability == "" {
		md.Capability = string(CapabilityGeneral)
	}
	if t.intent != nil {
		md.Intent = t.intent.Intent
	}
	if t.executed != nil && t.executed.Success {
		md.Confirmation = t.executed.ConfirmationCode
	}
	for _, out := range t.outcomes {
		if out.Agent == "" || !out.Degraded() {
			continue
		}
		md.Degraded = true
		if md.Fallbacks == nil {
			md.Fallbacks = make(map[string]string)
		}
		md.Fallbacks[out.Agent] = string(out.Source)
	}
	return md
}

// listedFrom turns retrieval sources into a selectable list.
func listedFrom(docs []retrieval.Document, snap *catalog.Snapshot) []conversation.ListedBusiness {
	var out []conversation.ListedBusiness
	seen := make(map[string]bool)
	for _, d := range docs {
		if d.BusinessID == "" || seen[d.BusinessID] {
			continue
		}
		seen[d.BusinessID] = true
		b, ok := snap.Business(d.BusinessID)
		if !ok {
			continue
		}
		out = append(out, conversation.ListedBusiness{ID: b.ID, Name: b.Name, Category: b.Category})
	}
	return out
}
