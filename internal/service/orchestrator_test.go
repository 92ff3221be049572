package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/memstore"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/config"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
)

type orchFixture struct {
	o        *Orchestrator
	st       *memstore.Store
	exec     *ExecutionAgent
	sessions *SessionStore
}

// newTestOrchestrator wires every agent to a seeded store and the fixed test
// clock. A nil provider leaves every model-backed step on its fallback.
func newTestOrchestrator(t *testing.T, p llm.Provider) *orchFixture {
	t.Helper()
	st := newTestStore(t)
	sup := newTestSupervisor(t, testSupervisorConfig())

	cat := NewCatalogService(st, newMapCache(), time.Minute)
	cat.now = fixedClock(testNow)
	sessions := NewSessionStore(newMapCache(), time.Hour)

	slots := NewSlotFillingAgent(p)
	slots.now = fixedClock(testNow)
	exec := NewExecutionAgent(st, st, nil)
	exec.now = fixedClock(testNow)
	mem := NewMemoryManager(st, nil, nil, testMemoryConfig())
	mem.now = fixedClock(testNow)

	o := NewOrchestrator(sup, p, Agents{
		Intent:    NewIntentAgent(p),
		Slots:     slots,
		Retrieval: NewRAGAgent(p),
		Execution: exec,
		Memory:    mem,
	}, cat, sessions, config.Stream{ChunkWords: 4})
	o.now = fixedClock(testNow)
	if err := o.RegisterAgents(); err != nil {
		t.Fatal(err)
	}
	return &orchFixture{o: o, st: st, exec: exec, sessions: sessions}
}

func (f *orchFixture) send(t *testing.T, session, msg string) conversation.Reply {
	t.Helper()
	reply, err := f.o.HandleMessage(context.Background(), conversation.Request{SessionID: session, Message: msg})
	if err != nil {
		t.Fatalf("HandleMessage(%q): %v", msg, err)
	}
	return reply
}

func (f *orchFixture) state(t *testing.T, session string) *conversation.State {
	t.Helper()
	st, err := f.sessions.Load(context.Background(), session)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func quickIDs(qs []conversation.QuickAction) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestOrchestrator_OneTurnBookingWithoutModel(t *testing.T) {
	f := newTestOrchestrator(t, nil)

	reply, err := f.o.HandleMessage(context.Background(), conversation.Request{
		SessionID: "s1",
		UserID:    "u1",
		Message:   "Book a table for 4 tomorrow at 7pm, I'm John, 555-1234",
		Context:   conversation.RequestContext{SelectedBusinessID: idTrattoria},
	})
	if err != nil {
		t.Fatal(err)
	}

	bookings := f.st.Bookings()
	if len(bookings) != 1 {
		t.Fatalf("expected one booking, got %d", len(bookings))
	}
	code := action.ConfirmationCode(action.BookingPrefix, bookings[0].ID)
	want := "Your table for 4 at Luigi's Trattoria is booked for Tuesday, March 3 at 7:00 PM. Confirmation code: " + code + "."
	if reply.Message != want {
		t.Fatalf("reply = %q\nwant    %q", reply.Message, want)
	}

	md := reply.Metadata
	if md.Confirmation != code || md.Capability != string(CapabilityBooking) || md.Intent != intent.ServiceBooking {
		t.Fatalf("metadata = %+v", md)
	}
	if !slices.Equal(md.ToolsUsed, []string{"fill_slots", "execute_action"}) {
		t.Fatalf("tools = %v", md.ToolsUsed)
	}
	if md.Stage != conversation.StageIdle {
		t.Fatalf("stage = %s", md.Stage)
	}
	if !md.Degraded || md.Fallbacks[AgentRouter] != string(SourceCaller) || md.Fallbacks[AgentSlotFilling] != string(SourceCaller) {
		t.Fatalf("fallbacks not reported: %+v", md)
	}
	if _, ok := md.Fallbacks[AgentExecution]; ok {
		t.Fatal("execution reported as degraded")
	}
	if !slices.Contains(quickIDs(reply.QuickActions), "cancel_booking:"+code) {
		t.Fatalf("quick actions = %v", quickIDs(reply.QuickActions))
	}

	st := f.state(t, "s1")
	if len(st.Turns) != 2 || st.Turns[1].Content != want || st.Slots != nil {
		t.Fatalf("session state = %+v", st)
	}

	found := false
	for _, m := range f.st.AllMemories() {
		if m.Key == string(action.CreateBooking) && m.Importance == 0.9 && m.UserID == "u1" {
			found = true
		}
	}
	if !found {
		t.Fatal("booking not remembered")
	}
}

func TestOrchestrator_CollectingDialogue(t *testing.T) {
	f := newTestOrchestrator(t, nil)

	reply := f.send(t, "s2", "I want to book a table")
	st := f.state(t, "s2")
	if st.Stage != conversation.StageCollecting || st.Slots == nil || st.Slots.Asked != slot.BusinessName {
		t.Fatalf("state after first turn = %+v", st)
	}
	if !strings.Contains(reply.Message, "?") {
		t.Fatalf("expected a question, got %q", reply.Message)
	}
	if got := quickIDs(reply.QuickActions); !slices.Equal(got, []string{"cancel", "select:" + idTrattoria, "select:" + idSushi}) {
		t.Fatalf("quick actions = %v", got)
	}

	reply = f.send(t, "s2", "Sakura Sushi Bar")
	st = f.state(t, "s2")
	if st.Stage != conversation.StageCollecting || st.Slots.Values[slot.BusinessName] != "Sakura Sushi Bar" {
		t.Fatalf("business not captured: %+v", st.Slots)
	}
	if st.Slots.Asked != slot.CustomerName || st.SelectedBusinessID != idSushi {
		t.Fatalf("asked %q selected %q", st.Slots.Asked, st.SelectedBusinessID)
	}
	if reply.Metadata.Capability != string(CapabilityBooking) || !slices.Equal(reply.Metadata.ToolsUsed, []string{"fill_slots"}) {
		t.Fatalf("metadata = %+v", reply.Metadata)
	}
	if _, ok := reply.Metadata.Fallbacks[AgentRouter]; ok {
		t.Fatal("router ran during an active dialogue")
	}

	reply = f.send(t, "s2", "never mind")
	st = f.state(t, "s2")
	if st.Stage != conversation.StageIdle || st.Slots != nil {
		t.Fatalf("dialogue not reset: %+v", st)
	}
	if !strings.Contains(reply.Message, "cancelled") {
		t.Fatalf("reply = %q", reply.Message)
	}
	if len(f.st.Bookings()) != 0 {
		t.Fatal("abandoned dialogue wrote a booking")
	}
}

func TestOrchestrator_ListingAndSelection(t *testing.T) {
	f := newTestOrchestrator(t, nil)

	reply := f.send(t, "s3", "Where can I find ramen or pizza?")
	if !strings.HasPrefix(reply.Message, "Here's what I found:") {
		t.Fatalf("reply = %q", reply.Message)
	}
	if reply.Metadata.Capability != string(CapabilityInformation) {
		t.Fatalf("capability = %s", reply.Metadata.Capability)
	}
	st := f.state(t, "s3")
	if st.Stage != conversation.StageAwaitingSelection || len(st.Listed) != 2 {
		t.Fatalf("state = %+v", st)
	}
	if got := quickIDs(reply.QuickActions); !slices.Equal(got, []string{"select:" + idTrattoria, "select:" + idSushi}) {
		t.Fatalf("quick actions = %v", got)
	}

	reply = f.send(t, "s3", "the second one")
	if reply.Message != "Great choice! Sakura Sushi Bar (restaurant). Would you like to book, or ask something about them?" {
		t.Fatalf("reply = %q", reply.Message)
	}
	if got := quickIDs(reply.QuickActions); !slices.Equal(got, []string{"book:" + idSushi, "info:" + idSushi}) {
		t.Fatalf("quick actions = %v", got)
	}
	st = f.state(t, "s3")
	if st.Stage != conversation.StageIdle || st.SelectedBusinessID != idSushi || st.Listed != nil {
		t.Fatalf("state = %+v", st)
	}
}

func TestOrchestrator_CancelByConfirmationCode(t *testing.T) {
	f := newTestOrchestrator(t, nil)
	created, err := f.exec.Execute(context.Background(), bookingPayload())
	if err != nil || !created.Success {
		t.Fatalf("setup booking: %+v, %v", created, err)
	}

	reply := f.send(t, "s4", "Please cancel my booking "+strings.ToLower(created.ConfirmationCode))

	want := "Your booking " + created.ConfirmationCode + " at Luigi's Trattoria has been cancelled."
	if reply.Message != want {
		t.Fatalf("reply = %q\nwant    %q", reply.Message, want)
	}
	if reply.Metadata.Capability != string(CapabilityManage) || reply.Metadata.Confirmation != created.ConfirmationCode {
		t.Fatalf("metadata = %+v", reply.Metadata)
	}
	if f.st.Bookings()[0].Status != action.StatusCancelled {
		t.Fatal("booking still active")
	}
}

func TestOrchestrator_GreetingWithoutModel(t *testing.T) {
	f := newTestOrchestrator(t, nil)

	reply := f.send(t, "s5", "hello there")
	want := "Hi! I can answer questions about local businesses and take care of bookings and orders. " +
		"Right now I can help with: grocery, restaurant, salon. What can I do for you?"
	if reply.Message != want {
		t.Fatalf("reply = %q", reply.Message)
	}
	if got := quickIDs(reply.QuickActions); !slices.Equal(got, []string{"browse:grocery", "browse:restaurant", "browse:salon"}) {
		t.Fatalf("quick actions = %v", got)
	}
	if reply.Metadata.Fallbacks[AgentResponder] != string(SourceCaller) {
		t.Fatalf("fallbacks = %v", reply.Metadata.Fallbacks)
	}
	if len(reply.Metadata.ToolsUsed) != 0 || reply.Metadata.ToolsUsed == nil {
		t.Fatalf("tools = %#v", reply.Metadata.ToolsUsed)
	}
}

func TestOrchestrator_ModelRoutedAnswer(t *testing.T) {
	m := &mockLLM{reply: func(req llm.Request) (*llm.Response, error) {
		if len(req.Tools) > 0 {
			return &llm.Response{ToolCalls: []llm.ToolCall{{
				ID:        "call-1",
				Name:      "answer_question",
				Arguments: json.RawMessage(`{"question":"Do you have ramen?"}`),
			}}}, nil
		}
		return &llm.Response{Content: "Sakura Sushi Bar serves Tonkotsu Ramen."}, nil
	}}
	f := newTestOrchestrator(t, m)

	reply := f.send(t, "s6", "got any ramen around here")
	if reply.Message != "Sakura Sushi Bar serves Tonkotsu Ramen." {
		t.Fatalf("reply = %q", reply.Message)
	}
	md := reply.Metadata
	if md.Degraded || md.Fallbacks != nil {
		t.Fatalf("healthy turn reported degraded: %+v", md)
	}
	if md.Capability != string(CapabilityInformation) || !slices.Equal(md.ToolsUsed, []string{"answer_question"}) {
		t.Fatalf("metadata = %+v", md)
	}
	if m.callCount() != 2 {
		t.Fatalf("expected router and synthesis calls, got %d", m.callCount())
	}
	if st := f.state(t, "s6"); st.SelectedBusinessID != idSushi {
		t.Fatalf("single match not selected: %q", st.SelectedBusinessID)
	}
}

func TestOrchestrator_RejectsEmptyMessage(t *testing.T) {
	f := newTestOrchestrator(t, nil)
	_, err := f.o.HandleMessage(context.Background(), conversation.Request{SessionID: "s1", Message: "   "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrchestrator_SameSessionTurnsSerialized(t *testing.T) {
	f := newTestOrchestrator(t, nil)

	var wg sync.WaitGroup
	for _, msg := range []string{"hello there", "hi again"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.o.HandleMessage(context.Background(), conversation.Request{SessionID: "s7", Message: msg}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if st := f.state(t, "s7"); len(st.Turns) != 4 {
		t.Fatalf("expected both turns recorded, got %d turns", len(st.Turns))
	}
}

func TestOrchestrator_Stream(t *testing.T) {
	f := newTestOrchestrator(t, nil)

	var chunks []conversation.Chunk
	reply, err := f.o.Stream(context.Background(), conversation.Request{SessionID: "s8", Message: "hello there"},
		func(c conversation.Chunk) error {
			chunks = append(chunks, c)
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	var joined strings.Builder
	for i, c := range chunks {
		if c.Index != i || c.Final != (i == len(chunks)-1) {
			t.Fatalf("chunk %d = %+v", i, c)
		}
		joined.WriteString(c.Text)
	}
	if joined.String() != reply.Message {
		t.Fatalf("chunks = %q, reply = %q", joined.String(), reply.Message)
	}
}

func TestOrchestrator_StreamStopsOnEmitError(t *testing.T) {
	f := newTestOrchestrator(t, nil)
	errGone := errors.New("client gone")

	calls := 0
	reply, err := f.o.Stream(context.Background(), conversation.Request{SessionID: "s9", Message: "hello there"},
		func(c conversation.Chunk) error {
			calls++
			if c.Index == 1 {
				return errGone
			}
			return nil
		})
	if !errors.Is(err, errGone) {
		t.Fatalf("expected emit error, got %v", err)
	}
	if calls != 2 || reply.Message == "" {
		t.Fatalf("calls = %d, reply = %q", calls, reply.Message)
	}
	if st := f.state(t, "s9"); len(st.Turns) != 2 {
		t.Fatal("turn not committed before streaming")
	}
}

func TestChunkWords(t *testing.T) {
	got := chunkWords("one two  three four\nfive", 2)
	want := []string{"one two  ", "three four\n", "five"}
	if !slices.Equal(got, want) {
		t.Fatalf("chunkWords = %q, want %q", got, want)
	}
	if got := chunkWords("", 3); !slices.Equal(got, []string{""}) {
		t.Fatalf("empty = %q", got)
	}
	if got := chunkWords("a b", 0); !slices.Equal(got, []string{"a ", "b"}) {
		t.Fatalf("n=0 = %q", got)
	}
}

func TestTimeContext(t *testing.T) {
	if got := timeContext(testNow); got != "Monday evening in spring (2026-03-02 18:30)" {
		t.Fatalf("timeContext = %q", got)
	}
}
