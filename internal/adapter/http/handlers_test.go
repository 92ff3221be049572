package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	ahttp "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/http"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/memstore"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/ristretto"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/config"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/health"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/memory"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/middleware"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/service"
)

// --- mocks ---

type mockChat struct {
	calls atomic.Int32
	err   error
}

func (m *mockChat) HandleMessage(_ context.Context, req conversation.Request) (conversation.Reply, error) {
	m.calls.Add(1)
	if m.err != nil {
		return conversation.Reply{}, m.err
	}
	if req.SessionID == "" || req.Message == "" {
		return conversation.Reply{}, fmt.Errorf("%w: session_id and message are required", domain.ErrValidation)
	}
	return conversation.Reply{SessionID: req.SessionID, Message: "echo: " + req.Message}, nil
}

type mockAgents struct {
	records  []health.Record
	degraded bool
}

func (m *mockAgents) Health() []health.Record { return m.records }
func (m *mockAgents) DegradationMode() bool   { return m.degraded }

type mockMemory struct {
	gotLimit int
	gotTypes []memory.Type
	lineage  *memory.Lineage
}

func (m *mockMemory) Retrieve(_ context.Context, sessionID string, limit int, types ...memory.Type) ([]memory.Memory, error) {
	m.gotLimit, m.gotTypes = limit, types
	if sessionID == "empty" {
		return nil, nil
	}
	return []memory.Memory{{ID: "m1", SessionID: sessionID, Type: memory.ShortTerm, Key: "booking", Value: "table for 2"}}, nil
}

func (m *mockMemory) SemanticSearch(_ context.Context, _, query string, _ int) []memory.ScoredMemory {
	if query == "nothing" {
		return nil
	}
	return []memory.ScoredMemory{{Memory: memory.Memory{ID: "m1"}, Score: 0.9}}
}

func (m *mockMemory) Consolidate(context.Context, string) (*memory.Lineage, error) {
	return m.lineage, nil
}

func newRouter(h *ahttp.Handlers, guards ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(ahttp.Logger)
	ahttp.MountRoutes(r, h, ahttp.Sockets{}, guards...)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- chat ---

func TestChat(t *testing.T) {
	chat := &mockChat{}
	r := newRouter(&ahttp.Handlers{Conversations: chat})

	w := do(t, r, http.MethodPost, "/api/v1/chat", `{"session_id":"s1","message":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	var reply conversation.Reply
	if err := json.NewDecoder(w.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.SessionID != "s1" || reply.Message != "echo: hi" {
		t.Fatalf("reply = %+v", reply)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID on response")
	}
}

func TestChat_SessionFromHeader(t *testing.T) {
	r := newRouter(&ahttp.Handlers{Conversations: &mockChat{}})
	w := do(t, r, http.MethodPost, "/api/v1/chat", `{"message":"hi"}`, "X-Session-ID", "hdr-1")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"session_id":"hdr-1"`) {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name   string
		chat   *mockChat
		body   string
		status int
		errMsg string
		code   string
	}{
		{"invalid json", &mockChat{}, `{`, http.StatusBadRequest, "invalid request body", "bad_request"},
		{"validation", &mockChat{}, `{"session_id":"s1"}`, http.StatusBadRequest, "session_id and message are required", "bad_request"},
		{"internal", &mockChat{err: errors.New("boom")}, `{"session_id":"s1","message":"x"}`, http.StatusInternalServerError, "internal server error", "internal"},
		{"too large", &mockChat{}, `{"session_id":"s1","message":"` + strings.Repeat("a", 200) + `"}`, http.StatusRequestEntityTooLarge, "request body too large", "body_too_large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&ahttp.Handlers{Conversations: tt.chat, MaxBodySize: 128})
			w := do(t, r, http.MethodPost, "/api/v1/chat", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body=%s)", w.Code, tt.status, w.Body)
			}
			var resp struct {
				Error     string `json:"error"`
				Code      string `json:"code"`
				RequestID string `json:"request_id"`
			}
			_ = json.NewDecoder(w.Body).Decode(&resp)
			if resp.Error != tt.errMsg || resp.Code != tt.code {
				t.Fatalf("error = %q (%s), want %q (%s)", resp.Error, resp.Code, tt.errMsg, tt.code)
			}
			if resp.RequestID == "" || resp.RequestID != w.Header().Get("X-Request-ID") {
				t.Fatalf("request_id = %q, header %q", resp.RequestID, w.Header().Get("X-Request-ID"))
			}
		})
	}
}

func TestChat_Guards(t *testing.T) {
	l1, err := ristretto.New(8)
	if err != nil {
		t.Fatal(err)
	}
	chat := &mockChat{}
	r := newRouter(&ahttp.Handlers{Conversations: chat, Agents: &mockAgents{}},
		middleware.NewRateLimiter(0.0001, 2).Handler,
		middleware.Idempotency(l1, time.Minute),
	)
	body := `{"session_id":"s1","message":"book it"}`

	first := do(t, r, http.MethodPost, "/api/v1/chat", body, "Idempotency-Key", "k1", "X-Session-ID", "s1")
	second := do(t, r, http.MethodPost, "/api/v1/chat", body, "Idempotency-Key", "k1", "X-Session-ID", "s1")
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replayed response")
	}
	if chat.calls.Load() != 1 {
		t.Fatalf("chat called %d times, want 1", chat.calls.Load())
	}

	third := do(t, r, http.MethodPost, "/api/v1/chat", body, "X-Session-ID", "s1")
	if third.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", third.Code)
	}

	// Guards do not apply outside the chat group.
	for range 3 {
		if w := do(t, r, http.MethodGet, "/api/v1/agents/health", "", "X-Session-ID", "s1"); w.Code != http.StatusOK {
			t.Fatalf("agents health status = %d", w.Code)
		}
	}
}

// --- agents ---

func TestAgentHealth(t *testing.T) {
	agents := &mockAgents{
		records: []health.Record{
			{Agent: "intent_classifier", Status: health.StatusHealthy},
			{Agent: "retrieval", Status: health.StatusUnhealthy},
		},
		degraded: true,
	}
	r := newRouter(&ahttp.Handlers{Agents: agents})
	w := do(t, r, http.MethodGet, "/api/v1/agents/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		DegradationMode bool            `json:"degradation_mode"`
		Agents          []health.Record `json:"agents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.DegradationMode || len(resp.Agents) != 2 || resp.Agents[1].Status != health.StatusUnhealthy {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestAgentHealth_EmptyIsArray(t *testing.T) {
	r := newRouter(&ahttp.Handlers{Agents: &mockAgents{}})
	w := do(t, r, http.MethodGet, "/api/v1/agents/health", "")
	if !strings.Contains(w.Body.String(), `"agents":[]`) {
		t.Fatalf("body = %s", w.Body)
	}
}

// --- memories ---

func TestSessionMemories(t *testing.T) {
	mem := &mockMemory{}
	r := newRouter(&ahttp.Handlers{Memory: mem})

	w := do(t, r, http.MethodGet, "/api/v1/sessions/s1/memories?limit=500&type=short_term,long_term", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	if mem.gotLimit != 100 {
		t.Fatalf("limit = %d, want capped 100", mem.gotLimit)
	}
	if len(mem.gotTypes) != 2 || mem.gotTypes[1] != memory.LongTerm {
		t.Fatalf("types = %v", mem.gotTypes)
	}
	var ms []memory.Memory
	if err := json.NewDecoder(w.Body).Decode(&ms); err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 || ms[0].SessionID != "s1" {
		t.Fatalf("memories = %+v", ms)
	}

	w = do(t, r, http.MethodGet, "/api/v1/sessions/empty/memories", "")
	if strings.TrimSpace(w.Body.String()) != "[]" || mem.gotLimit != 20 {
		t.Fatalf("body = %s limit = %d", w.Body, mem.gotLimit)
	}
}

func TestSessionMemories_BadQuery(t *testing.T) {
	r := newRouter(&ahttp.Handlers{Memory: &mockMemory{}})
	for _, q := range []string{"limit=0", "limit=abc", "type=forever"} {
		if w := do(t, r, http.MethodGet, "/api/v1/sessions/s1/memories?"+q, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", q, w.Code)
		}
	}
}

func TestSearchMemories(t *testing.T) {
	r := newRouter(&ahttp.Handlers{Memory: &mockMemory{}})
	if w := do(t, r, http.MethodGet, "/api/v1/sessions/s1/memories/search", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing q: status = %d", w.Code)
	}
	w := do(t, r, http.MethodGet, "/api/v1/sessions/s1/memories/search?q=pizza", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"score":0.9`) {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	w = do(t, r, http.MethodGet, "/api/v1/sessions/s1/memories/search?q=nothing", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("body = %s", w.Body)
	}
}

func TestConsolidateMemories(t *testing.T) {
	mem := &mockMemory{}
	r := newRouter(&ahttp.Handlers{Memory: mem})
	if w := do(t, r, http.MethodPost, "/api/v1/sessions/s1/memories/consolidate", ""); w.Code != http.StatusNoContent {
		t.Fatalf("below threshold: status = %d", w.Code)
	}
	mem.lineage = &memory.Lineage{SummaryID: "sum", ArchivedIDs: []string{"a", "b"}}
	w := do(t, r, http.MethodPost, "/api/v1/sessions/s1/memories/consolidate", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"summary_id":"sum"`) {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
}

// --- readiness ---

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		probes   []ahttp.Probe
		degraded bool
		status   int
		want     string
	}{
		{"all ok", []ahttp.Probe{{Name: "store", Required: true, Check: ok}}, false, http.StatusOK, "ok"},
		{"optional down", []ahttp.Probe{{Name: "store", Required: true, Check: ok}, {Name: "llm", Check: down}}, false, http.StatusOK, "degraded"},
		{"required down", []ahttp.Probe{{Name: "store", Required: true, Check: down}, {Name: "llm", Check: down}}, false, http.StatusServiceUnavailable, "unavailable"},
		{"agents degraded", []ahttp.Probe{{Name: "store", Required: true, Check: ok}}, true, http.StatusOK, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&ahttp.Handlers{Probes: tt.probes, Agents: &mockAgents{degraded: tt.degraded}})
			w := do(t, r, http.MethodGet, "/health", "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var resp struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.want || len(resp.Checks) != len(tt.probes) {
				t.Fatalf("resp = %+v", resp)
			}
		})
	}
}

// --- end to end ---

// TestChat_WithOrchestrator runs a turn through the real services on the
// seeded in-memory store with no language model configured.
func TestChat_WithOrchestrator(t *testing.T) {
	cfg := config.Defaults()
	st := memstore.New()
	if n := st.Seed(); n == 0 {
		t.Fatal("seed created no businesses")
	}
	l1, err := ristretto.New(8)
	if err != nil {
		t.Fatal(err)
	}

	sup := service.NewSupervisor(service.SupervisorConfigFrom(cfg.Supervisor, cfg.Breaker), nil)
	t.Cleanup(sup.Close)
	mem := service.NewMemoryManager(st, nil, nil, cfg.Memory)
	orch := service.NewOrchestrator(sup, nil, service.Agents{
		Intent:    service.NewIntentAgent(nil),
		Slots:     service.NewSlotFillingAgent(nil),
		Retrieval: service.NewRAGAgent(nil),
		Execution: service.NewExecutionAgent(st, st, nil),
		Memory:    mem,
	}, service.NewCatalogService(st, l1, time.Minute), service.NewSessionStore(l1, time.Hour), cfg.Stream)
	if err := orch.RegisterAgents(); err != nil {
		t.Fatal(err)
	}

	r := newRouter(&ahttp.Handlers{Conversations: orch, Agents: sup, Memory: mem})

	w := do(t, r, http.MethodPost, "/api/v1/chat", `{"session_id":"e2e","message":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	var reply conversation.Reply
	if err := json.NewDecoder(w.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.SessionID != "e2e" || reply.Message == "" {
		t.Fatalf("reply = %+v", reply)
	}

	w = do(t, r, http.MethodGet, "/api/v1/agents/health", "")
	var ah struct {
		Agents []health.Record `json:"agents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&ah); err != nil {
		t.Fatal(err)
	}
	if len(ah.Agents) == 0 {
		t.Fatal("expected registered agents in health report")
	}
}
