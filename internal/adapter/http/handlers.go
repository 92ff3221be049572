package http

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/health"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/memory"
)

const (
	defaultMaxBodySize = 64 << 10
	defaultMemoryLimit = 20
	maxMemoryLimit     = 100
	probeTimeout       = 2 * time.Second
)

// ChatService runs one conversation turn.
type ChatService interface {
	HandleMessage(ctx context.Context, req conversation.Request) (conversation.Reply, error)
}

// HealthReporter exposes per-agent health and the degradation flag.
type HealthReporter interface {
	Health() []health.Record
	DegradationMode() bool
}

// MemoryService is the slice of the memory manager the API exposes.
type MemoryService interface {
	Retrieve(ctx context.Context, sessionID string, limit int, types ...memory.Type) ([]memory.Memory, error)
	SemanticSearch(ctx context.Context, sessionID, query string, limit int) []memory.ScoredMemory
	Consolidate(ctx context.Context, sessionID string) (*memory.Lineage, error)
}

// Probe checks one dependency for GET /health. A nil error means "ok".
type Probe struct {
	Name string
	// Required probes turn the overall status to "unavailable" when they fail;
	// optional ones only mark it "degraded".
	Required bool
	Check    func(ctx context.Context) error
}

// Handlers holds the services the HTTP API is built on.
type Handlers struct {
	Conversations ChatService
	Agents        HealthReporter
	Memory        MemoryService
	Probes        []Probe
	MaxBodySize   int64
}

func (h *Handlers) bodyLimit() int64 {
	if h.MaxBodySize > 0 {
		return h.MaxBodySize
	}
	return defaultMaxBodySize
}

// Chat handles POST /api/v1/chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[conversation.Request](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get("X-Session-ID")
	}
	reply, err := h.Conversations.HandleMessage(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeDomainError(w, r, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type agentHealthResponse struct {
	DegradationMode bool            `json:"degradation_mode"`
	Agents          []health.Record `json:"agents"`
}

// AgentHealth handles GET /api/v1/agents/health
func (h *Handlers) AgentHealth(w http.ResponseWriter, _ *http.Request) {
	records := h.Agents.Health()
	if records == nil {
		records = []health.Record{}
	}
	writeJSON(w, http.StatusOK, agentHealthResponse{
		DegradationMode: h.Agents.DegradationMode(),
		Agents:          records,
	})
}

// SessionMemories handles GET /api/v1/sessions/{id}/memories?limit=&type=
func (h *Handlers) SessionMemories(w http.ResponseWriter, r *http.Request) {
	sessionID := urlParam(r, "id")
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	types, err := parseTypes(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	ms, err := h.Memory.Retrieve(r.Context(), sessionID, limit, types...)
	if err != nil {
		writeDomainError(w, r, err, "session not found")
		return
	}
	if ms == nil {
		ms = []memory.Memory{}
	}
	writeJSON(w, http.StatusOK, ms)
}

// SearchMemories handles GET /api/v1/sessions/{id}/memories/search?q=
func (h *Handlers) SearchMemories(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "q is required")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	scored := h.Memory.SemanticSearch(r.Context(), urlParam(r, "id"), q, limit)
	if scored == nil {
		scored = []memory.ScoredMemory{}
	}
	writeJSON(w, http.StatusOK, scored)
}

// ConsolidateMemories handles POST /api/v1/sessions/{id}/memories/consolidate
func (h *Handlers) ConsolidateMemories(w http.ResponseWriter, r *http.Request) {
	lineage, err := h.Memory.Consolidate(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "session not found")
		return
	}
	if lineage == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, lineage)
}

type healthResponse struct {
	Status          string            `json:"status"`
	DegradationMode bool              `json:"degradation_mode"`
	Checks          map[string]string `json:"checks"`
}

// Health handles GET /health. Probes run concurrently with a short timeout.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.Probes))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range h.Probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := "ok"
			if err := p.Check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			resp.Checks[p.Name] = result
			if result == "ok" {
				return
			}
			if p.Required {
				resp.Status = "unavailable"
			} else if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}()
	}
	wg.Wait()

	if h.Agents != nil && h.Agents.DegradationMode() {
		resp.DegradationMode = true
		if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultMemoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxMemoryLimit), nil
}

func parseTypes(raw string) ([]memory.Type, error) {
	if raw == "" {
		return nil, nil
	}
	var out []memory.Type
	for _, part := range strings.Split(raw, ",") {
		t := memory.Type(strings.TrimSpace(part))
		if !slices.Contains(memory.ValidTypes, t) {
			return nil, errors.New("unknown memory type " + string(t))
		}
		out = append(out, t)
	}
	return out, nil
}
