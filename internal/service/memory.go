package service

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/config"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/memory"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/database"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/messagequeue"
)

// summaryKey is the key of long-term consolidation summaries.
const summaryKey = "conversation_summary"

// MemoryManager stores session memories with type-based retention and folds
// short-term records into long-term summaries.
type MemoryManager struct {
	store    database.MemoryStore
	embedder llm.Embedder
	queue    messagequeue.Publisher
	cfg      config.Memory
	now      func() time.Time

	locks sync.Map // session id -> *sync.Mutex
}

// NewMemoryManager creates a memory manager. embedder and queue may be nil.
func NewMemoryManager(store database.MemoryStore, embedder llm.Embedder, queue messagequeue.Publisher, cfg config.Memory) *MemoryManager {
	return &MemoryManager{store: store, embedder: embedder, queue: queue, cfg: cfg, now: time.Now}
}

// SemanticEnabled reports whether semantic retrieval is switched on and an
// embedder is reachable.
func (m *MemoryManager) SemanticEnabled() bool {
	return m.cfg.SemanticEnabled && m.embedder != nil && m.embedder.Available()
}

// TTL returns the retention period of a memory type.
func (m *MemoryManager) TTL(t memory.Type) time.Duration {
	switch t {
	case memory.LongTerm:
		return m.cfg.LongTermTTL
	case memory.Archived:
		return m.cfg.ArchivedTTL
	}
	return m.cfg.ShortTermTTL
}

// Store persists a memory with the expiry of its type. Storing a short-term
// memory may trigger consolidation of the session.
func (m *MemoryManager) Store(ctx context.Context, req memory.StoreRequest) (*memory.Memory, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	now := m.now()
	mem := &memory.Memory{
		ID:         uuid.NewString(),
		SessionID:  req.SessionID,
		UserID:     req.UserID,
		Type:       req.Type,
		Key:        req.Key,
		Value:      req.Value,
		Importance: req.Importance,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.TTL(req.Type)),
	}
	m.embed(ctx, mem)

	if err := m.store.CreateMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}
	slog.DebugContext(ctx, "memory stored", "session_id", mem.SessionID, "type", mem.Type, "key", mem.Key)

	if mem.Type == memory.ShortTerm {
		if _, err := m.Consolidate(ctx, req.SessionID); err != nil {
			slog.WarnContext(ctx, "memory consolidation failed", "session_id", req.SessionID, "error", err)
		}
	}
	return mem, nil
}

// Retrieve returns up to limit unexpired memories of the session ranked by
// importance, then recency. A limit of zero returns all. Access counts of the
// returned records are bumped.
func (m *MemoryManager) Retrieve(ctx context.Context, sessionID string, limit int, types ...memory.Type) ([]memory.Memory, error) {
	ms, err := m.store.ListMemories(ctx, sessionID, types...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	now := m.now()
	ms = slices.DeleteFunc(ms, func(x memory.Memory) bool { return x.Expired(now) })
	memory.Rank(ms)
	if limit > 0 && len(ms) > limit {
		ms = ms[:limit]
	}
	m.touch(ctx, ms, now)
	return ms, nil
}

// Consolidate folds the session's short-term memories into one long-term
// summary once there are at least the configured threshold of them. The
// originals are archived with an extended expiry, never deleted. It returns
// nil when nothing was consolidated.
func (m *MemoryManager) Consolidate(ctx context.Context, sessionID string) (*memory.Lineage, error) {
	mu := m.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	short, err := m.store.ListMemories(ctx, sessionID, memory.ShortTerm)
	if err != nil {
		return nil, fmt.Errorf("list short-term memories: %w", err)
	}
	now := m.now()
	short = slices.DeleteFunc(short, func(x memory.Memory) bool { return x.Expired(now) })
	if len(short) < m.cfg.ConsolidationThreshold {
		return nil, nil
	}

	slices.SortStableFunc(short, func(a, b memory.Memory) int { return a.CreatedAt.Compare(b.CreatedAt) })
	lines := make([]string, 0, len(short))
	ids := make([]string, 0, len(short))
	importance := 0.0
	userID := ""
	for _, s := range short {
		lines = append(lines, s.Key+": "+s.Value)
		ids = append(ids, s.ID)
		importance = max(importance, s.Importance)
		userID = cmp.Or(userID, s.UserID)
	}

	summary := &memory.Memory{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		UserID:     userID,
		Type:       memory.LongTerm,
		Key:        summaryKey,
		Value:      strings.Join(lines, "\n"),
		Importance: importance,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.cfg.LongTermTTL),
	}
	m.embed(ctx, summary)
	if err := m.store.ConsolidateMemories(ctx, summary, ids, now.Add(m.cfg.ArchivedTTL)); err != nil {
		return nil, fmt.Errorf("consolidate memories: %w", err)
	}

	lineage := &memory.Lineage{SummaryID: summary.ID, ArchivedIDs: ids}
	slog.InfoContext(ctx, "memories consolidated",
		"session_id", sessionID,
		"summary_id", summary.ID,
		"archived_ids", ids,
	)
	m.publishLineage(ctx, sessionID, lineage)
	return lineage, nil
}

// SemanticSearch ranks the session's embedded memories by cosine similarity
// to the query. It is a no-op returning nil when semantic retrieval is off or
// the embedder fails.
func (m *MemoryManager) SemanticSearch(ctx context.Context, sessionID, query string, limit int) []memory.ScoredMemory {
	if !m.SemanticEnabled() || strings.TrimSpace(query) == "" {
		return nil
	}
	vecs, err := m.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		slog.DebugContext(ctx, "semantic search unavailable", "error", err)
		return nil
	}
	ms, err := m.store.ListMemories(ctx, sessionID, memory.ShortTerm, memory.LongTerm)
	if err != nil {
		slog.WarnContext(ctx, "semantic search list failed", "session_id", sessionID, "error", err)
		return nil
	}

	now := m.now()
	var scored []memory.ScoredMemory
	for _, mem := range ms {
		if len(mem.Embedding) == 0 || mem.Expired(now) {
			continue
		}
		scored = append(scored, memory.ScoredMemory{Memory: mem, Score: cosine(vecs[0], mem.Embedding)})
	}
	slices.SortStableFunc(scored, func(a, b memory.ScoredMemory) int { return cmp.Compare(b.Score, a.Score) })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Purge deletes records past their expiry.
func (m *MemoryManager) Purge(ctx context.Context) (int64, error) {
	return m.store.PurgeExpiredMemories(ctx, m.now())
}

func (m *MemoryManager) embed(ctx context.Context, mem *memory.Memory) {
	if !m.SemanticEnabled() {
		return
	}
	vecs, err := m.embedder.Embed(ctx, []string{mem.Key + ": " + mem.Value})
	if err != nil || len(vecs) == 0 {
		slog.DebugContext(ctx, "memory embedding skipped", "error", err)
		return
	}
	mem.Embedding = vecs[0]
}

func (m *MemoryManager) touch(ctx context.Context, ms []memory.Memory, now time.Time) {
	if len(ms) == 0 {
		return
	}
	ids := make([]string, len(ms))
	for i := range ms {
		ids[i] = ms[i].ID
		ms[i].AccessCount++
		ms[i].LastAccessedAt = now
	}
	if err := m.store.TouchMemories(ctx, ids, now); err != nil {
		slog.WarnContext(ctx, "memory touch failed", "error", err)
	}
}

func (m *MemoryManager) publishLineage(ctx context.Context, sessionID string, l *memory.Lineage) {
	if m.queue == nil {
		return
	}
	data, err := json.Marshal(struct {
		SessionID string `json:"session_id"`
		*memory.Lineage
	}{sessionID, l})
	if err != nil {
		return
	}
	if err := m.queue.Publish(ctx, messagequeue.SubjectMemoryLineage, data); err != nil {
		slog.WarnContext(ctx, "memory lineage publish failed", "error", err)
	}
}

func (m *MemoryManager) sessionLock(sessionID string) *sync.Mutex {
	v, _ := m.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
