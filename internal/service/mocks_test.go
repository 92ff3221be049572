package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/memstore"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/health"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/resilience"
)

// testNow is a Monday evening.
var testNow = time.Date(2026, time.March, 2, 18, 30, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// mockLLM is a scripted llm.Provider. A nil reply func behaves like an
// unconfigured provider.
type mockLLM struct {
	mu       sync.Mutex
	reply    func(req llm.Request) (*llm.Response, error)
	requests []llm.Request
	down     bool
}

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.reply
	m.mu.Unlock()
	if fn == nil {
		return nil, llm.ErrUnavailable
	}
	return fn(req)
}

func (m *mockLLM) Available() bool { return !m.down }

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// jsonReply answers every request with the same content.
func jsonReply(content string) func(llm.Request) (*llm.Response, error) {
	return func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: content}, nil
	}
}

// systemOf returns the system prompt of a request.
func systemOf(req llm.Request) string {
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			return m.Content
		}
	}
	return ""
}

// mapCache is a concurrency-safe in-memory cache.Cache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// testSupervisorConfig retries quickly and never recovers during a test
// unless the caller shortens the window.
func testSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		CallTimeout:    2 * time.Second,
		RecoveryWindow: time.Hour,
		Breaker: resilience.BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			RecoveryTimeout:  time.Hour,
		},
	}
}

func newTestSupervisor(t *testing.T, cfg SupervisorConfig) *Supervisor {
	t.Helper()
	s := NewSupervisor(cfg, nil)
	t.Cleanup(s.Close)
	return s
}

// waitForStatus polls until the agent reaches want or the deadline passes.
func waitForStatus(t *testing.T, s *Supervisor, agent string, want health.Status) health.Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, ok := s.AgentHealth(agent)
		if !ok {
			t.Fatalf("agent %s not registered", agent)
		}
		if rec.Status == want {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent %s status = %s, want %s", agent, rec.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Fixture ids for the test catalog.
const (
	idTrattoria = "b-trattoria"
	idSushi     = "b-sushi"
	idSalon     = "b-salon"
	idGrocer    = "b-grocer"
	idClosed    = "b-closed"
)

// newTestStore returns a memstore with a small fixed catalog.
func newTestStore(t *testing.T) *memstore.Store {
	t.Helper()
	st := memstore.New()
	st.SetClock(fixedClock(testNow))
	for _, b := range []catalog.Business{
		{ID: idTrattoria, Name: "Luigi's Trattoria", Category: "restaurant", Description: "Italian trattoria with wood-fired pizza", Hours: "12:00-22:00", Tags: []string{"italian", "pizza"}, Active: true},
		{ID: idSushi, Name: "Sakura Sushi Bar", Category: "restaurant", Description: "Sushi and ramen", Tags: []string{"japanese", "sushi"}, Active: true},
		{ID: idSalon, Name: "Glow Hair Studio", Category: "salon", Description: "Cuts and colour by appointment", Tags: []string{"haircut"}, Active: true},
		{ID: idGrocer, Name: "Green Basket Grocery", Category: "grocery", Description: "Organic produce with delivery", Tags: []string{"organic"}, Active: true},
		{ID: idClosed, Name: "Old Town Books", Category: "retail", Description: "Closed for renovation", Active: false},
	} {
		st.PutBusiness(b)
	}
	for _, it := range []catalog.Item{
		{ID: "i-pizza", BusinessID: idTrattoria, Name: "Margherita Pizza", Description: "Tomato, mozzarella and basil", Price: 11.5, Available: true},
		{ID: "i-tiramisu", BusinessID: idTrattoria, Name: "Tiramisu", Description: "Coffee dessert", Price: 6.5, Available: true},
		{ID: "i-ramen", BusinessID: idSushi, Name: "Tonkotsu Ramen", Description: "Pork broth noodles", Price: 13, Available: true},
		{ID: "i-cut", BusinessID: idSalon, Name: "Men's Haircut", Description: "Cut and style", Price: 25, Available: true},
		{ID: "i-eggs", BusinessID: idGrocer, Name: "Organic Eggs", Description: "Dozen free range eggs", Price: 5.5, Available: true},
		{ID: "i-bread", BusinessID: idGrocer, Name: "Sourdough Loaf", Description: "Baked this morning", Price: 4.75, Available: true},
	} {
		st.PutItem(it)
	}
	return st
}

// testSnapshot loads the catalog of a test store.
func testSnapshot(t *testing.T, st *memstore.Store) *catalog.Snapshot {
	t.Helper()
	ctx := context.Background()
	bs, err := st.ListActiveBusinesses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	items, err := st.ListAvailableItems(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	return &catalog.Snapshot{Businesses: bs, Items: items, TakenAt: testNow}
}

func mustBusiness(t *testing.T, snap *catalog.Snapshot, id string) *catalog.Business {
	t.Helper()
	b, ok := snap.Business(id)
	if !ok {
		t.Fatalf("business %s not in snapshot", id)
	}
	return &b
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
