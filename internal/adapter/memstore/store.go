// Package memstore is an in-memory implementation of the database store,
// used for local development and tests when PostgreSQL is not configured.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/memory"
)

// Store implements database.Store with maps guarded by one lock.
type Store struct {
	mu         sync.RWMutex
	businesses map[string]*catalog.Business
	items      map[string]*catalog.Item
	bookings   map[string]*action.Booking
	orders     map[string]*action.Order
	memories   map[string]*memory.Memory
	now        func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		businesses: make(map[string]*catalog.Business),
		items:      make(map[string]*catalog.Item),
		bookings:   make(map[string]*action.Booking),
		orders:     make(map[string]*action.Order),
		memories:   make(map[string]*memory.Memory),
		now:        time.Now,
	}
}

// SetClock replaces the clock used for expiry checks.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutBusiness inserts or replaces a business. A missing id is generated.
func (s *Store) PutBusiness(b catalog.Business) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.businesses[b.ID] = &b
	return b.ID
}

// PutItem inserts or replaces an item. A missing id is generated.
func (s *Store) PutItem(it catalog.Item) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	s.items[it.ID] = &it
	return it.ID
}

// --- Catalog ---

func (s *Store) ListActiveBusinesses(_ context.Context) ([]catalog.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Business, 0, len(s.businesses))
	for _, b := range s.businesses {
		if b.Active {
			out = append(out, *b)
		}
	}
	slices.SortFunc(out, func(a, b catalog.Business) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetBusiness(_ context.Context, id string) (*catalog.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[id]
	if !ok {
		return nil, fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListAvailableItems(_ context.Context, businessID string) ([]catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.Item
	for _, it := range s.items {
		if !it.Available {
			continue
		}
		if businessID != "" && it.BusinessID != businessID {
			continue
		}
		if b, ok := s.businesses[it.BusinessID]; !ok || !b.Active {
			continue
		}
		out = append(out, *it)
	}
	slices.SortFunc(out, func(a, b catalog.Item) int {
		if c := strings.Compare(a.BusinessID, b.BusinessID); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// --- Reservations ---

func (s *Store) CreateBooking(_ context.Context, b *action.Booking) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	cp.ID = uuid.NewString()
	s.bookings[cp.ID] = &cp
	return cp.ID, nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*action.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *Store) FindBookingByCode(_ context.Context, fragment string) (*action.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, b := range s.bookings {
		if codeFragment(id) == strings.ToUpper(fragment) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("booking code %s: %w", fragment, domain.ErrNotFound)
}

func (s *Store) UpdateBooking(_ context.Context, b *action.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; !ok {
		return fmt.Errorf("booking %s: %w", b.ID, domain.ErrNotFound)
	}
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *Store) CancelBooking(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if b.Status == action.StatusCancelled {
		return fmt.Errorf("booking %s: %w", id, domain.ErrConflict)
	}
	b.Status = action.StatusCancelled
	b.UpdatedAt = s.now()
	return nil
}

func (s *Store) CreateOrder(_ context.Context, o *action.Order) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	cp.ID = uuid.NewString()
	cp.Items = slices.Clone(o.Items)
	s.orders[cp.ID] = &cp
	return cp.ID, nil
}

// Bookings returns every stored booking.
func (s *Store) Bookings() []action.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]action.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, *b)
	}
	return out
}

// Orders returns every stored order.
func (s *Store) Orders() []action.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]action.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out
}

// --- Memories ---

func (s *Store) CreateMemory(_ context.Context, m *memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, exists := s.memories[m.ID]; exists {
		return fmt.Errorf("memory %s: %w", m.ID, domain.ErrConflict)
	}
	cp := *m
	s.memories[m.ID] = &cp
	return nil
}

func (s *Store) ListMemories(_ context.Context, sessionID string, types ...memory.Type) ([]memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []memory.Memory
	for _, m := range s.memories {
		if m.SessionID != sessionID || m.Expired(now) {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, m.Type) {
			continue
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b memory.Memory) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// ConsolidateMemories stores summary and archives ids under one lock.
func (s *Store) ConsolidateMemories(_ context.Context, summary *memory.Memory, ids []string, archivedUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if _, exists := s.memories[summary.ID]; exists {
		return fmt.Errorf("memory %s: %w", summary.ID, domain.ErrConflict)
	}
	for _, id := range ids {
		if _, ok := s.memories[id]; !ok {
			return fmt.Errorf("memory %s: %w", id, domain.ErrNotFound)
		}
	}
	cp := *summary
	s.memories[summary.ID] = &cp
	for _, id := range ids {
		m := s.memories[id]
		m.Type = memory.Archived
		m.ConsolidatedInto = summary.ID
		m.ExpiresAt = archivedUntil
	}
	return nil
}

func (s *Store) TouchMemories(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if m, ok := s.memories[id]; ok {
			m.AccessCount++
			m.LastAccessedAt = at
		}
	}
	return nil
}

func (s *Store) PurgeExpiredMemories(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.memories {
		if !m.ExpiresAt.IsZero() && m.ExpiresAt.Before(before) {
			delete(s.memories, id)
			n++
		}
	}
	return n, nil
}

// AllMemories returns every stored memory, including expired ones.
func (s *Store) AllMemories() []memory.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]memory.Memory, 0, len(s.memories))
	for _, m := range s.memories {
		out = append(out, *m)
	}
	return out
}

// codeFragment mirrors action.ConfirmationCode without the prefix.
func codeFragment(id string) string {
	code := action.ConfirmationCode("", id)
	return strings.TrimPrefix(code, "-")
}
