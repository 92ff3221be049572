// Package memory provides the domain model for conversation memory with
// type-based retention and consolidation of short-term records.
package memory

import (
	"cmp"
	"errors"
	"slices"
	"time"
)

// Type is the retention class of a memory record.
type Type string

const (
	ShortTerm Type = "short_term"
	LongTerm  Type = "long_term"
	Archived  Type = "archived"
)

// ValidTypes lists all valid memory types.
var ValidTypes = []Type{ShortTerm, LongTerm, Archived}

// Memory is one stored piece of conversational context.
type Memory struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id,omitempty"`
	Type             Type      `json:"memory_type"`
	Key              string    `json:"key"`
	Value            string    `json:"value"`
	Importance       float64   `json:"importance"`
	AccessCount      int       `json:"access_count"`
	ConsolidatedInto string    `json:"consolidated_into,omitempty"`
	Embedding        []float32 `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	LastAccessedAt   time.Time `json:"last_accessed_at,omitzero"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given time.
func (m *Memory) Expired(at time.Time) bool {
	return !m.ExpiresAt.IsZero() && !at.Before(m.ExpiresAt)
}

// StoreRequest is the input for storing a memory.
type StoreRequest struct {
	SessionID  string  `json:"session_id"`
	UserID     string  `json:"user_id,omitempty"`
	Type       Type    `json:"memory_type"`
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Importance float64 `json:"importance"`
}

// Validate checks that a StoreRequest has all required fields.
func (r *StoreRequest) Validate() error {
	if r.SessionID == "" {
		return errors.New("session_id is required")
	}
	if r.Key == "" {
		return errors.New("key is required")
	}
	if r.Value == "" {
		return errors.New("value is required")
	}
	if !slices.Contains(ValidTypes, r.Type) {
		return errors.New("invalid memory_type: must be short_term, long_term, or archived")
	}
	if r.Importance < 0 || r.Importance > 1 {
		return errors.New("importance must be between 0 and 1")
	}
	return nil
}

// Rank orders memories by importance, then recency, both descending.
func Rank(ms []Memory) {
	slices.SortStableFunc(ms, func(a, b Memory) int {
		if c := cmp.Compare(b.Importance, a.Importance); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// Lineage records which short-term records a long-term summary replaced.
type Lineage struct {
	SummaryID   string   `json:"summary_id"`
	ArchivedIDs []string `json:"archived_ids"`
}

// ScoredMemory pairs a memory with its semantic similarity to a query.
type ScoredMemory struct {
	Memory
	Score float64 `json:"score"`
}
