// Package database defines the persistence store port (interface).
package database

import (
	"context"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/memory"
)

// CatalogStore reads businesses and their items.
type CatalogStore interface {
	ListActiveBusinesses(ctx context.Context) ([]catalog.Business, error)
	// GetBusiness returns domain.ErrNotFound when the id is unknown. Inactive businesses are returned.
	GetBusiness(ctx context.Context, id string) (*catalog.Business, error)
	// ListAvailableItems returns available items of one business, or of all active businesses when businessID is empty.
	ListAvailableItems(ctx context.Context, businessID string) ([]catalog.Item, error)
}

// ReservationStore writes bookings and orders.
type ReservationStore interface {
	CreateBooking(ctx context.Context, b *action.Booking) (string, error)
	GetBooking(ctx context.Context, id string) (*action.Booking, error)
	// FindBookingByCode resolves the id fragment of a confirmation code.
	FindBookingByCode(ctx context.Context, fragment string) (*action.Booking, error)
	UpdateBooking(ctx context.Context, b *action.Booking) error
	// CancelBooking returns domain.ErrConflict when the booking is already cancelled.
	CancelBooking(ctx context.Context, id string) error
	CreateOrder(ctx context.Context, o *action.Order) (string, error)
}

// MemoryStore persists conversation memory rows.
type MemoryStore interface {
	CreateMemory(ctx context.Context, m *memory.Memory) error
	// ListMemories returns the unexpired memories of a session, optionally filtered by type.
	ListMemories(ctx context.Context, sessionID string, types ...memory.Type) ([]memory.Memory, error)
	// ConsolidateMemories stores summary and flips the given records to
	// archived, linked to it with an extended expiry. Either both happen or
	// neither does; an unknown id yields domain.ErrNotFound.
	ConsolidateMemories(ctx context.Context, summary *memory.Memory, ids []string, archivedUntil time.Time) error
	// TouchMemories increments access counts.
	TouchMemories(ctx context.Context, ids []string, at time.Time) error
	// PurgeExpiredMemories deletes records whose expiry is before the given time.
	PurgeExpiredMemories(ctx context.Context, before time.Time) (int64, error)
}

// Store is the port interface for all persistence operations.
type Store interface {
	CatalogStore
	ReservationStore
	MemoryStore
}
