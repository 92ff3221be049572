package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
)

const bookingColumns = `id, business_id, session_id, customer_name, phone, party_size, date, time, notes, status, created_at, updated_at`

func (s *Store) CreateBooking(ctx context.Context, b *action.Booking) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO bookings (business_id, session_id, customer_name, phone, party_size, date, time, notes, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		b.BusinessID, b.SessionID, b.CustomerName, b.Phone, b.PartySize, b.Date, b.Time, b.Notes,
		string(b.Status), b.CreatedAt, b.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create booking: %w", err)
	}
	return id, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*action.Booking, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, lookupErr(err, "get booking", id)
	}
	return &b, nil
}

// FindBookingByCode matches the first eight hex digits of the booking uuid.
func (s *Store) FindBookingByCode(ctx context.Context, fragment string) (*action.Booking, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE upper(left(id::text, 8)) = $1 ORDER BY created_at DESC LIMIT 1`,
		strings.ToUpper(fragment))
	b, err := scanBooking(row)
	if err != nil {
		return nil, lookupErr(err, "booking code", fragment)
	}
	return &b, nil
}

func (s *Store) UpdateBooking(ctx context.Context, b *action.Booking) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings SET customer_name = $2, phone = $3, party_size = $4, date = $5, time = $6,
		 notes = $7, status = $8, updated_at = $9 WHERE id = $1`,
		b.ID, b.CustomerName, b.Phone, b.PartySize, b.Date, b.Time, b.Notes, string(b.Status), b.UpdatedAt)
	return oneRow(tag, err, "update booking", b.ID)
}

// CancelBooking flips a booking to cancelled. A second cancel is a conflict.
func (s *Store) CancelBooking(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings SET status = 'cancelled', updated_at = now() WHERE id = $1 AND status <> 'cancelled'`, id)
	if err != nil {
		return fmt.Errorf("cancel booking %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetBooking(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("booking %s: %w", id, domain.ErrConflict)
}

func (s *Store) CreateOrder(ctx context.Context, o *action.Order) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO orders (business_id, session_id, customer_name, phone, items, delivery_method, address, notes, total, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		o.BusinessID, o.SessionID, o.CustomerName, o.Phone, textArray(o.Items), o.DeliveryMethod,
		o.Address, o.Notes, o.Total, string(o.Status), o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

func scanBooking(row scannable) (action.Booking, error) {
	var b action.Booking
	err := row.Scan(&b.ID, &b.BusinessID, &b.SessionID, &b.CustomerName, &b.Phone, &b.PartySize,
		&b.Date, &b.Time, &b.Notes, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
