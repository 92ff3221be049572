package action

import "time"

// RecordStatus is the lifecycle state of a booking or order.
type RecordStatus string

const (
	StatusConfirmed RecordStatus = "confirmed"
	StatusCancelled RecordStatus = "cancelled"
	StatusPending   RecordStatus = "pending"
)

// Booking is a reservation or appointment.
type Booking struct {
	ID           string       `json:"id"`
	BusinessID   string       `json:"business_id"`
	SessionID    string       `json:"session_id,omitempty"`
	CustomerName string       `json:"customer_name"`
	Phone        string       `json:"phone"`
	PartySize    int          `json:"party_size,omitempty"`
	Date         string       `json:"date"`
	Time         string       `json:"time"`
	Notes        string       `json:"notes,omitempty"`
	Status       RecordStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Order is a product order for pickup or delivery.
type Order struct {
	ID             string       `json:"id"`
	BusinessID     string       `json:"business_id"`
	SessionID      string       `json:"session_id,omitempty"`
	CustomerName   string       `json:"customer_name"`
	Phone          string       `json:"phone"`
	Items          []string     `json:"items"`
	DeliveryMethod string       `json:"delivery_method"`
	Address        string       `json:"address,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	Total          float64      `json:"total"`
	Status         RecordStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Event names published after successful writes.
const (
	EventBookingCreated   = "booking_created"
	EventOrderCreated     = "order_created"
	EventBookingCancelled = "booking_cancelled"
	EventBookingUpdated   = "booking_updated"
)
