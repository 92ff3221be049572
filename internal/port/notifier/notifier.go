// Package notifier defines the downstream event notification port.
package notifier

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Event is the JSON payload delivered after an execution action.
type Event struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"` // e.g. "booking_created"
	SessionID        string            `json:"session_id,omitempty"`
	BusinessID       string            `json:"business_id"`
	BusinessName     string            `json:"business_name,omitempty"`
	RecordID         string            `json:"record_id"`
	ConfirmationCode string            `json:"confirmation_code,omitempty"`
	Summary          string            `json:"summary"`
	Details          map[string]string `json:"details,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// Notifier delivers events to one downstream sink.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "webhook", "nats").
	Name() string

	// Send delivers an event.
	Send(ctx context.Context, event Event) error
}
