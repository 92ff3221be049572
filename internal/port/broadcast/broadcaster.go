// Package broadcast defines the port for pushing real-time events to connected clients.
package broadcast

import "context"

// Event types pushed to dashboards.
const (
	EventAgentHealth = "agent.health"
	EventDegradation = "system.degradation"
)

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Nop discards every event.
type Nop struct{}

// BroadcastEvent implements Broadcaster.
func (Nop) BroadcastEvent(context.Context, string, any) {}

// Multi fans every event out to each broadcaster in order. Nil entries are skipped.
type Multi []Broadcaster

// BroadcastEvent implements Broadcaster.
func (m Multi) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	for _, b := range m {
		if b != nil {
			b.BroadcastEvent(ctx, eventType, payload)
		}
	}
}
