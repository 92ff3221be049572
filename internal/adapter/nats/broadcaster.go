package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/messagequeue"
)

// Broadcaster mirrors dashboard events onto assistant.agents.health so
// services without a socket can follow agent health.
type Broadcaster struct {
	queue messagequeue.Publisher
}

// NewBroadcaster creates a broadcaster publishing on q.
func NewBroadcaster(q messagequeue.Publisher) *Broadcaster {
	return &Broadcaster{queue: q}
}

// BroadcastEvent implements broadcast.Broadcaster. Publish failures are logged.
func (b *Broadcaster) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{eventType, payload})
	if err != nil {
		slog.WarnContext(ctx, "health event marshal failed", "type", eventType, "error", err)
		return
	}
	if err := b.queue.Publish(ctx, messagequeue.SubjectAgentHealth, data); err != nil {
		slog.WarnContext(ctx, "health event publish failed", "type", eventType, "error", err)
	}
}
