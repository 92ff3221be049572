package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/messagequeue"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"
)

// Notifier publishes execution events to assistant.execution.<type>.
type Notifier struct {
	queue messagequeue.Publisher
}

// NewNotifier creates a notifier publishing on q.
func NewNotifier(q messagequeue.Publisher) *Notifier {
	return &Notifier{queue: q}
}

func (n *Notifier) Name() string { return "nats" }

func (n *Notifier) Send(ctx context.Context, ev notifier.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.queue.Publish(ctx, messagequeue.ExecutionSubject(ev.Type), data)
}
