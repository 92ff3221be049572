package broadcast

import (
	"context"
	"testing"
)

type counter struct{ events []string }

func (c *counter) BroadcastEvent(_ context.Context, eventType string, _ any) {
	c.events = append(c.events, eventType)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &counter{}, &counter{}
	Multi{a, nil, b, Nop{}}.BroadcastEvent(context.Background(), EventAgentHealth, nil)
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("a=%v b=%v", a.events, b.events)
	}
}
