package nats

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"
)

type publishRecorder struct {
	subject string
	data    []byte
}

func (p *publishRecorder) Publish(_ context.Context, subject string, data []byte) error {
	p.subject, p.data = subject, data
	return nil
}

func TestNotifier_PublishesExecutionSubject(t *testing.T) {
	rec := &publishRecorder{}
	n := NewNotifier(rec)
	if err := n.Send(context.Background(), notifier.Event{Type: "booking_created", RecordID: "r-1"}); err != nil {
		t.Fatal(err)
	}
	if rec.subject != "assistant.execution.booking_created" {
		t.Fatalf("subject = %q", rec.subject)
	}
	var ev notifier.Event
	if err := json.Unmarshal(rec.data, &ev); err != nil || ev.RecordID != "r-1" {
		t.Fatalf("payload = %s (%v)", rec.data, err)
	}
}
