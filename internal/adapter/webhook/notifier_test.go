package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/logger"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"
)

var _ notifier.Notifier = (*Notifier)(nil)

func TestSend_SignedPayload(t *testing.T) {
	var (
		body    []byte
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "s3cret")
	n.now = func() time.Time { return time.Unix(1772476200, 0) }

	ev := notifier.Event{ID: "ev-1", Type: "order_created", BusinessID: "b-grocer", RecordID: "o-1", Summary: "Order placed"}
	ctx := logger.WithRequestID(context.Background(), "req-7")
	if err := n.Send(ctx, ev); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if headers.Get(HeaderEvent) != "order_created" || headers.Get("X-Request-ID") != "req-7" {
		t.Fatalf("headers = %v", headers)
	}
	if headers.Get(HeaderTimestamp) != "1772476200" {
		t.Fatalf("timestamp = %q", headers.Get(HeaderTimestamp))
	}
	if !Verify([]byte("s3cret"), "1772476200", body, headers.Get(HeaderSignature)) {
		t.Fatal("signature does not verify")
	}
	if Verify([]byte("other"), "1772476200", body, headers.Get(HeaderSignature)) {
		t.Fatal("signature verified with the wrong secret")
	}

	var got notifier.Event
	if err := json.Unmarshal(body, &got); err != nil || got.RecordID != "o-1" {
		t.Fatalf("body = %s (%v)", body, err)
	}
}

func TestSend_Unsigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderSignature) != "" {
			t.Error("unexpected signature without secret")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewNotifier(srv.URL, "").Send(context.Background(), notifier.Event{Type: "booking_created"}); err != nil {
		t.Fatal(err)
	}
}

func TestSend_Errors(t *testing.T) {
	if err := NewNotifier("", "").Send(context.Background(), notifier.Event{}); err != notifier.ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewNotifier(srv.URL, "").Send(context.Background(), notifier.Event{}); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestRegistry(t *testing.T) {
	if _, err := notifier.New("webhook", map[string]string{}); err != notifier.ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	n, err := notifier.New("webhook", map[string]string{"url": "http://example.test", "secret": "x"})
	if err != nil || n.Name() != "webhook" {
		t.Fatalf("New = %v, %v", n, err)
	}
}
