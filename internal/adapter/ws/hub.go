// Package ws implements the WebSocket adapter: a broadcast hub for
// dashboards and a streaming chat endpoint.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/broadcast"
)

const (
	writeTimeout = 5 * time.Second
	// sendQueue is how many events a dashboard may fall behind before it is dropped.
	sendQueue = 32
)

var _ broadcast.Broadcaster = (*Hub)(nil)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// dashboard is one connected socket with its own writer goroutine.
type dashboard struct {
	ws     *websocket.Conn
	send   chan []byte
	types  map[string]bool // empty: everything
	cancel context.CancelFunc
}

func (d *dashboard) wants(eventType string) bool {
	return len(d.types) == 0 || d.types[eventType]
}

// Hub fans events out to dashboards. A dashboard that cannot keep up is
// disconnected rather than slowing the others down.
type Hub struct {
	mu             sync.RWMutex
	dashboards     map[*dashboard]struct{}
	originPatterns []string
}

// NewHub creates a hub. originPatterns restricts which browser origins may
// connect; an empty list only allows same-origin requests.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{
		dashboards:     make(map[*dashboard]struct{}),
		originPatterns: originPatterns,
	}
}

// HandleWS upgrades a dashboard connection. ?types=a,b limits delivery to
// those event types. Inbound frames are read and discarded so pings and
// closes are processed.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		slog.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	d := &dashboard{ws: sock, send: make(chan []byte, sendQueue), types: parseTypes(r.URL.Query().Get("types")), cancel: cancel}

	h.mu.Lock()
	h.dashboards[d] = struct{}{}
	h.mu.Unlock()
	slog.InfoContext(ctx, "dashboard connected", "remote", r.RemoteAddr, "types", len(d.types))

	go h.writeLoop(ctx, d)
	go func() {
		defer h.drop(d, websocket.StatusNormalClosure, "")
		for {
			if _, _, err := sock.Read(ctx); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) writeLoop(ctx context.Context, d *dashboard) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-d.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := d.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.DebugContext(ctx, "dashboard write failed", "error", err)
				h.drop(d, websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// Broadcast queues msg for every dashboard subscribed to its type.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "websocket marshal failed", "error", err)
		return
	}

	var lagging []*dashboard
	h.mu.RLock()
	for d := range h.dashboards {
		if !d.wants(msg.Type) {
			continue
		}
		select {
		case d.send <- data:
		default:
			lagging = append(lagging, d)
		}
	}
	h.mu.RUnlock()

	for _, d := range lagging {
		slog.WarnContext(ctx, "dashboard too slow, disconnecting", "queued", sendQueue)
		h.drop(d, websocket.StatusPolicyViolation, "too slow")
	}
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}
	h.Broadcast(ctx, Message{Type: eventType, Payload: data})
}

// ConnectionCount returns the number of connected dashboards.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.dashboards)
}

// Close disconnects every dashboard.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.dashboards
	h.dashboards = make(map[*dashboard]struct{})
	h.mu.Unlock()
	for d := range all {
		d.cancel()
		_ = d.ws.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// drop unregisters d and closes its socket in the background. Only the
// first call for a dashboard has any effect.
func (h *Hub) drop(d *dashboard, code websocket.StatusCode, reason string) {
	h.mu.Lock()
	_, ok := h.dashboards[d]
	delete(h.dashboards, d)
	h.mu.Unlock()
	if !ok {
		return
	}
	d.cancel()
	go func() { _ = d.ws.Close(code, reason) }()
	slog.Info("dashboard disconnected", "reason", reason)
}

func parseTypes(q string) map[string]bool {
	types := map[string]bool{}
	for t := range strings.SplitSeq(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = true
		}
	}
	return types
}
