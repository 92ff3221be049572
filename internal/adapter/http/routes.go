package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Sockets are the WebSocket endpoints mounted next to the REST API. Nil
// handlers are skipped.
type Sockets struct {
	Chat      http.Handler
	Dashboard http.HandlerFunc
}

// MountRoutes registers all API routes on the given chi router. chatGuards
// (rate limiting, idempotency) wrap only the chat endpoints.
func MountRoutes(r chi.Router, h *Handlers, ws Sockets, chatGuards ...func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Chat
		r.Group(func(r chi.Router) {
			r.Use(chatGuards...)
			r.Post("/chat", h.Chat)
			if ws.Chat != nil {
				r.Method(http.MethodGet, "/chat/ws", ws.Chat)
			}
		})

		// Agents
		r.Get("/agents/health", h.AgentHealth)

		// Session memories
		r.Get("/sessions/{id}/memories", h.SessionMemories)
		r.Get("/sessions/{id}/memories/search", h.SearchMemories)
		r.Post("/sessions/{id}/memories/consolidate", h.ConsolidateMemories)

		// Dashboard events
		if ws.Dashboard != nil {
			r.Get("/ws", ws.Dashboard)
		}
	})
}
