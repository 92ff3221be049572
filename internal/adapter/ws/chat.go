package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/logger"
)

// Streamer runs one conversation turn and emits the reply in chunks.
type Streamer interface {
	Stream(ctx context.Context, req conversation.Request, emit func(conversation.Chunk) error) (conversation.Reply, error)
}

// ChatHandler serves the streaming chat socket. Each socket is bound to one
// session: the client may pick it with ?session_id=, otherwise one is
// generated and announced in a "session" message.
type ChatHandler struct {
	streamer       Streamer
	originPatterns []string
}

// NewChatHandler creates a chat socket handler.
func NewChatHandler(s Streamer, originPatterns ...string) *ChatHandler {
	return &ChatHandler{streamer: s, originPatterns: originPatterns}
}

// ServeHTTP upgrades the connection and processes chat messages until the
// client disconnects.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		slog.WarnContext(r.Context(), "chat websocket accept failed", "error", err)
		return
	}
	defer func() { _ = c.CloseNow() }()

	ctx := logger.WithSessionID(r.Context(), sessionID)
	if err := wsjson.Write(ctx, c, outbound{Type: TypeSession, Payload: SessionPayload{SessionID: sessionID}}); err != nil {
		return
	}

	for {
		var in inbound
		if err := wsjson.Read(ctx, c, &in); err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				slog.DebugContext(ctx, "chat websocket read ended", "error", err)
			}
			return
		}
		if in.Type != TypeChatMessage {
			if err := wsjson.Write(ctx, c, outbound{Type: TypeChatError, Payload: ErrorPayload{Error: "unsupported message type " + in.Type}}); err != nil {
				return
			}
			continue
		}

		req := in.Payload
		req.SessionID = sessionID
		reply, err := h.streamer.Stream(ctx, req, func(ch conversation.Chunk) error {
			return wsjson.Write(ctx, c, outbound{Type: TypeChatChunk, Payload: ch})
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			msg := "internal error"
			if errors.Is(err, domain.ErrValidation) {
				msg = err.Error()
			}
			if werr := wsjson.Write(ctx, c, outbound{Type: TypeChatError, Payload: ErrorPayload{Error: msg}}); werr != nil {
				return
			}
			continue
		}
		if err := wsjson.Write(ctx, c, outbound{Type: TypeChatReply, Payload: reply}); err != nil {
			return
		}
	}
}
