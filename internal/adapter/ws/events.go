package ws

import "github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"

// Chat message types exchanged on the chat socket.
const (
	TypeChatMessage = "chat.message" // client -> server, payload conversation.Request
	TypeChatChunk   = "chat.chunk"   // server -> client, payload conversation.Chunk
	TypeChatReply   = "chat.reply"   // server -> client, payload conversation.Reply
	TypeChatError   = "chat.error"   // server -> client, payload ErrorPayload
	TypeSession     = "session"      // server -> client on connect, payload SessionPayload
)

// ErrorPayload describes a rejected chat message.
type ErrorPayload struct {
	Error string `json:"error"`
}

// SessionPayload announces the session id assigned to the socket.
type SessionPayload struct {
	SessionID string `json:"session_id"`
}

type inbound struct {
	Type    string               `json:"type"`
	Payload conversation.Request `json:"payload"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
