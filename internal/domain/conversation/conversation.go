// Package conversation defines chat turns, per-session dialogue state and the
// request/reply shapes of the orchestrator.
package conversation

import (
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
)

// Role of a turn author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxRecentTurns is the number of turns kept in session state.
const MaxRecentTurns = 12

// Turn is one message in a session.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Stage is the explicit dialogue stage of a session.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageCollecting        Stage = "collecting"
	StageAwaitingSelection Stage = "awaiting_selection"
)

// ListedBusiness is a business presented to the user in an enumerated list.
type ListedBusiness struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// State is everything the orchestrator remembers about a session between turns.
type State struct {
	SessionID          string           `json:"session_id"`
	Stage              Stage            `json:"stage"`
	ActiveIntent       intent.Tag       `json:"active_intent,omitempty"`
	Slots              *slot.State      `json:"slots,omitempty"`
	Listed             []ListedBusiness `json:"listed,omitempty"`
	SelectedBusinessID string           `json:"selected_business_id,omitempty"`
	Turns              []Turn           `json:"turns,omitempty"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// NewState returns an idle state for a session.
func NewState(sessionID string) *State {
	return &State{SessionID: sessionID, Stage: StageIdle}
}

// AppendTurn records a turn, keeping only the most recent MaxRecentTurns.
func (s *State) AppendTurn(role Role, content string, at time.Time) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, At: at})
	if n := len(s.Turns); n > MaxRecentTurns {
		s.Turns = append([]Turn(nil), s.Turns[n-MaxRecentTurns:]...)
	}
}

// RecentTurns renders the last n turns as "role: content" lines.
func (s *State) RecentTurns(n int) []string {
	turns := s.Turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = string(t.Role) + ": " + t.Content
	}
	return out
}

// AwaitSelection moves the session into the awaiting-selection stage for the listed businesses.
func (s *State) AwaitSelection(listed []ListedBusiness) {
	if len(listed) == 0 {
		return
	}
	s.Listed = listed
	s.Stage = StageAwaitingSelection
}

// StartCollecting begins (or continues) a slot-filling dialogue.
func (s *State) StartCollecting(st *slot.State) {
	s.Slots = st
	s.ActiveIntent = st.Intent
	s.Stage = StageCollecting
	s.Listed = nil
}

// Reset returns the session to idle, keeping the turn history and the selected business.
func (s *State) Reset() {
	s.Stage = StageIdle
	s.ActiveIntent = ""
	s.Slots = nil
	s.Listed = nil
}

// RequestContext is optional caller context for a turn.
type RequestContext struct {
	SelectedBusinessID string `json:"selected_business_id,omitempty"`
	Location           string `json:"location,omitempty"`
	Language           string `json:"language,omitempty"`
}

// Request is one inbound user turn.
type Request struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Message   string         `json:"message"`
	Context   RequestContext `json:"context"`
}

// QuickAction is a suggested follow-up the client can render as a button.
type QuickAction struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Metadata is the machine-readable side channel of a reply.
type Metadata struct {
	Capability      string            `json:"capability"`
	ToolsUsed       []string          `json:"tools_used"`
	Degraded        bool              `json:"degraded"`
	DegradationMode bool              `json:"degradation_mode"`
	Fallbacks       map[string]string `json:"fallbacks,omitempty"`
	Stage           Stage             `json:"stage"`
	Intent          intent.Tag        `json:"intent,omitempty"`
	Confirmation    string            `json:"confirmation_code,omitempty"`
	ProcessingTime  time.Duration     `json:"processing_time_ns"`
}

// Reply is the single outbound reply of a turn.
type Reply struct {
	SessionID    string        `json:"session_id"`
	Message      string        `json:"message"`
	QuickActions []QuickAction `json:"quick_actions,omitempty"`
	Metadata     Metadata      `json:"metadata"`
}

// Chunk is one piece of a streamed reply.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}
