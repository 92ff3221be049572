package service

import (
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/retrieval"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
)

// genericClarifyingQuestion is the canned slot-filling fallback.
const genericClarifyingQuestion = "Could you tell me a little more about what you'd like to book or order?"

// cannedResult is the last-resort result of an agent category, or nil when
// the category has none.
func cannedResult(category AgentCategory) any {
	switch category {
	case CategoryIntent:
		return intent.Fallback()
	case CategoryRetrieval:
		return retrieval.Apology()
	case CategoryExecution:
		return action.Unavailable("")
	case CategorySlotFilling:
		return SlotTurn{Status: slot.StatusCollecting, Question: genericClarifyingQuestion}
	case CategoryOrchestrator:
		return RoutingDecision{Capability: CapabilityGeneral, Reasoning: "routing unavailable"}
	}
	return nil
}
