// Package tool defines the closed set of agent tools the language model may
// invoke and decodes model-supplied arguments into typed calls.
package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
)

// Name identifies a tool.
type Name string

const (
	ClassifyIntentTool Name = "classify_intent"
	FillSlotsTool      Name = "fill_slots"
	AnswerQuestionTool Name = "answer_question"
	ExecuteActionTool  Name = "execute_action"
)

// Names lists every tool in menu order.
var Names = []Name{ClassifyIntentTool, FillSlotsTool, AnswerQuestionTool, ExecuteActionTool}

// ErrInvalidArguments is wrapped when a known tool receives unusable arguments.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// UnknownToolError is returned when the model names a tool outside the closed set.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// Call is a decoded, validated tool request. The set of implementations is closed.
type Call interface {
	Tool() Name
	sealed()
}

// ClassifyIntent asks the intent classifier to label a message.
type ClassifyIntent struct {
	Message string `json:"message"`
}

// FillSlots advances the slot-filling dialogue with a message.
type FillSlots struct {
	Message string `json:"message"`
	Intent  string `json:"intent,omitempty"`
}

// AnswerQuestion asks the retrieval agent an informational question.
type AnswerQuestion struct {
	Question string `json:"question"`
}

// ExecuteAction performs a structured action.
type ExecuteAction struct {
	Payload action.Payload `json:"payload"`
}

func (ClassifyIntent) Tool() Name { return ClassifyIntentTool }
func (FillSlots) Tool() Name      { return FillSlotsTool }
func (AnswerQuestion) Tool() Name { return AnswerQuestionTool }
func (ExecuteAction) Tool() Name  { return ExecuteActionTool }

func (ClassifyIntent) sealed() {}
func (FillSlots) sealed()      {}
func (AnswerQuestion) sealed() {}
func (ExecuteAction) sealed()  {}

// Decode turns a tool name and its JSON arguments into a typed Call.
// Unknown names yield *UnknownToolError; bad arguments wrap ErrInvalidArguments.
func Decode(name string, args json.RawMessage) (Call, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch Name(name) {
	case ClassifyIntentTool:
		var c ClassifyIntent
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.Message) == "" {
			return nil, fmt.Errorf("%w: %s requires message", ErrInvalidArguments, name)
		}
		return c, nil
	case FillSlotsTool:
		var c FillSlots
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.Message) == "" {
			return nil, fmt.Errorf("%w: %s requires message", ErrInvalidArguments, name)
		}
		return c, nil
	case AnswerQuestionTool:
		var c AnswerQuestion
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.Question) == "" {
			return nil, fmt.Errorf("%w: %s requires question", ErrInvalidArguments, name)
		}
		return c, nil
	case ExecuteActionTool:
		var c ExecuteAction
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		// Models often flatten the payload into the top-level arguments.
		if c.Payload.Action == "" {
			if err := unmarshalArgs(args, &c.Payload); err != nil {
				return nil, err
			}
		}
		if c.Payload.Action == "" {
			return nil, fmt.Errorf("%w: %s requires payload.action", ErrInvalidArguments, name)
		}
		return c, nil
	default:
		return nil, &UnknownToolError{Name: name}
	}
}

func unmarshalArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
