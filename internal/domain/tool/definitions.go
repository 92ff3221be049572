package tool

import "github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"

// Definition is the schema of a tool as presented to a model or an MCP client.
type Definition struct {
	Name        Name           `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func object(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func actionTags() []string {
	out := make([]string, len(action.Tags))
	for i, t := range action.Tags {
		out[i] = string(t)
	}
	return out
}

// Definitions returns the schema of every tool in menu order.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        ClassifyIntentTool,
			Description: "Classify the user's message as service_booking, product_order, information or general.",
			Parameters: object([]string{"message"}, map[string]any{
				"message": str("The user message to classify"),
			}),
		},
		{
			Name:        FillSlotsTool,
			Description: "Collect the details needed for a booking or order. Returns either a follow-up question or a completed action.",
			Parameters: object([]string{"message"}, map[string]any{
				"message": str("The user message containing booking or order details"),
				"intent":  map[string]any{"type": "string", "enum": []string{"service_booking", "product_order"}},
			}),
		},
		{
			Name:        AnswerQuestionTool,
			Description: "Answer an informational question using only the business catalog.",
			Parameters: object([]string{"question"}, map[string]any{
				"question": str("The question to answer"),
			}),
		},
		{
			Name:        ExecuteActionTool,
			Description: "Execute a structured action such as creating, cancelling or updating a booking, or creating an order.",
			Parameters: object([]string{"payload"}, map[string]any{
				"payload": object([]string{"action"}, map[string]any{
					"action":          map[string]any{"type": "string", "enum": actionTags()},
					"business_id":     str("Catalog id of the business"),
					"business_name":   str("Business name when the id is unknown"),
					"customer_name":   str("Customer name"),
					"phone":           str("Contact phone"),
					"party_size":      map[string]any{"type": "integer", "minimum": 1},
					"date":            str("Date as YYYY-MM-DD"),
					"time":            str("Time as HH:MM (24h)"),
					"items":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"delivery_method": map[string]any{"type": "string", "enum": []string{"pickup", "delivery"}},
					"address":         str("Delivery address"),
					"notes":           str("Special requests"),
					"reference":       str("Booking id or confirmation code for cancel/update"),
					"question":        str("Question for get_information"),
				}),
			}),
		},
	}
}
