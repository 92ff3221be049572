// Package intent defines the intent taxonomy and classification result.
package intent

import "strings"

// Tag is one of the fixed intent classes.
type Tag string

const (
	ServiceBooking Tag = "service_booking"
	ProductOrder   Tag = "product_order"
	Information    Tag = "information"
	General        Tag = "general"
)

// Tags lists all valid intent tags.
var Tags = []Tag{ServiceBooking, ProductOrder, Information, General}

// FallbackConfidence is the confidence attached to the canned fallback result.
const FallbackConfidence = 0.3

// ParseTag maps free text such as "booking" or "Product Order" to a Tag.
func ParseTag(s string) (Tag, bool) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	switch norm {
	case "service_booking", "booking", "reservation", "appointment":
		return ServiceBooking, true
	case "product_order", "order", "purchase":
		return ProductOrder, true
	case "information", "info", "question":
		return Information, true
	case "general", "chat", "greeting", "other":
		return General, true
	}
	return "", false
}

// Actionable reports whether the intent leads to a slot-filled action.
func (t Tag) Actionable() bool {
	return t == ServiceBooking || t == ProductOrder
}

// Result is the outcome of classifying one message.
type Result struct {
	Intent     Tag               `json:"intent"`
	Category   string            `json:"category,omitempty"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
}

// Normalize clamps the confidence into [0,1] and replaces an unknown tag with General.
func (r *Result) Normalize() {
	if tag, ok := ParseTag(string(r.Intent)); ok {
		r.Intent = tag
	} else {
		r.Intent = General
	}
	switch {
	case r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
}

// Fallback returns the low-confidence general result used when classification is unavailable.
func Fallback() Result {
	return Result{
		Intent:     General,
		Confidence: FallbackConfidence,
		Reasoning:  "classifier unavailable",
	}
}

// Context is the live information a classifier may use.
type Context struct {
	Categories  []string
	Businesses  []string
	RecentTurns []string
}
