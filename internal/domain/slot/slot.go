// Package slot defines the slot schemas for actionable intents and the
// per-dialogue slot state.
package slot

import (
	"slices"
	"strings"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
)

// Slot names.
const (
	BusinessName   = "business_name"
	CustomerName   = "customer_name"
	PartySize      = "party_size"
	Date           = "date"
	Time           = "time"
	Phone          = "phone"
	Notes          = "notes"
	Items          = "items"
	DeliveryMethod = "delivery_method"
	Address        = "address"
)

// Type is the value type of a slot.
type Type string

const (
	TypeText    Type = "text"
	TypeInteger Type = "integer"
	TypeDate    Type = "date" // YYYY-MM-DD
	TypeTime    Type = "time" // HH:MM, 24h
	TypePhone   Type = "phone"
	TypeList    Type = "list" // comma separated
)

// Definition describes one slot. Lower Priority values are asked first.
type Definition struct {
	Name         string     `json:"name"`
	Type         Type       `json:"type"`
	Required     bool       `json:"required"`
	RequiredWhen *Condition `json:"required_when,omitempty"`
	Description  string     `json:"description"`
	Priority     int        `json:"priority"`
}

// Condition makes an optional slot required once another slot holds Value.
type Condition struct {
	Slot  string `json:"slot"`
	Value string `json:"value"`
}

// RequiredFor reports whether d must be filled given the collected values.
func (d Definition) RequiredFor(values map[string]string) bool {
	if d.Required {
		return true
	}
	c := d.RequiredWhen
	return c != nil && strings.EqualFold(strings.TrimSpace(values[c.Slot]), c.Value)
}

// Schema is the ordered slot list for one intent.
type Schema struct {
	Intent intent.Tag   `json:"intent"`
	Slots  []Definition `json:"slots"`
}

var bookingSlots = []Definition{
	{Name: BusinessName, Type: TypeText, Required: true, Description: "which business to book with", Priority: 1},
	{Name: CustomerName, Type: TypeText, Required: true, Description: "name for the booking", Priority: 2},
	{Name: PartySize, Type: TypeInteger, Required: true, Description: "number of people", Priority: 3},
	{Name: Date, Type: TypeDate, Required: true, Description: "date of the booking", Priority: 4},
	{Name: Time, Type: TypeTime, Required: true, Description: "time of the booking", Priority: 5},
	{Name: Phone, Type: TypePhone, Required: true, Description: "contact phone number", Priority: 6},
	{Name: Notes, Type: TypeText, Required: false, Description: "special requests", Priority: 7},
}

var orderSlots = []Definition{
	{Name: BusinessName, Type: TypeText, Required: true, Description: "which business to order from", Priority: 1},
	{Name: CustomerName, Type: TypeText, Required: true, Description: "name for the order", Priority: 2},
	{Name: Items, Type: TypeList, Required: true, Description: "items to order", Priority: 3},
	{Name: DeliveryMethod, Type: TypeText, Required: true, Description: "pickup or delivery", Priority: 4},
	{Name: Phone, Type: TypePhone, Required: true, Description: "contact phone number", Priority: 5},
	{Name: Address, Type: TypeText, RequiredWhen: &Condition{Slot: DeliveryMethod, Value: "delivery"}, Description: "delivery address", Priority: 6},
	{Name: Notes, Type: TypeText, Required: false, Description: "special instructions", Priority: 7},
}

// SchemaFor returns the schema for an actionable intent, specialized for the
// business category. Service categories do not require a party size.
func SchemaFor(tag intent.Tag, category string) (Schema, bool) {
	var base []Definition
	switch tag {
	case intent.ServiceBooking:
		base = bookingSlots
	case intent.ProductOrder:
		base = orderSlots
	default:
		return Schema{}, false
	}

	slots := slices.Clone(base)
	if tag == intent.ServiceBooking && category != "" && catalog.IsServiceCategory(category) {
		for i := range slots {
			if slots[i].Name == PartySize {
				slots[i].Required = false
			}
		}
	}
	slices.SortStableFunc(slots, func(a, b Definition) int { return a.Priority - b.Priority })
	return Schema{Intent: tag, Slots: slots}, true
}

// Lookup returns the definition of a named slot.
func (s Schema) Lookup(name string) (Definition, bool) {
	for _, d := range s.Slots {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Names returns every slot name in priority order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Slots))
	for i, d := range s.Slots {
		out[i] = d.Name
	}
	return out
}

// Status is the lifecycle stage of a slot-filling dialogue.
type Status string

const (
	StatusCollecting Status = "collecting"
	StatusComplete   Status = "complete"
	StatusAbandoned  Status = "abandoned"
)

// State is the slot state of one dialogue. It is serialized into the session.
type State struct {
	Intent   intent.Tag        `json:"intent"`
	Category string            `json:"category,omitempty"`
	Values   map[string]string `json:"values"`
	Missing  []string          `json:"missing"`
	Status   Status            `json:"status"`
	Asked    string            `json:"asked,omitempty"` // slot targeted by the last question
	Turns    int               `json:"turns"`
}

// NewState starts a dialogue for the given intent and category.
func NewState(tag intent.Tag, category string) *State {
	s := &State{
		Intent:   tag,
		Category: category,
		Values:   make(map[string]string),
		Status:   StatusCollecting,
	}
	s.Recompute()
	return s
}

// Schema returns the schema the state is validated against.
func (s *State) Schema() Schema {
	schema, _ := SchemaFor(s.Intent, s.Category)
	return schema
}

// Merge writes non-empty values into the state. Later values replace earlier
// ones so the user can correct a slot. Unknown slot names are ignored.
func (s *State) Merge(values map[string]string) []string {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	schema := s.Schema()
	var changed []string
	for _, name := range schema.Names() {
		v := strings.TrimSpace(values[name])
		if v == "" || s.Values[name] == v {
			continue
		}
		s.Values[name] = v
		changed = append(changed, name)
	}
	s.Recompute()
	return changed
}

// SetCategory re-specializes the schema once the target business is known.
func (s *State) SetCategory(category string) {
	s.Category = strings.ToLower(strings.TrimSpace(category))
	s.Recompute()
}

// Recompute refreshes the missing list and completion status. Conditional
// slots count as missing once their condition holds.
func (s *State) Recompute() {
	if s.Status == StatusAbandoned {
		return
	}
	schema := s.Schema()
	s.Missing = s.Missing[:0]
	for _, d := range schema.Slots {
		if d.RequiredFor(s.Values) && strings.TrimSpace(s.Values[d.Name]) == "" {
			s.Missing = append(s.Missing, d.Name)
		}
	}
	if len(schema.Slots) > 0 && len(s.Missing) == 0 {
		s.Status = StatusComplete
	} else {
		s.Status = StatusCollecting
	}
}

// Next returns the highest-priority missing required slot.
func (s *State) Next() (Definition, bool) {
	if len(s.Missing) == 0 {
		return Definition{}, false
	}
	schema := s.Schema()
	return schema.Lookup(s.Missing[0])
}

// Complete reports whether every required slot is filled.
func (s *State) Complete() bool {
	return s.Status == StatusComplete
}

// Abandon ends the dialogue without an action.
func (s *State) Abandon() {
	s.Status = StatusAbandoned
}
