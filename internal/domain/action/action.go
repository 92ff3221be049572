// Package action defines the structured actions the execution agent performs
// and the records they create.
package action

import (
	"fmt"
	"strings"
)

// Tag identifies an action handler.
type Tag string

const (
	CreateBooking  Tag = "create_booking"
	CreateOrder    Tag = "create_order"
	GetInformation Tag = "get_information"
	CancelBooking  Tag = "cancel_booking"
	UpdateBooking  Tag = "update_booking"
)

// Tags lists all supported action tags.
var Tags = []Tag{CreateBooking, CreateOrder, GetInformation, CancelBooking, UpdateBooking}

// ErrorKind is the machine-readable failure class of an execution.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindUnsupported   ErrorKind = "unsupported_action"
	KindTransient     ErrorKind = "transient"
	KindDegraded      ErrorKind = "degraded"
	KindUnrecoverable ErrorKind = "unrecoverable"
)

// Error is the failure detail of an unsuccessful execution.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Fields  []string  `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Payload is the structured input of an action.
type Payload struct {
	Action         Tag      `json:"action"`
	SessionID      string   `json:"session_id,omitempty"`
	BusinessID     string   `json:"business_id,omitempty"`
	BusinessName   string   `json:"business_name,omitempty"`
	CustomerName   string   `json:"customer_name,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	PartySize      int      `json:"party_size,omitempty"`
	Date           string   `json:"date,omitempty"` // YYYY-MM-DD
	Time           string   `json:"time,omitempty"` // HH:MM
	Items          []string `json:"items,omitempty"`
	DeliveryMethod string   `json:"delivery_method,omitempty"`
	Address        string   `json:"address,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Reference      string   `json:"reference,omitempty"` // booking id or confirmation code
	Question       string   `json:"question,omitempty"`
}

// Result is the outcome of executing an action. Failures are values, never errors.
type Result struct {
	Success          bool           `json:"success"`
	Action           Tag            `json:"action"`
	Data             map[string]any `json:"data,omitempty"`
	ConfirmationCode string         `json:"confirmation_code,omitempty"`
	Confirmation     string         `json:"confirmation"`
	Error            *Error         `json:"error,omitempty"`
}

// Fail builds an unsuccessful result.
func Fail(tag Tag, kind ErrorKind, msg string, fields ...string) Result {
	return Result{
		Success:      false,
		Action:       tag,
		Confirmation: msg,
		Error:        &Error{Kind: kind, Message: msg, Fields: fields},
	}
}

// Unavailable is the canned result used when the execution agent cannot run.
func Unavailable(tag Tag) Result {
	return Fail(tag, KindDegraded, "The booking service is temporarily unavailable. Please try again in a few minutes.")
}

// Code prefixes for confirmation codes.
const (
	BookingPrefix = "BK"
	OrderPrefix   = "OR"
)

// ConfirmationCode derives a human-readable code from a record id:
// the prefix followed by the first eight alphanumerics of the id, upper-cased.
func ConfirmationCode(prefix, id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(id) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	return fmt.Sprintf("%s-%s", prefix, b.String())
}

// ParseConfirmationCode splits a code such as "BK-1A2B3C4D" into prefix and id fragment.
func ParseConfirmationCode(code string) (prefix, fragment string, ok bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	prefix, fragment, found := strings.Cut(code, "-")
	if !found || (prefix != BookingPrefix && prefix != OrderPrefix) || len(fragment) != 8 {
		return "", "", false
	}
	return prefix, fragment, true
}
