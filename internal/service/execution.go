package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/database"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/resilience"
)

const maxPartySize = 50

var reTime24 = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
var reItemQty = regexp.MustCompile(`(?i)^(\d{1,2})\s*x\s+(.+)$`)

// EventSink receives execution events. NotificationService implements it.
type EventSink interface {
	NotifyAsync(ctx context.Context, ev notifier.Event)
}

// ExecutionAgent validates action payloads and performs the writes.
type ExecutionAgent struct {
	catalog database.CatalogStore
	store   database.ReservationStore
	events  EventSink
	now     func() time.Time
}

// NewExecutionAgent creates an execution agent. events may be nil.
func NewExecutionAgent(cat database.CatalogStore, store database.ReservationStore, events EventSink) *ExecutionAgent {
	return &ExecutionAgent{catalog: cat, store: store, events: events, now: time.Now}
}

// Execute dispatches the payload by action tag. Validation, lookup and
// conflict problems are returned as unsuccessful results and nothing is
// written. Store failures are returned as errors; write failures are marked
// permanent so a supervisor does not repeat them.
func (a *ExecutionAgent) Execute(ctx context.Context, p action.Payload) (action.Result, error) {
	switch p.Action {
	case action.CreateBooking:
		return a.createBooking(ctx, p)
	case action.CreateOrder:
		return a.createOrder(ctx, p)
	case action.GetInformation:
		return a.getInformation(ctx, p)
	case action.CancelBooking:
		return a.cancelBooking(ctx, p)
	case action.UpdateBooking:
		return a.updateBooking(ctx, p)
	}
	return action.Fail(p.Action, action.KindUnsupported, fmt.Sprintf("I can't perform %q.", p.Action)), nil
}

// SelfTest checks that the catalog can be read.
func (a *ExecutionAgent) SelfTest(ctx context.Context) error {
	_, err := a.catalog.ListActiveBusinesses(ctx)
	return err
}

func (a *ExecutionAgent) createBooking(ctx context.Context, p action.Payload) (action.Result, error) {
	b, fail, err := a.resolveBusiness(ctx, p)
	if err != nil || fail != nil {
		return deref(fail), err
	}

	var missing []string
	if strings.TrimSpace(p.CustomerName) == "" {
		missing = append(missing, "customer_name")
	}
	if _, ok := normalizePhone(p.Phone); !ok {
		missing = append(missing, "phone")
	}
	if !catalog.IsServiceCategory(b.Category) && (p.PartySize < 1 || p.PartySize > maxPartySize) {
		missing = append(missing, "party_size")
	}
	date, dateOK := a.validDate(p.Date)
	if !dateOK {
		missing = append(missing, "date")
	}
	if !reTime24.MatchString(p.Time) {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return action.Fail(p.Action, action.KindValidation,
			"Some booking details are missing or invalid: "+strings.Join(missing, ", ")+".", missing...), nil
	}

	now := a.now()
	booking := &action.Booking{
		BusinessID:   b.ID,
		SessionID:    p.SessionID,
		CustomerName: strings.TrimSpace(p.CustomerName),
		Phone:        strings.TrimSpace(p.Phone),
		PartySize:    p.PartySize,
		Date:         p.Date,
		Time:         p.Time,
		Notes:        p.Notes,
		Status:       action.StatusConfirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := a.store.CreateBooking(ctx, booking)
	if err != nil {
		return action.Result{}, resilience.Permanent(fmt.Errorf("create booking: %w", err))
	}
	booking.ID = id
	code := action.ConfirmationCode(action.BookingPrefix, id)

	a.emit(ctx, action.EventBookingCreated, b, id, code, p.SessionID,
		fmt.Sprintf("New booking for %s on %s at %s", booking.CustomerName, booking.Date, booking.Time),
		map[string]string{"customer_name": booking.CustomerName, "phone": booking.Phone, "date": booking.Date,
			"time": booking.Time, "party_size": strconv.Itoa(booking.PartySize)})

	return action.Result{
		Success:          true,
		Action:           p.Action,
		ConfirmationCode: code,
		Confirmation:     bookingConfirmation(b, booking, date, code),
		Data: map[string]any{
			"booking_id":    id,
			"business_id":   b.ID,
			"business_name": b.Name,
			"date":          booking.Date,
			"time":          booking.Time,
			"party_size":    booking.PartySize,
		},
	}, nil
}

func (a *ExecutionAgent) createOrder(ctx context.Context, p action.Payload) (action.Result, error) {
	b, fail, err := a.resolveBusiness(ctx, p)
	if err != nil || fail != nil {
		return deref(fail), err
	}

	var missing []string
	if strings.TrimSpace(p.CustomerName) == "" {
		missing = append(missing, "customer_name")
	}
	if _, ok := normalizePhone(p.Phone); !ok {
		missing = append(missing, "phone")
	}
	if len(p.Items) == 0 {
		missing = append(missing, "items")
	}
	method, ok := parseDeliveryMethod(p.DeliveryMethod)
	if !ok {
		missing = append(missing, "delivery_method")
	}
	if method == "delivery" && strings.TrimSpace(p.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return action.Fail(p.Action, action.KindValidation,
			"Some order details are missing or invalid: "+strings.Join(missing, ", ")+".", missing...), nil
	}

	items, err := a.catalog.ListAvailableItems(ctx, b.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("list items: %w", err)
	}
	total, unknown := priceItems(p.Items, items)
	if len(unknown) > 0 {
		return action.Fail(p.Action, action.KindValidation,
			fmt.Sprintf("%s doesn't offer: %s.", b.Name, strings.Join(unknown, ", ")), "items"), nil
	}

	order := &action.Order{
		BusinessID:     b.ID,
		SessionID:      p.SessionID,
		CustomerName:   strings.TrimSpace(p.CustomerName),
		Phone:          strings.TrimSpace(p.Phone),
		Items:          p.Items,
		DeliveryMethod: method,
		Address:        strings.TrimSpace(p.Address),
		Notes:          p.Notes,
		Total:          total,
		Status:         action.StatusConfirmed,
		CreatedAt:      a.now(),
	}
	id, err := a.store.CreateOrder(ctx, order)
	if err != nil {
		return action.Result{}, resilience.Permanent(fmt.Errorf("create order: %w", err))
	}
	order.ID = id
	code := action.ConfirmationCode(action.OrderPrefix, id)

	a.emit(ctx, action.EventOrderCreated, b, id, code, p.SessionID,
		fmt.Sprintf("New %s order for %s: %s", method, order.CustomerName, strings.Join(order.Items, ", ")),
		map[string]string{"customer_name": order.CustomerName, "phone": order.Phone,
			"delivery_method": method, "address": order.Address, "total": strconv.FormatFloat(total, 'f', 2, 64)})

	return action.Result{
		Success:          true,
		Action:           p.Action,
		ConfirmationCode: code,
		Confirmation:     orderConfirmation(b, order, code),
		Data: map[string]any{
			"order_id":        id,
			"business_id":     b.ID,
			"business_name":   b.Name,
			"items":           order.Items,
			"delivery_method": method,
			"total":           total,
		},
	}, nil
}

func (a *ExecutionAgent) getInformation(ctx context.Context, p action.Payload) (action.Result, error) {
	b, fail, err := a.resolveBusiness(ctx, p)
	if err != nil || fail != nil {
		return deref(fail), err
	}
	items, err := a.catalog.ListAvailableItems(ctx, b.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("list items: %w", err)
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s (%s)", b.Name, b.Category)
	if b.Description != "" {
		fmt.Fprintf(&text, ": %s", b.Description)
	}
	if b.Hours != "" {
		fmt.Fprintf(&text, " Hours: %s.", b.Hours)
	}
	if b.Address != "" {
		fmt.Fprintf(&text, " Address: %s.", b.Address)
	}
	if b.Phone != "" {
		fmt.Fprintf(&text, " Phone: %s.", b.Phone)
	}
	return action.Result{
		Success:      true,
		Action:       p.Action,
		Confirmation: text.String(),
		Data: map[string]any{
			"business_id": b.ID,
			"name":        b.Name,
			"category":    b.Category,
			"hours":       b.Hours,
			"address":     b.Address,
			"phone":       b.Phone,
			"items":       names,
		},
	}, nil
}

func (a *ExecutionAgent) cancelBooking(ctx context.Context, p action.Payload) (action.Result, error) {
	booking, fail, err := a.findBooking(ctx, p)
	if err != nil || fail != nil {
		return deref(fail), err
	}
	if booking.Status == action.StatusCancelled {
		return action.Fail(p.Action, action.KindConflict, "That booking is already cancelled."), nil
	}
	if err := a.store.CancelBooking(ctx, booking.ID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return action.Fail(p.Action, action.KindConflict, "That booking is already cancelled."), nil
		}
		return action.Result{}, resilience.Permanent(fmt.Errorf("cancel booking: %w", err))
	}

	b := a.businessOrStub(ctx, booking.BusinessID)
	code := action.ConfirmationCode(action.BookingPrefix, booking.ID)
	a.emit(ctx, action.EventBookingCancelled, b, booking.ID, code, p.SessionID,
		fmt.Sprintf("Booking for %s on %s at %s was cancelled", booking.CustomerName, booking.Date, booking.Time), nil)

	return action.Result{
		Success:          true,
		Action:           p.Action,
		ConfirmationCode: code,
		Confirmation:     fmt.Sprintf("Your booking %s at %s has been cancelled.", code, b.Name),
		Data:             map[string]any{"booking_id": booking.ID, "status": string(action.StatusCancelled)},
	}, nil
}

func (a *ExecutionAgent) updateBooking(ctx context.Context, p action.Payload) (action.Result, error) {
	booking, fail, err := a.findBooking(ctx, p)
	if err != nil || fail != nil {
		return deref(fail), err
	}
	if booking.Status == action.StatusCancelled {
		return action.Fail(p.Action, action.KindConflict, "That booking was cancelled and can't be changed."), nil
	}

	var changed, invalid []string
	if p.Date != "" {
		if _, ok := a.validDate(p.Date); ok {
			booking.Date = p.Date
			changed = append(changed, "date")
		} else {
			invalid = append(invalid, "date")
		}
	}
	if p.Time != "" {
		if reTime24.MatchString(p.Time) {
			booking.Time = p.Time
			changed = append(changed, "time")
		} else {
			invalid = append(invalid, "time")
		}
	}
	if p.PartySize != 0 {
		if p.PartySize >= 1 && p.PartySize <= maxPartySize {
			booking.PartySize = p.PartySize
			changed = append(changed, "party_size")
		} else {
			invalid = append(invalid, "party_size")
		}
	}
	if p.Phone != "" {
		if _, ok := normalizePhone(p.Phone); ok {
			booking.Phone = strings.TrimSpace(p.Phone)
			changed = append(changed, "phone")
		} else {
			invalid = append(invalid, "phone")
		}
	}
	if p.Notes != "" {
		booking.Notes = p.Notes
		changed = append(changed, "notes")
	}
	if len(invalid) > 0 {
		return action.Fail(p.Action, action.KindValidation,
			"Some of the new details are invalid: "+strings.Join(invalid, ", ")+".", invalid...), nil
	}
	if len(changed) == 0 {
		return action.Fail(p.Action, action.KindValidation, "Tell me what you'd like to change: date, time, party size, phone or notes."), nil
	}

	booking.UpdatedAt = a.now()
	if err := a.store.UpdateBooking(ctx, booking); err != nil {
		return action.Result{}, resilience.Permanent(fmt.Errorf("update booking: %w", err))
	}

	b := a.businessOrStub(ctx, booking.BusinessID)
	code := action.ConfirmationCode(action.BookingPrefix, booking.ID)
	a.emit(ctx, action.EventBookingUpdated, b, booking.ID, code, p.SessionID,
		fmt.Sprintf("Booking for %s changed: %s", booking.CustomerName, strings.Join(changed, ", ")),
		map[string]string{"date": booking.Date, "time": booking.Time, "party_size": strconv.Itoa(booking.PartySize)})

	date, _ := time.Parse(time.DateOnly, booking.Date)
	return action.Result{
		Success:          true,
		Action:           p.Action,
		ConfirmationCode: code,
		Confirmation:     "Done! " + bookingConfirmation(b, booking, date, code),
		Data:             map[string]any{"booking_id": booking.ID, "changed": changed},
	}, nil
}

// resolveBusiness finds the target business by id, then by name. A non-nil
// fail result means validation failed.
func (a *ExecutionAgent) resolveBusiness(ctx context.Context, p action.Payload) (catalog.Business, *action.Result, error) {
	if p.BusinessID != "" {
		b, err := a.catalog.GetBusiness(ctx, p.BusinessID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			r := action.Fail(p.Action, action.KindNotFound, "I couldn't find that business.", "business_id")
			return catalog.Business{}, &r, nil
		case err != nil:
			return catalog.Business{}, nil, fmt.Errorf("get business: %w", err)
		case !b.Active:
			r := action.Fail(p.Action, action.KindValidation, b.Name+" isn't taking requests right now.", "business_id")
			return catalog.Business{}, &r, nil
		}
		return *b, nil, nil
	}
	if strings.TrimSpace(p.BusinessName) == "" {
		r := action.Fail(p.Action, action.KindValidation, "Which business is this for?", "business_name")
		return catalog.Business{}, &r, nil
	}
	active, err := a.catalog.ListActiveBusinesses(ctx)
	if err != nil {
		return catalog.Business{}, nil, fmt.Errorf("list businesses: %w", err)
	}
	b, ok := catalog.Resolve(active, p.BusinessName)
	if !ok {
		r := action.Fail(p.Action, action.KindNotFound, fmt.Sprintf("I couldn't find a business called %q.", p.BusinessName), "business_name")
		return catalog.Business{}, &r, nil
	}
	return b, nil, nil
}

// findBooking loads a booking by confirmation code or id.
func (a *ExecutionAgent) findBooking(ctx context.Context, p action.Payload) (*action.Booking, *action.Result, error) {
	ref := strings.TrimSpace(p.Reference)
	if ref == "" {
		r := action.Fail(p.Action, action.KindValidation, "Please give me your confirmation code.", "reference")
		return nil, &r, nil
	}
	var (
		booking *action.Booking
		err     error
	)
	if prefix, fragment, ok := action.ParseConfirmationCode(ref); ok {
		if prefix != action.BookingPrefix {
			r := action.Fail(p.Action, action.KindValidation, "That code belongs to an order, not a booking.", "reference")
			return nil, &r, nil
		}
		booking, err = a.store.FindBookingByCode(ctx, fragment)
	} else {
		booking, err = a.store.GetBooking(ctx, ref)
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		r := action.Fail(p.Action, action.KindNotFound, "I couldn't find a booking with that code.", "reference")
		return nil, &r, nil
	case err != nil:
		return nil, nil, fmt.Errorf("find booking: %w", err)
	}
	return booking, nil, nil
}

func (a *ExecutionAgent) businessOrStub(ctx context.Context, id string) catalog.Business {
	b, err := a.catalog.GetBusiness(ctx, id)
	if err != nil {
		return catalog.Business{ID: id, Name: "the business"}
	}
	return *b
}

// validDate accepts YYYY-MM-DD dates that are not in the past.
func (a *ExecutionAgent) validDate(s string) (time.Time, bool) {
	now := a.now()
	d, err := time.ParseInLocation(time.DateOnly, s, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return d, !d.Before(today)
}

func (a *ExecutionAgent) emit(ctx context.Context, eventType string, b catalog.Business, recordID, code, sessionID, summary string, details map[string]string) {
	if a.events == nil {
		return
	}
	a.events.NotifyAsync(ctx, notifier.Event{
		ID:               uuid.NewString(),
		Type:             eventType,
		SessionID:        sessionID,
		BusinessID:       b.ID,
		BusinessName:     b.Name,
		RecordID:         recordID,
		ConfirmationCode: code,
		Summary:          summary,
		Details:          details,
		OccurredAt:       a.now(),
	})
	slog.DebugContext(ctx, "execution event emitted", "event", eventType, "record_id", recordID)
}

// priceItems matches requested items against the business's catalog and
// sums their prices. Businesses without listed items accept any item.
func priceItems(requested []string, available []catalog.Item) (float64, []string) {
	if len(available) == 0 {
		return 0, nil
	}
	var (
		total   float64
		unknown []string
	)
	for _, req := range requested {
		qty, name := 1, strings.TrimSpace(req)
		if m := reItemQty.FindStringSubmatchIndex(name); m != nil {
			qty, _ = strconv.Atoi(name[m[2]:m[3]])
			name = strings.TrimSpace(name[m[4]:m[5]])
		}
		if qty < 1 {
			unknown = append(unknown, strings.TrimSpace(req))
			continue
		}
		found := false
		for _, it := range available {
			if strings.EqualFold(it.Name, name) || strings.Contains(strings.ToLower(it.Name), strings.ToLower(name)) {
				total += it.Price * float64(qty)
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, name)
		}
	}
	return total, unknown
}

func bookingConfirmation(b catalog.Business, bk *action.Booking, date time.Time, code string) string {
	when := fmt.Sprintf("%s at %s", date.Format("Monday, January 2"), clock12(bk.Time))
	switch catalog.KindOf(b.Category) {
	case catalog.KindDining:
		return fmt.Sprintf("Your table for %d at %s is booked for %s. Confirmation code: %s.", bk.PartySize, b.Name, when, code)
	case catalog.KindService:
		return fmt.Sprintf("Your appointment at %s is booked for %s. Confirmation code: %s.", b.Name, when, code)
	}
	return fmt.Sprintf("Your booking at %s is confirmed for %s. Confirmation code: %s.", b.Name, when, code)
}

func orderConfirmation(b catalog.Business, o *action.Order, code string) string {
	var how string
	if o.DeliveryMethod == "delivery" {
		how = "for delivery to " + o.Address
	} else {
		how = "for pickup"
	}
	total := ""
	if o.Total > 0 {
		total = fmt.Sprintf(" Total: %.2f.", o.Total)
	}
	if catalog.KindOf(b.Category) == catalog.KindDining {
		return fmt.Sprintf("Your food order from %s (%s) is confirmed %s.%s Confirmation code: %s.",
			b.Name, strings.Join(o.Items, ", "), how, total, code)
	}
	return fmt.Sprintf("Your order from %s (%d item(s)) is confirmed %s.%s Confirmation code: %s.",
		b.Name, len(o.Items), how, total, code)
}

// clock12 renders HH:MM as a 12 hour time, e.g. "7:00 PM".
func clock12(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

func deref(r *action.Result) action.Result {
	if r == nil {
		return action.Result{}
	}
	return *r
}
