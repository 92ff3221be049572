package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/action"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/tool"
)

func TestOrchestrator_CallToolRequiresSession(t *testing.T) {
	f := newTestOrchestrator(t, nil)
	_, err := f.o.CallTool(context.Background(), "", tool.ClassifyIntent{Message: "hi"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestOrchestrator_CallToolClassify(t *testing.T) {
	f := newTestOrchestrator(t, nil)
	res, err := f.o.CallTool(context.Background(), "t1", tool.ClassifyIntent{Message: "I want to order some eggs for delivery"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Intent == nil || res.Intent.Intent != intent.ProductOrder {
		t.Fatalf("intent = %+v", res.Intent)
	}
	if res.Output != "intent: product_order" || res.Tool != tool.ClassifyIntentTool {
		t.Fatalf("result = %+v", res)
	}
}

func TestOrchestrator_CallToolFillSlotsKeepsDialogue(t *testing.T) {
	f := newTestOrchestrator(t, nil)
	ctx := context.Background()

	res, err := f.o.CallTool(ctx, "t2", tool.FillSlots{Message: "I want to book a table", Intent: "service_booking"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Output, "?") {
		t.Fatalf("expected a question, got %q", res.Output)
	}
	st := f.state(t, "t2")
	if st.Stage != conversation.StageCollecting || st.Slots == nil || st.Slots.Asked != slot.BusinessName {
		t.Fatalf("state = %+v", st)
	}

	if _, err := f.o.CallTool(ctx, "t2", tool.FillSlots{Message: "Sakura Sushi Bar"}); err != nil {
		t.Fatal(err)
	}
	st = f.state(t, "t2")
	if st.Slots.Values[slot.BusinessName] != "Sakura Sushi Bar" || st.Slots.Asked != slot.CustomerName {
		t.Fatalf("slots = %+v", st.Slots)
	}
}

func TestOrchestrator_CallToolExecute(t *testing.T) {
	f := newTestOrchestrator(t, nil)
	p := bookingPayload()
	p.SessionID = ""
	res, err := f.o.CallTool(context.Background(), "t3", tool.ExecuteAction{Payload: p})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action == nil || !res.Action.Success {
		t.Fatalf("action = %+v", res.Action)
	}
	if res.Metadata.Confirmation != res.Action.ConfirmationCode || !strings.Contains(res.Output, res.Action.ConfirmationCode) {
		t.Fatalf("result = %+v", res)
	}
	bookings := f.st.Bookings()
	if len(bookings) != 1 || bookings[0].SessionID != "t3" {
		t.Fatalf("bookings = %+v", bookings)
	}

	remembered := false
	for _, m := range f.st.AllMemories() {
		if m.SessionID == "t3" && m.Key == string(action.CreateBooking) {
			remembered = true
		}
	}
	if !remembered {
		t.Fatal("executed action not remembered")
	}
}

func TestOrchestrator_DeliveryOrderWithoutAddressAsksForIt(t *testing.T) {
	f := newTestOrchestrator(t, nil)
	p := action.Payload{
		Action:         action.CreateOrder,
		BusinessName:   "Green Basket Grocery",
		CustomerName:   "Ana",
		Phone:          "555-1234",
		Items:          []string{"2 x Organic Eggs"},
		DeliveryMethod: "delivery",
	}
	res, err := f.o.CallTool(context.Background(), "t4", tool.ExecuteAction{Payload: p})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action == nil || res.Action.Success {
		t.Fatalf("action = %+v", res.Action)
	}
	if !strings.Contains(res.Output, "What address should we deliver to?") {
		t.Fatalf("output = %q", res.Output)
	}
	st := f.state(t, "t4")
	if st.Stage != conversation.StageCollecting || st.Slots == nil || st.Slots.Asked != slot.Address {
		t.Fatalf("state = %+v", st)
	}
	if st.Slots.Values[slot.CustomerName] != "Ana" || st.Slots.Values[slot.DeliveryMethod] != "delivery" {
		t.Fatalf("collected slots lost: %+v", st.Slots.Values)
	}

	f.send(t, "t4", "12 Main Street")
	orders := f.st.Orders()
	if len(orders) != 1 || orders[0].Address != "12 Main Street" || orders[0].DeliveryMethod != "delivery" {
		t.Fatalf("orders = %+v", orders)
	}
}
