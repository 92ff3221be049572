package service

import (
	"testing"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tomorrow", "2026-03-03"},
		{"the day after tomorrow", "2026-03-04"},
		{"tonight", "2026-03-02"},
		{"next friday", "2026-03-06"},
		{"monday", "2026-03-09"},
		{"2026-04-10", "2026-04-10"},
		{"3/15", "2026-03-15"},
		{"3/15/27", "2027-03-15"},
		{"Jan 5", "2027-01-05"},
		{"March 20th", "2026-03-20"},
		{"the 12th of March", "2026-03-12"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDate(tt.in, testNow)
			if !ok {
				t.Fatalf("parseDate(%q) failed", tt.in)
			}
			if s := got.Format(time.DateOnly); s != tt.want {
				t.Fatalf("parseDate(%q) = %s, want %s", tt.in, s, tt.want)
			}
		})
	}

	for _, bad := range []string{"2026-02-30", "someday", "13/45"} {
		if _, ok := parseDate(bad, testNow); ok {
			t.Fatalf("parseDate(%q) should fail", bad)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := map[string]string{
		"7pm":            "19:00",
		"7:30 pm":        "19:30",
		"at 8.15am":      "08:15",
		"12am":           "00:00",
		"12 pm":          "12:00",
		"noon":           "12:00",
		"19:45":          "19:45",
		"around 9 p.m.":  "21:00",
		"midnight snack": "00:00",
	}
	for in, want := range tests {
		if got, ok := parseClock(in); !ok || got != want {
			t.Fatalf("parseClock(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	for _, bad := range []string{"at 7", "13pm", "later"} {
		if got, ok := parseClock(bad); ok {
			t.Fatalf("parseClock(%q) = %q, want failure", bad, got)
		}
	}
}

func TestNormalizeSlotValue(t *testing.T) {
	schema, _ := slot.SchemaFor(intent.ProductOrder, "")
	party := slot.Definition{Name: slot.PartySize, Type: slot.TypeInteger}
	phone := slot.Definition{Name: slot.Phone, Type: slot.TypePhone}
	method, _ := schema.Lookup(slot.DeliveryMethod)

	cases := []struct {
		def    slot.Definition
		in     string
		want   string
		wantOK bool
	}{
		{party, "four", "4", true},
		{party, "a couple", "2", true},
		{party, "0", "", false},
		{party, "150", "", false},
		{phone, "555-1234", "555-1234", true},
		{phone, "12345", "", false},
		{method, "I'll pick it up", "pickup", true},
		{method, "deliver please", "delivery", true},
		{method, "whatever", "", false},
	}
	for _, c := range cases {
		got, ok := normalizeSlotValue(c.def, c.in, testNow)
		if ok != c.wantOK || got != c.want {
			t.Fatalf("normalize %s %q = %q, %v; want %q, %v", c.def.Name, c.in, got, ok, c.want, c.wantOK)
		}
	}
}

func TestExtractSlots_BookingSentence(t *testing.T) {
	st := newTestStore(t)
	snap := testSnapshot(t, st)
	schema, _ := slot.SchemaFor(intent.ServiceBooking, "restaurant")

	got := extractSlots("Book a table for 4 tomorrow at 7pm, I'm John, 555-1234", schema, "", snap, testNow)

	want := map[string]string{
		slot.PartySize:    "4",
		slot.Date:         "2026-03-03",
		slot.Time:         "19:00",
		slot.CustomerName: "John",
		slot.Phone:        "555-1234",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q (all: %v)", k, got[k], v, got)
		}
	}
	if _, ok := got[slot.BusinessName]; ok {
		t.Fatalf("no business was named, got %q", got[slot.BusinessName])
	}
}

func TestExtractSlots_TimeIsNotPartySize(t *testing.T) {
	schema, _ := slot.SchemaFor(intent.ServiceBooking, "restaurant")
	got := extractSlots("can I book for 7pm", schema, "", nil, testNow)
	if _, ok := got[slot.PartySize]; ok {
		t.Fatalf("\"for 7pm\" read as party size: %v", got)
	}
	if got[slot.Time] != "19:00" {
		t.Fatalf("time = %q", got[slot.Time])
	}

	got = extractSlots("a table at 8pm for two people", schema, "", nil, testNow)
	if got[slot.PartySize] != "2" {
		t.Fatalf("party = %q", got[slot.PartySize])
	}
}

func TestExtractSlots_OrderItems(t *testing.T) {
	st := newTestStore(t)
	snap := testSnapshot(t, st)
	schema, _ := slot.SchemaFor(intent.ProductOrder, "grocery")

	got := extractSlots("I'd like 2 Organic Eggs and a Sourdough Loaf for pickup from Green Basket Grocery", schema, "", snap, testNow)

	if got[slot.BusinessName] != "Green Basket Grocery" {
		t.Fatalf("business = %q", got[slot.BusinessName])
	}
	if got[slot.Items] != "2 x Organic Eggs, Sourdough Loaf" {
		t.Fatalf("items = %q", got[slot.Items])
	}
	if got[slot.DeliveryMethod] != "pickup" {
		t.Fatalf("delivery = %q", got[slot.DeliveryMethod])
	}
}

func TestExtractSlots_AddressImpliesDelivery(t *testing.T) {
	schema, _ := slot.SchemaFor(intent.ProductOrder, "grocery")
	got := extractSlots("deliver it to 14 Elm Street", schema, "", nil, testNow)
	if got[slot.Address] != "14 Elm Street" || got[slot.DeliveryMethod] != "delivery" {
		t.Fatalf("unexpected %v", got)
	}
}

func TestExtractSlots_DirectAnswer(t *testing.T) {
	schema, _ := slot.SchemaFor(intent.ServiceBooking, "restaurant")

	if got := extractSlots("maria lopez", schema, slot.CustomerName, nil, testNow); got[slot.CustomerName] != "Maria Lopez" {
		t.Fatalf("name = %q", got[slot.CustomerName])
	}
	if got := extractSlots("six", schema, slot.PartySize, nil, testNow); got[slot.PartySize] != "6" {
		t.Fatalf("party = %q", got[slot.PartySize])
	}
	if got := extractSlots("call me at 555 0000 111", schema, slot.CustomerName, nil, testNow); got[slot.CustomerName] != "" {
		t.Fatalf("digits accepted as a name: %q", got[slot.CustomerName])
	}
}

func TestExtractSlots_NotANameAfterIm(t *testing.T) {
	schema, _ := slot.SchemaFor(intent.ServiceBooking, "restaurant")
	got := extractSlots("I'm Looking for a table", schema, "", nil, testNow)
	if got[slot.CustomerName] != "" {
		t.Fatalf("name = %q", got[slot.CustomerName])
	}
}

func TestIsCancelPhrase(t *testing.T) {
	for _, msg := range []string{"cancel", "Never mind!", "forget it, thanks", "stop."} {
		if !isCancelPhrase(msg) {
			t.Fatalf("%q should cancel", msg)
		}
	}
	for _, msg := range []string{"cancel my booking BK-12345678", "I can't stop thinking about pizza", "book"} {
		if isCancelPhrase(msg) {
			t.Fatalf("%q should not cancel", msg)
		}
	}
}
