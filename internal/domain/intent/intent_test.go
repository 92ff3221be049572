package intent

import "testing"

func TestParseTag(t *testing.T) {
	tests := []struct {
		in     string
		want   Tag
		wantOK bool
	}{
		{"service_booking", ServiceBooking, true},
		{"Service Booking", ServiceBooking, true},
		{"order", ProductOrder, true},
		{" info ", Information, true},
		{"greeting", General, true},
		{"weather", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTag(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseTag(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalize(t *testing.T) {
	r := Result{Intent: "nonsense", Confidence: 1.7, Category: " Salon "}
	r.Normalize()
	if r.Intent != General {
		t.Errorf("intent = %s, want general", r.Intent)
	}
	if r.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", r.Confidence)
	}
	if r.Category != "salon" {
		t.Errorf("category = %q, want salon", r.Category)
	}

	r = Result{Intent: "booking", Confidence: -0.2}
	r.Normalize()
	if r.Intent != ServiceBooking || r.Confidence != 0 {
		t.Errorf("got %s/%v", r.Intent, r.Confidence)
	}
}

func TestFallback(t *testing.T) {
	r := Fallback()
	if r.Intent != General || r.Confidence != FallbackConfidence {
		t.Fatalf("Fallback() = %+v", r)
	}
	if r.Intent.Actionable() {
		t.Fatal("general intent must not be actionable")
	}
	if !ServiceBooking.Actionable() || !ProductOrder.Actionable() {
		t.Fatal("booking and order intents must be actionable")
	}
}
