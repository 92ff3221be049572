package memory

import (
	"testing"
	"time"
)

func TestStoreRequestValidate(t *testing.T) {
	valid := StoreRequest{SessionID: "s1", Type: ShortTerm, Key: "turn", Value: "hello", Importance: 0.5}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*StoreRequest)
	}{
		{"missing session", func(r *StoreRequest) { r.SessionID = "" }},
		{"missing key", func(r *StoreRequest) { r.Key = "" }},
		{"missing value", func(r *StoreRequest) { r.Value = "" }},
		{"bad type", func(r *StoreRequest) { r.Type = "forever" }},
		{"importance above 1", func(r *StoreRequest) { r.Importance = 1.5 }},
		{"negative importance", func(r *StoreRequest) { r.Importance = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRank(t *testing.T) {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	ms := []Memory{
		{ID: "low-new", Importance: 0.2, CreatedAt: base.Add(time.Hour)},
		{ID: "high-old", Importance: 0.9, CreatedAt: base},
		{ID: "high-new", Importance: 0.9, CreatedAt: base.Add(time.Minute)},
	}
	Rank(ms)

	want := []string{"high-new", "high-old", "low-new"}
	for i, id := range want {
		if ms[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, ms[i].ID, id)
		}
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	m := Memory{ExpiresAt: now}
	if !m.Expired(now) {
		t.Error("record expiring now should be expired")
	}
	if m.Expired(now.Add(-time.Second)) {
		t.Error("record should not be expired before its expiry")
	}
	if (&Memory{}).Expired(now) {
		t.Error("zero expiry never expires")
	}
}
