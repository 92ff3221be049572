package health

import (
	"testing"
	"time"
)

func TestStatusForRatio(t *testing.T) {
	tests := []struct {
		ratio float64
		want  Status
	}{
		{1, StatusHealthy},
		{0.95, StatusHealthy},
		{0.94, StatusDegraded},
		{0.80, StatusDegraded},
		{0.79, StatusUnhealthy},
		{0, StatusUnhealthy},
	}
	for _, tt := range tests {
		if got := StatusForRatio(tt.ratio); got != tt.want {
			t.Errorf("StatusForRatio(%v) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestRecordCounters(t *testing.T) {
	r := NewRecord("intent", "intent")
	now := time.Now()

	r.ObserveSuccess(100*time.Millisecond, now)
	r.ObserveFailure(200*time.Millisecond, now)
	r.ObserveFailure(0, now)

	if r.TotalCalls != 3 || r.SuccessfulCalls != 1 || r.FailedCalls != 2 {
		t.Fatalf("counters = %d/%d/%d", r.TotalCalls, r.SuccessfulCalls, r.FailedCalls)
	}
	if r.ConsecutiveFailures != 2 || r.ConsecutiveSuccesses != 0 {
		t.Fatalf("consecutive = %d/%d", r.ConsecutiveFailures, r.ConsecutiveSuccesses)
	}
	if r.Status != StatusUnhealthy {
		t.Fatalf("status = %s, want unhealthy at 1/3", r.Status)
	}
	// (200ms + 4*100ms) / 5
	if r.AvgLatency != 120*time.Millisecond {
		t.Fatalf("avg latency = %v, want 120ms", r.AvgLatency)
	}
}

func TestRecordStatusFollowsWindow(t *testing.T) {
	r := NewRecord("rag", "rag")
	now := time.Now()

	for range 19 {
		r.ObserveSuccess(time.Millisecond, now)
	}
	r.ObserveFailure(time.Millisecond, now)
	if r.Status != StatusHealthy {
		t.Fatalf("19/20 should be healthy, got %s", r.Status)
	}

	for range 3 {
		r.ObserveFailure(time.Millisecond, now)
	}
	if r.Status != StatusDegraded {
		t.Fatalf("19/23 should be degraded, got %s", r.Status)
	}

	// The window forgets the oldest outcomes.
	for range WindowSize {
		r.ObserveSuccess(time.Millisecond, now)
	}
	if r.Status != StatusHealthy {
		t.Fatalf("full window of successes should be healthy, got %s", r.Status)
	}
}

func TestRecordRecovery(t *testing.T) {
	r := NewRecord("execution", "execution")
	now := time.Now()
	for range 5 {
		r.ObserveFailure(time.Millisecond, now)
	}
	r.MarkRecovering()
	if r.Status != StatusRecovering {
		t.Fatalf("status = %s, want recovering", r.Status)
	}

	r.MarkRecovered()
	if r.Status != StatusHealthy || r.SuccessRatio() != 1 {
		t.Fatalf("after recovery status=%s ratio=%v", r.Status, r.SuccessRatio())
	}
	if r.FailedCalls != 5 {
		t.Fatalf("lifetime counters must survive recovery, got %d", r.FailedCalls)
	}

	r.ObserveFailure(time.Millisecond, now)
	if r.Status != StatusUnhealthy {
		t.Fatalf("single failure on fresh window should be unhealthy, got %s", r.Status)
	}
}
