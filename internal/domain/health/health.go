// Package health models per-agent call statistics and the derived health status.
package health

import "time"

// Status is the health classification of an agent.
type Status string

const (
	StatusHealthy    Status = "healthy"
	StatusDegraded   Status = "degraded"
	StatusUnhealthy  Status = "unhealthy"
	StatusRecovering Status = "recovering"
)

// Ratio thresholds for status classification.
const (
	HealthyRatio  = 0.95
	DegradedRatio = 0.80
)

// WindowSize is the number of most recent outcomes the success ratio is computed over.
const WindowSize = 50

// latencyWeight smooths the latency moving average: each sample counts 1/latencyWeight.
const latencyWeight = 5

// StatusForRatio classifies a success ratio.
func StatusForRatio(ratio float64) Status {
	switch {
	case ratio >= HealthyRatio:
		return StatusHealthy
	case ratio >= DegradedRatio:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Record tracks outcome statistics for a single agent.
// It is not safe for concurrent use; the owner serializes access.
type Record struct {
	Agent                string        `json:"agent"`
	Category             string        `json:"category"`
	TotalCalls           int64         `json:"total_calls"`
	SuccessfulCalls      int64         `json:"successful_calls"`
	FailedCalls          int64         `json:"failed_calls"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	LastSuccess          time.Time     `json:"last_success,omitzero"`
	LastFailure          time.Time     `json:"last_failure,omitzero"`
	AvgLatency           time.Duration `json:"avg_latency_ns"`
	Status               Status        `json:"status"`
	BreakerState         string        `json:"breaker_state,omitempty"`

	window []bool
	next   int
}

// NewRecord returns a healthy record for a newly registered agent.
func NewRecord(agent, category string) *Record {
	return &Record{Agent: agent, Category: category, Status: StatusHealthy}
}

// ObserveSuccess records a successful call and recomputes the status.
func (r *Record) ObserveSuccess(latency time.Duration, at time.Time) {
	r.observe(true, latency)
	r.SuccessfulCalls++
	r.ConsecutiveSuccesses++
	r.ConsecutiveFailures = 0
	r.LastSuccess = at
	r.Status = StatusForRatio(r.SuccessRatio())
}

// ObserveFailure records a failed or blocked call and recomputes the status.
// A zero latency means the call never ran and leaves the latency average untouched.
func (r *Record) ObserveFailure(latency time.Duration, at time.Time) {
	r.observe(false, latency)
	r.FailedCalls++
	r.ConsecutiveFailures++
	r.ConsecutiveSuccesses = 0
	r.LastFailure = at
	r.Status = StatusForRatio(r.SuccessRatio())
}

// MarkRecovering flags the agent as being probed by a recovery routine.
func (r *Record) MarkRecovering() {
	r.Status = StatusRecovering
}

// MarkRecovered clears the outcome window after a passing self-test so the
// ratio, and with it the status, starts fresh at healthy.
func (r *Record) MarkRecovered() {
	r.window = r.window[:0]
	r.next = 0
	r.ConsecutiveFailures = 0
	r.Status = StatusHealthy
}

// MarkFailedRecovery leaves the agent unhealthy after a failing self-test.
func (r *Record) MarkFailedRecovery() {
	r.Status = StatusUnhealthy
}

// Refresh re-derives the status from the outcome window.
func (r *Record) Refresh() {
	r.Status = StatusForRatio(r.SuccessRatio())
}

// SuccessRatio returns the success ratio over the outcome window.
// An empty window counts as fully healthy.
func (r *Record) SuccessRatio() float64 {
	if len(r.window) == 0 {
		return 1
	}
	ok := 0
	for _, v := range r.window {
		if v {
			ok++
		}
	}
	return float64(ok) / float64(len(r.window))
}

// Snapshot returns a copy safe to hand to other goroutines.
func (r *Record) Snapshot() Record {
	c := *r
	c.window = nil
	c.next = 0
	return c
}

func (r *Record) observe(ok bool, latency time.Duration) {
	r.TotalCalls++
	if len(r.window) < WindowSize {
		r.window = append(r.window, ok)
	} else {
		r.window[r.next] = ok
		r.next = (r.next + 1) % WindowSize
	}
	if latency <= 0 {
		return
	}
	if r.AvgLatency == 0 {
		r.AvgLatency = latency
		return
	}
	r.AvgLatency = (latency + (latencyWeight-1)*r.AvgLatency) / latencyWeight
}

// Transition is emitted when an agent's status changes.
type Transition struct {
	Agent string    `json:"agent"`
	From  Status    `json:"from"`
	To    Status    `json:"to"`
	At    time.Time `json:"at"`
}
