package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "assistant"

// Metrics holds the assistant's metric instruments.
type Metrics struct {
	AgentCalls      metric.Int64Counter
	AgentFailures   metric.Int64Counter
	AgentFallbacks  metric.Int64Counter
	AgentLatency    metric.Float64Histogram
	TurnsProcessed  metric.Int64Counter
	TurnDuration    metric.Float64Histogram
	ActionsExecuted metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.AgentCalls, err = meter.Int64Counter("assistant.agent.calls",
		metric.WithDescription("Supervised agent calls")); err != nil {
		return nil, err
	}
	if m.AgentFailures, err = meter.Int64Counter("assistant.agent.failures",
		metric.WithDescription("Supervised agent calls that failed or were blocked")); err != nil {
		return nil, err
	}
	if m.AgentFallbacks, err = meter.Int64Counter("assistant.agent.fallbacks",
		metric.WithDescription("Agent calls served by a fallback")); err != nil {
		return nil, err
	}
	if m.AgentLatency, err = meter.Float64Histogram("assistant.agent.duration_seconds",
		metric.WithDescription("Supervised agent call duration in seconds")); err != nil {
		return nil, err
	}
	if m.TurnsProcessed, err = meter.Int64Counter("assistant.turns",
		metric.WithDescription("Conversation turns processed")); err != nil {
		return nil, err
	}
	if m.TurnDuration, err = meter.Float64Histogram("assistant.turn.duration_seconds",
		metric.WithDescription("Turn processing duration in seconds")); err != nil {
		return nil, err
	}
	if m.ActionsExecuted, err = meter.Int64Counter("assistant.actions",
		metric.WithDescription("Execution agent actions by tag and outcome")); err != nil {
		return nil, err
	}

	return m, nil
}
