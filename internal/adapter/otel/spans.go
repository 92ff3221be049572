package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "assistant"

// StartTurnSpan starts a span for one conversation turn.
func StartTurnSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
}

// StartAgentSpan starts a span for a supervised agent call.
func StartAgentSpan(ctx context.Context, agent, category string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent."+agent,
		trace.WithAttributes(
			attribute.String("agent.name", agent),
			attribute.String("agent.category", category),
		),
	)
}

// StartToolSpan starts a span for a tool dispatched by the orchestrator.
func StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tool",
		trace.WithAttributes(attribute.String("tool.name", tool)),
	)
}
