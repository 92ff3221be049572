package otel

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware traces inbound requests. Spans are named
// "<method> <route pattern>" once chi has matched the route, so
// /api/v1/memories/{id} yields one span name instead of one per ID.
// Health probes are not traced.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if pattern := routePattern(r); pattern != "" {
				span := trace.SpanFromContext(r.Context())
				span.SetName(spanName(serviceName, r))
				span.SetAttributes(attribute.String("http.route", pattern))
			}
		})
		return otelhttp.NewHandler(routed, serviceName,
			otelhttp.WithSpanNameFormatter(spanName),
			otelhttp.WithFilter(func(r *http.Request) bool {
				return !strings.HasPrefix(r.URL.Path, "/health")
			}),
		)
	}
}

// spanName is used by otelhttp both when the span starts, before routing,
// and again after the handler when the request carries a pattern.
func spanName(_ string, r *http.Request) string {
	if pattern := routePattern(r); pattern != "" {
		return r.Method + " " + pattern
	}
	return r.Method
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// HTTPTransport wraps base so outbound requests carry trace context and get
// client spans. A nil base uses http.DefaultTransport.
func HTTPTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}
