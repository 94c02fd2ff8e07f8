package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/hanko-field/storefront/internal/platform/observability")

// httpMetrics records request counts and latency per route. Instruments fall back to no-ops when
// the global meter provider has not been configured.
type httpMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

func newHTTPMetrics() httpMetrics {
	requests, err := meter.Int64Counter("storefront.http.requests",
		metric.WithDescription("Completed HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		otel.Handle(err)
	}
	latency, err := meter.Float64Histogram("storefront.http.latency",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return httpMetrics{requests: requests, latency: latency}
}

func (m httpMetrics) record(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.latency != nil {
		m.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
}
