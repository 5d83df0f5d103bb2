// Package observe provides application-wide observability primitives for
// Scriberr: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Scriberr metrics.
const meterName = "github.com/rishikanthc/Scriberr-sub000"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ChatStreamDuration tracks the wall time of one chat exchange, from the
	// provider request to the final assembled chunk. Use with attribute:
	//   attribute.String("provider", ...)
	ChatStreamDuration metric.Float64Histogram

	// SummaryDuration tracks the wall time of one summary generation.
	SummaryDuration metric.Float64Histogram

	// --- Counters ---

	// StreamChunks counts chunks received from model streams. Use with
	// attribute: attribute.String("provider", ...)
	StreamChunks metric.Int64Counter

	// NoteOperations counts note store operations. Use with attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	NoteOperations metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts model provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveViews tracks the number of open viewer sessions.
	ActiveViews metric.Int64UpDownCounter

	// ActiveConversations tracks the number of live chat conversations.
	ActiveConversations metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Streamed
// model responses routinely run for tens of seconds, so the upper buckets
// reach further than typical request-latency defaults.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ChatStreamDuration, err = m.Float64Histogram("scriberr.chat.stream.duration",
		metric.WithDescription("Wall time of one streamed chat exchange."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummaryDuration, err = m.Float64Histogram("scriberr.summary.duration",
		metric.WithDescription("Wall time of one streamed summary generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.StreamChunks, err = m.Int64Counter("scriberr.stream.chunks",
		metric.WithDescription("Total chunks received from model streams by provider."),
	); err != nil {
		return nil, err
	}
	if met.NoteOperations, err = m.Int64Counter("scriberr.note.operations",
		metric.WithDescription("Total note store operations by op and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("scriberr.provider.errors",
		metric.WithDescription("Total model provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveViews, err = m.Int64UpDownCounter("scriberr.active_views",
		metric.WithDescription("Number of open viewer sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConversations, err = m.Int64UpDownCounter("scriberr.active_conversations",
		metric.WithDescription("Number of live chat conversations."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("scriberr.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStreamChunk records one received stream chunk for the given provider.
func (m *Metrics) RecordStreamChunk(ctx context.Context, provider string) {
	m.StreamChunks.Add(ctx, 1,
		metric.WithAttributes(Attr("provider", provider)),
	)
}

// RecordNoteOperation records a note store operation with the standard
// attribute set. op is one of "create", "get", "list", "update", "delete";
// status is "ok", "not_found", or "error".
func (m *Metrics) RecordNoteOperation(ctx context.Context, op, status string) {
	m.NoteOperations.Add(ctx, 1,
		metric.WithAttributes(
			Attr("op", op),
			Attr("status", status),
		),
	)
}

// RecordProviderError records a model provider error with the standard
// attribute set. kind names the failure stage ("start", "stream",
// "no_content", "canceled").
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("kind", kind),
		),
	)
}
