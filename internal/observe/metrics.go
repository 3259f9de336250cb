// Package observe provides application-wide observability primitives for
// Bearnard: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Bearnard metrics.
const meterName = "github.com/iacademy-nexus/bearnard"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// WakeInferenceDuration tracks wake-scan transcription latency.
	WakeInferenceDuration metric.Float64Histogram

	// STTDuration tracks full-utterance transcription latency.
	STTDuration metric.Float64Histogram

	// RetrievalDuration tracks knowledge-base search latency.
	RetrievalDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis and playback latency.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// WakeDetections counts accepted wake-phrase matches.
	WakeDetections metric.Int64Counter

	// Turns counts completed conversation turns. Use with attributes:
	//   attribute.String("source", "voice"|"text"), attribute.String("status", ...)
	Turns metric.Int64Counter

	// StateTransitions counts conversation state entries. Use with attribute:
	//   attribute.String("state", ...)
	StateTransitions metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts collaborator errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveClients tracks the number of connected presentation clients.
	ActiveClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.WakeInferenceDuration, err = m.Float64Histogram("bearnard.wake.inference.duration",
		metric.WithDescription("Latency of wake-scan transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("bearnard.stt.duration",
		metric.WithDescription("Latency of full-utterance transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetrievalDuration, err = m.Float64Histogram("bearnard.retrieval.duration",
		metric.WithDescription("Latency of knowledge-base search."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("bearnard.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("bearnard.tts.duration",
		metric.WithDescription("Latency of speech synthesis and playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WakeDetections, err = m.Int64Counter("bearnard.wake.detections",
		metric.WithDescription("Total accepted wake-phrase matches."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("bearnard.turns",
		metric.WithDescription("Total conversation turns by source and status."),
	); err != nil {
		return nil, err
	}
	if met.StateTransitions, err = m.Int64Counter("bearnard.state.transitions",
		metric.WithDescription("Total conversation state entries by state."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("bearnard.provider.errors",
		metric.WithDescription("Total collaborator errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveClients, err = m.Int64UpDownCounter("bearnard.active_clients",
		metric.WithDescription("Number of connected presentation clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("bearnard.http.request.duration",
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

// RecordTurn records a completed conversation turn.
func (m *Metrics) RecordTurn(ctx context.Context, source, status string) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
}

// RecordStateTransition records entry into a conversation state.
func (m *Metrics) RecordStateTransition(ctx context.Context, state string) {
	m.StateTransitions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordProviderError records a collaborator error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
