// Package observe provides application-wide observability primitives for
// voxlex: OpenTelemetry metrics, tracing, structured logging, and HTTP
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

// meterName is the instrumentation scope name used for all voxlex metrics.
const meterName = "github.com/jhalloran/voxlex"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RefreshDuration tracks how long a full vocabulary refresh fan-out
	// takes.
	RefreshDuration metric.Float64Histogram

	// CorrectionDuration tracks transcript correction latency.
	CorrectionDuration metric.Float64Histogram

	// --- Counters ---

	// Transcripts counts emitted transcript events. Use with attribute:
	//   attribute.String("kind", "final"|"partial")
	Transcripts metric.Int64Counter

	// CorrectionsApplied counts transcripts where the corrector changed the
	// text.
	CorrectionsApplied metric.Int64Counter

	// CommandsHandled counts session commands. Use with attribute:
	//   attribute.String("action", ...)
	CommandsHandled metric.Int64Counter

	// TermsLearned counts vocabulary terms admitted through learning
	// feedback or client commands. Use with attribute:
	//   attribute.String("origin", "learning"|"command"|"refresh")
	TermsLearned metric.Int64Counter

	// RefreshOutcomes counts vocabulary refresh completions. Use with
	// attribute:
	//   attribute.String("status", "ok"|"partial"|"error")
	RefreshOutcomes metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live transcription sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// vocabularySize is observed through the callback registered with
	// [Metrics.ObserveVocabularySize].
	vocabularySize metric.Int64ObservableGauge
	meter          metric.Meter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for correction latencies and refresh fan-outs.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 15,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	// Histograms.
	if met.RefreshDuration, err = m.Float64Histogram("voxlex.vocabulary.refresh.duration",
		metric.WithDescription("Duration of a full vocabulary refresh fan-out."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CorrectionDuration, err = m.Float64Histogram("voxlex.correction.duration",
		metric.WithDescription("Latency of the transcript correction pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Transcripts, err = m.Int64Counter("voxlex.transcripts",
		metric.WithDescription("Total transcript events emitted by kind."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionsApplied, err = m.Int64Counter("voxlex.corrections.applied",
		metric.WithDescription("Total transcripts where correction changed the text."),
	); err != nil {
		return nil, err
	}
	if met.CommandsHandled, err = m.Int64Counter("voxlex.commands.handled",
		metric.WithDescription("Total session commands handled by action."),
	); err != nil {
		return nil, err
	}
	if met.TermsLearned, err = m.Int64Counter("voxlex.vocabulary.terms_learned",
		metric.WithDescription("Total vocabulary terms admitted by origin."),
	); err != nil {
		return nil, err
	}
	if met.RefreshOutcomes, err = m.Int64Counter("voxlex.vocabulary.refresh.outcomes",
		metric.WithDescription("Total vocabulary refresh completions by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxlex.active_sessions",
		metric.WithDescription("Number of live transcription sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxlex.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.vocabularySize, err = m.Int64ObservableGauge("voxlex.vocabulary.size",
		metric.WithDescription("Current number of terms in the vocabulary store."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// ObserveVocabularySize registers size as the callback that reports the
// vocabulary store's current term count on every metric collection. The
// returned registration should be unregistered on shutdown.
func (m *Metrics) ObserveVocabularySize(size func() int64) (metric.Registration, error) {
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.vocabularySize, size())
		return nil
	}, m.vocabularySize)
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

// RecordTranscript records a transcript event counter increment for the
// given kind ("final" or "partial").
func (m *Metrics) RecordTranscript(ctx context.Context, kind string) {
	m.Transcripts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordCommand records a handled-command counter increment for the given
// action.
func (m *Metrics) RecordCommand(ctx context.Context, action string) {
	m.CommandsHandled.Add(ctx, 1,
		metric.WithAttributes(attribute.String("action", action)),
	)
}

// RecordTermsLearned records admitted vocabulary terms by origin.
func (m *Metrics) RecordTermsLearned(ctx context.Context, origin string, n int64) {
	if n <= 0 {
		return
	}
	m.TermsLearned.Add(ctx, n,
		metric.WithAttributes(attribute.String("origin", origin)),
	)
}

// RecordRefresh records a refresh outcome and its duration.
func (m *Metrics) RecordRefresh(ctx context.Context, status string, seconds float64) {
	m.RefreshOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.RefreshDuration.Record(ctx, seconds)
}
