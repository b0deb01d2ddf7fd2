// Package observe provides application-wide observability primitives for
// lingocoach: OpenTelemetry metrics, distributed tracing, structured logging,
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lingocoach metrics.
const meterName = "github.com/MrWong99/lingocoach"

// Provider kinds used as the "kind" attribute.
const (
	KindSTT     = "stt"
	KindLLM     = "llm"
	KindGrammar = "grammar"
	KindStore   = "store"
)

// Metrics holds the instruments recorded by the coaching pipeline. The
// fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per collaborator ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// GrammarDuration tracks grammar-check latency.
	GrammarDuration metric.Float64Histogram

	// StoreDuration tracks attempt store latency.
	StoreDuration metric.Float64Histogram

	// AnalysisDuration tracks the end-to-end analyze flow.
	AnalysisDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// AttemptsRecorded counts persisted attempts. Use with attributes:
	//   attribute.String("target_lang", ...), attribute.Bool("llm", ...)
	AttemptsRecorded metric.Int64Counter

	// CircuitStateChanges counts circuit breaker transitions. Use with attributes:
	//   attribute.String("breaker", ...), attribute.String("to", ...)
	CircuitStateChanges metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...),
	//   attribute.String("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). LLM calls
// on a CPU-only host routinely take tens of seconds, hence the long tail.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	// Histograms.
	if met.STTDuration, err = histogram("lingocoach.stt.duration", "Latency of speech-to-text transcription."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = histogram("lingocoach.llm.duration", "Latency of LLM inference."); err != nil {
		return nil, err
	}
	if met.GrammarDuration, err = histogram("lingocoach.grammar.duration", "Latency of grammar checks."); err != nil {
		return nil, err
	}
	if met.StoreDuration, err = histogram("lingocoach.store.duration", "Latency of attempt store operations."); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = histogram("lingocoach.analysis.duration", "End-to-end transcript analysis latency."); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("lingocoach.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.AttemptsRecorded, err = m.Int64Counter("lingocoach.attempts.recorded",
		metric.WithDescription("Total attempts written to the progress store."),
	); err != nil {
		return nil, err
	}
	if met.CircuitStateChanges, err = m.Int64Counter("lingocoach.circuit.state_changes",
		metric.WithDescription("Total circuit breaker state transitions by breaker and target state."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("lingocoach.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lingocoach.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route pattern and status class."),
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

func (m *Metrics) recordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

func (m *Metrics) recordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// ObserveCall records the latency, request counter and (when err is non-nil)
// error counter for one call to an external collaborator that started at
// start.
func (m *Metrics) ObserveCall(ctx context.Context, kind, provider string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	switch kind {
	case KindSTT:
		m.STTDuration.Record(ctx, elapsed, attrs)
	case KindLLM:
		m.LLMDuration.Record(ctx, elapsed, attrs)
	case KindGrammar:
		m.GrammarDuration.Record(ctx, elapsed, attrs)
	case KindStore:
		m.StoreDuration.Record(ctx, elapsed, attrs)
	}

	status := "ok"
	if err != nil {
		status = "error"
		m.recordProviderError(ctx, provider, kind)
	}
	m.recordProviderRequest(ctx, provider, kind, status)
}

// RecordAttempt counts one persisted attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, targetLang string, usedLLM bool) {
	m.AttemptsRecorded.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("target_lang", targetLang),
			attribute.Bool("llm", usedLLM),
		),
	)
}

// RecordCircuitStateChange counts a breaker moving to state to.
func (m *Metrics) RecordCircuitStateChange(ctx context.Context, breaker, to string) {
	m.CircuitStateChanges.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("to", to),
		),
	)
}
