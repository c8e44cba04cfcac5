// Package metrics provides Prometheus metrics for the import pipeline.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests and in the CLI.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shelfsync"

// Metrics holds all import pipeline metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	rowsNormalized     *prometheus.CounterVec
	rowErrors          *prometheus.CounterVec
	rowsSkipped        *prometheus.CounterVec
	matches            *prometheus.CounterVec
	matchDuration      prometheus.Histogram
	sessionsCreated    prometheus.Counter
	sessionsSkipped    *prometheus.CounterVec
	ratingsUpdated     prometheus.Counter
	ratingFailures     prometheus.Counter
	progressBackfilled prometheus.Counter
	cachedBatches      prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		rowsNormalized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rows_normalized_total",
				Help:      "Total number of import rows normalized into records",
			},
			[]string{"provider"},
		),
		rowErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_row_errors_total",
				Help:      "Total number of import rows rejected with an error",
			},
			[]string{"provider"},
		),
		rowsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rows_skipped_total",
				Help:      "Total number of import rows skipped by provider policy",
			},
			[]string{"provider"},
		),
		matches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_matches_total",
				Help:      "Total number of match results by confidence",
			},
			[]string{"confidence"},
		),
		matchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_match_batch_duration_seconds",
				Help:      "Time spent matching one import batch against the catalog",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		sessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_sessions_created_total",
				Help:      "Total number of reading sessions created by imports",
			},
		),
		sessionsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_sessions_skipped_total",
				Help:      "Total number of import records that did not create a session",
			},
			[]string{"reason"},
		),
		ratingsUpdated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_ratings_updated_total",
				Help:      "Total number of catalog ratings updated by imports",
			},
		),
		ratingFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rating_sync_failures_total",
				Help:      "Total number of failed catalog rating updates",
			},
		),
		progressBackfilled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_progress_backfilled_total",
				Help:      "Total number of synthetic 100% progress entries created",
			},
		),
		cachedBatches: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "import_cached_batches",
				Help:      "Number of scored import batches awaiting execution",
			},
		),
	}
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordNormalized records the outcome of normalizing one upload.
func (m *Metrics) RecordNormalized(provider string, records, errors, skipped int) {
	if m == nil {
		return
	}
	m.rowsNormalized.WithLabelValues(provider).Add(float64(records))
	m.rowErrors.WithLabelValues(provider).Add(float64(errors))
	m.rowsSkipped.WithLabelValues(provider).Add(float64(skipped))
}

// RecordMatches adds n match results of one confidence.
func (m *Metrics) RecordMatches(confidence string, n int) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(confidence).Add(float64(n))
}

// ObserveMatchDuration records how long a batch took to match.
func (m *Metrics) ObserveMatchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.matchDuration.Observe(d.Seconds())
}

// RecordExecution records the totals of one executed batch.
func (m *Metrics) RecordExecution(created, ratingsUpdated, ratingFailures, backfilled int) {
	if m == nil {
		return
	}
	m.sessionsCreated.Add(float64(created))
	m.ratingsUpdated.Add(float64(ratingsUpdated))
	m.ratingFailures.Add(float64(ratingFailures))
	m.progressBackfilled.Add(float64(backfilled))
}

// RecordSessionSkipped records one record that did not produce a session.
func (m *Metrics) RecordSessionSkipped(reason string) {
	if m == nil {
		return
	}
	m.sessionsSkipped.WithLabelValues(reason).Inc()
}

// SetCachedBatches sets the cached batch gauge. It has the signature of an
// importcache size observer.
func (m *Metrics) SetCachedBatches(n int) {
	if m == nil {
		return
	}
	m.cachedBatches.Set(float64(n))
}
