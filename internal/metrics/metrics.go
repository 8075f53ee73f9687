// Package metrics provides Prometheus metrics for metalake.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for metalake.
type Metrics struct {
	// Collection metrics
	SidecarsScanned   *prometheus.CounterVec
	SidecarsCollected *prometheus.CounterVec
	FetchFailures     *prometheus.CounterVec
	CollectionRuns    *prometheus.CounterVec

	// Timing metrics
	CollectionDuration *prometheus.HistogramVec

	// Transfer metrics
	BytesTransferred *prometheus.CounterVec

	// Pipeline metrics
	FetchInFlight prometheus.Gauge

	// Report metrics
	ReportsGenerated *prometheus.CounterVec

	// Generator metrics
	GeneratorRequests *prometheus.CounterVec

	// Model metrics
	ModelInvocations *prometheus.CounterVec

	// Mailroom metrics
	EmailsProcessed *prometheus.CounterVec
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "metalake"
	}

	m := &Metrics{
		SidecarsScanned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sidecars_scanned_total",
				Help:      "Total number of sidecar objects listed before limits and filters",
			},
			[]string{"bucket"},
		),
		SidecarsCollected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sidecars_collected_total",
				Help:      "Total number of sidecar entries retained after filtering",
			},
			[]string{"bucket"},
		),
		FetchFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sidecar_fetch_failures_total",
				Help:      "Total number of sidecar fetches dropped (missing or undecodable)",
			},
			[]string{"bucket"},
		),
		CollectionRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collection_runs_total",
				Help:      "Total number of collection runs by outcome",
			},
			[]string{"bucket", "outcome"},
		),
		CollectionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collection_duration_seconds",
				Help:      "Wall-clock duration of a collection run",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
			},
			[]string{"bucket"},
		),
		BytesTransferred: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_transferred_total",
				Help:      "Total sidecar bytes retained across collection runs",
			},
			[]string{"bucket"},
		),
		FetchInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fetch_in_flight",
				Help:      "Number of sidecar fetches currently in flight",
			},
		),
		ReportsGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_generated_total",
				Help:      "Total number of analytics reports written",
			},
			[]string{"bucket", "degraded"},
		),
		GeneratorRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generator_requests_total",
				Help:      "Total number of sidecar generation requests by outcome",
			},
			[]string{"outcome"},
		),
		ModelInvocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_invocations_total",
				Help:      "Total number of language model invocations",
			},
			[]string{"provider", "outcome"},
		),
		EmailsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_processed_total",
				Help:      "Total number of inbound email objects processed",
			},
			[]string{"route", "outcome"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// IncScanned adds to the scanned sidecars counter.
func (m *Metrics) IncScanned(bucket string, n float64) {
	m.SidecarsScanned.WithLabelValues(bucket).Add(n)
}

// IncCollected adds to the collected sidecars counter.
func (m *Metrics) IncCollected(bucket string, n float64) {
	m.SidecarsCollected.WithLabelValues(bucket).Add(n)
}

// IncFetchFailures increments the dropped-fetch counter.
func (m *Metrics) IncFetchFailures(bucket string) {
	m.FetchFailures.WithLabelValues(bucket).Inc()
}

// IncCollectionRun records a finished run with the given outcome.
func (m *Metrics) IncCollectionRun(bucket, outcome string) {
	m.CollectionRuns.WithLabelValues(bucket, outcome).Inc()
}

// ObserveCollectionDuration records the wall-clock time of a run.
func (m *Metrics) ObserveCollectionDuration(bucket string, seconds float64) {
	m.CollectionDuration.WithLabelValues(bucket).Observe(seconds)
}

// AddBytesTransferred adds retained sidecar bytes.
func (m *Metrics) AddBytesTransferred(bucket string, bytes float64) {
	m.BytesTransferred.WithLabelValues(bucket).Add(bytes)
}

// IncReportsGenerated records a written report; degraded marks fallback narratives.
func (m *Metrics) IncReportsGenerated(bucket string, degraded bool) {
	m.ReportsGenerated.WithLabelValues(bucket, boolLabel(degraded)).Inc()
}

// IncGeneratorRequest records a generation request outcome
// (ok, skipped, unmatched, error).
func (m *Metrics) IncGeneratorRequest(outcome string) {
	m.GeneratorRequests.WithLabelValues(outcome).Inc()
}

// IncModelInvocation records a model call by provider and outcome.
func (m *Metrics) IncModelInvocation(provider, outcome string) {
	m.ModelInvocations.WithLabelValues(provider, outcome).Inc()
}

// IncEmailsProcessed records an inbound email by route and outcome.
func (m *Metrics) IncEmailsProcessed(route, outcome string) {
	m.EmailsProcessed.WithLabelValues(route, outcome).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
