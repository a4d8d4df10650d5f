// Package metrics provides Prometheus metrics for the scorekeeper service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Core business metrics
	scoresUpserted     prometheus.Counter
	levelsAdded        prometheus.Counter
	levelsImported     prometheus.Counter
	leaderboardLatency prometheus.Histogram

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	storeRetries *prometheus.CounterVec

	// Snapshot metrics
	snapshotsTotal      prometheus.Counter
	snapshotFailures    prometheus.Counter
	snapshotDuration    prometheus.Histogram
	snapshotLastSuccess prometheus.Gauge
	snapshotsPruned     prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scorekeeper",
		subsystem:        "core",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.scoresUpserted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_upserted_total",
		Help:      "Total number of score submissions written",
	})

	m.levelsAdded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "levels_added_total",
		Help:      "Total number of levels created one at a time",
	})

	m.levelsImported = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "levels_imported_total",
		Help:      "Total number of levels created by bulk import",
	})

	m.leaderboardLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_rank_latency_milliseconds",
		Help:      "Latency of building a ranked leaderboard in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_operation_latency_milliseconds",
			Help:      "Latency of store operations in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"op"},
	)

	m.storeErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_errors_total",
			Help:      "Store errors by operation and error kind",
		},
		[]string{"op", "kind"},
	)

	m.storeRetries = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_retries_total",
			Help:      "Reconnect-and-retry attempts after storage became unavailable",
		},
		[]string{"op"},
	)

	m.snapshotsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_total",
		Help:      "Total number of successful snapshots",
	})

	m.snapshotFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_failures_total",
		Help:      "Total number of failed snapshots",
	})

	m.snapshotDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_duration_milliseconds",
		Help:      "Duration of successful snapshots in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.snapshotLastSuccess = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_last_success_unix",
		Help:      "Unix time of the last successful snapshot",
	})

	m.snapshotsPruned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_pruned_total",
		Help:      "Total number of snapshot artifacts removed by retention",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// RecordScoreUpserted increments the written scores counter.
func RecordScoreUpserted() {
	globalManager.scoresUpserted.Inc()
}

// RecordLevelAdded increments the added levels counter.
func RecordLevelAdded() {
	globalManager.levelsAdded.Inc()
}

// RecordLevelsImported adds n to the imported levels counter.
func RecordLevelsImported(n int) {
	if n > 0 {
		globalManager.levelsImported.Add(float64(n))
	}
}

// RecordLeaderboardLatency records ranking latency in milliseconds.
func RecordLeaderboardLatency(latencyMs float64) {
	globalManager.leaderboardLatency.Observe(latencyMs)
}

// RecordStoreLatency records the latency of one store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation by error kind.
func RecordStoreError(op, kind string) {
	globalManager.storeErrors.WithLabelValues(op, kind).Inc()
}

// RecordStoreRetry counts a reconnect-and-retry attempt.
func RecordStoreRetry(op string) {
	globalManager.storeRetries.WithLabelValues(op).Inc()
}

// RecordSnapshot records a successful snapshot and its duration.
func RecordSnapshot(durationMs float64, finishedUnix float64) {
	globalManager.snapshotsTotal.Inc()
	globalManager.snapshotDuration.Observe(durationMs)
	globalManager.snapshotLastSuccess.Set(finishedUnix)
}

// RecordSnapshotFailure increments the failed snapshots counter.
func RecordSnapshotFailure() {
	globalManager.snapshotFailures.Inc()
}

// RecordSnapshotsPruned adds n to the pruned artifacts counter.
func RecordSnapshotsPruned(n int) {
	if n > 0 {
		globalManager.snapshotsPruned.Add(float64(n))
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
