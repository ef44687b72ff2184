// Package metrics provides Prometheus metrics for the calibration service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flow result label values.
const (
	ResultCompleted = "completed"
	ResultAborted   = "aborted"
	ResultFailed    = "failed"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Calibration
	flowsStarted      prometheus.Counter
	flowsFinished     *prometheus.CounterVec
	flowFailures      *prometheus.CounterVec
	comparisons       *prometheus.CounterVec
	ratingDelta       *prometheus.HistogramVec
	upsets            prometheus.Counter
	finalRating       prometheus.Histogram
	persistenceWrites *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	sessionsExpired   prometheus.Counter

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositoryRecords       prometheus.Gauge

	// Write-behind queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerActive       prometheus.Gauge
	workerApplyLatency prometheus.Histogram
	workerErrors       prometheus.Counter
	workerRetries      prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton manager behind the package helpers

// customRegistry keeps default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "calibrate",
		subsystem:      "engine",
		latencyBuckets: prometheus.DefBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	deltaBuckets := []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 1, 2, 3, 4}
	ratingBuckets := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	m.flowsStarted = m.counter("flows_started_total", "Calibration flows that passed precondition checks")
	m.flowsFinished = m.counterVec("flows_finished_total", "Calibration flows by terminal result", "result")
	m.flowFailures = m.counterVec("flow_failures_total", "Failed calibration flows by reason", "reason")
	m.comparisons = m.counterVec("comparisons_total", "Resolved pairwise comparisons", "round", "outcome")
	m.ratingDelta = m.histogramVec("rating_delta", "Absolute rating change per comparison", deltaBuckets, "side")
	m.upsets = m.counter("major_upsets_total", "Comparisons that triggered the major upset bonus")
	m.finalRating = m.histogram("final_rating", "Distribution of calibrated final ratings", ratingBuckets)
	m.persistenceWrites = m.counterVec("persistence_writes_total", "Opponent rating writes through the persistence port", "status")
	m.activeSessions = m.gauge("active_sessions", "Sessions currently awaiting comparisons")
	m.sessionsExpired = m.counter("sessions_expired_total", "Idle sessions evicted by the registry")

	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Store write latency", m.latencyBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Store read latency", m.latencyBuckets)
	m.repositoryRecords = m.gauge("repository_records_total", "Rated items held by the in-memory store")

	m.queueSize = m.gauge("queue_size", "Pending rating updates in the write-behind queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the write-behind queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Rating updates accepted by the queue")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected rating updates", "reason")

	m.workerActive = m.gauge("worker_active_count", "Running write-behind workers")
	m.workerApplyLatency = m.histogram("worker_apply_latency_milliseconds", "Time to apply one rating update", m.latencyBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Rating updates dropped after retries")
	m.workerRetries = m.counter("worker_retries_total", "Rating update retry attempts")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", m.latencyBuckets, "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("http_errors_total", "HTTP error responses by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// FlowStarted counts a flow that passed its preconditions.
func (m *Manager) FlowStarted() { m.flowsStarted.Inc() }

// FlowFinished counts a terminal flow. reason is only recorded for failures.
func (m *Manager) FlowFinished(result, reason string) {
	m.flowsFinished.WithLabelValues(result).Inc()
	if result == ResultFailed {
		m.flowFailures.WithLabelValues(reason).Inc()
	}
}

// ComparisonResolved records one resolved round.
func (m *Manager) ComparisonResolved(round int, outcome string, deltaNew, deltaOpponent float64, upset bool) {
	m.comparisons.WithLabelValues(strconv.Itoa(round), outcome).Inc()
	m.ratingDelta.WithLabelValues("new").Observe(deltaNew)
	m.ratingDelta.WithLabelValues("opponent").Observe(deltaOpponent)
	if upset {
		m.upsets.Inc()
	}
}

// FinalRating observes a calibrated rating.
func (m *Manager) FinalRating(r float64) { m.finalRating.Observe(r) }

// PersistenceWrite records one port write.
func (m *Manager) PersistenceWrite(err error) {
	if err != nil {
		m.persistenceWrites.WithLabelValues("error").Inc()
		return
	}
	m.persistenceWrites.WithLabelValues("ok").Inc()
}

// SetActiveSessions sets the active session gauge.
func (m *Manager) SetActiveSessions(n int) { m.activeSessions.Set(float64(n)) }

// SessionsExpired adds evicted sessions.
func (m *Manager) SessionsExpired(n int) { m.sessionsExpired.Add(float64(n)) }

// Package helpers delegate to the global manager.

// RecordFlowStarted counts a flow that passed its preconditions.
func RecordFlowStarted() { globalManager.FlowStarted() }

// RecordFlowFinished counts a terminal flow.
func RecordFlowFinished(result, reason string) { globalManager.FlowFinished(result, reason) }

// RecordFinalRating observes a calibrated rating.
func RecordFinalRating(r float64) { globalManager.FinalRating(r) }

// UpdateActiveSessions sets the active session gauge.
func UpdateActiveSessions(n int) { globalManager.SetActiveSessions(n) }

// RecordSessionsExpired adds evicted sessions.
func RecordSessionsExpired(n int) { globalManager.SessionsExpired(n) }

// RecordRepositoryUpdateLatency records a store write latency in milliseconds.
func RecordRepositoryUpdateLatency(ms float64) { globalManager.repositoryUpdateLatency.Observe(ms) }

// RecordRepositoryQueryLatency records a store read latency in milliseconds.
func RecordRepositoryQueryLatency(ms float64) { globalManager.repositoryQueryLatency.Observe(ms) }

// UpdateRepositoryRecordsTotal sets the in-memory record count.
func UpdateRepositoryRecordsTotal(n int) { globalManager.repositoryRecords.Set(float64(n)) }

// UpdateQueueSize sets the queue depth.
func UpdateQueueSize(n int) { globalManager.queueSize.Set(float64(n)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }

// RecordQueueEnqueue counts an accepted update.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueEnqueueError counts a rejected update.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerActiveCount sets the running worker gauge.
func UpdateWorkerActiveCount(n int) { globalManager.workerActive.Set(float64(n)) }

// RecordWorkerApplyLatency records apply latency in milliseconds.
func RecordWorkerApplyLatency(ms float64) { globalManager.workerApplyLatency.Observe(ms) }

// RecordWorkerError counts an update dropped after retries.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordWorkerRetry counts a retry attempt.
func RecordWorkerRetry() { globalManager.workerRetries.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordErrorByEndpoint records an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutineCount.Set(float64(n)) }

// RecordSystemGCPauseTime records average GC pause in milliseconds.
func RecordSystemGCPauseTime(ms float64) { globalManager.systemGCPauseTime.Observe(ms) }

// Global returns the manager behind the package helpers.
func Global() *Manager { return globalManager }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
