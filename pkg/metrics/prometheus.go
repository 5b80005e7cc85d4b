// Package metrics provides Prometheus metrics for the dugout challenge service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the dugout service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Gameplay
	attemptsSubmitted   prometheus.Counter
	attemptsRejected    *prometheus.CounterVec
	evaluations         prometheus.Counter
	evaluationErrors    prometheus.Counter
	percentOfBest       prometheus.Histogram
	challengesPublished prometheus.Counter

	// Storage and cache
	storeLatency  *prometheus.HistogramVec
	cacheRequests *prometheus.CounterVec

	// Leaderboards
	leaderboardRefreshes prometheus.Counter
	leaderboardErrors    prometheus.Counter
	liveConnections      prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueTotal  prometheus.Counter
	queueDequeueTotal  prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec
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
		namespace:        "dugout",
		subsystem:        "challenges",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.attemptsSubmitted = m.counter("attempts_submitted_total", "Total number of attempts accepted")
	m.attemptsRejected = m.counterVec("attempts_rejected_total", "Total number of attempts rejected by reason", "reason")
	m.evaluations = m.counter("evaluations_total", "Total number of challenge baseline evaluations")
	m.evaluationErrors = m.counter("evaluation_errors_total", "Total number of failed baseline evaluations")
	m.percentOfBest = m.histogram("percent_of_best", "Distribution of accepted attempts as a percentage of the best possible score",
		prometheus.LinearBuckets(10, 10, 10))
	m.challengesPublished = m.counter("challenges_published_total", "Total number of challenges created")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", "driver", "op")
	m.cacheRequests = m.counterVec("cache_requests_total", "Leaderboard cache lookups by result", "result")

	m.leaderboardRefreshes = m.counter("leaderboard_refreshes_total", "Total number of leaderboard refreshes")
	m.leaderboardErrors = m.counter("leaderboard_errors_total", "Total number of failed leaderboard refreshes")
	m.liveConnections = m.gauge("live_connections", "Current number of live leaderboard subscribers")

	m.queueSize = m.gauge("queue_size", "Current size of the refresh queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum refresh queue capacity")
	m.queueEnqueueTotal = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeueTotal = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerCount = m.gauge("worker_count", "Configured number of refresh workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker errors")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordAttemptSubmitted counts an accepted attempt and its percent of best.
// percentOfBest is ignored when ok is false.
func RecordAttemptSubmitted(percentOfBest float64, ok bool) {
	if !on() {
		return
	}
	globalManager.attemptsSubmitted.Inc()
	if ok {
		globalManager.percentOfBest.Observe(percentOfBest)
	}
}

// RecordAttemptRejected counts a rejected attempt.
func RecordAttemptRejected(reason string) {
	if on() {
		globalManager.attemptsRejected.WithLabelValues(reason).Inc()
	}
}

// RecordEvaluation counts a baseline evaluation.
func RecordEvaluation(err error) {
	if !on() {
		return
	}
	globalManager.evaluations.Inc()
	if err != nil {
		globalManager.evaluationErrors.Inc()
	}
}

// RecordChallengePublished counts a created challenge.
func RecordChallengePublished() {
	if on() {
		globalManager.challengesPublished.Inc()
	}
}

// RecordStoreLatency records a store operation latency in milliseconds.
func RecordStoreLatency(driver, op string, latencyMs float64) {
	if on() {
		globalManager.storeLatency.WithLabelValues(driver, op).Observe(latencyMs)
	}
}

// RecordCacheHit counts a cache hit.
func RecordCacheHit() {
	if on() {
		globalManager.cacheRequests.WithLabelValues("hit").Inc()
	}
}

// RecordCacheMiss counts a cache miss.
func RecordCacheMiss() {
	if on() {
		globalManager.cacheRequests.WithLabelValues("miss").Inc()
	}
}

// RecordLeaderboardRefresh counts a leaderboard refresh.
func RecordLeaderboardRefresh() {
	if on() {
		globalManager.leaderboardRefreshes.Inc()
	}
}

// RecordLeaderboardError counts a failed leaderboard refresh.
func RecordLeaderboardError() {
	if on() {
		globalManager.leaderboardErrors.Inc()
	}
}

// UpdateLiveConnections sets the live subscriber gauge.
func UpdateLiveConnections(count int) {
	if on() {
		globalManager.liveConnections.Set(float64(count))
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue counts an enqueued job.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueueTotal.Inc()
	}
}

// RecordQueueDequeue counts a dequeued job.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeueTotal.Inc()
	}
}

// RecordQueueEnqueueError counts a failed enqueue.
func RecordQueueEnqueueError() {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	if on() {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records a job latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a worker error.
func RecordWorkerError() {
	if on() {
		globalManager.workerErrors.Inc()
	}
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByComponent counts an error attributed to a component.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint counts an error returned by an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if on() {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
