// Package metrics provides Prometheus metrics for the wearsense service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the wearsense service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	ingestions        *prometheus.CounterVec
	predictionsStored prometheus.Counter
	comfortsStored    prometheus.Counter
	sensorsStored     prometheus.Counter
	imagesStored      prometheus.Counter
	sessionsCreated   prometheus.Counter
	sessionCacheHits  prometheus.Counter
	mqttMessages      *prometheus.CounterVec

	// Inference
	inferenceLatency  *prometheus.HistogramVec
	inferenceErrors   *prometheus.CounterVec
	inferenceTimeouts *prometheus.CounterVec

	// Retention
	retentionEvictions *prometheus.CounterVec

	// Analytics
	analyticsLatency *prometheus.HistogramVec

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "wearsense",
		subsystem:        "api",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.ingestions = m.counterVec("ingestions_total", "Ingestion requests by kind and outcome", "kind", "outcome")
	m.predictionsStored = m.counter("predictions_stored_total", "Prediction records persisted")
	m.comfortsStored = m.counter("comforts_stored_total", "Comfort records persisted")
	m.sensorsStored = m.counter("sensors_stored_total", "Sensor records persisted")
	m.imagesStored = m.counter("images_stored_total", "Annotated image records persisted")
	m.sessionsCreated = m.counter("sessions_created_total", "Sessions created for previously unseen tokens")
	m.sessionCacheHits = m.counter("session_cache_hits_total", "Session lookups served from the cache")
	m.mqttMessages = m.counterVec("mqtt_messages_total", "Sensor telemetry messages received over MQTT", "outcome")

	m.inferenceLatency = m.histogramVec("inference_latency_milliseconds", "Model service call latency in milliseconds", "stage")
	m.inferenceErrors = m.counterVec("inference_errors_total", "Failed model service calls", "stage")
	m.inferenceTimeouts = m.counterVec("inference_timeouts_total", "Model service calls abandoned on timeout", "stage")

	m.retentionEvictions = m.counterVec("retention_evictions_total", "Files removed by the retention policy", "directory")

	m.analyticsLatency = m.histogramVec("analytics_latency_milliseconds", "Aggregation latency in milliseconds", "operation")

	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Record store write latency in milliseconds", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Record store read latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current number of pending inference tasks")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum inference queue capacity")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of tasks enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of tasks dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Configured number of inference workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently running a task")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Task execution latency in milliseconds", m.histogramBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "Tasks that finished with an error")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Ingestion Metrics Functions.

// RecordIngestion counts an ingestion request of the given kind (image, sensor, comfort).
func RecordIngestion(kind, outcome string) {
	globalManager.ingestions.WithLabelValues(kind, outcome).Inc()
}

// RecordPredictionsStored adds n persisted predictions.
func RecordPredictionsStored(n int) {
	globalManager.predictionsStored.Add(float64(n))
}

// RecordComfortsStored adds n persisted comfort records.
func RecordComfortsStored(n int) {
	globalManager.comfortsStored.Add(float64(n))
}

// RecordSensorStored increments the persisted sensors counter.
func RecordSensorStored() {
	globalManager.sensorsStored.Inc()
}

// RecordImageStored increments the persisted images counter.
func RecordImageStored() {
	globalManager.imagesStored.Inc()
}

// RecordSessionCreated increments the created sessions counter.
func RecordSessionCreated() {
	globalManager.sessionsCreated.Inc()
}

// RecordSessionCacheHit increments the session cache hit counter.
func RecordSessionCacheHit() {
	globalManager.sessionCacheHits.Inc()
}

// RecordMQTTMessage counts a telemetry message by outcome.
func RecordMQTTMessage(outcome string) {
	globalManager.mqttMessages.WithLabelValues(outcome).Inc()
}

// Inference Metrics Functions.

// RecordInferenceLatency records a model call latency for a stage (detect, classify).
func RecordInferenceLatency(stage string, latencyMs float64) {
	globalManager.inferenceLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordInferenceError increments the failed model calls counter.
func RecordInferenceError(stage string) {
	globalManager.inferenceErrors.WithLabelValues(stage).Inc()
}

// RecordInferenceTimeout increments the timed out model calls counter.
func RecordInferenceTimeout(stage string) {
	globalManager.inferenceTimeouts.WithLabelValues(stage).Inc()
}

// RecordRetentionEvictions adds n evicted files for a watched directory.
func RecordRetentionEvictions(directory string, n int) {
	globalManager.retentionEvictions.WithLabelValues(directory).Add(float64(n))
}

// RecordAnalyticsLatency records an aggregation latency.
func RecordAnalyticsLatency(operation string, latencyMs float64) {
	globalManager.analyticsLatency.WithLabelValues(operation).Observe(latencyMs)
}

// Repository Metrics Functions.

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive moves the active worker gauge by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
