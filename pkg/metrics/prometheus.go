// Package metrics provides Prometheus metrics for the flightrisk prediction service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the flightrisk service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Prediction Metrics
	predictionRequests *prometheus.CounterVec
	predictionLatency  prometheus.Histogram
	stageLatency       *prometheus.HistogramVec
	stageErrors        *prometheus.CounterVec
	degradedInputs     *prometheus.CounterVec
	distanceFallbacks  prometheus.Counter

	// Model Registry Metrics
	modelLoads       *prometheus.CounterVec
	modelLoadLatency *prometheus.HistogramVec
	modelCache       *prometheus.CounterVec
	modelsLoaded     prometheus.Gauge
	artifactFetches  *prometheus.CounterVec

	// Batch Queue Metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueue     prometheus.Counter
	queueDequeue     prometheus.Counter
	queueRejections  prometheus.Counter
	workerCount      prometheus.Gauge
	workerActive     prometheus.Gauge
	workerLatency    prometheus.Histogram
	workerErrorCount prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "flightrisk",
		subsystem:        "predictor",
		histogramBuckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// name applies the configured prefix to a metric name.
func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Prediction Metrics
	m.predictionRequests = auto.NewCounterVec(
		m.counterOpts("prediction_requests_total", "Total number of prediction requests by mode and outcome"),
		[]string{"mode", "outcome"},
	)
	m.predictionLatency = auto.NewHistogram(
		m.histogramOpts("prediction_latency_milliseconds", "End-to-end prediction latency in milliseconds", m.histogramBuckets),
	)
	m.stageLatency = auto.NewHistogramVec(
		m.histogramOpts("stage_latency_milliseconds", "Latency of a single prediction stage in milliseconds", m.histogramBuckets),
		[]string{"stage"},
	)
	m.stageErrors = auto.NewCounterVec(
		m.counterOpts("stage_errors_total", "Total number of failed prediction stages by error type"),
		[]string{"stage", "error_type"},
	)
	m.degradedInputs = auto.NewCounterVec(
		m.counterOpts("degraded_inputs_total", "Total number of feature values replaced by a default"),
		[]string{"pipeline", "field"},
	)
	m.distanceFallbacks = auto.NewCounter(
		m.counterOpts("distance_fallbacks_total", "Total number of distance lookups that fell back to the sentinel value"),
	)

	// Model Registry Metrics
	m.modelLoads = auto.NewCounterVec(
		m.counterOpts("model_loads_total", "Total number of artifact loads by kind and result"),
		[]string{"kind", "result"},
	)
	m.modelLoadLatency = auto.NewHistogramVec(
		m.histogramOpts("model_load_latency_milliseconds", "Artifact load latency in milliseconds", m.histogramBuckets),
		[]string{"kind"},
	)
	m.modelCache = auto.NewCounterVec(
		m.counterOpts("model_cache_total", "Model registry lookups by result (hit or miss)"),
		[]string{"result"},
	)
	m.modelsLoaded = auto.NewGauge(
		m.gaugeOpts("models_loaded", "Number of model handles resident in the registry"),
	)
	m.artifactFetches = auto.NewCounterVec(
		m.counterOpts("artifact_fetches_total", "Artifact fetch attempts by source and result"),
		[]string{"source", "result"},
	)

	// Batch Queue Metrics
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current number of queued batch prediction jobs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum batch job queue capacity"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of jobs enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of jobs dequeued"))
	m.queueRejections = auto.NewCounter(
		m.counterOpts("queue_rejections_total", "Total number of jobs rejected because the queue was full"),
	)
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured number of prediction workers"))
	m.workerActive = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of workers currently running a job"))
	m.workerLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Worker job processing latency in milliseconds", m.histogramBuckets),
	)
	m.workerErrorCount = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of failed worker jobs"))

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// RefreshInterval reports how often sampled gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

// RecordPrediction counts a prediction request and observes its latency.
func (m *Manager) RecordPrediction(mode, outcome string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.predictionRequests.WithLabelValues(mode, outcome).Inc()
	m.predictionLatency.Observe(latencyMs)
}

// RecordStage observes a stage latency and counts it as failed when errorType is set.
func (m *Manager) RecordStage(stage, errorType string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(latencyMs)
	if errorType != "" {
		m.stageErrors.WithLabelValues(stage, errorType).Inc()
	}
}

// RecordDegradedInput counts a feature that fell back to its default.
func (m *Manager) RecordDegradedInput(pipeline, field string) {
	if !m.enabled {
		return
	}
	m.degradedInputs.WithLabelValues(pipeline, field).Inc()
}

// RecordDistanceFallback counts a distance lookup that returned the sentinel.
func (m *Manager) RecordDistanceFallback() {
	if !m.enabled {
		return
	}
	m.distanceFallbacks.Inc()
}

// RecordModelLoad counts an artifact load and observes its duration.
func (m *Manager) RecordModelLoad(kind, result string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.modelLoads.WithLabelValues(kind, result).Inc()
	m.modelLoadLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordModelCache counts a registry lookup as a hit or a miss.
func (m *Manager) RecordModelCache(hit bool) {
	if !m.enabled {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.modelCache.WithLabelValues(result).Inc()
}

// UpdateModelsLoaded sets the number of resident model handles.
func (m *Manager) UpdateModelsLoaded(count int) {
	if !m.enabled {
		return
	}
	m.modelsLoaded.Set(float64(count))
}

// RecordArtifactFetch counts a fetch attempt against an artifact source.
func (m *Manager) RecordArtifactFetch(source, result string) {
	if !m.enabled {
		return
	}
	m.artifactFetches.WithLabelValues(source, result).Inc()
}

// Package-level helpers delegate to the global manager.

// RecordPrediction counts a prediction request and observes its latency.
func RecordPrediction(mode, outcome string, latencyMs float64) {
	globalManager.RecordPrediction(mode, outcome, latencyMs)
}

// RecordStage observes a stage latency and counts failures.
func RecordStage(stage, errorType string, latencyMs float64) {
	globalManager.RecordStage(stage, errorType, latencyMs)
}

// RecordDegradedInput counts a feature that fell back to its default.
func RecordDegradedInput(pipeline, field string) {
	globalManager.RecordDegradedInput(pipeline, field)
}

// RecordDistanceFallback counts a distance lookup that returned the sentinel.
func RecordDistanceFallback() {
	globalManager.RecordDistanceFallback()
}

// RecordModelLoad counts an artifact load and observes its duration.
func RecordModelLoad(kind, result string, latencyMs float64) {
	globalManager.RecordModelLoad(kind, result, latencyMs)
}

// RecordModelCache counts a registry lookup as a hit or a miss.
func RecordModelCache(hit bool) {
	globalManager.RecordModelCache(hit)
}

// UpdateModelsLoaded sets the number of resident model handles.
func UpdateModelsLoaded(count int) {
	globalManager.UpdateModelsLoaded(count)
}

// RecordArtifactFetch counts a fetch attempt against an artifact source.
func RecordArtifactFetch(source, result string) {
	globalManager.RecordArtifactFetch(source, result)
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
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueRejection increments the backpressure counter.
func RecordQueueRejection() {
	globalManager.queueRejections.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorCount.Inc()
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

// RefreshInterval returns the global manager's gauge refresh interval.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
