// Package metrics provides Prometheus metrics for the puzzle rating service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// defaultDeltaBuckets spans the reachable deltas: the easy-band malus floor
// at -200 up to stacked hard-band bonuses in the thousands.
var defaultDeltaBuckets = []float64{-200, -100, -50, 0, 100, 300, 600, 800, 1200, 1600, 2000, 2500, 3000, 4000} //nolint:gochecknoglobals // constant table

// Evaluation outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeInvalidInput = "invalid_input"
	OutcomeParseError   = "parse_error"
	OutcomeCancelled    = "cancelled"
	OutcomeInternal     = "internal_error"
)

// Formula stages that can be reported as triggered.
const (
	StageEasyMalus      = "easy_malus"
	StageHardBonus      = "hard_bonus"
	StageHintPenalty    = "hint_penalty"
	StageRatingBonus    = "rating_bonus"
	StageFloor          = "floor"
	StageFloorLift      = "floor_lift"
	StageChallengeBonus = "challenge_bonus"
)

var knownStages = map[string]struct{}{ //nolint:gochecknoglobals // fixed label set
	StageEasyMalus:      {},
	StageHardBonus:      {},
	StageHintPenalty:    {},
	StageRatingBonus:    {},
	StageFloor:          {},
	StageFloorLift:      {},
	StageChallengeBonus: {},
}

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	deltaBuckets     []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core business metrics
	evaluations       *prometheus.CounterVec
	ratingDelta       prometheus.Histogram
	evaluationLatency prometheus.Histogram
	stagesTriggered   *prometheus.CounterVec
	lastRatingDelta   prometheus.Gauge

	// Batch pipeline metrics
	queueSize         prometheus.Gauge
	workerActiveCount prometheus.Gauge

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System performance metrics
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

// Configure rebuilds the global manager on a fresh registry with opts.
// Call it once at startup, before any metric is recorded or served.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	customRegistry = reg
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(reg)}, opts...)...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "puzzlerating",
		subsystem:        "calculator",
		histogramBuckets: prometheus.DefBuckets,
		deltaBuckets:     defaultDeltaBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(base string) string {
	if m.metricPrefix == "" {
		return base
	}
	return m.metricPrefix + "_" + base
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("evaluations_total"),
		Help:        "Total number of rating evaluations by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.ratingDelta = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("rating_delta"),
		Help:        "Distribution of computed rating deltas",
		Buckets:     m.deltaBuckets,
		ConstLabels: labels,
	})

	m.evaluationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("evaluation_latency_milliseconds"),
		Help:        "Histogram of evaluation latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.stagesTriggered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stage_triggered_total"),
		Help:        "Number of evaluations in which a formula stage changed the delta",
		ConstLabels: labels,
	}, []string{"stage"})

	m.lastRatingDelta = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("last_rating_delta"),
		Help:        "Most recently computed rating delta",
		ConstLabels: labels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("batch_queue_size"),
		Help:        "Number of batch lines waiting for a worker",
		ConstLabels: labels,
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("batch_worker_active_count"),
		Help:        "Number of running batch workers",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_type_total"),
		Help:        "Total number of errors by type and severity",
		ConstLabels: labels,
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_endpoint_total"),
		Help:        "Total number of errors by HTTP endpoint",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "System memory usage in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// RecordEvaluation counts an evaluation with the given outcome.
func (m *Manager) RecordEvaluation(outcome string) {
	if !m.enabled {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
}

// RecordRatingDelta observes a computed delta.
func (m *Manager) RecordRatingDelta(delta int) {
	if !m.enabled {
		return
	}
	m.ratingDelta.Observe(float64(delta))
	m.lastRatingDelta.Set(float64(delta))
}

// RecordEvaluationLatency records evaluation latency in milliseconds.
func (m *Manager) RecordEvaluationLatency(latencyMs float64) {
	if !m.enabled {
		return
	}
	m.evaluationLatency.Observe(latencyMs)
}

// RecordStage counts a triggered formula stage. Unknown stages are rejected
// so the label set stays bounded.
func (m *Manager) RecordStage(stage string) error {
	if _, ok := knownStages[stage]; !ok {
		return fmt.Errorf("%w: unknown stage %q", ErrObserveFailed, stage)
	}
	if !m.enabled {
		return nil
	}
	m.stagesTriggered.WithLabelValues(stage).Inc()
	return nil
}

// RecordEvaluation counts an evaluation with the given outcome.
func RecordEvaluation(outcome string) {
	globalManager.RecordEvaluation(outcome)
}

// RecordRatingDelta observes a computed delta.
func RecordRatingDelta(delta int) {
	globalManager.RecordRatingDelta(delta)
}

// RecordEvaluationLatency records evaluation latency in milliseconds.
func RecordEvaluationLatency(latencyMs float64) {
	globalManager.RecordEvaluationLatency(latencyMs)
}

// RecordStage counts a triggered formula stage.
func RecordStage(stage string) error {
	return globalManager.RecordStage(stage)
}

// UpdateQueueSize sets the number of queued batch lines.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateWorkerActiveCount sets the number of running batch workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records errors by type.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records errors by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the current memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// RefreshInterval returns how often gauge updaters should run.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
