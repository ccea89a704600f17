// Package metrics provides Prometheus metrics for the repsense fusion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tick latency buckets in milliseconds. The upper buckets bracket the
// 150 ms end-to-end latency target.
var defaultLatencyBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 20, 33, 50, 100, 150, 250}

// Manager owns every metric exported by the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Tick pipeline
	ticksTotal     prometheus.Counter
	tickLatency    prometheus.Histogram
	fusedConf      prometheus.Gauge
	degradedTicks  prometheus.Counter
	modeGauge      *prometheus.GaugeVec
	unsupportedEdg *prometheus.CounterVec

	// Ingestion
	samplesIngested *prometheus.CounterVec
	samplesDropped  *prometheus.CounterVec
	bufferFill      *prometheus.GaugeVec

	// Calibration
	calibrationOutcomes *prometheus.CounterVec
	calibrationConf     prometheus.Gauge
	driftDetections     prometheus.Counter

	// Phase and cues
	phaseTransitions   *prometheus.CounterVec
	invalidTransitions *prometheus.CounterVec
	repsTotal          *prometheus.CounterVec
	cuesEmitted        *prometheus.CounterVec
	sinkErrors         *prometheus.CounterVec

	// Cue dispatch
	dispatchQueued  prometheus.Gauge
	dispatchDropped *prometheus.CounterVec
	dispatchLatency prometheus.Histogram

	// Telemetry
	telemetryPublished prometheus.Counter
	telemetryErrors    prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// Process
	systemMemory     prometheus.Gauge
	systemGoroutines prometheus.Gauge
	systemGCPause    prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "repsense",
		subsystem:        "fusion",
		histogramBuckets: defaultLatencyBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	counterVec := func(name, help string, keys ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, keys)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gaugeVec := func(name, help string, keys ...string) *prometheus.GaugeVec {
		return auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, keys)
	}

	m.ticksTotal = counter("ticks_total", "Total number of completed fusion ticks")
	m.tickLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("tick_latency_milliseconds"),
		Help: "End-to-end tick latency from ingestion through cue emission", Buckets: m.histogramBuckets, ConstLabels: labels,
	})
	m.fusedConf = gauge("confidence", "Fused confidence of the latest body state")
	m.degradedTicks = counter("degraded_ticks_total", "Ticks emitted in low-confidence degraded mode")
	m.modeGauge = gaugeVec("degradation_mode", "1 for the currently active degradation mode", "mode")
	m.unsupportedEdg = counterVec("unsupported_edges_total", "Transitions into or out of the unsupported mode", "direction")

	m.samplesIngested = counterVec("samples_ingested_total", "Samples accepted into ingestion buffers", "source")
	m.samplesDropped = counterVec("samples_dropped_total", "Samples dropped by ingestion", "source", "reason")
	m.bufferFill = gaugeVec("buffer_fill", "Current per-source buffer occupancy", "source")

	m.calibrationOutcomes = counterVec("calibration_outcomes_total", "Calibration attempts by outcome", "outcome")
	m.calibrationConf = gauge("calibration_confidence", "Confidence of the active calibration profile")
	m.driftDetections = counter("drift_detections_total", "Number of drift detections that flagged recalibration")

	m.phaseTransitions = counterVec("phase_transitions_total", "Committed phase transitions", "family", "from", "to")
	m.invalidTransitions = counterVec("invalid_phase_transitions_total", "Rejected phase transitions", "family")
	m.repsTotal = counterVec("reps_total", "Counted reps", "family")
	m.cuesEmitted = counterVec("cues_emitted_total", "Emitted coaching cues", "rule")
	m.sinkErrors = counterVec("sink_errors_total", "Cue sink delivery failures", "sink")

	m.dispatchQueued = gauge("dispatch_queue_size", "Cue events waiting for sink delivery")
	m.dispatchDropped = counterVec("dispatch_dropped_total", "Cue events not queued for delivery", "reason")
	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("dispatch_latency_milliseconds"),
		Help: "Time to deliver one cue event to every sink", Buckets: m.histogramBuckets, ConstLabels: labels,
	})

	m.telemetryPublished = counter("telemetry_published_total", "Telemetry payloads published to the companion transport")
	m.telemetryErrors = counter("telemetry_errors_total", "Telemetry publish failures")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", Buckets: prometheus.DefBuckets, ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = counterVec("http_errors_total", "HTTP error responses by endpoint, type and severity", "endpoint", "method", "error_type", "severity")

	m.systemMemory = gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutines = gauge("system_goroutines", "Number of live goroutines")
	m.systemGCPause = gauge("system_gc_pause_milliseconds", "Average GC pause time")
}

// Tick pipeline

func RecordTick(latencyMs float64) {
	globalManager.ticksTotal.Inc()
	globalManager.tickLatency.Observe(latencyMs)
}

func UpdateConfidence(c float64) { globalManager.fusedConf.Set(c) }

func RecordDegradedTick() { globalManager.degradedTicks.Inc() }

// UpdateDegradationMode marks mode as the single active mode among modes.
func UpdateDegradationMode(mode string, modes []string) {
	for _, m := range modes {
		v := 0.0
		if m == mode {
			v = 1
		}
		globalManager.modeGauge.WithLabelValues(m).Set(v)
	}
}

// RecordUnsupportedEdge counts an edge; direction is "enter" or "exit".
func RecordUnsupportedEdge(direction string) {
	globalManager.unsupportedEdg.WithLabelValues(direction).Inc()
}

// Ingestion

func RecordSampleIngested(source string) {
	globalManager.samplesIngested.WithLabelValues(source).Inc()
}

func RecordSampleDropped(source, reason string) {
	globalManager.samplesDropped.WithLabelValues(source, reason).Inc()
}

func UpdateBufferFill(source string, n int) {
	globalManager.bufferFill.WithLabelValues(source).Set(float64(n))
}

// Calibration

func RecordCalibrationOutcome(outcome string) {
	globalManager.calibrationOutcomes.WithLabelValues(outcome).Inc()
}

func UpdateCalibrationConfidence(c float64) { globalManager.calibrationConf.Set(c) }

func RecordDriftDetected() { globalManager.driftDetections.Inc() }

// Phase and cues

func RecordPhaseTransition(family, from, to string) {
	globalManager.phaseTransitions.WithLabelValues(family, from, to).Inc()
}

func RecordInvalidTransition(family string) {
	globalManager.invalidTransitions.WithLabelValues(family).Inc()
}

func RecordRep(family string) { globalManager.repsTotal.WithLabelValues(family).Inc() }

func RecordCueEmitted(rule string) { globalManager.cuesEmitted.WithLabelValues(rule).Inc() }

func RecordSinkError(sink string) { globalManager.sinkErrors.WithLabelValues(sink).Inc() }

// Cue dispatch

func UpdateDispatchQueueSize(n int) { globalManager.dispatchQueued.Set(float64(n)) }

func RecordDispatchDropped(reason string) { globalManager.dispatchDropped.WithLabelValues(reason).Inc() }

func RecordDispatchLatency(latencyMs float64) { globalManager.dispatchLatency.Observe(latencyMs) }

// Telemetry

func RecordTelemetryPublished() { globalManager.telemetryPublished.Inc() }

func RecordTelemetryError() { globalManager.telemetryErrors.Inc() }

// HTTP

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an error response classified by type and severity.
func RecordHTTPError(endpoint, method, errorType, severity string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType, severity).Inc()
}

// Process

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemory.Set(float64(bytes)) }

func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutines.Set(float64(n)) }

func RecordSystemGCPauseTime(ms float64) { globalManager.systemGCPause.Set(ms) }

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
