// Package metrics provides Prometheus metrics collection for the execution
// server: HTTP exposition, the supervised worker pool, and the optional
// execution audit sink.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Worker pool metrics
	TasksSubmittedTotal  *prometheus.CounterVec
	TasksCompletedTotal  *prometheus.CounterVec
	TaskDuration         *prometheus.HistogramVec
	QueueDepth           prometheus.Gauge
	WorkersActive        prometheus.Gauge
	WorkersIdle          prometheus.Gauge
	WorkerRestartsTotal  *prometheus.CounterVec

	// Execution audit sink metrics
	AuditWritesTotal    *prometheus.CounterVec
	AuditWriteDuration  *prometheus.HistogramVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		TasksSubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "algo_tasks_submitted_total",
				Help: "Total number of execution tasks submitted to the worker pool",
			},
			[]string{"algorithm", "version"},
		),
		TasksCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "algo_tasks_completed_total",
				Help: "Total number of execution tasks completed, by terminal status",
			},
			[]string{"algorithm", "version", "status"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "algo_task_duration_seconds",
				Help:    "Execution task duration in seconds, from submit to terminal result",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"algorithm", "version"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "algo_pool_queue_depth",
				Help: "Current number of tasks waiting for a free worker",
			},
		),
		WorkersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "algo_pool_workers_active",
				Help: "Current number of worker processes executing a task",
			},
		),
		WorkersIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "algo_pool_workers_idle",
				Help: "Current number of idle worker processes",
			},
		),
		WorkerRestartsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "algo_pool_worker_restarts_total",
				Help: "Total number of worker process restarts, by reason",
			},
			[]string{"reason"},
		),

		AuditWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "algo_audit_writes_total",
				Help: "Total number of execution audit records written, by outcome",
			},
			[]string{"status"},
		),
		AuditWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "algo_audit_write_duration_seconds",
				Help:    "Execution audit sink write duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"sink"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.TasksSubmittedTotal,
			m.TasksCompletedTotal,
			m.TaskDuration,
			m.QueueDepth,
			m.WorkersActive,
			m.WorkersIdle,
			m.WorkerRestartsTotal,
			m.AuditWritesTotal,
			m.AuditWriteDuration,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", environmentName()).Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// RecordTaskSubmitted records a task entering the worker pool queue.
func (m *Metrics) RecordTaskSubmitted(algorithm, version string) {
	m.TasksSubmittedTotal.WithLabelValues(algorithm, version).Inc()
}

// RecordTaskCompleted records a task reaching a terminal state.
func (m *Metrics) RecordTaskCompleted(algorithm, version, status string, duration time.Duration) {
	m.TasksCompletedTotal.WithLabelValues(algorithm, version, status).Inc()
	m.TaskDuration.WithLabelValues(algorithm, version).Observe(duration.Seconds())
}

// SetQueueDepth sets the current pending-task queue depth.
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// SetWorkerCounts sets the current active/idle worker gauges.
func (m *Metrics) SetWorkerCounts(active, idle int) {
	m.WorkersActive.Set(float64(active))
	m.WorkersIdle.Set(float64(idle))
}

// RecordWorkerRestart records a worker process restart.
func (m *Metrics) RecordWorkerRestart(reason string) {
	m.WorkerRestartsTotal.WithLabelValues(reason).Inc()
}

// RecordAuditWrite records an execution audit sink write.
func (m *Metrics) RecordAuditWrite(sink, status string, duration time.Duration) {
	m.AuditWritesTotal.WithLabelValues(status).Inc()
	m.AuditWriteDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

// UpdateUptime updates the service uptime.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight requests counter.
func (m *Metrics) IncrementInFlight() {
	m.RequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight requests counter.
func (m *Metrics) DecrementInFlight() {
	m.RequestsInFlight.Dec()
}

// environmentName reads ENVIRONMENT, defaulting to "development".
func environmentName() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	if env == "" {
		return "development"
	}
	return env
}

func isProduction() bool {
	return environmentName() == "production"
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !isProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
