package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for searches and executions.
// A disabled Metrics accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	pathsFound     prometheus.Histogram

	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	steps             *prometheus.CounterVec
	externalCalls     *prometheus.CounterVec

	errorsByCode *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with its own registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of path searches by outcome",
			},
			[]string{"outcome"},
		),
		searchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Duration of path searches in seconds",
				Buckets:   buckets,
			},
		),
		pathsFound: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "paths_found",
				Help:      "Number of compositions returned per search",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),

		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total number of path executions by status",
			},
			[]string{"status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of path executions in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of executed steps by implementation kind",
			},
			[]string{"kind", "degraded"},
		),
		externalCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_calls_total",
				Help:      "Total number of outbound query and call requests",
			},
			[]string{"kind", "outcome"},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of classified errors by code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.searches,
		m.searchDuration,
		m.pathsFound,
		m.executions,
		m.executionDuration,
		m.steps,
		m.externalCalls,
		m.errorsByCode,
	)

	return m, nil
}

// RecordSearch records one completed search.
func (m *Metrics) RecordSearch(paths int, exhausted bool, duration time.Duration) {
	if m == nil || m.searches == nil {
		return
	}
	outcome := "found"
	switch {
	case exhausted:
		outcome = "exhausted"
	case paths == 0:
		outcome = "unreachable"
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(duration.Seconds())
	m.pathsFound.Observe(float64(paths))
}

// RecordExecution records one completed path execution.
func (m *Metrics) RecordExecution(status string, duration time.Duration) {
	if m == nil || m.executions == nil {
		return
	}
	m.executions.WithLabelValues(status).Inc()
	m.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStep records one executed step.
func (m *Metrics) RecordStep(kind string, degraded bool) {
	if m == nil || m.steps == nil {
		return
	}
	label := "false"
	if degraded {
		label = "true"
	}
	m.steps.WithLabelValues(kind, label).Inc()
}

// RecordExternalCall records an outbound query or call.
func (m *Metrics) RecordExternalCall(kind, outcome string) {
	if m == nil || m.externalCalls == nil {
		return
	}
	m.externalCalls.WithLabelValues(kind, outcome).Inc()
}

// RecordError records a classified error code.
func (m *Metrics) RecordError(code string) {
	if m == nil || m.errorsByCode == nil || code == "" {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer measures elapsed time.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
