// Package metrics provides Prometheus metrics for skillforge.
//
// All recording methods are safe on a nil *Metrics so callers that run
// without a registry (the CLI, most tests) need no guards.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the process.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec
	RunDuration          prometheus.Histogram
	RunsInFlight         prometheus.Gauge
	WorkOrdersTotal      *prometheus.CounterVec
	FilesWrittenTotal    prometheus.Counter
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	HTTPRequestsTotal    *prometheus.CounterVec
	ErrorsTotal          *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillforge_runs_total",
				Help: "Total number of mission runs by outcome.",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skillforge_run_duration_seconds",
				Help:    "Wall time of a mission run.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		RunsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "skillforge_runs_in_flight",
				Help: "Number of runs currently executing.",
			},
		),
		WorkOrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillforge_work_orders_total",
				Help: "Total number of work orders by outcome.",
			},
			[]string{"outcome"},
		),
		FilesWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skillforge_files_written_total",
				Help: "Total number of workspace files written.",
			},
		),
		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillforge_provider_calls_total",
				Help: "Total completion provider calls by phase and status.",
			},
			[]string{"phase", "status"},
		),
		ProviderCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skillforge_provider_call_duration_seconds",
				Help:    "Completion provider call latency by phase.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillforge_http_requests_total",
				Help: "Dashboard requests by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillforge_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RunsTotal)
	reg.MustRegister(m.RunDuration)
	reg.MustRegister(m.RunsInFlight)
	reg.MustRegister(m.WorkOrdersTotal)
	reg.MustRegister(m.FilesWrittenTotal)
	reg.MustRegister(m.ProviderCallsTotal)
	reg.MustRegister(m.ProviderCallDuration)
	reg.MustRegister(m.HTTPRequestsTotal)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted marks a run as in flight.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsInFlight.Inc()
}

// RunFinished records a run outcome and its duration.
func (m *Metrics) RunFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsInFlight.Dec()
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(seconds)
}

// RecordWorkOrder increments the work order counter.
func (m *Metrics) RecordWorkOrder(outcome string) {
	if m == nil {
		return
	}
	m.WorkOrdersTotal.WithLabelValues(outcome).Inc()
}

// AddFilesWritten adds n to the files-written counter.
func (m *Metrics) AddFilesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FilesWrittenTotal.Add(float64(n))
}

// ObserveProviderCall records one provider call.
func (m *Metrics) ObserveProviderCall(phase, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderCallsTotal.WithLabelValues(phase, status).Inc()
	m.ProviderCallDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordHTTPRequest increments the dashboard request counter.
func (m *Metrics) RecordHTTPRequest(method, route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
