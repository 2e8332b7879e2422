package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Notebook server metrics
	ServersActive   prometheus.Gauge
	ServerStarts    *prometheus.CounterVec
	ServerStartTime prometheus.Histogram
	ServerExits     *prometheus.CounterVec

	// Kernel session metrics
	KernelQueries   *prometheus.CounterVec
	KernelShutdowns *prometheus.CounterVec
	NotebookCalls   *prometheus.HistogramVec
	StaleDropped    prometheus.Counter

	// Registry metrics
	SessionsActive prometheus.Gauge
	Events         *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics creates a metrics collector backed by its own registry, so
// several instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notebookd_http_requests_total",
				Help: "Total number of control API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notebookd_http_request_duration_seconds",
				Help:    "Control API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),

		ServersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notebookd_servers_active",
				Help: "Number of running notebook servers",
			},
		),
		ServerStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notebookd_server_starts_total",
				Help: "Notebook server start attempts by result",
			},
			[]string{"result"},
		),
		ServerStartTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "notebookd_server_start_seconds",
				Help:    "Time from spawn until a notebook server reported readiness",
				Buckets: []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60},
			},
		),
		ServerExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notebookd_server_exits_total",
				Help: "Notebook server exits by cause",
			},
			[]string{"cause"},
		),

		KernelQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notebookd_kernel_queries_total",
				Help: "Kernel ID lookups by outcome",
			},
			[]string{"outcome"},
		),
		KernelShutdowns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notebookd_kernel_shutdowns_total",
				Help: "Kernel shutdown requests by outcome",
			},
			[]string{"outcome"},
		),
		NotebookCalls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notebookd_notebook_api_duration_seconds",
				Help:    "Notebook server REST call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		StaleDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "notebookd_stale_results_dropped_total",
				Help: "Async results discarded because their server was replaced or shut down",
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notebookd_sessions_active",
				Help: "Number of registered notebook sessions",
			},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notebookd_events_total",
				Help: "Events published to observers",
			},
			[]string{"kind"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notebookd_ws_connections",
				Help: "Number of active event stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notebookd_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "notebookd_uptime_seconds",
			Help: "notebookd uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a control API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordServerStart records a start attempt. result is "ok", "timeout", "exited" or "error".
func (m *Metrics) RecordServerStart(result string, duration time.Duration) {
	m.ServerStarts.WithLabelValues(result).Inc()
	if result == "ok" {
		m.ServerStartTime.Observe(duration.Seconds())
	}
}

// RecordServerExit records a server leaving the running state. cause is
// "shutdown" or "crashed".
func (m *Metrics) RecordServerExit(cause string) {
	m.ServerExits.WithLabelValues(cause).Inc()
}

// SetServersActive sets the number of running notebook servers
func (m *Metrics) SetServersActive(count int) {
	m.ServersActive.Set(float64(count))
}

// RecordKernelQuery records a kernel lookup outcome: "found", "none", "unreachable", "server_error".
func (m *Metrics) RecordKernelQuery(outcome string) {
	m.KernelQueries.WithLabelValues(outcome).Inc()
}

// RecordKernelShutdown records a kernel shutdown outcome.
func (m *Metrics) RecordKernelShutdown(outcome string) {
	m.KernelShutdowns.WithLabelValues(outcome).Inc()
}

// ObserveNotebookCall records the latency of a notebook REST call.
func (m *Metrics) ObserveNotebookCall(endpoint string, duration time.Duration) {
	m.NotebookCalls.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// IncStaleDropped counts an async result discarded as stale.
func (m *Metrics) IncStaleDropped() {
	m.StaleDropped.Inc()
}

// SetSessionsActive sets the number of registered sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// RecordEvent counts a published event
func (m *Metrics) RecordEvent(kind string) {
	m.Events.WithLabelValues(kind).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
