package monitoring

import (
	"net/http"
	"sync"
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

	// Bridge metrics
	BridgeMessages *prometheus.CounterVec
	LogEvents      *prometheus.CounterVec

	// Navigation metrics
	NavigationTransitions *prometheus.CounterVec
	NavigationFailures    prometheus.Counter
	ViewEvents            *prometheus.CounterVec

	// Renderer metrics
	ScriptDuration *prometheus.HistogramVec
	ScriptErrors   *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the health endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds running totals for the health endpoint
type Snapshot struct {
	TotalRequests      int64 `json:"total_requests"`
	TotalErrors        int64 `json:"total_errors"`
	LogEvents          int64 `json:"log_events"`
	BridgeMessages     int64 `json:"bridge_messages"`
	NavigationFailures int64 `json:"navigation_failures"`
	ActiveConnections  int64 `json:"active_connections"`
}

// NewMetrics creates a metrics collector with its own registry.
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

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harness_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Bridge metrics
		BridgeMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_bridge_messages_total",
				Help: "Bridge messages handled by the host",
			},
			[]string{"channel", "outcome"},
		),
		LogEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_renderer_log_events_total",
				Help: "Renderer log events by classified level",
			},
			[]string{"level"},
		),

		// Navigation metrics
		NavigationTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_navigation_transitions_total",
				Help: "Navigation state transitions",
			},
			[]string{"from", "to"},
		),
		NavigationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "harness_navigation_failures_total",
				Help: "Navigations that ended in the failed state",
			},
		),
		ViewEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_view_events_total",
				Help: "Lifecycle events emitted by the view",
			},
			[]string{"kind"},
		),

		// Renderer metrics
		ScriptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harness_renderer_entry_duration_seconds",
				Help:    "Time spent inside the renderer VM per entry",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"entry"},
		),
		ScriptErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_renderer_entry_errors_total",
				Help: "Renderer VM entries that returned an error",
			},
			[]string{"entry"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "harness_ws_connections",
				Help: "Number of active WebSocket observers",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "harness_uptime_seconds",
			Help: "Harness uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordBridgeMessage records one message handled by the bridge host.
func (m *Metrics) RecordBridgeMessage(channel, outcome string) {
	m.BridgeMessages.WithLabelValues(channel, outcome).Inc()
	m.mu.Lock()
	m.snapshot.BridgeMessages++
	m.mu.Unlock()
}

// RecordLogEvent records one routed renderer log event.
func (m *Metrics) RecordLogEvent(level string) {
	m.LogEvents.WithLabelValues(level).Inc()
	m.mu.Lock()
	m.snapshot.LogEvents++
	m.mu.Unlock()
}

// RecordNavigation records a navigation state transition.
func (m *Metrics) RecordNavigation(from, to string) {
	m.NavigationTransitions.WithLabelValues(from, to).Inc()
	if to == "failed" {
		m.NavigationFailures.Inc()
		m.mu.Lock()
		m.snapshot.NavigationFailures++
		m.mu.Unlock()
	}
}

// RecordViewEvent records a view lifecycle event.
func (m *Metrics) RecordViewEvent(kind string) {
	m.ViewEvents.WithLabelValues(kind).Inc()
}

// RecordScript records one renderer VM entry.
func (m *Metrics) RecordScript(entry string, duration time.Duration, err error) {
	m.ScriptDuration.WithLabelValues(entry).Observe(duration.Seconds())
	if err != nil {
		m.ScriptErrors.WithLabelValues(entry).Inc()
	}
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the running totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Uptime returns how long the collector has existed.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
