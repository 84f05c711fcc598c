// Package metrics exposes Prometheus collectors for the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the server's Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	activeSessions    prometheus.Gauge
	requestsTotal     *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	toolCallDuration  *prometheus.HistogramVec
}

// New creates a Recorder with its own registry so tests can construct
// recorders independently without collector name collisions.
func New(namespace string) *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of currently established sessions.",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "JSON-RPC requests handled, by method and status.",
		}, []string{"method", "status"}),
		notificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications pushed to sessions, by method.",
		}, []string{"method"}),
		toolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool execution latency, by tool and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "status"}),
	}
}

// SessionOpened increments the active-session gauge.
func (r *Recorder) SessionOpened() {
	r.activeSessions.Inc()
}

// SessionClosed decrements the active-session gauge.
func (r *Recorder) SessionClosed() {
	r.activeSessions.Dec()
}

// RequestHandled counts one handled JSON-RPC request.
func (r *Recorder) RequestHandled(method, status string) {
	r.requestsTotal.WithLabelValues(method, status).Inc()
}

// NotificationSent counts one pushed notification.
func (r *Recorder) NotificationSent(method string) {
	r.notificationsSent.WithLabelValues(method).Inc()
}

// ToolCallObserved records one tool execution.
func (r *Recorder) ToolCallObserved(tool, status string, duration time.Duration) {
	r.toolCallDuration.WithLabelValues(tool, status).Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
