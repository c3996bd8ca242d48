// Package metrics collects Prometheus metrics for the API and telemetry ingest.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the subset of metrics used by handlers and workers.
type Recorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordLogin(result string)
	RecordTelemetry(result string)
}

// Collector records metrics into its own registry.
type Collector struct {
	registry          *prometheus.Registry
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	loginAttempts     *prometheus.CounterVec
	telemetryMessages *prometheus.CounterVec
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleet_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_login_attempts_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		telemetryMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_telemetry_messages_total",
			Help: "Telemetry messages by result.",
		}, []string{"result"}),
	}
	c.registry.MustRegister(c.requests, c.requestDuration, c.loginAttempts, c.telemetryMessages)
	return c
}

// RecordRequest records one served HTTP request.
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLogin records a login attempt ("success", "invalid", "error").
func (c *Collector) RecordLogin(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordTelemetry records a telemetry message ("applied", "unknown_vehicle", "invalid", "error").
func (c *Collector) RecordTelemetry(result string) {
	c.telemetryMessages.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordLogin(string)                               {}
func (Nop) RecordTelemetry(string)                           {}
