// Package metrics exposes Prometheus counters for the API and the worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	logins        *prometheus.CounterVec
	sweeps        *prometheus.CounterVec
	photoCleanups *prometheus.CounterVec
}

// New registers the collectors along with Go and process metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rollbook",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollbook",
			Name:      "logins_total",
			Help:      "Login attempts by role and outcome.",
		}, []string{"role", "outcome"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollbook",
			Name:      "sweep_rows_total",
			Help:      "Rows affected by maintenance sweeps.",
		}, []string{"sweep"}),
		photoCleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollbook",
			Name:      "photo_cleanups_total",
			Help:      "Photo deletions on the image host by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.logins, m.sweeps, m.photoCleanups,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by their route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveLogin records a login attempt; outcome is "success" or "failure".
func (m *Metrics) ObserveLogin(role, outcome string) {
	m.logins.WithLabelValues(role, outcome).Inc()
}

// ObserveSweep adds the rows a sweep touched.
func (m *Metrics) ObserveSweep(sweep string, rows int) {
	m.sweeps.WithLabelValues(sweep).Add(float64(rows))
}

// ObservePhotoCleanup counts one cleanup job.
func (m *Metrics) ObservePhotoCleanup(outcome string) {
	m.photoCleanups.WithLabelValues(outcome).Inc()
}
