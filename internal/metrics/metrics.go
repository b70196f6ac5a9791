// Package metrics provides Prometheus metrics for the bloglist server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route pattern and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bloglist",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration measures request latency by route pattern.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bloglist",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// BlogsCreated counts successfully created blogs.
	BlogsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bloglist",
			Name:      "blogs_created_total",
			Help:      "Total number of blogs created",
		},
	)

	// LoginsTotal counts login attempts by outcome.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bloglist",
			Name:      "logins_total",
			Help:      "Total number of login attempts",
		},
		[]string{"outcome"},
	)
)

// RecordRequest records one served request.
func RecordRequest(method, route, status string, seconds float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordLogin records a login attempt; outcome is "success", "failure" or "error".
func RecordLogin(outcome string) {
	LoginsTotal.WithLabelValues(outcome).Inc()
}
