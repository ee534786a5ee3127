// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the pubgate publisher.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestBuckets defines histogram buckets for publication latencies,
// ranging from 1ms to 10s.
var RequestBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method, request kind, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "kind", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and kind.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pubgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: RequestBuckets,
		},
		[]string{"method", "kind"},
	)

	// RequestsInFlight tracks requests currently being published.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pubgate_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// PublishRetriesTotal counts publication attempts restarted after a retryable conflict.
	PublishRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pubgate_publish_retries_total",
			Help: "Publish retries",
		},
	)

	// TraversalFailuresTotal counts traversal steps that failed, by reason.
	TraversalFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubgate_traversal_failures_total",
			Help: "Traversal failures",
		},
		[]string{"reason"},
	)

	// ObjectWritesTotal counts store mutations performed through publication.
	ObjectWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubgate_object_writes_total",
			Help: "Object writes",
		},
		[]string{"operation", "status"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubgate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
		PublishRetriesTotal,
		TraversalFailuresTotal,
		ObjectWritesTotal,
		RateLimitRejectedTotal,
	)
}

// Handler returns the HTTP handler that serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
