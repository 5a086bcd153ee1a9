package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for client operations.
var (
	fjordRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fjord_requests_total",
		Help: "Total Fjord API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	fjordRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fjord_request_duration_seconds",
		Help:    "Fjord API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	fjordErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fjord_errors_total",
		Help: "Total Fjord API errors by class",
	}, []string{"class"})

	fjordRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fjord_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	fjordRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fjord_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	fjordRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fjord_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)
