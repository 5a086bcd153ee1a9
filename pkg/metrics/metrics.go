// Package metrics provides the centralized Prometheus registry reference
// for the Fjord client. All metrics are defined in their respective
// packages (client, cache, ratelimit, tasks) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the Fjord client.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Budget Metrics (pkg/ratelimit):
//   - fjord_budget_requests_remaining (Gauge): Requests remaining in the current budget window
//   - fjord_budget_blocks_total (Counter): Requests blocked due to critical budget
//   - fjord_budget_throttles_total (Counter): Requests throttled due to warning budget
//
// Cache Metrics (pkg/cache):
//   - fjord_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - fjord_cache_misses_total (Counter): Cache misses
//   - fjord_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - fjord_304_responses_total (Counter): 304 Not Modified responses
//   - fjord_conditional_requests_total (Counter): Conditional requests sent
//   - fjord_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - fjord_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - fjord_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - fjord_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - fjord_retries_total{error_class} (Counter): Retry attempts by error class
//   - fjord_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - fjord_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Task Metrics (pkg/tasks):
//   - fjord_tasks_total{outcome} (Counter): Executed tasks by outcome (succeeded, failed, unknown, skipped)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(fjord_cache_hits_total[5m])) /
//   (sum(rate(fjord_cache_hits_total[5m])) + sum(rate(fjord_cache_misses_total[5m])))
//
//   # Budget Status
//   fjord_budget_requests_remaining < 20
//
//   # Request Error Rate
//   rate(fjord_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(fjord_request_duration_seconds_bucket[5m]))
//
//   # Task Failure Rate
//   rate(fjord_tasks_total{outcome!="succeeded"}[5m])
