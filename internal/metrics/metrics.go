// Package metrics defines Prometheus instrumentation for benchmark
// runs. The engine observes these during dispatch; the serve command
// exports them at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompletionsTotal counts completion requests by outcome.
	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bench_completions_total",
			Help: "Total number of completion requests issued, by outcome (success, failure)",
		},
		[]string{"outcome"},
	)

	// CompletionsInFlight tracks currently executing completion requests.
	CompletionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bench_completions_in_flight",
			Help: "Number of completion requests currently in flight",
		},
	)

	// CompletionDuration tracks end-to-end completion request duration.
	CompletionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bench_completion_duration_seconds",
			Help:    "End-to-end duration of completion requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
	)

	// TimeToFirstToken tracks the latency until the first token of
	// output became visible.
	TimeToFirstToken = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bench_time_to_first_token_seconds",
			Help:    "Latency between request start and first visible output token",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
	)

	// TokensTotal counts tokens reported by the API, by kind.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bench_tokens_total",
			Help: "Total tokens reported by the API, by kind (prompt, completion)",
		},
		[]string{"kind"},
	)

	// RunsTotal counts finished benchmark runs.
	RunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bench_runs_total",
			Help: "Total number of benchmark runs completed",
		},
	)
)

// HTTP metrics for the results API server
var (
	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts the total number of HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)
)

// RecordHTTPRequest records the duration and increments the counter for an HTTP request
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}
