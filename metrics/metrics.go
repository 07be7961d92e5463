// Package metrics provides Prometheus metrics for the dashboard API.
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// openFDA and cache metrics:
//   - openfda_requests_total / openfda_retries_total / openfda_request_duration_seconds
//   - health_data_cache_lookups_total, health_data_cached_events
//   - health_data_aggregation_duration_seconds
//
// All metrics are registered with the Prometheus default registry during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (client IPs currently tracked)",
		},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfda_requests_total",
			Help: "openFDA request attempts by endpoint and outcome (ok, empty, error)",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfda_retries_total",
			Help: "openFDA request retries by endpoint",
		},
		[]string{"endpoint"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openfda_request_duration_seconds",
			Help:    "openFDA request latency per attempt",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_data_cache_lookups_total",
			Help: "Health data cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	CachedEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "health_data_cached_events",
			Help: "Number of events held in the health data cache",
		},
	)

	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "health_data_aggregation_duration_seconds",
			Help:    "Time spent aggregating event batches into statistics",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRetriesTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(CacheLookupsTotal)
	prometheus.MustRegister(CachedEvents)
	prometheus.MustRegister(AggregationDuration)
}
