package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every songbook collector plus the Go runtime and process collectors
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		HTTPRequests, HTTPRequestDuration,
		StoreOperationDuration, StoreRetries,
		CacheRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "songbook_http_requests_total",
		Help: "HTTP requests by route and status code",
	},
	[]string{"method", "route", "status"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "songbook_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

var StoreOperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "songbook_store_operation_duration_seconds",
		Help:    "Song store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"backend", "operation", "outcome"}, // outcome is ok or an error kind
)

var StoreRetries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "songbook_store_retries_total",
		Help: "Store operations retried after the store was unavailable",
	},
	[]string{"operation"},
)

var CacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "songbook_cache_requests_total",
		Help: "Cache lookups by result",
	},
	[]string{"operation", "result"}, // hit | miss | error
)

// ObserveStoreOperation records one store call
func ObserveStoreOperation(backend, operation, outcome string, elapsed time.Duration) {
	StoreOperationDuration.WithLabelValues(backend, operation, outcome).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
