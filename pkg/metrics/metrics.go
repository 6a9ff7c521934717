// Package metrics defines the Prometheus collectors used across the services
// and exposes an HTTP handler for scraping.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, which keeps library code usable without a registry.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchHitsCount      prometheus.Histogram
	QueryParseErrors     prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     prometheus.Counter
	IndexFlushesTotal    *prometheus.CounterVec
	PostingsLoadsTotal   *prometheus.CounterVec
	ShardDocCount        *prometheus.GaugeVec
	ActiveShards         prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors on reg. Every metric name is prefixed with
// "concordance_".
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(prometheus.WrapRegistererWithPrefix("concordance_", reg))
	latencyBuckets := []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: latencyBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests being served.",
		}),

		SearchQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Search queries by outcome: hit, zero_result, invalid or error.",
		}, []string{"result_type"}),
		SearchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "search_latency_seconds",
			Help:    "Search latency by cache status.",
			Buckets: latencyBuckets,
		}, []string{"cache_status"}),
		SearchHitsCount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_hits_count",
			Help:    "Matching intervals per search.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 1000, 10000},
		}),
		QueryParseErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "query_parse_errors_total",
			Help: "Queries rejected by the expression parser.",
		}),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Search results served from the result cache.",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Result cache lookups that found nothing usable.",
		}),

		DocsIndexedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "docs_indexed_total",
			Help: "Documents added to an index.",
		}),
		IndexFlushesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "index_flushes_total",
			Help: "Memory index flushes to segments by status.",
		}, []string{"status"}),
		PostingsLoadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "postings_loads_total",
			Help: "Term postings handed to cursors by source: memory, segment or shared.",
		}, []string{"source"}),
		ShardDocCount: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shard_document_count",
			Help: "Documents per shard.",
		}, []string{"shard_id"}),
		ActiveShards: f.NewGauge(prometheus.GaugeOpts{
			Name: "active_shards",
			Help: "Shards open in this process.",
		}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
	}
}

func (m *Metrics) PostingsLoaded(source string) {
	if m == nil {
		return
	}
	m.PostingsLoadsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) FlushCompleted(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.IndexFlushesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) DocumentIndexed() {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Inc()
}

// Handler returns the scrape handler for g. Collection errors are logged and
// the metrics that could be gathered are still served.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	})
}
