// Package metrics declares the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests counts cache lookups by key and result (hit|miss|stale).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "cache_requests_total",
		Help:      "Cache lookups by key and result.",
	}, []string{"key", "result"})

	// CacheResets counts explicit cache resets.
	CacheResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "cache_resets_total",
		Help:      "Explicit cache resets.",
	})

	// RecordsSkipped counts malformed rows dropped while parsing a source.
	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "records_skipped_total",
		Help:      "Malformed source rows skipped during parsing.",
	}, []string{"source"})

	// SourceLoadSeconds observes full parse passes of a source file.
	SourceLoadSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "source_load_seconds",
		Help:      "Time spent reading and parsing a source file.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	// HTTPRequests counts served requests by route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes request latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)
