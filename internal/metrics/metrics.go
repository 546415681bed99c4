// Package metrics registers the Prometheus collectors for the API and the
// seeding tools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movierec_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// CacheLookups counts read-path cache hits and misses by cache name.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_cache_lookups_total",
			Help: "Read cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	// PosterLookups counts TMDB poster lookups by outcome
	// (found, no_poster, not_found, error).
	PosterLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_poster_lookups_total",
			Help: "TMDB poster lookups by outcome",
		},
		[]string{"outcome"},
	)

	SeededPoints = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movierec_seeded_vector_points_total",
			Help: "Vector points written by the seeder",
		},
	)

	SeededDocuments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movierec_seeded_documents_total",
			Help: "Metadata documents written by the seeder",
		},
	)
)

// RecordAPIRequest records one finished API request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordCache records a cache lookup.
func RecordCache(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}
