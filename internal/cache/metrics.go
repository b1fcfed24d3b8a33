package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	hits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "triq",
		Name:      "cache_hits_total",
		Help:      "Total count of cache lookups served from memory.",
	})

	misses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "triq",
		Name:      "cache_misses_total",
		Help:      "Total count of cache lookups that required computation.",
	})

	invalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "triq",
		Name:      "cache_invalidations_total",
		Help:      "Total count of wholesale cache invalidations.",
	})

	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "triq",
		Name:      "cache_fetch_duration_seconds",
		Help:      "Time spent fetching columns from the catalog.",
		// Catalog fetches are in-memory copies: 1us up to ~65ms.
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 9),
	})
)

func init() {
	prometheus.MustRegister(hits, misses, invalidations, fetchDuration)
}
