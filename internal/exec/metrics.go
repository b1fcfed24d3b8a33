package exec

import "github.com/prometheus/client_golang/prometheus"

var (
	queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "triq",
		Name:      "query_duration_seconds",
		Help:      "Total time spent executing queries.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	nodeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "triq",
		Name:      "node_duration_seconds",
		Help:      "Time spent executing individual plan nodes.",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(queryDuration, nodeDuration)
}
