package storage

import "github.com/prometheus/client_golang/prometheus"

var (
	appendCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinycol",
			Subsystem: "storage",
			Name:      "append_total",
			Help:      "Counter of successful append batches.",
		})

	appendRowsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinycol",
			Subsystem: "storage",
			Name:      "append_rows_total",
			Help:      "Counter of rows appended to delta regions.",
		})

	mergeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinycol",
			Subsystem: "storage",
			Name:      "merge_total",
			Help:      "Counter of merge requests by outcome.",
		}, []string{"outcome"})

	mergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinycol",
			Subsystem: "storage",
			Name:      "merge_duration_seconds",
			Help:      "Bucketed histogram of the time spent computing and publishing a merge.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
		})
)

func init() {
	prometheus.MustRegister(appendCounter)
	prometheus.MustRegister(appendRowsCounter)
	prometheus.MustRegister(mergeCounter)
	prometheus.MustRegister(mergeDuration)
}
