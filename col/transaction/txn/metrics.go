package txn

import "github.com/prometheus/client_golang/prometheus"

var (
	commitCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinycol",
			Subsystem: "txn",
			Name:      "commit_total",
			Help:      "Counter of commit attempts by result.",
		}, []string{"result"})

	abortCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinycol",
			Subsystem: "txn",
			Name:      "abort_total",
			Help:      "Counter of aborted transactions, including conflict aborts.",
		})

	activeTxnGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinycol",
			Subsystem: "txn",
			Name:      "active",
			Help:      "Number of active transactions.",
		})
)

func init() {
	prometheus.MustRegister(commitCounter)
	prometheus.MustRegister(abortCounter)
	prometheus.MustRegister(activeTxnGauge)
}
