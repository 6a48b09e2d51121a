package store

import "github.com/prometheus/client_golang/prometheus"

var (
	flushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskstore_flush_duration_seconds",
			Help:    "Time spent rewriting the backing file",
			Buckets: prometheus.DefBuckets,
		},
	)

	flushErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskstore_flush_errors_total",
			Help: "Backing file rewrites that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(flushDuration, flushErrors)
}
