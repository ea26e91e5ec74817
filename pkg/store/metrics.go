package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatstore",
		Subsystem: "store",
		Name:      "ops_total",
		Help:      "Store operations by primitive.",
	}, []string{"op"})

	opSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatstore",
		Subsystem: "store",
		Name:      "op_seconds",
		Help:      "Store operation latency by primitive.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"op"})
)

// opTimer records one store primitive invocation and returns the stop
// function observing its latency.
func opTimer(op string) func() {
	opTotal.WithLabelValues(op).Inc()
	start := time.Now()
	return func() {
		opSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
