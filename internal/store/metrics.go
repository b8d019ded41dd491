package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	txTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzindexor_store_transactions_total",
			Help: "Total number of ledger transactions by result",
		},
		[]string{"result"},
	)

	txDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tzindexor_store_transaction_duration_seconds",
			Help:    "Duration of ledger transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	txOperations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tzindexor_store_transaction_operations",
			Help:    "Number of staged row operations per ledger transaction",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

// TxExecuted records one executed transaction.
func TxExecuted(ops int, d time.Duration, err error) {
	result := "committed"
	if err != nil {
		result = "rolled_back"
	}
	txTotal.WithLabelValues(result).Inc()
	txDuration.Observe(d.Seconds())
	txOperations.Observe(float64(ops))
}
