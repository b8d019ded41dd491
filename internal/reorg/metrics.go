package reorg

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reorgsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tzindexor_reorgs_detected_total",
			Help: "Total number of forks detected",
		},
	)

	reorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tzindexor_reorg_depth_blocks",
			Help:    "Number of blocks reverted to resolve a fork",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	reorgLastDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tzindexor_reorg_last_detected_timestamp",
			Help: "Unix timestamp of last fork detection",
		},
	)

	reorgFromLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tzindexor_reorg_last_level",
			Help: "Stored level at which the last fork was detected",
		},
	)
)

func ReorgDetectedLog(level int64) {
	reorgsDetected.Inc()
	reorgLastDetected.Set(float64(time.Now().UTC().Unix()))
	reorgFromLevel.Set(float64(level))
}

func ReorgResolvedLog(depth int) {
	reorgDepth.Observe(float64(depth))
}
