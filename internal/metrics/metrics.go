package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pass directions.
const (
	DirectionApply  = "apply"
	DirectionRevert = "revert"
)

var (
	// Ledger metrics
	HeadLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tzindexor_head_level",
			Help: "Level of the last applied block",
		},
	)

	NodeHeadLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tzindexor_node_head_level",
			Help: "Level of the node head as last observed by the syncer",
		},
	)

	BlockPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzindexor_block_passes_total",
			Help: "Total number of block passes by direction",
		},
		[]string{"direction"},
	)

	BlockPassTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tzindexor_block_pass_duration_seconds",
			Help:    "Time taken to apply or revert one block",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"direction"},
	)

	Commits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzindexor_commits_total",
			Help: "Total number of operation commits by kind and direction",
		},
		[]string{"kind", "direction"},
	)

	FreezerSettlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzindexor_freezer_settlements_total",
			Help: "Total number of freezer entries settled at cycle ends",
		},
		[]string{"direction"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tzindexor_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzindexor_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	FatalErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tzindexor_fatal_errors_total",
			Help: "Total number of errors that stopped ingestion",
		},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tzindexor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tzindexor_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tzindexor_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func HeadLevelSet(level int64) {
	HeadLevel.Set(float64(level))
}

func NodeHeadLevelSet(level int64) {
	NodeHeadLevel.Set(float64(level))
}

func BlockPassLog(direction string, duration time.Duration) {
	BlockPasses.WithLabelValues(direction).Inc()
	BlockPassTime.WithLabelValues(direction).Observe(duration.Seconds())
}

func CommitsAdd(kind, direction string, n int) {
	Commits.WithLabelValues(kind, direction).Add(float64(n))
}

func FreezerSettlementsAdd(direction string, n int) {
	FreezerSettlements.WithLabelValues(direction).Add(float64(n))
}

func ErrorsInc(component, severity string) {
	Errors.WithLabelValues(component, severity).Inc()
}

func FatalErrorsInc() {
	FatalErrors.Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
