package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	archivedBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tzindexor_archive_blocks_written_total",
			Help: "Total number of blocks written to the raw block archive",
		},
	)

	prunedBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tzindexor_archive_blocks_pruned_total",
			Help: "Total number of blocks pruned from the raw block archive",
		},
	)
)

func ArchivedBlocksInc() {
	archivedBlocks.Inc()
}

func PrunedBlocksAdd(n uint64) {
	prunedBlocks.Add(float64(n))
}
