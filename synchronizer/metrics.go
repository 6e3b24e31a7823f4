package synchronizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blob_indexer_chunks_synced_total",
		Help: "Total number of slot chunks fully processed (and checkpointed, unless checkpointing is disabled).",
	})
	lastUpperSyncedSlot = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blob_indexer_last_upper_synced_slot",
		Help: "Most recent upper checkpoint written to blobscan.",
	})
	lastLowerSyncedSlot = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blob_indexer_last_lower_synced_slot",
		Help: "Most recent lower checkpoint written to blobscan.",
	})
)
