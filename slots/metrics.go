package slots

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	slotsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blob_indexer_slots_processed_total",
		Help: "Total number of slots handed to the slot processor.",
	})
	slotsIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blob_indexer_slots_indexed_total",
		Help: "Total number of slots whose records were submitted to blobscan.",
	})
	slotsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blob_indexer_slots_skipped_total",
		Help: "Total number of slots skipped without a submission.",
	}, []string{"reason"})
)
