// Package indexer coordinates the realtime and historical syncing tasks
// against a shared completion channel.
package indexer

import (
	"context"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DillLabs/blobscan-indexer/clients"
	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
	"github.com/DillLabs/blobscan-indexer/shared/backoff"
	"github.com/DillLabs/blobscan-indexer/synchronizer"
)

// taskChannelCapacity bounds the completion channel shared by the syncing
// tasks.
const taskChannelCapacity = 32

// Config holds the indexer settings.
type Config struct {
	Clients *clients.Context
	// DencunForkSlot is the historical back-fill floor.
	DencunForkSlot uint64
	// SlotsCheckpoint is the synchronizer chunk size. Zero keeps the
	// default.
	SlotsCheckpoint uint64
	// NumWorkers is the synchronizer pool size. Zero means available
	// parallelism.
	NumWorkers uint64
	// DisableCheckpointSave forces checkpointing off for every sweep.
	DisableCheckpointSave bool
	// DisableHistorical suppresses the historical back-fill task.
	DisableHistorical bool
	// Backoff is the retry policy shared by every task. Nil means the
	// default.
	Backoff *backoff.Config
}

// Indexer owns the syncing tasks and their termination.
type Indexer struct {
	clients               *clients.Context
	dencunForkSlot        uint64
	slotsCheckpoint       uint64
	numWorkers            uint64
	disableCheckpointSave bool
	disableHistorical     bool
	retry                 *backoff.Config
}

// taskMessage reports a task outcome on the completion channel. A nil err is
// a normal completion.
type taskMessage struct {
	err error
}

// New validates the configuration and assembles an indexer.
func New(cfg *Config) (*Indexer, error) {
	if cfg == nil || cfg.Clients == nil {
		return nil, errors.New("client context is required")
	}
	numWorkers := cfg.NumWorkers
	if numWorkers == 0 {
		numWorkers = uint64(runtime.NumCPU())
	}
	retry := cfg.Backoff
	if retry == nil {
		retry = backoff.DefaultConfig()
	}
	return &Indexer{
		clients:               cfg.Clients,
		dencunForkSlot:        cfg.DencunForkSlot,
		slotsCheckpoint:       cfg.SlotsCheckpoint,
		numWorkers:            numWorkers,
		disableCheckpointSave: cfg.DisableCheckpointSave,
		disableHistorical:     cfg.DisableHistorical,
		retry:                 retry,
	}, nil
}

// Run reads the last-known sync state, derives the lower and upper cursors
// and drives the syncing tasks to completion. The first task error aborts
// the run with that error.
func (i *Indexer) Run(ctx context.Context, startBlockId, endBlockId *beacon.BlockId) error {
	var syncState *blobscan.SyncState
	if err := i.retry.RetryNotify(ctx, func() error {
		state, err := i.clients.BlobscanClient().GetSyncState(ctx)
		if err != nil {
			return err
		}
		syncState = state
		return nil
	}, func(err error, next time.Duration) {
		log.WithError(err).WithField("nextAttempt", next).Warn("Failed to fetch blobscan's sync state. Retrying...")
	}); err != nil {
		return errors.Wrap(err, "could not fetch blobscan's sync state")
	}

	lowerBlockId, upperBlockId := deriveCursors(startBlockId, syncState)

	log.WithFields(logrus.Fields{
		"lowerBlockId": lowerBlockId.String(),
		"upperBlockId": upperBlockId.String(),
	}).Info("Starting indexer...")

	results := make(chan taskMessage, taskChannelCapacity)
	totalTasks := 0

	if endBlockId == nil {
		go i.runRealtimeTask(ctx, results, upperBlockId)
		totalTasks++
	}

	historicalEnd := beacon.NewSlotBlockId(i.dencunForkSlot)
	if endBlockId != nil {
		historicalEnd = *endBlockId
	}
	historicalSyncCompleted := lowerBlockId.Kind == beacon.BlockIdSlot && lowerBlockId.Slot < i.dencunForkSlot

	if !i.disableHistorical && !historicalSyncCompleted {
		go i.runHistoricalTask(ctx, results, lowerBlockId, historicalEnd)
		totalTasks++
	}

	completedTasks := 0
	for completedTasks < totalTasks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-results:
			if message.err != nil {
				log.WithError(message.err).Error("An error occurred while running a syncing task")
				return message.err
			}
			completedTasks++
		}
	}
	return nil
}

// deriveCursors turns the persisted sync state into the initial task
// cursors. A recorded lower cursor is an exclusive start: the backward walk
// resumes at the slot below it. An explicit start overrides both.
func deriveCursors(startBlockId *beacon.BlockId, state *blobscan.SyncState) (lower, upper beacon.BlockId) {
	if startBlockId != nil {
		return *startBlockId, *startBlockId
	}
	if state == nil {
		return beacon.HeadBlockId(), beacon.HeadBlockId()
	}

	switch {
	case state.LastLowerSyncedSlot != nil:
		lower = beacon.NewSlotBlockId(*state.LastLowerSyncedSlot)
	case state.LastUpperSyncedSlot != nil:
		lower = beacon.NewSlotBlockId(*state.LastUpperSyncedSlot)
	default:
		lower = beacon.HeadBlockId()
	}

	switch {
	case state.LastUpperSyncedSlot != nil:
		upper = beacon.NewSlotBlockId(*state.LastUpperSyncedSlot + 1)
	case state.LastLowerSyncedSlot != nil:
		upper = beacon.NewSlotBlockId(*state.LastLowerSyncedSlot + 1)
	default:
		upper = beacon.NewSlotBlockId(1)
	}
	return lower, upper
}

// runHistoricalTask drives the synchronizer backward from the lower cursor
// to the back-fill floor, retrying whole sweeps until the retry budget is
// spent.
func (i *Indexer) runHistoricalTask(ctx context.Context, results chan<- taskMessage, from, to beacon.BlockId) {
	sync := i.newSynchronizer(synchronizer.CheckpointLower)

	err := i.retry.RetryNotify(ctx, func() error {
		return sync.Run(ctx, from, to)
	}, func(err error, next time.Duration) {
		log.WithError(err).WithField("nextAttempt", next).Warn("Historical syncing failed. Retrying...")
	})
	if err != nil {
		results <- taskMessage{err: errors.Wrap(err, "historical syncing failed")}
		return
	}

	log.Info("Historical syncing completed successfully")
	results <- taskMessage{}
}

// newSynchronizer builds a synchronizer for the given checkpoint type,
// honoring the checkpoint kill switch.
func (i *Indexer) newSynchronizer(checkpointType synchronizer.CheckpointType) *synchronizer.Synchronizer {
	if i.disableCheckpointSave {
		checkpointType = synchronizer.CheckpointDisabled
	}
	return synchronizer.NewBuilder().
		WithNumWorkers(i.numWorkers).
		WithSlotsCheckpoint(i.slotsCheckpoint).
		WithCheckpointType(checkpointType).
		WithBackoffConfig(i.retry).
		Build(i.clients)
}
