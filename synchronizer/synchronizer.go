// Package synchronizer sweeps a slot range with a parallel worker pool,
// checkpointing progress chunk by chunk.
package synchronizer

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DillLabs/blobscan-indexer/clients"
	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
	"github.com/DillLabs/blobscan-indexer/shared/backoff"
	"github.com/DillLabs/blobscan-indexer/slots"
)

// DefaultSlotsCheckpoint is the chunk size between checkpoint writes.
const DefaultSlotsCheckpoint = 1000

// CheckpointType selects which sync state cursor a sweep advances.
type CheckpointType int

const (
	// CheckpointDisabled writes no checkpoints.
	CheckpointDisabled CheckpointType = iota
	// CheckpointLower advances the backward cursor.
	CheckpointLower
	// CheckpointUpper advances the forward cursor.
	CheckpointUpper
)

// Synchronizer sweeps slot ranges. A sweep walks chunks strictly
// sequentially; within a chunk, slots are spread across workers and arrive
// at blobscan in arbitrary order.
type Synchronizer struct {
	clients         *clients.Context
	numWorkers      uint64
	slotsCheckpoint uint64
	checkpointType  CheckpointType
	retry           *backoff.Config
}

// Builder assembles a Synchronizer.
type Builder struct {
	numWorkers      uint64
	slotsCheckpoint uint64
	checkpointType  CheckpointType
	retry           *backoff.Config
}

// NewBuilder returns a builder with defaults: one worker per CPU, chunks of
// DefaultSlotsCheckpoint, checkpointing disabled.
func NewBuilder() *Builder {
	return &Builder{
		numWorkers:      uint64(runtime.NumCPU()),
		slotsCheckpoint: DefaultSlotsCheckpoint,
		checkpointType:  CheckpointDisabled,
		retry:           backoff.DefaultConfig(),
	}
}

// WithNumWorkers sets the worker pool size. Zero keeps the default.
func (b *Builder) WithNumWorkers(numWorkers uint64) *Builder {
	if numWorkers > 0 {
		b.numWorkers = numWorkers
	}
	return b
}

// WithSlotsCheckpoint sets the chunk size between checkpoints. Zero keeps
// the default.
func (b *Builder) WithSlotsCheckpoint(slotsCheckpoint uint64) *Builder {
	if slotsCheckpoint > 0 {
		b.slotsCheckpoint = slotsCheckpoint
	}
	return b
}

// WithCheckpointType sets which cursor sweeps advance.
func (b *Builder) WithCheckpointType(checkpointType CheckpointType) *Builder {
	b.checkpointType = checkpointType
	return b
}

// WithBackoffConfig sets the retry policy used for slot processing and
// checkpoint writes.
func (b *Builder) WithBackoffConfig(retry *backoff.Config) *Builder {
	if retry != nil {
		b.retry = retry
	}
	return b
}

// Build assembles the synchronizer over the given client bundle.
func (b *Builder) Build(c *clients.Context) *Synchronizer {
	return &Synchronizer{
		clients:         c,
		numWorkers:      b.numWorkers,
		slotsCheckpoint: b.slotsCheckpoint,
		checkpointType:  b.checkpointType,
		retry:           b.retry,
	}
}

// Run sweeps the half-open slot interval between the two block ids. With a
// forward range the slots [from, to) are processed ascending. A reversed
// range (from > to) is rejected with upper checkpointing; with lower or
// disabled checkpointing it processes from-1 down through to. Equal
// endpoints succeed immediately.
func (s *Synchronizer) Run(ctx context.Context, from, to beacon.BlockId) error {
	fromSlot, err := s.resolveSlot(ctx, from)
	if err != nil {
		return err
	}
	toSlot, err := s.resolveSlot(ctx, to)
	if err != nil {
		return err
	}

	switch {
	case fromSlot == toSlot:
		return nil
	case fromSlot > toSlot:
		if s.checkpointType == CheckpointUpper {
			return errors.Errorf("starting slot %d is greater than final slot %d", fromSlot, toSlot)
		}
		return s.sweep(ctx, toSlot, fromSlot, true)
	default:
		return s.sweep(ctx, fromSlot, toSlot, false)
	}
}

// sweep walks the half-open interval [lo, hi) chunk by chunk, ascending or
// descending.
func (s *Synchronizer) sweep(ctx context.Context, lo, hi uint64, reverse bool) error {
	unprocessed := hi - lo
	log.WithFields(logrus.Fields{
		"initialSlot": lo,
		"finalSlot":   hi,
		"reverse":     reverse,
	}).Infof("Syncing %d slots...", unprocessed)

	for unprocessed > 0 {
		chunk := unprocessed
		if chunk > s.slotsCheckpoint {
			chunk = s.slotsCheckpoint
		}
		var chunkLo, chunkHi uint64
		if reverse {
			chunkHi = hi
			chunkLo = hi - chunk
		} else {
			chunkLo = lo
			chunkHi = lo + chunk
		}

		if err := s.syncChunk(ctx, chunkLo, chunkHi, reverse); err != nil {
			return err
		}
		if err := s.saveCheckpoint(ctx, chunkLo, chunkHi); err != nil {
			return err
		}
		chunksSyncedTotal.Inc()

		if reverse {
			hi -= chunk
		} else {
			lo += chunk
		}
		unprocessed -= chunk
	}
	return nil
}

// syncChunk spreads the chunk [lo, hi) across the worker pool and waits for
// all workers. Worker i owns [lo+i*q, lo+(i+1)*q) with the last worker
// absorbing the remainder; a chunk smaller than the pool shrinks to one-slot
// workers. Any failure, panics included, fails the whole chunk.
func (s *Synchronizer) syncChunk(ctx context.Context, lo, hi uint64, reverse bool) error {
	total := hi - lo
	numWorkers := s.numWorkers
	if total < numWorkers {
		numWorkers = total
	}
	slotsPerWorker := total / numWorkers
	remainder := total % numWorkers

	workerErrs := make([]error, numWorkers)
	var wg sync.WaitGroup
	for i := uint64(0); i < numWorkers; i++ {
		workerLo := lo + i*slotsPerWorker
		workerHi := workerLo + slotsPerWorker
		if i == numWorkers-1 {
			workerHi += remainder
		}

		wg.Add(1)
		go func(worker, workerLo, workerHi uint64) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					workerErrs[worker] = errors.Errorf("synchronizer worker panicked: %v", r)
				}
			}()
			processor := slots.NewProcessorWithConfig(s.clients, s.retry)
			if reverse {
				workerErrs[worker] = processor.ProcessSlots(ctx, workerHi, workerLo)
			} else {
				workerErrs[worker] = processor.ProcessSlots(ctx, workerLo, workerHi)
			}
		}(i, workerLo, workerHi)
	}
	wg.Wait()

	var errs []error
	for _, err := range workerErrs {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		err := &ChunkError{InitialSlot: lo, FinalSlot: hi, Errs: errs}
		log.WithError(err).WithFields(logrus.Fields{
			"initialSlot": lo,
			"finalSlot":   hi,
		}).Error("Failed to process slots chunk")
		return err
	}
	return nil
}

// saveCheckpoint persists the chunk's progress through a partial sync state
// write touching exactly one cursor. A write that keeps failing past the
// retry budget aborts the sweep.
func (s *Synchronizer) saveCheckpoint(ctx context.Context, chunkLo, chunkHi uint64) error {
	var state blobscan.SyncState
	var slot uint64
	switch s.checkpointType {
	case CheckpointDisabled:
		return nil
	case CheckpointUpper:
		slot = chunkHi - 1
		state.LastUpperSyncedSlot = &slot
	case CheckpointLower:
		slot = chunkLo
		state.LastLowerSyncedSlot = &slot
	}

	if err := s.retry.RetryNotify(ctx, func() error {
		return s.clients.BlobscanClient().UpdateSyncState(ctx, state)
	}, func(err error, next time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"latestSlot":  slot,
			"nextAttempt": next,
		}).Warn("Failed to save checkpoint. Retrying...")
	}); err != nil {
		return errors.Wrapf(err, "could not save checkpoint at slot %d", slot)
	}

	switch s.checkpointType {
	case CheckpointUpper:
		lastUpperSyncedSlot.Set(float64(slot))
	case CheckpointLower:
		lastLowerSyncedSlot.Set(float64(slot))
	}
	log.WithField("latestSlot", slot).Debug("Checkpoint saved")
	return nil
}

// resolveSlot turns a block id into a concrete slot, asking the beacon node
// for head, finalized and root-addressed ids.
func (s *Synchronizer) resolveSlot(ctx context.Context, blockId beacon.BlockId) (uint64, error) {
	if blockId.Kind == beacon.BlockIdSlot {
		return blockId.Slot, nil
	}

	var header *beacon.BlockHeader
	if err := s.retry.RetryNotify(ctx, func() error {
		h, err := s.clients.BeaconClient().GetBlockHeader(ctx, blockId)
		if err != nil {
			return err
		}
		header = h
		return nil
	}, func(err error, next time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"blockId":     blockId.String(),
			"nextAttempt": next,
		}).Warn("Failed to resolve block id. Retrying...")
	}); err != nil {
		return 0, errors.Wrapf(err, "could not resolve block id %s", blockId)
	}
	if header == nil {
		return 0, errors.Errorf("block header %s not found", blockId)
	}
	return header.Header.Message.Slot, nil
}
