package indexer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/r3labs/sse/v2"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/DillLabs/blobscan-indexer/clients"
	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
	"github.com/DillLabs/blobscan-indexer/shared/backoff"
	"github.com/DillLabs/blobscan-indexer/shared/traceutil"
	"github.com/DillLabs/blobscan-indexer/synchronizer"
)

// eventChannelCapacity bounds the SSE delivery channel. The stream produces
// at most a few events per slot, so a small buffer rides out head-sync
// stalls.
const eventChannelCapacity = 32

// realtimeSyncer tracks the state of the realtime task's event loop. Events
// are handled one at a time, so reorg handling never races a head sync.
type realtimeSyncer struct {
	clients      *clients.Context
	sync         *synchronizer.Synchronizer
	retry        *backoff.Config
	startBlockId beacon.BlockId

	initialSyncDone bool
	lastHeadSlot    uint64
}

// runRealtimeTask subscribes to the beacon event stream and dispatches
// events until the stream dies for good or an event handler fails.
func (i *Indexer) runRealtimeTask(ctx context.Context, results chan<- taskMessage, startBlockId beacon.BlockId) {
	syncer := &realtimeSyncer{
		clients:      i.clients,
		sync:         i.newSynchronizer(synchronizer.CheckpointUpper),
		retry:        i.retry,
		startBlockId: startBlockId,
	}

	topics := []beacon.Topic{beacon.TopicChainReorg, beacon.TopicHead, beacon.TopicFinalizedCheckpoint}
	events := make(chan *sse.Event, eventChannelCapacity)

	unsubscribe, err := i.clients.BeaconClient().SubscribeToEvents(topics, events)
	if err != nil {
		results <- taskMessage{err: errors.Wrap(err, "could not subscribe to beacon events")}
		return
	}
	defer unsubscribe()

	names := make([]string, len(topics))
	for idx, topic := range topics {
		names[idx] = topic.String()
	}
	log.WithField("topics", strings.Join(names, ", ")).Info("Subscribed to beacon events")

	for {
		select {
		case <-ctx.Done():
			results <- taskMessage{err: ctx.Err()}
			return
		case event, ok := <-events:
			if !ok {
				// The SSE client closes the channel once its reconnection
				// policy is exhausted.
				results <- taskMessage{err: errors.New("beacon event stream closed")}
				return
			}
			if err := syncer.processEvent(ctx, event); err != nil {
				results <- taskMessage{err: err}
				return
			}
		}
	}
}

// processEvent dispatches one stream event. Unknown event names are fatal.
func (r *realtimeSyncer) processEvent(ctx context.Context, event *sse.Event) error {
	name := string(event.Event)
	if name == "" && len(event.Data) == 0 {
		// Keep-alive.
		return nil
	}
	switch name {
	case "head":
		return r.handleHeadEvent(ctx, event.Data)
	case "finalized_checkpoint":
		return r.handleFinalizedCheckpointEvent(ctx, event.Data)
	case "chain_reorg":
		return r.handleChainReorgEvent(ctx, event.Data)
	default:
		return errors.Errorf("unexpected beacon event %q", name)
	}
}

// handleHeadEvent closes the gap between the last synced head and the new
// one, checkpointing the upper cursor. The first event after startup syncs
// from the coordinator's start cursor instead.
func (r *realtimeSyncer) handleHeadEvent(ctx context.Context, data []byte) error {
	ctx, span := trace.StartSpan(ctx, "indexer.handleHeadEvent")
	defer span.End()

	var head beacon.HeadEventData
	if err := json.Unmarshal(data, &head); err != nil {
		return errors.Wrap(err, "could not decode head event")
	}

	from := beacon.NewSlotBlockId(r.lastHeadSlot)
	if r.lastHeadSlot >= head.Slot {
		// The head moved backward after a reorg; sync the new head alone.
		from = beacon.NewSlotBlockId(head.Slot)
	}
	if !r.initialSyncDone {
		r.initialSyncDone = true
		from = r.startBlockId
	}

	if err := r.sync.Run(ctx, from, beacon.NewSlotBlockId(head.Slot+1)); err != nil {
		traceutil.AnnotateError(span, err)
		return errors.Wrapf(err, "could not sync to head slot %d", head.Slot)
	}
	r.lastHeadSlot = head.Slot
	return nil
}

// handleFinalizedCheckpointEvent resolves the finalized block's execution
// block number and persists it.
func (r *realtimeSyncer) handleFinalizedCheckpointEvent(ctx context.Context, data []byte) error {
	ctx, span := trace.StartSpan(ctx, "indexer.handleFinalizedCheckpointEvent")
	defer span.End()

	var checkpoint beacon.FinalizedCheckpointEventData
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return errors.Wrap(err, "could not decode finalized checkpoint event")
	}

	var block *beacon.Block
	if err := r.retry.RetryNotify(ctx, func() error {
		b, err := r.clients.BeaconClient().GetBlock(ctx, beacon.NewHashBlockId(checkpoint.Block))
		if err != nil {
			return err
		}
		if b == nil {
			return backoff.Permanent(errors.Errorf("finalized block %s not found", checkpoint.Block))
		}
		block = b
		return nil
	}, retryWarn("finalized block")); err != nil {
		traceutil.AnnotateError(span, err)
		return errors.Wrap(err, "could not fetch finalized block")
	}
	if block.Message.Body.ExecutionPayload == nil {
		return errors.Errorf("finalized block %s has no execution payload", checkpoint.Block)
	}
	blockNumber := block.Message.Body.ExecutionPayload.BlockNumber

	if err := r.retry.RetryNotify(ctx, func() error {
		return r.clients.BlobscanClient().UpdateSyncState(ctx, blobscan.SyncState{
			LastFinalizedBlock: &blockNumber,
		})
	}, retryWarn("finalized block update")); err != nil {
		traceutil.AnnotateError(span, err)
		return errors.Wrap(err, "could not update last finalized block")
	}

	log.WithField("finalizedExecutionBlock", blockNumber).Info("Finalized checkpoint event received. Updated last finalized block number")
	return nil
}

// handleChainReorgEvent walks the parent-root chain of the replaced head for
// up to depth blocks and marks the traversed slots reorged. On failure the
// upper cursor is reset, best effort, to just below the reorg slot before
// the error surfaces.
func (r *realtimeSyncer) handleChainReorgEvent(ctx context.Context, data []byte) error {
	ctx, span := trace.StartSpan(ctx, "indexer.handleChainReorgEvent")
	defer span.End()

	var reorg beacon.ChainReorgEventData
	if err := json.Unmarshal(data, &reorg); err != nil {
		return errors.Wrap(err, "could not decode chain reorg event")
	}

	if err := r.markReorgedSlots(ctx, reorg); err != nil {
		traceutil.AnnotateError(span, err)
		if reorg.Slot > 0 {
			rewind := reorg.Slot - 1
			if updateErr := r.clients.BlobscanClient().UpdateSyncState(ctx, blobscan.SyncState{
				LastUpperSyncedSlot: &rewind,
			}); updateErr != nil {
				log.WithError(updateErr).Warn("Failed to rewind upper synced slot after reorg handling failure")
			}
		}
		return err
	}
	return nil
}

func (r *realtimeSyncer) markReorgedSlots(ctx context.Context, reorg beacon.ChainReorgEventData) error {
	reorgedSlots := make([]uint64, 0, reorg.Depth)
	currentBlock := reorg.OldHeadBlock

	for depth := uint64(1); depth <= reorg.Depth; depth++ {
		var header *beacon.BlockHeader
		if err := r.retry.RetryNotify(ctx, func() error {
			h, err := r.clients.BeaconClient().GetBlockHeader(ctx, beacon.NewHashBlockId(currentBlock))
			if err != nil {
				return err
			}
			header = h
			return nil
		}, retryWarn("reorged block header")); err != nil {
			return errors.Wrapf(err, "could not fetch header of reorged block %s", currentBlock)
		}
		if header == nil {
			log.WithFields(logrus.Fields{
				"slot":  reorg.Slot,
				"depth": reorg.Depth,
			}).Warnf("Found %d out of %d reorged blocks only", depth-1, reorg.Depth)
			break
		}
		reorgedSlots = append(reorgedSlots, header.Header.Message.Slot)
		currentBlock = header.Header.Message.ParentRoot
	}

	var totalUpdatedSlots uint64
	if err := r.retry.RetryNotify(ctx, func() error {
		total, err := r.clients.BlobscanClient().HandleReorgedSlots(ctx, reorgedSlots)
		if err != nil {
			return err
		}
		totalUpdatedSlots = total
		return nil
	}, retryWarn("reorged slots update")); err != nil {
		return errors.Wrapf(err, "could not mark slots as reorged for old head %s", reorg.OldHeadBlock)
	}

	log.WithFields(logrus.Fields{
		"slot":         reorg.Slot,
		"depth":        reorg.Depth,
		"reorgedSlots": reorgedSlots,
		"updatedSlots": totalUpdatedSlots,
	}).Info("Chain reorganization detected")
	return nil
}

func retryWarn(operation string) func(error, time.Duration) {
	return func(err error, next time.Duration) {
		log.WithError(err).WithField("nextAttempt", next).Warnf("Failed to handle %s. Retrying...", operation)
	}
}
