// Package slots fuses one slot's beacon and execution data into the record
// triple submitted to blobscan.
package slots

import (
	"context"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/DillLabs/blobscan-indexer/clients"
	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
	"github.com/DillLabs/blobscan-indexer/shared/backoff"
	"github.com/DillLabs/blobscan-indexer/shared/traceutil"
)

// Processor turns slots into blobscan submissions. A Processor is cheap;
// synchronizer workers create one each.
type Processor struct {
	clients *clients.Context
	retry   *backoff.Config
}

// NewProcessor returns a processor using the default retry policy.
func NewProcessor(c *clients.Context) *Processor {
	return NewProcessorWithConfig(c, backoff.DefaultConfig())
}

// NewProcessorWithConfig returns a processor with an explicit retry policy.
func NewProcessorWithConfig(c *clients.Context, retry *backoff.Config) *Processor {
	return &Processor{clients: c, retry: retry}
}

// ProcessSlots walks a slot range sequentially. When initialSlot exceeds
// finalSlot the range is walked backward, starting at initialSlot-1 down
// through finalSlot.
func (p *Processor) ProcessSlots(ctx context.Context, initialSlot, finalSlot uint64) error {
	if initialSlot == finalSlot {
		return nil
	}
	if initialSlot > finalSlot {
		for slot := initialSlot - 1; ; slot-- {
			if err := p.ProcessSlot(ctx, slot); err != nil {
				return &RangeError{InitialSlot: initialSlot, FinalSlot: finalSlot, FailedSlot: slot, Err: err}
			}
			if slot == finalSlot {
				return nil
			}
		}
	}
	for slot := initialSlot; slot < finalSlot; slot++ {
		if err := p.ProcessSlot(ctx, slot); err != nil {
			return &RangeError{InitialSlot: initialSlot, FinalSlot: finalSlot, FailedSlot: slot, Err: err}
		}
	}
	return nil
}

// ProcessSlot fuses the slot's beacon and execution data and submits the
// resulting records. Missed slots, pre-merge slots and empty blocks succeed
// without a submission. Transient upstream failures are retried per call, so
// a hiccup in one step does not redo the earlier ones.
func (p *Processor) ProcessSlot(ctx context.Context, slot uint64) error {
	ctx, span := trace.StartSpan(ctx, "slots.ProcessSlot")
	defer span.End()
	span.AddAttributes(trace.Int64Attribute("slot", int64(slot)))

	beaconClient := p.clients.BeaconClient()
	executionClient := p.clients.ExecutionClient()
	blobscanClient := p.clients.BlobscanClient()

	slotsProcessedTotal.Inc()

	if slot == 0 {
		// Genesis carries no execution payload worth indexing.
		slotsSkippedTotal.WithLabelValues("genesis").Inc()
		return nil
	}

	var beaconBlock *beacon.Block
	if err := p.retry.RetryNotify(ctx, func() error {
		block, err := beaconClient.GetBlock(ctx, beacon.NewSlotBlockId(slot))
		if err != nil {
			return err
		}
		beaconBlock = block
		return nil
	}, p.retryWarn(slot, "beacon block")); err != nil {
		traceutil.AnnotateError(span, err)
		return errors.Wrapf(err, "could not fetch beacon block for slot %d", slot)
	}
	if beaconBlock == nil {
		log.WithField("slot", slot).Debug("Skipping as there is no beacon block")
		slotsSkippedTotal.WithLabelValues("missed").Inc()
		return nil
	}

	message := beaconBlock.Message
	payload := message.Body.ExecutionPayload
	if payload == nil {
		log.WithField("slot", slot).Debug("Skipping as beacon block doesn't contain execution payload")
		slotsSkippedTotal.WithLabelValues("pre_merge").Inc()
		return nil
	}
	commitments := message.Body.BlobKZGCommitments

	var executionBlock *gethtypes.Block
	if err := p.retry.RetryNotify(ctx, func() error {
		block, err := executionClient.BlockByHash(ctx, payload.BlockHash)
		if err != nil {
			return err
		}
		if block == nil {
			// A beacon block referencing an unknown execution block is a
			// protocol violation, not a transient condition.
			return backoff.Permanent(errors.Errorf("execution block %s not found", payload.BlockHash))
		}
		executionBlock = block
		return nil
	}, p.retryWarn(slot, "execution block")); err != nil {
		traceutil.AnnotateError(span, err)
		return errors.Wrapf(err, "could not fetch execution block for slot %d", slot)
	}

	txToVersionedHashes := txVersionedHashesMapping(executionBlock)

	transactions, err := transactionsFromBlock(executionBlock)
	if err != nil {
		traceutil.AnnotateError(span, err)
		return err
	}
	if len(transactions) == 0 {
		log.WithField("slot", slot).Debug("Skipping as the execution block has no transactions")
		slotsSkippedTotal.WithLabelValues("empty").Inc()
		return nil
	}

	var validator *beacon.ValidatorContainer
	if err := p.retry.RetryNotify(ctx, func() error {
		container, err := beaconClient.GetHeadValidator(ctx, message.ProposerIndex)
		if err != nil {
			return err
		}
		if container == nil {
			return errors.Errorf("validator %d not found in head state", message.ProposerIndex)
		}
		validator = container
		return nil
	}, p.retryWarn(slot, "proposer validator")); err != nil {
		traceutil.AnnotateError(span, err)
		return errors.Wrapf(err, "could not resolve proposer %d for slot %d", message.ProposerIndex, slot)
	}

	blockEntity := blockFromExecutionBlock(executionBlock, slot, validator.Validator.Pubkey)

	var blobEntities []*blobscan.Blob
	if len(commitments) > 0 {
		sidecars, err := blobsFromCommitments(commitments)
		if err != nil {
			traceutil.AnnotateError(span, err)
			return err
		}
		versionedHashToBlob, err := versionedHashBlobMapping(sidecars)
		if err != nil {
			traceutil.AnnotateError(span, err)
			return err
		}
		for _, tx := range executionBlock.Transactions() {
			versionedHashes, ok := txToVersionedHashes[tx.Hash()]
			if !ok {
				continue
			}
			for i, hash := range versionedHashes {
				sidecar, ok := versionedHashToBlob[hash]
				if !ok {
					err := errors.Errorf("no blob found for versioned hash %s (index %d) of transaction %s", hash, i, tx.Hash())
					traceutil.AnnotateError(span, err)
					return err
				}
				blobEntities = append(blobEntities, &blobscan.Blob{
					VersionedHash: hash,
					Commitment:    sidecar.KZGCommitment,
					Proof:         sidecar.KZGProof,
					Data:          sidecar.Blob,
					TxHash:        tx.Hash(),
					Index:         uint64(i),
				})
			}
		}
	}

	if err := p.retry.RetryNotify(ctx, func() error {
		return blobscanClient.Index(ctx, blockEntity, transactions, blobEntities)
	}, p.retryWarn(slot, "blobscan submission")); err != nil {
		traceutil.AnnotateError(span, err)
		return errors.Wrapf(err, "could not index slot %d", slot)
	}

	slotsIndexedTotal.Inc()
	log.WithFields(logrus.Fields{
		"slot":         slot,
		"block":        blockEntity.Number,
		"transactions": len(transactions),
		"blobs":        len(blobEntities),
	}).Info("Block indexed successfully")

	return nil
}

func (p *Processor) retryWarn(slot uint64, operation string) func(error, time.Duration) {
	return func(err error, next time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"slot":        slot,
			"nextAttempt": next,
		}).Warnf("Failed to fetch %s. Retrying...", operation)
	}
}
