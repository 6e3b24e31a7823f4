package synchronizer_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DillLabs/blobscan-indexer/clients"
	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
	mock "github.com/DillLabs/blobscan-indexer/clients/testing"
	"github.com/DillLabs/blobscan-indexer/shared/backoff"
	"github.com/DillLabs/blobscan-indexer/synchronizer"
)

func fastRetry() *backoff.Config {
	return &backoff.Config{
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		MaxInterval:     2 * time.Millisecond,
		MaxRetries:      2,
	}
}

// newMocks returns a client bundle whose beacon node reports every slot as
// missed, which drives the processor through its fastest success path.
func newMocks() (*mock.BeaconClientMock, *mock.BlobscanClientMock, *clients.Context) {
	beaconMock := &mock.BeaconClientMock{}
	blobscanMock := &mock.BlobscanClientMock{}
	return beaconMock, blobscanMock, clients.NewContext(beaconMock, &mock.ExecutionClientMock{}, blobscanMock)
}

func build(c *clients.Context, checkpointType synchronizer.CheckpointType, workers, chunk uint64) *synchronizer.Synchronizer {
	return synchronizer.NewBuilder().
		WithNumWorkers(workers).
		WithSlotsCheckpoint(chunk).
		WithCheckpointType(checkpointType).
		WithBackoffConfig(fastRetry()).
		Build(c)
}

func TestRun_CoversEverySlotExactlyOnce(t *testing.T) {
	beaconMock, _, bundle := newMocks()
	sync := build(bundle, synchronizer.CheckpointDisabled, 4, 10)

	require.NoError(t, sync.Run(context.Background(), beacon.NewSlotBlockId(1), beacon.NewSlotBlockId(51)))

	slots := beaconMock.RequestedSlots()
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	require.Len(t, slots, 50)
	for i, slot := range slots {
		assert.Equal(t, uint64(i+1), slot)
	}
}

func TestRun_UpperCheckpointsAdvanceMonotonically(t *testing.T) {
	_, blobscanMock, bundle := newMocks()
	sync := build(bundle, synchronizer.CheckpointUpper, 4, 10)

	require.NoError(t, sync.Run(context.Background(), beacon.NewSlotBlockId(1), beacon.NewSlotBlockId(41)))

	require.Len(t, blobscanMock.SyncStateUpdates, 4)
	expected := []uint64{10, 20, 30, 40}
	for i, update := range blobscanMock.SyncStateUpdates {
		require.NotNil(t, update.LastUpperSyncedSlot)
		assert.Equal(t, expected[i], *update.LastUpperSyncedSlot)
		assert.Nil(t, update.LastLowerSyncedSlot)
		assert.Nil(t, update.LastFinalizedBlock)
	}
}

func TestRun_ReverseWalkWithLowerCheckpoints(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	sync := build(bundle, synchronizer.CheckpointLower, 2, 3)

	require.NoError(t, sync.Run(context.Background(), beacon.NewSlotBlockId(10), beacon.NewSlotBlockId(4)))

	slots := beaconMock.RequestedSlots()
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	assert.Equal(t, []uint64{4, 5, 6, 7, 8, 9}, slots)

	require.Len(t, blobscanMock.SyncStateUpdates, 2)
	require.NotNil(t, blobscanMock.SyncStateUpdates[0].LastLowerSyncedSlot)
	assert.Equal(t, uint64(7), *blobscanMock.SyncStateUpdates[0].LastLowerSyncedSlot)
	require.NotNil(t, blobscanMock.SyncStateUpdates[1].LastLowerSyncedSlot)
	assert.Equal(t, uint64(4), *blobscanMock.SyncStateUpdates[1].LastLowerSyncedSlot)
}

func TestRun_EqualBoundsIsANoOp(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	sync := build(bundle, synchronizer.CheckpointUpper, 2, 10)

	require.NoError(t, sync.Run(context.Background(), beacon.NewSlotBlockId(7), beacon.NewSlotBlockId(7)))
	assert.Empty(t, beaconMock.BlockRequests)
	assert.Empty(t, blobscanMock.SyncStateUpdates)
}

func TestRun_StartGreaterThanEndWithUpperCheckpointFails(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	sync := build(bundle, synchronizer.CheckpointUpper, 2, 10)

	err := sync.Run(context.Background(), beacon.NewSlotBlockId(200), beacon.NewSlotBlockId(100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greater than final slot")
	assert.Empty(t, beaconMock.BlockRequests)
	assert.Empty(t, blobscanMock.SyncStateUpdates)
}

func TestRun_FailingSlotFailsChunkWithoutCheckpoint(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	beaconMock.GetBlockFn = func(_ context.Context, blockId beacon.BlockId) (*beacon.Block, error) {
		if blockId.Slot == 5 {
			return nil, backoff.Permanent(errors.New("corrupted block"))
		}
		return nil, nil
	}
	sync := build(bundle, synchronizer.CheckpointUpper, 2, 10)

	err := sync.Run(context.Background(), beacon.NewSlotBlockId(1), beacon.NewSlotBlockId(11))
	require.Error(t, err)
	var chunkErr *synchronizer.ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, uint64(1), chunkErr.InitialSlot)
	assert.Equal(t, uint64(11), chunkErr.FinalSlot)
	assert.Empty(t, blobscanMock.SyncStateUpdates, "a failed chunk must not checkpoint")
}

func TestRun_WorkerPanicBecomesChunkError(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	beaconMock.GetBlockFn = func(_ context.Context, blockId beacon.BlockId) (*beacon.Block, error) {
		if blockId.Slot == 3 {
			panic("boom")
		}
		return nil, nil
	}
	sync := build(bundle, synchronizer.CheckpointUpper, 2, 10)

	err := sync.Run(context.Background(), beacon.NewSlotBlockId(1), beacon.NewSlotBlockId(11))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Empty(t, blobscanMock.SyncStateUpdates)
}

func TestRun_CheckpointFailureAbortsSweep(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	blobscanMock.UpdateSyncStateFn = func(context.Context, blobscan.SyncState) error {
		return backoff.Permanent(errors.New("blobscan rejected the write"))
	}
	sync := build(bundle, synchronizer.CheckpointUpper, 2, 5)

	err := sync.Run(context.Background(), beacon.NewSlotBlockId(1), beacon.NewSlotBlockId(11))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not save checkpoint")
	// Only the first chunk ran; the sweep stopped at its checkpoint.
	slots := beaconMock.RequestedSlots()
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, slots)
}

func TestRun_ChunkSmallerThanPoolShrinksWorkers(t *testing.T) {
	beaconMock, _, bundle := newMocks()
	sync := build(bundle, synchronizer.CheckpointDisabled, 8, 10)

	require.NoError(t, sync.Run(context.Background(), beacon.NewSlotBlockId(1), beacon.NewSlotBlockId(4)))

	slots := beaconMock.RequestedSlots()
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	assert.Equal(t, []uint64{1, 2, 3}, slots)
}

func TestRun_ResolvesHeadThroughBlockHeader(t *testing.T) {
	beaconMock, _, bundle := newMocks()
	beaconMock.GetBlockHeaderFn = func(_ context.Context, blockId beacon.BlockId) (*beacon.BlockHeader, error) {
		require.Equal(t, beacon.BlockIdHead, blockId.Kind)
		return &beacon.BlockHeader{Header: beacon.InnerBlockHeader{Message: beacon.BlockHeaderMessage{Slot: 6}}}, nil
	}
	sync := build(bundle, synchronizer.CheckpointDisabled, 2, 10)

	require.NoError(t, sync.Run(context.Background(), beacon.HeadBlockId(), beacon.NewSlotBlockId(9)))

	slots := beaconMock.RequestedSlots()
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	assert.Equal(t, []uint64{6, 7, 8}, slots)
}
