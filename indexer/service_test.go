package indexer

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DillLabs/blobscan-indexer/clients"
	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
	mock "github.com/DillLabs/blobscan-indexer/clients/testing"
	"github.com/DillLabs/blobscan-indexer/shared/backoff"
)

func fastRetry() *backoff.Config {
	return &backoff.Config{
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		MaxInterval:     2 * time.Millisecond,
		MaxRetries:      2,
	}
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

func blockIdPtr(id beacon.BlockId) *beacon.BlockId {
	return &id
}

func newMocks() (*mock.BeaconClientMock, *mock.BlobscanClientMock, *clients.Context) {
	beaconMock := &mock.BeaconClientMock{}
	blobscanMock := &mock.BlobscanClientMock{}
	return beaconMock, blobscanMock, clients.NewContext(beaconMock, &mock.ExecutionClientMock{}, blobscanMock)
}

func TestDeriveCursors(t *testing.T) {
	tests := []struct {
		name      string
		start     *beacon.BlockId
		state     *blobscan.SyncState
		wantLower beacon.BlockId
		wantUpper beacon.BlockId
	}{
		{
			name:      "no state at all",
			wantLower: beacon.HeadBlockId(),
			wantUpper: beacon.HeadBlockId(),
		},
		{
			name:      "state without cursors",
			state:     &blobscan.SyncState{},
			wantLower: beacon.HeadBlockId(),
			wantUpper: beacon.NewSlotBlockId(1),
		},
		{
			name:      "both cursors",
			state:     &blobscan.SyncState{LastLowerSyncedSlot: uint64Ptr(60), LastUpperSyncedSlot: uint64Ptr(100)},
			wantLower: beacon.NewSlotBlockId(60),
			wantUpper: beacon.NewSlotBlockId(101),
		},
		{
			name:      "upper only",
			state:     &blobscan.SyncState{LastUpperSyncedSlot: uint64Ptr(100)},
			wantLower: beacon.NewSlotBlockId(100),
			wantUpper: beacon.NewSlotBlockId(101),
		},
		{
			name:      "lower only",
			state:     &blobscan.SyncState{LastLowerSyncedSlot: uint64Ptr(60)},
			wantLower: beacon.NewSlotBlockId(60),
			wantUpper: beacon.NewSlotBlockId(61),
		},
		{
			name:      "explicit start overrides both",
			start:     blockIdPtr(beacon.NewSlotBlockId(4242)),
			state:     &blobscan.SyncState{LastLowerSyncedSlot: uint64Ptr(60), LastUpperSyncedSlot: uint64Ptr(100)},
			wantLower: beacon.NewSlotBlockId(4242),
			wantUpper: beacon.NewSlotBlockId(4242),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lower, upper := deriveCursors(tt.start, tt.state)
			assert.Equal(t, tt.wantLower, lower)
			assert.Equal(t, tt.wantUpper, upper)
		})
	}
}

func TestRun_HistoricalSweepOnly(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	blobscanMock.GetSyncStateFn = func(context.Context) (*blobscan.SyncState, error) {
		return &blobscan.SyncState{LastLowerSyncedSlot: uint64Ptr(60)}, nil
	}

	idx, err := New(&Config{
		Clients:         bundle,
		DencunForkSlot:  0,
		SlotsCheckpoint: 100,
		NumWorkers:      2,
		Backoff:         fastRetry(),
	})
	require.NoError(t, err)

	endBlockId := beacon.NewSlotBlockId(50)
	require.NoError(t, idx.Run(context.Background(), nil, &endBlockId))

	// The sweep walks [60, 50) backward.
	slots := beaconMock.RequestedSlots()
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	assert.Equal(t, []uint64{50, 51, 52, 53, 54, 55, 56, 57, 58, 59}, slots)

	// One chunk, one lower checkpoint at its floor.
	require.Len(t, blobscanMock.SyncStateUpdates, 1)
	require.NotNil(t, blobscanMock.SyncStateUpdates[0].LastLowerSyncedSlot)
	assert.Equal(t, uint64(50), *blobscanMock.SyncStateUpdates[0].LastLowerSyncedSlot)
}

func TestRun_HistoricalCompletedSpawnsNoTask(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	blobscanMock.GetSyncStateFn = func(context.Context) (*blobscan.SyncState, error) {
		// Already below the fork slot: nothing left to back-fill.
		return &blobscan.SyncState{LastLowerSyncedSlot: uint64Ptr(60)}, nil
	}

	idx, err := New(&Config{
		Clients:        bundle,
		DencunForkSlot: 100,
		Backoff:        fastRetry(),
	})
	require.NoError(t, err)

	endBlockId := beacon.NewSlotBlockId(50)
	require.NoError(t, idx.Run(context.Background(), nil, &endBlockId))
	assert.Empty(t, beaconMock.BlockRequests)
	assert.Empty(t, blobscanMock.SyncStateUpdates)
}

func TestRun_DisableHistorical(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	blobscanMock.GetSyncStateFn = func(context.Context) (*blobscan.SyncState, error) {
		return &blobscan.SyncState{LastLowerSyncedSlot: uint64Ptr(60)}, nil
	}

	idx, err := New(&Config{
		Clients:           bundle,
		DencunForkSlot:    0,
		DisableHistorical: true,
		Backoff:           fastRetry(),
	})
	require.NoError(t, err)

	endBlockId := beacon.NewSlotBlockId(50)
	require.NoError(t, idx.Run(context.Background(), nil, &endBlockId))
	assert.Empty(t, beaconMock.BlockRequests)
}

func TestRun_SyncStateFetchExhaustionFails(t *testing.T) {
	_, blobscanMock, bundle := newMocks()
	blobscanMock.GetSyncStateFn = func(context.Context) (*blobscan.SyncState, error) {
		return nil, assert.AnError
	}

	idx, err := New(&Config{
		Clients:           bundle,
		DisableHistorical: true,
		Backoff:           fastRetry(),
	})
	require.NoError(t, err)

	endBlockId := beacon.NewSlotBlockId(50)
	err = idx.Run(context.Background(), nil, &endBlockId)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync state")
}

func TestRun_CheckpointSaveDisabled(t *testing.T) {
	beaconMock, blobscanMock, bundle := newMocks()
	blobscanMock.GetSyncStateFn = func(context.Context) (*blobscan.SyncState, error) {
		return &blobscan.SyncState{LastLowerSyncedSlot: uint64Ptr(55)}, nil
	}

	idx, err := New(&Config{
		Clients:               bundle,
		DencunForkSlot:        0,
		DisableCheckpointSave: true,
		NumWorkers:            2,
		Backoff:               fastRetry(),
	})
	require.NoError(t, err)

	endBlockId := beacon.NewSlotBlockId(50)
	require.NoError(t, idx.Run(context.Background(), nil, &endBlockId))
	assert.NotEmpty(t, beaconMock.BlockRequests)
	assert.Empty(t, blobscanMock.SyncStateUpdates)
}
