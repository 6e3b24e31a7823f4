// Package testing defines mock client implementations for testing.
package testing

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/r3labs/sse/v2"

	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
)

// BeaconClientMock implements clients.BeaconClient. Behavior is overridden
// per call through the Fn fields; unset fields return nil results, except
// SubscribeToEvents, which returns a no-op unsubscribe function. Every
// GetBlock call is recorded so tests can assert slot coverage.
type BeaconClientMock struct {
	mu sync.Mutex

	GetBlockFn          func(ctx context.Context, blockId beacon.BlockId) (*beacon.Block, error)
	GetBlockHeaderFn    func(ctx context.Context, blockId beacon.BlockId) (*beacon.BlockHeader, error)
	GetHeadValidatorFn  func(ctx context.Context, index uint64) (*beacon.ValidatorContainer, error)
	GetBlobSidecarsFn   func(ctx context.Context, blockId beacon.BlockId) ([]*beacon.BlobSidecar, error)
	SubscribeToEventsFn func(topics []beacon.Topic, events chan *sse.Event) (func(), error)

	BlockRequests []beacon.BlockId
}

// GetBlock records the request and delegates to GetBlockFn.
func (m *BeaconClientMock) GetBlock(ctx context.Context, blockId beacon.BlockId) (*beacon.Block, error) {
	m.mu.Lock()
	m.BlockRequests = append(m.BlockRequests, blockId)
	m.mu.Unlock()
	if m.GetBlockFn == nil {
		return nil, nil
	}
	return m.GetBlockFn(ctx, blockId)
}

// GetBlockHeader delegates to GetBlockHeaderFn.
func (m *BeaconClientMock) GetBlockHeader(ctx context.Context, blockId beacon.BlockId) (*beacon.BlockHeader, error) {
	if m.GetBlockHeaderFn == nil {
		return nil, nil
	}
	return m.GetBlockHeaderFn(ctx, blockId)
}

// GetHeadValidator delegates to GetHeadValidatorFn.
func (m *BeaconClientMock) GetHeadValidator(ctx context.Context, index uint64) (*beacon.ValidatorContainer, error) {
	if m.GetHeadValidatorFn == nil {
		return nil, nil
	}
	return m.GetHeadValidatorFn(ctx, index)
}

// GetBlobSidecars delegates to GetBlobSidecarsFn.
func (m *BeaconClientMock) GetBlobSidecars(ctx context.Context, blockId beacon.BlockId) ([]*beacon.BlobSidecar, error) {
	if m.GetBlobSidecarsFn == nil {
		return nil, nil
	}
	return m.GetBlobSidecarsFn(ctx, blockId)
}

// SubscribeToEvents delegates to SubscribeToEventsFn.
func (m *BeaconClientMock) SubscribeToEvents(topics []beacon.Topic, events chan *sse.Event) (func(), error) {
	if m.SubscribeToEventsFn == nil {
		return func() {}, nil
	}
	return m.SubscribeToEventsFn(topics, events)
}

// RequestedSlots returns the slots of every slot-addressed GetBlock request
// received so far.
func (m *BeaconClientMock) RequestedSlots() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots := make([]uint64, 0, len(m.BlockRequests))
	for _, id := range m.BlockRequests {
		if id.Kind == beacon.BlockIdSlot {
			slots = append(slots, id.Slot)
		}
	}
	return slots
}

// ExecutionClientMock implements clients.ExecutionClient.
type ExecutionClientMock struct {
	BlockByHashFn func(ctx context.Context, hash common.Hash) (*gethtypes.Block, error)
}

// BlockByHash delegates to BlockByHashFn.
func (m *ExecutionClientMock) BlockByHash(ctx context.Context, hash common.Hash) (*gethtypes.Block, error) {
	if m.BlockByHashFn == nil {
		return nil, nil
	}
	return m.BlockByHashFn(ctx, hash)
}

// IndexCall captures one Index submission.
type IndexCall struct {
	Block        *blobscan.Block
	Transactions []*blobscan.Transaction
	Blobs        []*blobscan.Blob
}

// BlobscanClientMock implements clients.BlobscanClient, recording writes so
// tests can assert checkpoint and submission behavior. Sync state updates,
// slot updates and index submissions are recorded only when their Fn
// override does not reject them; reorged slot calls are always recorded.
type BlobscanClientMock struct {
	mu sync.Mutex

	GetSyncStateFn       func(ctx context.Context) (*blobscan.SyncState, error)
	UpdateSyncStateFn    func(ctx context.Context, state blobscan.SyncState) error
	UpdateSlotFn         func(ctx context.Context, slot uint64) error
	HandleReorgedSlotsFn func(ctx context.Context, slots []uint64) (uint64, error)
	IndexFn              func(ctx context.Context, block *blobscan.Block, transactions []*blobscan.Transaction, blobs []*blobscan.Blob) error

	SyncStateUpdates []blobscan.SyncState
	SlotUpdates      []uint64
	ReorgedSlotCalls [][]uint64
	IndexCalls       []IndexCall
}

// GetSyncState delegates to GetSyncStateFn.
func (m *BlobscanClientMock) GetSyncState(ctx context.Context) (*blobscan.SyncState, error) {
	if m.GetSyncStateFn == nil {
		return nil, nil
	}
	return m.GetSyncStateFn(ctx)
}

// UpdateSyncState records the update and delegates to UpdateSyncStateFn.
func (m *BlobscanClientMock) UpdateSyncState(ctx context.Context, state blobscan.SyncState) error {
	if m.UpdateSyncStateFn != nil {
		if err := m.UpdateSyncStateFn(ctx, state); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.SyncStateUpdates = append(m.SyncStateUpdates, state)
	m.mu.Unlock()
	return nil
}

// UpdateSlot records the update and delegates to UpdateSlotFn.
func (m *BlobscanClientMock) UpdateSlot(ctx context.Context, slot uint64) error {
	if m.UpdateSlotFn != nil {
		if err := m.UpdateSlotFn(ctx, slot); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.SlotUpdates = append(m.SlotUpdates, slot)
	m.mu.Unlock()
	return nil
}

// HandleReorgedSlots records the call and delegates to HandleReorgedSlotsFn.
func (m *BlobscanClientMock) HandleReorgedSlots(ctx context.Context, slots []uint64) (uint64, error) {
	m.mu.Lock()
	m.ReorgedSlotCalls = append(m.ReorgedSlotCalls, slots)
	m.mu.Unlock()
	if m.HandleReorgedSlotsFn == nil {
		return uint64(len(slots)), nil
	}
	return m.HandleReorgedSlotsFn(ctx, slots)
}

// Index records the submission and delegates to IndexFn.
func (m *BlobscanClientMock) Index(ctx context.Context, block *blobscan.Block, transactions []*blobscan.Transaction, blobs []*blobscan.Blob) error {
	if m.IndexFn != nil {
		if err := m.IndexFn(ctx, block, transactions, blobs); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.IndexCalls = append(m.IndexCalls, IndexCall{Block: block, Transactions: transactions, Blobs: blobs})
	m.mu.Unlock()
	return nil
}

// LastSyncStateUpdate returns the most recent recorded sync state write, or
// nil when none happened.
func (m *BlobscanClientMock) LastSyncStateUpdate() *blobscan.SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SyncStateUpdates) == 0 {
		return nil
	}
	state := m.SyncStateUpdates[len(m.SyncStateUpdates)-1]
	return &state
}
