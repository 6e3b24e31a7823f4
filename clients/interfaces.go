// Package clients bundles the upstream and downstream client handles shared
// by every indexing task.
package clients

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/r3labs/sse/v2"

	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
)

// BeaconClient is the beacon node surface the indexer depends on.
type BeaconClient interface {
	GetBlock(ctx context.Context, blockId beacon.BlockId) (*beacon.Block, error)
	GetBlockHeader(ctx context.Context, blockId beacon.BlockId) (*beacon.BlockHeader, error)
	GetHeadValidator(ctx context.Context, index uint64) (*beacon.ValidatorContainer, error)
	GetBlobSidecars(ctx context.Context, blockId beacon.BlockId) ([]*beacon.BlobSidecar, error)
	SubscribeToEvents(topics []beacon.Topic, events chan *sse.Event) (func(), error)
}

// ExecutionClient is the execution node surface the indexer depends on.
type ExecutionClient interface {
	BlockByHash(ctx context.Context, hash common.Hash) (*gethtypes.Block, error)
}

// BlobscanClient is the sink surface the indexer depends on.
type BlobscanClient interface {
	GetSyncState(ctx context.Context) (*blobscan.SyncState, error)
	UpdateSyncState(ctx context.Context, state blobscan.SyncState) error
	UpdateSlot(ctx context.Context, slot uint64) error
	HandleReorgedSlots(ctx context.Context, slots []uint64) (uint64, error)
	Index(ctx context.Context, block *blobscan.Block, transactions []*blobscan.Transaction, blobs []*blobscan.Blob) error
}
