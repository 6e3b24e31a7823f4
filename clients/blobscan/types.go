package blobscan

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SyncState is the indexing progress persisted by blobscan. All fields are
// independently optional: a field left nil on update is untouched remotely.
type SyncState struct {
	LastLowerSyncedSlot *uint64 `json:"lastLowerSyncedSlot,omitempty"`
	LastUpperSyncedSlot *uint64 `json:"lastUpperSyncedSlot,omitempty"`
	LastFinalizedBlock  *uint64 `json:"lastFinalizedBlock,omitempty"`
}

// Block is the per-slot block record submitted to blobscan, binding the
// execution block to its consensus slot and proposer.
type Block struct {
	Number         uint64      `json:"number"`
	Hash           common.Hash `json:"hash"`
	Timestamp      uint64      `json:"timestamp"`
	Slot           uint64      `json:"slot"`
	ProposerPubkey string      `json:"proposerPubkey"`
	BlobGasUsed    *uint64     `json:"blobGasUsed,omitempty"`
	ExcessBlobGas  *uint64     `json:"excessBlobGas,omitempty"`
}

// Transaction is an execution transaction record.
type Transaction struct {
	Hash             common.Hash     `json:"hash"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to,omitempty"`
	BlockNumber      uint64          `json:"blockNumber"`
	MaxFeePerBlobGas *hexutil.Big    `json:"maxFeePerBlobGas,omitempty"`
}

// Blob is a blob record tied to the transaction that referenced it.
type Blob struct {
	VersionedHash common.Hash   `json:"versionedHash"`
	Commitment    string        `json:"commitment"`
	Proof         string        `json:"proof"`
	Data          hexutil.Bytes `json:"data"`
	TxHash        common.Hash   `json:"txHash"`
	Index         uint64        `json:"index"`
}

type indexRequest struct {
	Block        *Block         `json:"block"`
	Transactions []*Transaction `json:"transactions"`
	Blobs        []*Blob        `json:"blobs"`
}

type reorgedSlotsRequest struct {
	ReorgedSlots []uint64 `json:"reorgedSlots"`
}

type reorgedSlotsResponse struct {
	TotalUpdatedSlots uint64 `json:"totalUpdatedSlots"`
}
