package beacon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// BlockIdKind tags the variant held by a BlockId.
type BlockIdKind int

const (
	// BlockIdHead selects the current chain head.
	BlockIdHead BlockIdKind = iota
	// BlockIdFinalized selects the latest finalized block.
	BlockIdFinalized
	// BlockIdSlot selects a block by slot number.
	BlockIdSlot
	// BlockIdHash selects a block by its root.
	BlockIdHash
)

// BlockId identifies a beacon block the way the beacon API does: "head",
// "finalized", a decimal slot number, or a 0x-prefixed block root.
type BlockId struct {
	Kind BlockIdKind
	Slot uint64
	Hash common.Hash
}

// HeadBlockId returns the id of the current chain head.
func HeadBlockId() BlockId {
	return BlockId{Kind: BlockIdHead}
}

// FinalizedBlockId returns the id of the latest finalized block.
func FinalizedBlockId() BlockId {
	return BlockId{Kind: BlockIdFinalized}
}

// NewSlotBlockId returns a slot-addressed block id.
func NewSlotBlockId(slot uint64) BlockId {
	return BlockId{Kind: BlockIdSlot, Slot: slot}
}

// NewHashBlockId returns a root-addressed block id.
func NewHashBlockId(hash common.Hash) BlockId {
	return BlockId{Kind: BlockIdHash, Hash: hash}
}

// ParseBlockId parses the URL form of a block id. Resolution order: "head",
// "finalized", a decimal slot number, then a 0x-prefixed 32-byte hash.
func ParseBlockId(s string) (BlockId, error) {
	switch {
	case s == "head":
		return HeadBlockId(), nil
	case s == "finalized":
		return FinalizedBlockId(), nil
	}
	if slot, err := strconv.ParseUint(s, 10, 64); err == nil {
		return NewSlotBlockId(slot), nil
	}
	if strings.HasPrefix(s, "0x") {
		raw, err := hexutil.Decode(s)
		if err != nil || len(raw) != common.HashLength {
			return BlockId{}, errors.Errorf("invalid block id hash: %s", s)
		}
		return NewHashBlockId(common.BytesToHash(raw)), nil
	}
	return BlockId{}, errors.Errorf("invalid block id: %s. Expected 'head', 'finalized', a slot number or a hash", s)
}

// String renders the id in the form expected by beacon API URLs.
func (id BlockId) String() string {
	switch id.Kind {
	case BlockIdHead:
		return "head"
	case BlockIdFinalized:
		return "finalized"
	case BlockIdSlot:
		return strconv.FormatUint(id.Slot, 10)
	case BlockIdHash:
		return id.Hash.Hex()
	default:
		return fmt.Sprintf("unknown(%d)", int(id.Kind))
	}
}

// Topic identifies a beacon event stream topic.
type Topic int

const (
	// TopicHead notifies of a new chain head.
	TopicHead Topic = iota
	// TopicFinalizedCheckpoint notifies of a new finalized checkpoint.
	TopicFinalizedCheckpoint
	// TopicChainReorg notifies of a chain reorganization.
	TopicChainReorg
)

// String renders the topic the way the `topics` query parameter expects it.
func (t Topic) String() string {
	switch t {
	case TopicHead:
		return "head"
	case TopicFinalizedCheckpoint:
		return "finalized_checkpoint"
	case TopicChainReorg:
		return "chain_reorg"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ExecutionPayload is the execution-layer payload embedded in a beacon block.
type ExecutionPayload struct {
	BlockHash   common.Hash `json:"block_hash"`
	BlockNumber uint64      `json:"block_number,string"`
}

// BlockBody holds the beacon block body fields the indexer cares about.
// Pre-merge blocks carry no execution payload and pre-Dencun blocks carry no
// KZG commitments.
type BlockBody struct {
	ExecutionPayload   *ExecutionPayload `json:"execution_payload"`
	BlobKZGCommitments []string          `json:"blob_kzg_commitments"`
}

// BlockMessage is the unsigned portion of a beacon block.
type BlockMessage struct {
	Slot          uint64      `json:"slot,string"`
	ProposerIndex uint64      `json:"proposer_index,string"`
	ParentRoot    common.Hash `json:"parent_root"`
	Body          BlockBody   `json:"body"`
}

// Block is a beacon block as returned by /eth/v2/beacon/blocks/{id}.
type Block struct {
	Message BlockMessage `json:"message"`
}

// BlockHeaderMessage is the inner header payload.
type BlockHeaderMessage struct {
	Slot       uint64      `json:"slot,string"`
	ParentRoot common.Hash `json:"parent_root"`
}

// InnerBlockHeader wraps the header message.
type InnerBlockHeader struct {
	Message BlockHeaderMessage `json:"message"`
}

// BlockHeader is a beacon block header as returned by
// /eth/v1/beacon/headers/{id}.
type BlockHeader struct {
	Root   common.Hash      `json:"root"`
	Header InnerBlockHeader `json:"header"`
}

// Validator holds the validator fields the indexer cares about.
type Validator struct {
	Pubkey string `json:"pubkey"`
}

// ValidatorContainer is a state validator entry as returned by
// /eth/v1/beacon/states/{state_id}/validators/{validator_id}.
type ValidatorContainer struct {
	Index     uint64    `json:"index,string"`
	Validator Validator `json:"validator"`
}

// BlobSidecar is a blob sidecar entry as returned by
// /eth/v1/beacon/blob_sidecars/{id}.
type BlobSidecar struct {
	Index         uint64        `json:"index,string"`
	KZGCommitment string        `json:"kzg_commitment"`
	KZGProof      string        `json:"kzg_proof"`
	Blob          hexutil.Bytes `json:"blob"`
}

// HeadEventData is the payload of a "head" stream event.
type HeadEventData struct {
	Slot  uint64      `json:"slot,string"`
	Block common.Hash `json:"block"`
}

// FinalizedCheckpointEventData is the payload of a "finalized_checkpoint"
// stream event.
type FinalizedCheckpointEventData struct {
	Block common.Hash `json:"block"`
}

// ChainReorgEventData is the payload of a "chain_reorg" stream event.
type ChainReorgEventData struct {
	Slot         uint64      `json:"slot,string"`
	Depth        uint64      `json:"depth,string"`
	OldHeadBlock common.Hash `json:"old_head_block"`
	NewHeadBlock common.Hash `json:"new_head_block"`
}

type blockResponse struct {
	Data *Block `json:"data"`
}

type blockHeaderResponse struct {
	Data *BlockHeader `json:"data"`
}

type validatorResponse struct {
	Data *ValidatorContainer `json:"data"`
}

type blobSidecarsResponse struct {
	Data []*BlobSidecar `json:"data"`
}
