package slots

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/pkg/errors"

	"github.com/DillLabs/blobscan-indexer/clients/beacon"
	"github.com/DillLabs/blobscan-indexer/clients/blobscan"
)

// txVersionedHashesMapping maps every blob-carrying transaction of the block
// to the versioned hashes it references.
func txVersionedHashesMapping(block *gethtypes.Block) map[common.Hash][]common.Hash {
	mapping := make(map[common.Hash][]common.Hash)
	for _, tx := range block.Transactions() {
		if tx.Type() != gethtypes.BlobTxType {
			continue
		}
		if hashes := tx.BlobHashes(); len(hashes) > 0 {
			mapping[tx.Hash()] = hashes
		}
	}
	return mapping
}

// blobsFromCommitments synthesizes sidecar-equivalent blobs from a beacon
// block's KZG commitment list. Proofs are not derivable from commitments
// alone and stay empty.
func blobsFromCommitments(commitments []string) ([]*beacon.BlobSidecar, error) {
	sidecars := make([]*beacon.BlobSidecar, 0, len(commitments))
	for i, commitment := range commitments {
		data, err := hexutil.Decode(commitment)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid KZG commitment %s at index %d", commitment, i)
		}
		sidecars = append(sidecars, &beacon.BlobSidecar{
			Index:         uint64(i),
			KZGCommitment: commitment,
			KZGProof:      "",
			Blob:          data,
		})
	}
	return sidecars, nil
}

// versionedHashBlobMapping keys the given sidecars by the versioned hash of
// their commitment.
func versionedHashBlobMapping(sidecars []*beacon.BlobSidecar) (map[common.Hash]*beacon.BlobSidecar, error) {
	mapping := make(map[common.Hash]*beacon.BlobSidecar, len(sidecars))
	for _, sidecar := range sidecars {
		hash, err := versionedHash(sidecar.KZGCommitment)
		if err != nil {
			return nil, err
		}
		mapping[hash] = sidecar
	}
	return mapping, nil
}

// versionedHash derives the EIP-4844 versioned hash of a hex-encoded KZG
// commitment.
func versionedHash(commitment string) (common.Hash, error) {
	raw, err := hexutil.Decode(commitment)
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "invalid KZG commitment %s", commitment)
	}
	var c kzg4844.Commitment
	if len(raw) != len(c) {
		return common.Hash{}, errors.Errorf("invalid KZG commitment length %d for %s", len(raw), commitment)
	}
	copy(c[:], raw)
	return common.Hash(kzg4844.CalcBlobHashV1(sha256.New(), &c)), nil
}

// transactionsFromBlock builds a sink record for every transaction in the
// block.
func transactionsFromBlock(block *gethtypes.Block) ([]*blobscan.Transaction, error) {
	transactions := make([]*blobscan.Transaction, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(tx.ChainId()), tx)
		if err != nil {
			// Pre-EIP-155 transactions carry no chain id.
			from, err = gethtypes.Sender(gethtypes.HomesteadSigner{}, tx)
			if err != nil {
				return nil, errors.Wrapf(err, "could not recover sender of transaction %s", tx.Hash())
			}
		}
		entity := &blobscan.Transaction{
			Hash:        tx.Hash(),
			From:        from,
			To:          tx.To(),
			BlockNumber: block.NumberU64(),
		}
		if tx.Type() == gethtypes.BlobTxType {
			entity.MaxFeePerBlobGas = (*hexutil.Big)(tx.BlobGasFeeCap())
		}
		transactions = append(transactions, entity)
	}
	return transactions, nil
}

// blockFromExecutionBlock binds the execution block to its slot and
// proposer.
func blockFromExecutionBlock(block *gethtypes.Block, slot uint64, proposerPubkey string) *blobscan.Block {
	entity := &blobscan.Block{
		Number:         block.NumberU64(),
		Hash:           block.Hash(),
		Timestamp:      block.Time(),
		Slot:           slot,
		ProposerPubkey: proposerPubkey,
		BlobGasUsed:    block.BlobGasUsed(),
		ExcessBlobGas:  block.ExcessBlobGas(),
	}
	return entity
}
