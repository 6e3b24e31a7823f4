package beacon

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockId_RoundTrip(t *testing.T) {
	ids := []BlockId{
		HeadBlockId(),
		FinalizedBlockId(),
		NewSlotBlockId(0),
		NewSlotBlockId(8626176),
		NewHashBlockId(common.HexToHash("0xd8cb2e1ab39be5ad66a13b4a21b46a55b8a9425bdce4b1b2ec6ca3c0a8c8c28f")),
	}
	for _, id := range ids {
		t.Run(id.String(), func(t *testing.T) {
			parsed, err := ParseBlockId(id.String())
			require.NoError(t, err)
			assert.Equal(t, id, parsed)
		})
	}
}

func TestParseBlockId(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BlockId
		wantErr bool
	}{
		{name: "head", input: "head", want: HeadBlockId()},
		{name: "finalized", input: "finalized", want: FinalizedBlockId()},
		{name: "slot", input: "12345", want: NewSlotBlockId(12345)},
		{
			name:  "hash",
			input: "0x4f5e0e0eeb0cb0b4def0ac5ab7c9b87a4e47c1e5b9f6b2f0e55a7e31e6a05d50",
			want:  NewHashBlockId(common.HexToHash("0x4f5e0e0eeb0cb0b4def0ac5ab7c9b87a4e47c1e5b9f6b2f0e55a7e31e6a05d50")),
		},
		{name: "short hash", input: "0x1234", wantErr: true},
		{name: "bad hex", input: "0xzzzz", wantErr: true},
		{name: "garbage", input: "latest", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBlockId(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTopic_String(t *testing.T) {
	assert.Equal(t, "head", TopicHead.String())
	assert.Equal(t, "finalized_checkpoint", TopicFinalizedCheckpoint.String())
	assert.Equal(t, "chain_reorg", TopicChainReorg.String())
}

func TestEventData_Decoding(t *testing.T) {
	t.Run("head", func(t *testing.T) {
		raw := `{"slot":"827256","block":"0x56b683afa68170c775f3c9debc18a6a72caea9055584d037333a6fe43c8ceb83","state":"0x419e2965320d69c4213782dae73941de802a4f436408fddd6f68b671b3ff4e55","epoch_transition":false}`
		var data HeadEventData
		require.NoError(t, json.Unmarshal([]byte(raw), &data))
		assert.Equal(t, uint64(827256), data.Slot)
		assert.Equal(t, common.HexToHash("0x56b683afa68170c775f3c9debc18a6a72caea9055584d037333a6fe43c8ceb83"), data.Block)
	})
	t.Run("chain reorg", func(t *testing.T) {
		raw := `{"slot":"200","depth":"3","old_head_block":"0x0a00000000000000000000000000000000000000000000000000000000000000","new_head_block":"0x0b00000000000000000000000000000000000000000000000000000000000000","old_head_state":"0x00","new_head_state":"0x00","epoch":"6"}`
		var data ChainReorgEventData
		require.NoError(t, json.Unmarshal([]byte(raw), &data))
		assert.Equal(t, uint64(200), data.Slot)
		assert.Equal(t, uint64(3), data.Depth)
	})
	t.Run("finalized checkpoint", func(t *testing.T) {
		raw := `{"block":"0x9a2fefd2fdb57f74993c7780ea5b9030d2897b615b89f808011ca5aebed54eaf","state":"0x00","epoch":"2"}`
		var data FinalizedCheckpointEventData
		require.NoError(t, json.Unmarshal([]byte(raw), &data))
		assert.Equal(t, common.HexToHash("0x9a2fefd2fdb57f74993c7780ea5b9030d2897b615b89f808011ca5aebed54eaf"), data.Block)
	})
}

func TestBlock_DecodingToleratesUnknownFields(t *testing.T) {
	raw := `{"message":{"slot":"8626177","proposer_index":"747","parent_root":"0x0c00000000000000000000000000000000000000000000000000000000000000","state_root":"0x00","body":{"randao_reveal":"0x00","execution_payload":{"block_hash":"0x0d00000000000000000000000000000000000000000000000000000000000000","block_number":"19426587","gas_limit":"30000000"},"blob_kzg_commitments":["0xa1"]}}}`
	var block Block
	require.NoError(t, json.Unmarshal([]byte(raw), &block))
	assert.Equal(t, uint64(8626177), block.Message.Slot)
	assert.Equal(t, uint64(747), block.Message.ProposerIndex)
	require.NotNil(t, block.Message.Body.ExecutionPayload)
	assert.Equal(t, uint64(19426587), block.Message.Body.ExecutionPayload.BlockNumber)
	assert.Equal(t, []string{"0xa1"}, block.Message.Body.BlobKZGCommitments)
}
