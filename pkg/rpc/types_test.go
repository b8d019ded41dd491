package rpc

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/stretchr/testify/require"
)

func TestInt64_UnmarshalJSON(t *testing.T) {
	var v struct {
		Quoted Int64 `json:"quoted"`
		Plain  Int64 `json:"plain"`
		Null   Int64 `json:"null"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"quoted":"-512000000","plain":42,"null":null}`), &v))
	require.Equal(t, Int64(-512000000), v.Quoted)
	require.Equal(t, Int64(42), v.Plain)
	require.Zero(t, v.Null)

	require.Error(t, json.Unmarshal([]byte(`{"quoted":"12tz"}`), &v))

	out, err := json.Marshal(Int64(1269))
	require.NoError(t, err)
	require.Equal(t, `"1269"`, string(out))
}

func TestDecodeBlock(t *testing.T) {
	data, err := os.ReadFile("testdata/block_cycle_end.json")
	require.NoError(t, err)

	block, err := DecodeBlock(data)
	require.NoError(t, err)
	require.NoError(t, block.Validate())

	require.Equal(t, int64(28672), block.Level())
	require.Equal(t, "tz1Baker111111111111111111111111111", block.Metadata.Baker)
	require.Equal(t, int64(4095), block.Metadata.Level.CyclePosition)
	require.Equal(t, 1, block.PassLen(PassEndorsements))
	require.Equal(t, 0, block.PassLen(PassAnonymous))
	require.Equal(t, 0, block.PassLen(42))

	updates := block.Metadata.BalanceUpdates
	require.Len(t, updates, 5)
	require.False(t, updates[0].IsFreezer())
	require.True(t, updates[1].IsFreezer())
	cycle, ok := updates[3].FreezerCycle()
	require.True(t, ok)
	require.Equal(t, int64(1), cycle)
	require.Equal(t, Int64(-500), updates[3].Change)

	reveal := block.Operations[PassManager][0].Contents[0]
	require.Equal(t, KindReveal, reveal.Kind)
	require.Equal(t, Int64(1269), reveal.Fee)
	require.Equal(t, Int64(6), reveal.Counter)
	require.Equal(t, "edpkSenderKey", reveal.PublicKey)
	require.Equal(t, "applied", reveal.Metadata.OperationResult.Status)
	require.Equal(t, Int64(10000), reveal.Metadata.OperationResult.ConsumedGas)

	header := block.HeaderWithHash()
	require.Equal(t, block.Hash, header.Hash)
}

func TestBalanceUpdate_FreezerCycle(t *testing.T) {
	var modern BalanceUpdate
	require.NoError(t, json.Unmarshal(
		[]byte(`{"kind":"freezer","category":"fees","delegate":"tz1x","cycle":212,"change":"10"}`), &modern))
	cycle, ok := modern.FreezerCycle()
	require.True(t, ok)
	require.Equal(t, int64(212), cycle)

	contract := BalanceUpdate{Kind: BalanceKindContract}
	_, ok = contract.FreezerCycle()
	require.False(t, ok)
}

func TestBlock_ValidateIncomplete(t *testing.T) {
	tests := []struct {
		name  string
		block Block
	}{
		{name: "no hash", block: Block{Protocol: "Pt", Metadata: &BlockMetadata{}}},
		{name: "no metadata", block: Block{Hash: "B", Protocol: "Pt"}},
		{
			name: "missing passes",
			block: Block{
				Hash: "B", Protocol: "Pt", Metadata: &BlockMetadata{},
				Header:     BlockHeader{Level: 10},
				Operations: [][]Operation{{}, {}},
			},
		},
		{
			name: "operation without receipt",
			block: Block{
				Hash: "B", Protocol: "Pt", Metadata: &BlockMetadata{},
				Header: BlockHeader{Level: 10},
				Operations: [][]Operation{{}, {}, {}, {
					{Hash: "oo", Contents: []Content{{Kind: KindReveal}}},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.block.Validate()
			require.ErrorIs(t, err, common.ErrRetryable)
		})
	}
}
