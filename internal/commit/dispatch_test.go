package commit

import (
	"context"
	"testing"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
	"github.com/stretchr/testify/require"
)

func contextFor(code int) *BlockContext {
	return &BlockContext{Protocol: &model.Protocol{Code: code, BlocksPerCycle: 4096, PreservedCycles: 5}}
}

func TestDispatcher_CoversSupportedProtocols(t *testing.T) {
	require.NoError(t, NewDispatcher().Validate(FirstProtocol, LastProtocol))
}

func TestDispatcher_ValidateCoverage(t *testing.T) {
	tests := []struct {
		name       string
		strategies []Strategy
		errMsg     string
	}{
		{
			name:       "gap",
			strategies: []Strategy{{From: 1, To: 3}, {From: 5, To: 7}},
			errMsg:     "protocol 4 is not covered exactly once",
		},
		{
			name:       "overlap",
			strategies: []Strategy{{From: 1, To: 4}, {From: 4, To: 7}},
			errMsg:     "protocol 5 is not covered exactly once",
		},
		{
			name:       "short",
			strategies: []Strategy{{From: 1, To: 6}},
			errMsg:     "protocol 7 is not covered",
		},
		{
			name:       "empty range",
			strategies: []Strategy{{From: 1, To: 7}, {From: 9, To: 8}},
			errMsg:     "empty protocol range 9..8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher()
			for _, s := range tt.strategies {
				s.FromContent = noop
				d.Register("custom", s)
			}

			err := d.Validate(FirstProtocol, LastProtocol)
			require.ErrorContains(t, err, "custom")
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestDispatcher_RevealVariantByProtocol(t *testing.T) {
	d := NewDispatcher()

	for code := FirstProtocol; code <= LastProtocol; code++ {
		s, ok := d.strategy(rpc.KindReveal, code)
		require.True(t, ok)
		if code <= 3 {
			require.Equal(t, revealV1.name, s.Name, "protocol %d", code)
		} else {
			require.Equal(t, revealV2.name, s.Name, "protocol %d", code)
		}
	}
}

func TestDispatcher_ForContent(t *testing.T) {
	d := NewDispatcher()
	op := &rpc.Operation{Hash: "oo1"}

	c, err := d.ForContent(contextFor(3), op, &rpc.Content{Kind: rpc.KindTransaction})
	require.NoError(t, err)
	require.Equal(t, noopCommit{}, c)

	_, err = d.ForContent(contextFor(3), op, &rpc.Content{Kind: "smart_rollup_publish"})
	require.ErrorIs(t, err, common.ErrUnimplemented)

	_, err = d.ForContent(contextFor(LastProtocol+1), op, &rpc.Content{Kind: rpc.KindEndorsement})
	require.ErrorIs(t, err, common.ErrUnimplemented)
}

func TestDispatcher_ForStoreSortsAcrossKinds(t *testing.T) {
	var order []int64
	recording := func(ids ...int64) FromStore {
		return func(context.Context, *BlockContext) ([]Persisted, error) {
			out := make([]Persisted, len(ids))
			for i, id := range ids {
				out[i] = Persisted{ID: id, Commit: &recordingCommit{id: id, order: &order}}
			}
			return out, nil
		}
	}

	d := &Dispatcher{kinds: make(map[string][]Strategy)}
	d.Register("a", Strategy{Name: "a", From: 1, To: 7, FromContent: noop, FromStore: recording(1, 4)})
	d.Register("b", Strategy{Name: "b", From: 1, To: 7, FromContent: noop, FromStore: recording(3)})
	d.Register("c", Strategy{Name: "c", From: 1, To: 7, FromContent: noop, FromStore: recording(2, 5)})

	commits, err := d.ForStore(t.Context(), contextFor(5))
	require.NoError(t, err)

	for _, c := range commits {
		require.NoError(t, c.Revert(t.Context()))
	}
	require.Equal(t, []int64{5, 4, 3, 2, 1}, order)
}

type recordingCommit struct {
	id    int64
	order *[]int64
}

func (c *recordingCommit) Apply(context.Context) error { return nil }

func (c *recordingCommit) Revert(context.Context) error {
	*c.order = append(*c.order, c.id)
	return nil
}

func TestDispatcher_FreezerSelection(t *testing.T) {
	d := NewDispatcher()
	raw := &rpc.Block{Hash: "BLx", Metadata: &rpc.BlockMetadata{}}

	bc := contextFor(0)
	bc.Block = &model.Block{Level: 1, Hash: "BLx"}
	c, err := d.Freezer(bc, raw, false)
	require.NoError(t, err)
	require.Equal(t, noopCommit{}, c, "bootstrap protocols never settle")

	bc = contextFor(LastProtocol + 1)
	bc.Block = &model.Block{Level: 1, Hash: "BLx"}
	_, err = d.Freezer(bc, raw, false)
	require.ErrorIs(t, err, common.ErrUnimplemented)

	bc = contextFor(2)
	bc.Block = &model.Block{Level: 5, Hash: "BLx"}
	c, err = d.Freezer(bc, raw, false)
	require.NoError(t, err)
	require.Equal(t, noopCommit{}, c, "not a cycle end")
}

func TestFreezer_SkipRules(t *testing.T) {
	withEndorsement := &rpc.Block{Operations: [][]rpc.Operation{{{Hash: "oo1"}}, {}, {}, {}}}
	withoutEndorsement := &rpc.Block{Operations: [][]rpc.Operation{{}, {}, {}, {}}}

	rewarded := &model.Protocol{Code: 7, BlockReward0: 80_000_000}
	unrewarded := &model.Protocol{Code: 7}

	tests := []struct {
		name  string
		rule  skipRule
		proto *model.Protocol
		raw   *rpc.Block
		skip  int
	}{
		{"v1 endorsed", skipByEndorsements, &model.Protocol{Code: 1}, withEndorsement, 3},
		{"v1 not endorsed", skipByEndorsements, &model.Protocol{Code: 1}, withoutEndorsement, 2},
		{"v7 rewarded endorsed", skipByRewardAndEndorsements, rewarded, withEndorsement, 3},
		{"v7 rewarded not endorsed", skipByRewardAndEndorsements, rewarded, withoutEndorsement, 2},
		{"v7 no reward endorsed", skipByRewardAndEndorsements, unrewarded, withEndorsement, 2},
		{"no passes", skipByEndorsements, &model.Protocol{Code: 1}, &rpc.Block{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.skip, tt.rule(tt.proto, tt.raw))
		})
	}
}
