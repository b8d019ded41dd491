package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/internal/reorg"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeChain serves the node's current branch and can switch branches mid-test.
type fakeChain struct {
	mu     sync.Mutex
	blocks []*rpc.Block
}

func (c *fakeChain) set(blocks []*rpc.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = blocks
}

func (c *fakeChain) head(context.Context) (*rpc.BlockHeader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[len(c.blocks)-1].HeaderWithHash(), nil
}

func (c *fakeChain) block(_ context.Context, level int64) (*rpc.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < 0 || level >= int64(len(c.blocks)) {
		return nil, common.Retryablef("block %d not found", level)
	}
	return c.blocks[level], nil
}

func (c *fakeChain) wire(h *harness) {
	h.node.EXPECT().GetHead(mock.Anything).RunAndReturn(c.head).Maybe()
	h.node.EXPECT().GetBlock(mock.Anything, mock.Anything).RunAndReturn(c.block).Maybe()
}

func newTestSyncer(h *harness, stopAt int64) *Syncer {
	log := logger.NewNopLogger()
	return NewSyncer(h.node, h.pipeline, reorg.NewReorgDetector(h.node, log), SyncerConfig{
		PollInterval:   time.Millisecond,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		StopAtLevel:    stopAt,
	}, log)
}

// forkChain shares levels 0 and 1 with buildChain and diverges from level 2.
func forkChain() []*rpc.Block {
	main := buildChain("")

	b2 := newBlock(2, blockHash(2, "b"), main[1].Hash, proto1, "tz1bakerB")
	addOperation(b2, rpc.PassManager, "ooCarol2", revealContent("tz1carol", "edpkCarol", 900, 1, "applied"))

	b3 := newBlock(3, blockHash(3, "b"), b2.Hash, proto1, "tz1bakerA")
	b4 := newBlock(4, blockHash(4, "b"), b3.Hash, proto1, "tz1bakerA")

	return []*rpc.Block{main[0], main[1], b2, b3, b4}
}

func TestSyncer_FollowsNode(t *testing.T) {
	h := newHarness(t)
	chain := &fakeChain{}
	chain.set(buildChain(""))
	chain.wire(h)

	require.NoError(t, newTestSyncer(h, 3).Run(t.Context()))

	head := h.head(t)
	require.Equal(t, int64(3), head.Level)
	require.Equal(t, blockHash(3, ""), head.Hash)
}

func TestSyncer_StepResults(t *testing.T) {
	h := newHarness(t)
	chain := &fakeChain{}
	chain.set(buildChain("")[:1])
	chain.wire(h)

	s := newTestSyncer(h, -1)

	res, err := s.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, StepApplied, res)

	res, err = s.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, StepIdle, res)
	require.Equal(t, "idle", res.String())
}

func TestSyncer_RevertsAbandonedBranch(t *testing.T) {
	h := newHarness(t)
	chain := &fakeChain{}
	chain.set(buildChain(""))
	chain.wire(h)

	require.NoError(t, newTestSyncer(h, 3).Run(t.Context()))
	require.Equal(t, blockHash(3, ""), h.head(t).Hash)

	chain.set(forkChain())

	s := newTestSyncer(h, 4)

	// the node is ahead, the next block does not extend the stored head
	res, err := s.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, StepReverted, res)
	require.Equal(t, int64(2), h.head(t).Level)

	res, err = s.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, StepReverted, res)
	require.Equal(t, int64(1), h.head(t).Level)

	require.NoError(t, s.Run(t.Context()))

	head := h.head(t)
	require.Equal(t, int64(4), head.Level)
	require.Equal(t, blockHash(4, "b"), head.Hash)

	_, err = h.store.GetAccountByAddress(t.Context(), "tz1alice")
	require.Error(t, err, "accounts of the abandoned branch are gone")
	require.Equal(t, "edpkCarol", h.account(t, "tz1carol").PublicKey)
}

func TestSyncer_RevertsWhenNodeHeadIsBehind(t *testing.T) {
	h := newHarness(t)
	chain := &fakeChain{}
	chain.set(buildChain(""))
	chain.wire(h)

	require.NoError(t, newTestSyncer(h, 3).Run(t.Context()))

	// the node now follows a shorter branch ending at 2b
	chain.set(forkChain()[:3])

	s := newTestSyncer(h, -1)

	res, err := s.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, StepReverted, res)
	require.Equal(t, int64(2), h.head(t).Level)

	res, err = s.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, StepReverted, res)

	res, err = s.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, StepApplied, res)
	require.Equal(t, blockHash(2, "b"), h.head(t).Hash)

	res, err = s.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, StepIdle, res)
}

func TestSyncer_RetriesTransientFailures(t *testing.T) {
	h := newHarness(t)
	chain := &fakeChain{}
	chain.set(buildChain(""))

	h.node.EXPECT().GetHead(mock.Anything).Return(nil, common.Retryablef("node is bootstrapping")).Twice()
	chain.wire(h)

	require.NoError(t, newTestSyncer(h, 3).Run(t.Context()))
	require.Equal(t, int64(3), h.head(t).Level)
}

func TestSyncer_StopsOnFatalError(t *testing.T) {
	h := newHarness(t)
	chain := &fakeChain{}

	blocks := buildChain("")
	addOperation(blocks[3], rpc.PassManager, "ooRollup", rpc.Content{Kind: "smart_rollup_publish", Metadata: &rpc.ContentMetadata{}})
	chain.set(blocks)
	chain.wire(h)

	err := newTestSyncer(h, -1).Run(t.Context())
	require.ErrorIs(t, err, common.ErrUnimplemented)
	require.Equal(t, int64(2), h.head(t).Level)
}

func TestSyncer_Cancellation(t *testing.T) {
	h := newHarness(t)
	chain := &fakeChain{}
	chain.set(buildChain("")[:2])
	chain.wire(h)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- newTestSyncer(h, -1).Run(ctx) }()

	require.Eventually(t, func() bool {
		state, err := h.store.GetAppState(t.Context())
		return err == nil && state.Level == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not stop")
	}
}

func TestSyncer_Backoff(t *testing.T) {
	s := &Syncer{cfg: SyncerConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}}

	for failures, ceiling := range map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		5: time.Second,
		9: time.Second,
	} {
		wait := s.backoff(failures)
		require.LessOrEqual(t, wait, ceiling, "failures %d", failures)
		require.GreaterOrEqual(t, wait, ceiling*4/5, "failures %d", failures)
	}
}
