// Package ingest drives the ledger: it applies the next block or reverts the
// last one, each as a single transaction, and follows the node with a sync loop.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/archive"
	"github.com/goran-ethernal/TzIndexor/internal/cache"
	"github.com/goran-ethernal/TzIndexor/internal/commit"
	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/db"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/internal/metrics"
	"github.com/goran-ethernal/TzIndexor/internal/store"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
)

// ProtocolSource resolves protocol constants by hash.
type ProtocolSource interface {
	Get(ctx context.Context, hash string) (*model.Protocol, error)
}

// BlockArchive keeps decoded blocks for the revert path.
type BlockArchive interface {
	Put(raw *rpc.Block) error
	Get(level int64, hash string) (*rpc.Block, error)
	Delete(level int64) error
}

var _ BlockArchive = (*archive.Archive)(nil)

// Pipeline applies and reverts single blocks. Passes are serialized by the caller;
// the pipeline only holds the shared maintenance lock while a pass runs.
type Pipeline struct {
	store       *store.Store
	protocols   ProtocolSource
	dispatcher  *commit.Dispatcher
	archive     BlockArchive
	node        rpc.NodeClient
	maintenance db.Maintenance
	opts        cache.Options
	log         *logger.Logger
}

// NewPipeline creates a pipeline. archive may be nil, in which case the revert
// path always fetches cycle end blocks from the node.
func NewPipeline(
	s *store.Store,
	protocols ProtocolSource,
	dispatcher *commit.Dispatcher,
	blockArchive BlockArchive,
	node rpc.NodeClient,
	maintenance db.Maintenance,
	opts cache.Options,
	log *logger.Logger,
) *Pipeline {
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	return &Pipeline{
		store:       s,
		protocols:   protocols,
		dispatcher:  dispatcher,
		archive:     blockArchive,
		node:        node,
		maintenance: maintenance,
		opts:        opts,
		log:         log.WithComponent(common.ComponentPipeline),
	}
}

// Head returns the committed application state.
func (p *Pipeline) Head(ctx context.Context) (*model.AppState, error) {
	return p.store.GetAppState(ctx)
}

// ApplyBlock applies raw on top of the current head in one transaction.
// Nothing is persisted when any commit fails.
func (p *Pipeline) ApplyBlock(ctx context.Context, raw *rpc.Block) error {
	unlock := p.maintenance.AcquireOperationLock()
	defer unlock()

	start := time.Now()

	if err := raw.Validate(); err != nil {
		return err
	}

	proto, err := p.protocols.Get(ctx, raw.Protocol)
	if err != nil {
		return fmt.Errorf("block %d: %w", raw.Level(), err)
	}

	bc, err := p.newPass(ctx, proto)
	if err != nil {
		return err
	}

	blockCommit, err := commit.NewBlockCommit(bc, raw)
	if err != nil {
		return err
	}
	if err := blockCommit.Apply(ctx); err != nil {
		return fmt.Errorf("block %d: %w", raw.Level(), err)
	}

	counts := make(map[string]int)
	for pass := range raw.Operations {
		for i := range raw.Operations[pass] {
			op := &raw.Operations[pass][i]
			for j := range op.Contents {
				content := &op.Contents[j]

				c, err := p.dispatcher.ForContent(bc, op, content)
				if err != nil {
					return fmt.Errorf("block %d operation %s content %d: %w", raw.Level(), op.Hash, j, err)
				}
				if err := c.Apply(ctx); err != nil {
					return fmt.Errorf("block %d operation %s content %d: %w", raw.Level(), op.Hash, j, err)
				}
				counts[content.Kind]++
			}
		}
	}

	freezer, err := p.dispatcher.Freezer(bc, raw, false)
	if err != nil {
		return fmt.Errorf("block %d freezer: %w", raw.Level(), err)
	}
	if err := freezer.Apply(ctx); err != nil {
		return fmt.Errorf("block %d freezer: %w", raw.Level(), err)
	}

	if err := bc.Cache.Flush(bc.Writer); err != nil {
		return fmt.Errorf("block %d: %w", raw.Level(), err)
	}

	if p.archive != nil {
		if err := p.archive.Put(raw); err != nil {
			return err
		}
	}

	if err := bc.Writer.Execute(ctx); err != nil {
		return fmt.Errorf("block %d: %w", raw.Level(), err)
	}

	for kind, n := range counts {
		metrics.CommitsAdd(kind, metrics.DirectionApply, n)
	}
	settled := settledEntries(freezer)
	if settled > 0 {
		metrics.FreezerSettlementsAdd(metrics.DirectionApply, settled)
	}
	metrics.BlockPassLog(metrics.DirectionApply, time.Since(start))
	metrics.HeadLevelSet(raw.Level())

	p.log.Debugf("Applied block %d %s (protocol %d, %d contents, %d freezer entries) in %v",
		raw.Level(), raw.Hash, proto.Code, sumCounts(counts), settled, time.Since(start))

	return nil
}

// RevertLastBlock reverts the current head in one transaction and returns the reverted block.
func (p *Pipeline) RevertLastBlock(ctx context.Context) (*model.Block, error) {
	unlock := p.maintenance.AcquireOperationLock()
	defer unlock()

	start := time.Now()

	state, err := p.store.GetAppState(ctx)
	if err != nil {
		return nil, err
	}
	if state.Empty() {
		return nil, common.Invariantf("no block to revert")
	}

	c := cache.New(p.store, state, p.opts)
	block, err := c.GetBlock(ctx, state.Level)
	if err != nil {
		return nil, err
	}

	proto, err := p.protocols.Get(ctx, block.Protocol)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", block.Level, err)
	}

	bc := commit.NewBlockContext(c, p.store, p.store.OpenTx(), proto, p.log)
	bc.Block = block

	settled := 0
	if block.Events.Has(model.BlockEventsCycleEnd) {
		raw, err := p.rawBlock(ctx, block)
		if err != nil {
			return nil, err
		}

		freezer, err := p.dispatcher.Freezer(bc, raw, true)
		if err != nil {
			return nil, fmt.Errorf("block %d freezer: %w", block.Level, err)
		}
		if err := freezer.Revert(ctx); err != nil {
			return nil, fmt.Errorf("block %d freezer: %w", block.Level, err)
		}
		settled = settledEntries(freezer)
	}

	commits, err := p.dispatcher.ForStore(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", block.Level, err)
	}

	counts := make(map[string]int)
	for _, cm := range commits {
		if err := cm.Revert(ctx); err != nil {
			return nil, fmt.Errorf("block %d: %w", block.Level, err)
		}
		counts[commitKind(cm)]++
	}

	blockCommit, err := commit.BlockCommitFromStore(bc)
	if err != nil {
		return nil, err
	}
	if err := blockCommit.Revert(ctx); err != nil {
		return nil, fmt.Errorf("block %d: %w", block.Level, err)
	}

	if err := c.Flush(bc.Writer); err != nil {
		return nil, fmt.Errorf("block %d: %w", block.Level, err)
	}
	if err := bc.Writer.Execute(ctx); err != nil {
		return nil, fmt.Errorf("block %d: %w", block.Level, err)
	}

	if p.archive != nil {
		if err := p.archive.Delete(block.Level); err != nil {
			p.log.Warnf("Failed to drop archived block %d: %v", block.Level, err)
		}
	}

	for kind, n := range counts {
		metrics.CommitsAdd(kind, metrics.DirectionRevert, n)
	}
	if settled > 0 {
		metrics.FreezerSettlementsAdd(metrics.DirectionRevert, settled)
	}
	metrics.BlockPassLog(metrics.DirectionRevert, time.Since(start))
	metrics.HeadLevelSet(c.State().Level)

	p.log.Infof("Reverted block %d %s (%d operations, %d freezer entries) in %v",
		block.Level, block.Hash, len(commits), settled, time.Since(start))

	return block, nil
}

// RevertTo reverts blocks until the head is at level and returns how many were reverted.
// A negative level reverts everything.
func (p *Pipeline) RevertTo(ctx context.Context, level int64) (int, error) {
	reverted := 0

	for {
		state, err := p.store.GetAppState(ctx)
		if err != nil {
			return reverted, err
		}
		if state.Empty() || state.Level <= level {
			return reverted, nil
		}

		if err := ctx.Err(); err != nil {
			return reverted, err
		}

		if _, err := p.RevertLastBlock(ctx); err != nil {
			return reverted, err
		}
		reverted++
	}
}

func (p *Pipeline) newPass(ctx context.Context, proto *model.Protocol) (*commit.BlockContext, error) {
	state, err := p.store.GetAppState(ctx)
	if err != nil {
		return nil, err
	}

	c := cache.New(p.store, state, p.opts)
	return commit.NewBlockContext(c, p.store, p.store.OpenTx(), proto, p.log), nil
}

// rawBlock returns the decoded form of a stored block, from the archive when it
// still holds it and from the node otherwise.
func (p *Pipeline) rawBlock(ctx context.Context, block *model.Block) (*rpc.Block, error) {
	if p.archive != nil {
		raw, err := p.archive.Get(block.Level, block.Hash)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, archive.ErrNotFound) {
			p.log.Warnf("Failed to read archived block %d: %v", block.Level, err)
		}
	}

	p.log.Debugf("Fetching block %d %s from the node", block.Level, block.Hash)

	raw, err := p.node.GetBlockByHash(ctx, block.Hash)
	if err != nil {
		return nil, fmt.Errorf("block %d %s: %w", block.Level, block.Hash, err)
	}
	return raw, nil
}

func settledEntries(c commit.Commit) int {
	if f, ok := c.(*commit.FreezerCommit); ok {
		return f.Len()
	}
	return 0
}

func commitKind(c commit.Commit) string {
	switch c.(type) {
	case *commit.RevealCommit:
		return rpc.KindReveal
	case *commit.NonceRevelationCommit:
		return rpc.KindSeedNonceRevelation
	default:
		return "other"
	}
}

func sumCounts(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
