// Package commit implements the reversible units of ledger mutation.
//
// A commit is built from decoded node content for the apply path, or from
// persisted rows for the revert path. Construction only reads. Apply mutates
// entities through the block context cache and stages one row write; Revert is
// its exact inverse and must work with an empty cache in a fresh process.
package commit

import (
	"context"

	"github.com/goran-ethernal/TzIndexor/internal/cache"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/internal/store"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
)

// Commit is one reversible ledger mutation. Revert undoes exactly what Apply did.
type Commit interface {
	Apply(ctx context.Context) error
	Revert(ctx context.Context) error
}

// Queries are the store lookups commits need on the revert path.
type Queries interface {
	GetRevealsAtLevel(ctx context.Context, level int64) ([]*model.RevealOperation, error)
	GetNonceRevelationsAtLevel(ctx context.Context, level int64) ([]*model.NonceRevelationOperation, error)
	HasAppliedReveal(ctx context.Context, senderID, beforeID int64) (bool, error)
	HasRevealsBefore(ctx context.Context, level, beforeID int64) (bool, error)
	HasRevelationsBefore(ctx context.Context, level, beforeID int64) (bool, error)
	HasNonceRevelation(ctx context.Context, revealedLevel int64) (bool, error)
	GetBlock(ctx context.Context, level int64) (*model.Block, error)
}

var _ Queries = (*store.Store)(nil)

// BlockContext is everything the commits of one block pass share.
// It is created per pass and dropped when the pass transaction ends.
type BlockContext struct {
	Cache    *cache.Cache
	Queries  Queries
	Writer   *store.TxWriter
	Protocol *model.Protocol
	Log      *logger.Logger

	// Block is the block being applied or reverted. The block commit sets it on apply;
	// the pipeline loads it before a revert.
	Block *model.Block

	revealedNonces map[int64]struct{}
}

// NewBlockContext creates the context of one pass.
func NewBlockContext(c *cache.Cache, q Queries, w *store.TxWriter, proto *model.Protocol, log *logger.Logger) *BlockContext {
	return &BlockContext{
		Cache:          c,
		Queries:        q,
		Writer:         w,
		Protocol:       proto,
		Log:            log,
		revealedNonces: make(map[int64]struct{}),
	}
}

func (bc *BlockContext) baker(ctx context.Context) (*model.Account, error) {
	if bc.Block == nil {
		return nil, errNoBlock
	}
	if bc.Block.BakerID == nil {
		return nil, errNoBaker(bc.Block.Level)
	}
	return bc.Cache.GetAccount(ctx, *bc.Block.BakerID)
}

// noopCommit stands for operation kinds that carry no ledger effect here.
type noopCommit struct{}

func (noopCommit) Apply(context.Context) error  { return nil }
func (noopCommit) Revert(context.Context) error { return nil }
