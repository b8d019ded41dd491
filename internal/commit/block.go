package commit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/store"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
)

// BlockCommit creates the block row, credits the baker with the block and
// advances the application head.
type BlockCommit struct {
	bc *BlockContext

	level       int64
	hash        string
	predecessor string
	timestamp   time.Time
	baker       string
	cycleEnd    bool

	applied bool
}

// NewBlockCommit reads what the block commit needs from a decoded block.
func NewBlockCommit(bc *BlockContext, raw *rpc.Block) (*BlockCommit, error) {
	if raw.Metadata == nil {
		return nil, common.Retryablef("block %s has no metadata", raw.Hash)
	}

	c := &BlockCommit{
		bc:          bc,
		level:       raw.Level(),
		hash:        raw.Hash,
		predecessor: raw.Header.Predecessor,
		timestamp:   raw.Header.Timestamp.UTC(),
		baker:       raw.Metadata.Baker,
	}

	// bootstrap protocols have no cycles
	if bpc := bc.Protocol.BlocksPerCycle; bpc > 0 && c.level > 0 {
		c.cycleEnd = bc.Protocol.IsCycleEnd(c.level)
		if lvl := raw.Metadata.Level; lvl != nil && (lvl.CyclePosition == bpc-1) != c.cycleEnd {
			return nil, common.Invariantf("block %d reports cycle position %d, protocol %d expects %d",
				c.level, lvl.CyclePosition, bc.Protocol.Code, (c.level-1)%bpc)
		}
	}

	return c, nil
}

// BlockCommitFromStore builds the revert commit of the block already loaded into bc.
func BlockCommitFromStore(bc *BlockContext) (*BlockCommit, error) {
	if bc.Block == nil {
		return nil, errNoBlock
	}

	return &BlockCommit{
		bc:        bc,
		level:     bc.Block.Level,
		hash:      bc.Block.Hash,
		timestamp: bc.Block.Timestamp,
		cycleEnd:  bc.Block.Events.Has(model.BlockEventsCycleEnd),
		applied:   true,
	}, nil
}

// Apply stores the block on top of the head and credits its baker.
func (c *BlockCommit) Apply(ctx context.Context) error {
	if c.applied {
		return errAppliedTwice("block")
	}

	state := c.bc.Cache.State()
	if state.Level+1 != c.level {
		return common.Invariantf("block %d applied on top of head %d", c.level, state.Level)
	}
	if !state.Empty() && c.predecessor != state.Hash {
		return common.Invariantf("block %d predecessor %s does not match head %s", c.level, c.predecessor, state.Hash)
	}

	block := &model.Block{
		Level:     c.level,
		Hash:      c.hash,
		Timestamp: c.timestamp,
		ProtoCode: c.bc.Protocol.Code,
		Protocol:  c.bc.Protocol.Hash,
	}
	if c.cycleEnd {
		block.Events |= model.BlockEventsCycleEnd
	}

	if c.baker != "" {
		baker, err := c.bc.Cache.GetOrCreateDelegate(ctx, c.baker, c.level)
		if err != nil {
			return fmt.Errorf("block %d baker: %w", c.level, err)
		}
		baker.BlocksCount++
		baker.Operations |= model.OperationsBlocks
		block.BakerID = &baker.ID
	}

	if err := c.bc.Cache.AddBlock(block); err != nil {
		return err
	}
	c.bc.Block = block

	state.Level = block.Level
	state.Hash = block.Hash
	state.Protocol = block.Protocol
	state.Timestamp = block.Timestamp

	c.applied = true
	return nil
}

// Revert deletes the head block and moves the head back to its predecessor.
func (c *BlockCommit) Revert(ctx context.Context) error {
	if !c.applied {
		return errNotApplied("block")
	}

	state := c.bc.Cache.State()
	if state.Level != c.level || state.Hash != c.hash {
		return common.Invariantf("block %d %s reverted while head is %d %s", c.level, c.hash, state.Level, state.Hash)
	}

	block, err := c.bc.Cache.GetBlock(ctx, c.level)
	if err != nil {
		return err
	}
	if block.Operations != model.OperationsNone {
		return common.Invariantf("block %d still has operations %d", c.level, block.Operations)
	}

	if block.BakerID != nil {
		baker, err := c.bc.Cache.GetAccount(ctx, *block.BakerID)
		if err != nil {
			return fmt.Errorf("block %d baker: %w", c.level, err)
		}
		baker.BlocksCount--
		if baker.BlocksCount < 0 {
			return common.Invariantf("baker %s blocks count underflow", baker.Address)
		}
		if baker.BlocksCount == 0 {
			baker.Operations &^= model.OperationsBlocks
		}
		c.bc.Cache.DemoteIfIdle(baker)
		if _, err := c.bc.Cache.RemoveIfUnused(baker, c.level); err != nil {
			return err
		}
	}

	if err := c.bc.Cache.RemoveBlock(ctx, c.level); err != nil {
		return err
	}

	if err := c.restoreHead(ctx); err != nil {
		return err
	}

	c.applied = false
	return nil
}

func (c *BlockCommit) restoreHead(ctx context.Context) error {
	state := c.bc.Cache.State()

	if c.level == 0 {
		state.Level, state.Hash, state.Protocol, state.Timestamp = -1, "", "", time.Unix(0, 0).UTC()
		return nil
	}

	prev, err := c.bc.Queries.GetBlock(ctx, c.level-1)
	if errors.Is(err, store.ErrNotFound) {
		return common.Invariantf("block %d has no stored predecessor", c.level)
	}
	if err != nil {
		return err
	}

	state.Level, state.Hash, state.Protocol, state.Timestamp = prev.Level, prev.Hash, prev.Protocol, prev.Timestamp
	return nil
}
