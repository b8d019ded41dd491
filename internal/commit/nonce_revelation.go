package commit

import (
	"context"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/store"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
)

// NonceRevelationCommit records a seed nonce revelation and credits the block
// baker with the protocol's revelation reward, which is frozen.
type NonceRevelationCommit struct {
	bc *BlockContext
	op *model.NonceRevelationOperation

	applied bool
}

func nonceRevelationFromContent(bc *BlockContext, op *rpc.Operation, content *rpc.Content) (Commit, error) {
	if bc.Block == nil {
		return nil, errNoBlock
	}
	if content.Level <= 0 || content.Level >= bc.Block.Level {
		return nil, common.Invariantf("nonce revelation %s for level %d in block %d",
			op.Hash, content.Level, bc.Block.Level)
	}

	return &NonceRevelationCommit{
		bc: bc,
		op: &model.NonceRevelationOperation{
			OpHash:        op.Hash,
			Level:         bc.Block.Level,
			Timestamp:     bc.Block.Timestamp,
			RevealedLevel: content.Level,
			Reward:        bc.Protocol.RevelationReward,
		},
	}, nil
}

func nonceRevelationsFromStore(ctx context.Context, bc *BlockContext) ([]Persisted, error) {
	rows, err := bc.Queries.GetNonceRevelationsAtLevel(ctx, bc.Block.Level)
	if err != nil {
		return nil, err
	}

	out := make([]Persisted, 0, len(rows))
	for _, row := range rows {
		out = append(out, Persisted{
			ID:     row.ID,
			Commit: &NonceRevelationCommit{bc: bc, op: row, applied: true},
		})
	}
	return out, nil
}

// Apply rewards the baker and records the revelation.
func (c *NonceRevelationCommit) Apply(ctx context.Context) error {
	if c.applied {
		return errAppliedTwice("nonce revelation")
	}

	if _, dup := c.bc.revealedNonces[c.op.RevealedLevel]; dup {
		return common.Invariantf("nonce of level %d revealed twice in block %d", c.op.RevealedLevel, c.op.Level)
	}
	revealed, err := c.bc.Queries.HasNonceRevelation(ctx, c.op.RevealedLevel)
	if err != nil {
		return err
	}
	if revealed {
		return common.Invariantf("nonce of level %d already revealed", c.op.RevealedLevel)
	}

	baker, err := c.bc.baker(ctx)
	if err != nil {
		return err
	}

	c.op.ID = c.bc.Cache.NextOperationID()
	c.op.BakerID = baker.ID

	baker.FrozenRewards += c.op.Reward
	baker.Balance += c.op.Reward
	baker.StakingBalance += c.op.Reward

	baker.RevelationsCount++
	baker.Operations |= model.OperationsRevelations
	c.bc.Block.Operations |= model.OperationsRevelations

	c.bc.Writer.Insert(store.TableNonceRevelationOps, c.op)
	c.bc.revealedNonces[c.op.RevealedLevel] = struct{}{}

	c.applied = true
	return nil
}

// Revert takes the reward back and deletes the revelation row.
func (c *NonceRevelationCommit) Revert(ctx context.Context) error {
	if !c.applied {
		return errNotApplied("nonce revelation")
	}

	baker, err := c.bc.Cache.GetAccount(ctx, c.op.BakerID)
	if err != nil {
		return err
	}

	baker.FrozenRewards -= c.op.Reward
	baker.Balance -= c.op.Reward
	baker.StakingBalance -= c.op.Reward

	baker.RevelationsCount--
	if baker.RevelationsCount < 0 {
		return common.Invariantf("baker %s revelations count underflow", baker.Address)
	}
	if baker.RevelationsCount == 0 {
		baker.Operations &^= model.OperationsRevelations
	}

	earlier, err := c.bc.Queries.HasRevelationsBefore(ctx, c.op.Level, c.op.ID)
	if err != nil {
		return err
	}
	if !earlier {
		c.bc.Block.Operations &^= model.OperationsRevelations
	}

	c.bc.Writer.Delete(store.TableNonceRevelationOps, c.op)
	delete(c.bc.revealedNonces, c.op.RevealedLevel)

	if err := c.bc.Cache.ReleaseOperationID(c.op.ID); err != nil {
		return err
	}

	c.applied = false
	return nil
}
