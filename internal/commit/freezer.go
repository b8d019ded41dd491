package commit

import (
	"context"
	"fmt"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
)

// skipRule returns how many leading block balance updates precede the freezer
// entries that settle the unfrozen cycle. The count mirrors the order in which
// the node reports block updates and must not be derived any other way.
type skipRule func(proto *model.Protocol, raw *rpc.Block) int

// protocols 1 to 6
func skipByEndorsements(_ *model.Protocol, raw *rpc.Block) int {
	if raw.PassLen(rpc.PassEndorsements) == 0 {
		return 2
	}
	return 3
}

// protocol 7
func skipByRewardAndEndorsements(proto *model.Protocol, raw *rpc.Block) int {
	if proto.BlockReward0 == 0 || raw.PassLen(rpc.PassEndorsements) == 0 {
		return 2
	}
	return 3
}

type freezerDelta struct {
	delegate string
	category string
	change   int64
}

// FreezerCommit releases the frozen deposits, rewards and fees of the cycle that
// leaves the preserved window at a cycle end.
type FreezerCommit struct {
	bc     *BlockContext
	cycle  int64
	deltas []freezerDelta

	applied bool
}

func newFreezerCommit(bc *BlockContext, raw *rpc.Block, skip skipRule, applied bool) (Commit, error) {
	if bc.Block == nil {
		return nil, errNoBlock
	}
	if !bc.Block.Events.Has(model.BlockEventsCycleEnd) {
		return noopCommit{}, nil
	}
	if raw == nil || raw.Metadata == nil {
		return nil, common.Retryablef("cycle end block %d has no balance updates", bc.Block.Level)
	}
	if raw.Hash != bc.Block.Hash {
		return nil, common.Invariantf("raw block %s does not match block %d %s", raw.Hash, bc.Block.Level, bc.Block.Hash)
	}

	proto := bc.Protocol
	cycle := proto.Cycle(bc.Block.Level) - proto.PreservedCycles

	c := &FreezerCommit{bc: bc, cycle: cycle, applied: applied}
	if cycle < 0 {
		return c, nil
	}

	updates := raw.Metadata.BalanceUpdates
	n := skip(proto, raw)
	if n > len(updates) {
		n = len(updates)
	}

	for _, u := range updates[n:] {
		if !u.IsFreezer() {
			continue
		}
		updateCycle, ok := u.FreezerCycle()
		if !ok || updateCycle != cycle {
			continue
		}

		switch u.Category {
		case rpc.FreezerDeposits, rpc.FreezerRewards, rpc.FreezerFees:
		default:
			return nil, common.Unimplementedf("freezer category %q in block %d", u.Category, bc.Block.Level)
		}
		if u.Delegate == "" {
			return nil, common.Invariantf("freezer update without delegate in block %d", bc.Block.Level)
		}

		c.deltas = append(c.deltas, freezerDelta{delegate: u.Delegate, category: u.Category, change: int64(u.Change)})
	}

	return c, nil
}

// Cycle returns the cycle being unfrozen.
func (c *FreezerCommit) Cycle() int64 {
	return c.cycle
}

// Len returns the number of freezer entries the commit settles.
func (c *FreezerCommit) Len() int {
	return len(c.deltas)
}

// Apply releases the frozen balances of the unfrozen cycle.
func (c *FreezerCommit) Apply(ctx context.Context) error {
	if c.applied {
		return errAppliedTwice("freezer")
	}
	if err := c.settle(ctx, 1); err != nil {
		return err
	}
	c.applied = true
	return nil
}

// Revert freezes the released balances again.
func (c *FreezerCommit) Revert(ctx context.Context) error {
	if !c.applied {
		return errNotApplied("freezer")
	}
	if err := c.settle(ctx, -1); err != nil {
		return err
	}
	c.applied = false
	return nil
}

func (c *FreezerCommit) settle(ctx context.Context, sign int64) error {
	for _, d := range c.deltas {
		delegate, err := c.bc.Cache.GetDelegate(ctx, d.delegate)
		if err != nil {
			return fmt.Errorf("freezer cycle %d: %w", c.cycle, err)
		}

		change := sign * d.change
		switch d.category {
		case rpc.FreezerDeposits:
			delegate.FrozenDeposits += change
		case rpc.FreezerRewards:
			delegate.FrozenRewards += change
			delegate.StakingBalance -= change
		case rpc.FreezerFees:
			delegate.FrozenFees += change
		}
	}
	return nil
}
