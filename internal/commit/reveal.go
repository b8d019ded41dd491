package commit

import (
	"context"
	"fmt"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/store"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
)

// revealVariant captures what changed in reveal handling across protocols.
type revealVariant struct {
	name       string
	statuses   map[string]model.OperationStatus
	recordsGas bool
}

var (
	// protocols 1 to 3 include only successful reveals
	revealV1 = revealVariant{
		name: "reveal/v1",
		statuses: map[string]model.OperationStatus{
			"applied": model.OperationStatusApplied,
		},
	}

	revealV2 = revealVariant{
		name: "reveal/v2",
		statuses: map[string]model.OperationStatus{
			"applied":     model.OperationStatusApplied,
			"backtracked": model.OperationStatusBacktracked,
			"failed":      model.OperationStatusFailed,
		},
		recordsGas: true,
	}
)

// RevealCommit binds a public key to the sender and charges the fee to the block baker.
type RevealCommit struct {
	bc      *BlockContext
	variant revealVariant

	sender string
	op     *model.RevealOperation

	applied bool
}

func (v revealVariant) fromContent(bc *BlockContext, op *rpc.Operation, content *rpc.Content) (Commit, error) {
	if bc.Block == nil {
		return nil, errNoBlock
	}
	if content.Metadata == nil || content.Metadata.OperationResult == nil {
		return nil, common.Retryablef("reveal %s has no operation result", op.Hash)
	}

	result := content.Metadata.OperationResult
	status, ok := v.statuses[result.Status]
	if !ok {
		return nil, common.Unimplementedf("%s: status %q of operation %s", v.name, result.Status, op.Hash)
	}

	if content.Source == "" || content.PublicKey == "" {
		return nil, common.Invariantf("reveal %s without source or public key", op.Hash)
	}
	if content.Fee < 0 || content.Counter < 0 {
		return nil, common.Invariantf("reveal %s with negative fee or counter", op.Hash)
	}

	row := &model.RevealOperation{
		OpHash:       op.Hash,
		Level:        bc.Block.Level,
		Timestamp:    bc.Block.Timestamp,
		PublicKey:    content.PublicKey,
		BakerFee:     int64(content.Fee),
		Counter:      int64(content.Counter),
		GasLimit:     int64(content.GasLimit),
		StorageLimit: int64(content.StorageLimit),
		Status:       status,
	}
	if v.recordsGas {
		row.GasUsed = int64(result.ConsumedGas)
	}

	return &RevealCommit{bc: bc, variant: v, sender: content.Source, op: row}, nil
}

func (v revealVariant) fromStore(ctx context.Context, bc *BlockContext) ([]Persisted, error) {
	rows, err := bc.Queries.GetRevealsAtLevel(ctx, bc.Block.Level)
	if err != nil {
		return nil, err
	}

	out := make([]Persisted, 0, len(rows))
	for _, row := range rows {
		out = append(out, Persisted{
			ID:     row.ID,
			Commit: &RevealCommit{bc: bc, variant: v, op: row, applied: true},
		})
	}
	return out, nil
}

// Apply charges the fee, binds the key of an applied reveal and records the operation.
func (c *RevealCommit) Apply(ctx context.Context) error {
	if c.applied {
		return errAppliedTwice(c.variant.name)
	}

	cache := c.bc.Cache
	block := c.bc.Block

	baker, err := c.bc.baker(ctx)
	if err != nil {
		return err
	}

	sender, err := cache.GetOrCreateAccount(ctx, c.sender, block.Level)
	if err != nil {
		return fmt.Errorf("reveal %s sender: %w", c.op.OpHash, err)
	}

	delegate, err := c.stakingTarget(ctx, sender)
	if err != nil {
		return err
	}

	if c.op.Status == model.OperationStatusApplied && sender.Revealed() && sender.PublicKey != c.op.PublicKey {
		return common.Invariantf("account %s already revealed a different key", sender.Address)
	}

	c.op.ID = cache.NextOperationID()
	c.op.SenderID = sender.ID

	fee := c.op.BakerFee
	sender.Balance -= fee
	if delegate != nil {
		delegate.StakingBalance -= fee
	}

	baker.FrozenFees += fee
	baker.Balance += fee
	baker.StakingBalance += fee

	sender.RevealsCount++
	sender.Operations |= model.OperationsReveals
	block.Operations |= model.OperationsReveals

	sender.Counter = max(sender.Counter, c.op.Counter)

	if c.op.Status == model.OperationStatusApplied {
		sender.PublicKey = c.op.PublicKey
	}

	c.bc.Writer.Insert(store.TableRevealOps, c.op)

	c.applied = true
	return nil
}

// Revert refunds the fee, unbinds the key when no applied reveal remains and deletes the row.
func (c *RevealCommit) Revert(ctx context.Context) error {
	if !c.applied {
		return errNotApplied(c.variant.name)
	}

	cache := c.bc.Cache
	block := c.bc.Block

	baker, err := c.bc.baker(ctx)
	if err != nil {
		return err
	}

	sender, err := cache.GetAccount(ctx, c.op.SenderID)
	if err != nil {
		return fmt.Errorf("reveal %s sender: %w", c.op.OpHash, err)
	}

	delegate, err := c.stakingTarget(ctx, sender)
	if err != nil {
		return err
	}

	fee := c.op.BakerFee
	sender.Balance += fee
	if delegate != nil {
		delegate.StakingBalance += fee
	}

	baker.FrozenFees -= fee
	baker.Balance -= fee
	baker.StakingBalance -= fee

	sender.RevealsCount--
	if sender.RevealsCount < 0 {
		return common.Invariantf("account %s reveals count underflow", sender.Address)
	}
	if sender.RevealsCount == 0 {
		sender.Operations &^= model.OperationsReveals
		sender.PublicKey = ""
	} else if c.op.Status == model.OperationStatusApplied {
		earlier, err := c.bc.Queries.HasAppliedReveal(ctx, sender.ID, c.op.ID)
		if err != nil {
			return err
		}
		if !earlier {
			sender.PublicKey = ""
		}
	}

	earlier, err := c.bc.Queries.HasRevealsBefore(ctx, block.Level, c.op.ID)
	if err != nil {
		return err
	}
	if !earlier {
		block.Operations &^= model.OperationsReveals
	}

	sender.Counter = min(sender.Counter, c.op.Counter-1)

	c.bc.Writer.Delete(store.TableRevealOps, c.op)

	if err := cache.ReleaseOperationID(c.op.ID); err != nil {
		return err
	}
	if _, err := cache.RemoveIfUnused(sender, block.Level); err != nil {
		return err
	}

	c.applied = false
	return nil
}

// stakingTarget is the account whose staking balance follows the sender's balance:
// the sender itself when it is a delegate, otherwise its delegate if any.
func (c *RevealCommit) stakingTarget(ctx context.Context, sender *model.Account) (*model.Account, error) {
	if sender.IsDelegate() {
		return sender, nil
	}
	return c.bc.Cache.ResolveDelegate(ctx, sender)
}
