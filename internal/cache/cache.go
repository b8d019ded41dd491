// Package cache holds the working set of one block pass: the accounts and the
// block a pass touches, the application state and its id generators.
//
// A Cache lives for exactly one apply or revert. Commits read and mutate
// entities through it, so a later commit sees what an earlier commit of the
// same pass did. Flush turns the tracked changes into staged store writes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/store"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
)

// Reader is the read side of the store the cache falls back to.
type Reader interface {
	GetAccountByID(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByAddress(ctx context.Context, address string) (*model.Account, error)
	GetBlock(ctx context.Context, level int64) (*model.Block, error)
}

type entityState int

const (
	stateLoaded entityState = iota
	stateCreated
	stateRemoved
	stateCreatedRemoved
)

type accountEntry struct {
	account  *model.Account
	original *model.Account
	state    entityState
}

type blockEntry struct {
	block    *model.Block
	original *model.Block
	state    entityState
}

// Options tune consistency checks done at flush time.
type Options struct {
	// StrictBalances rejects a flush leaving any touched account with a negative balance.
	StrictBalances bool
}

// Cache is not safe for concurrent use; a pass is single threaded.
type Cache struct {
	reader Reader
	opts   Options

	state    *model.AppState
	original model.AppState

	accounts  map[int64]*accountEntry
	byAddress map[string]int64
	blocks    map[int64]*blockEntry
}

// New creates the cache of one pass over the committed state.
func New(reader Reader, state *model.AppState, opts Options) *Cache {
	s := *state
	return &Cache{
		reader:    reader,
		opts:      opts,
		state:     &s,
		original:  *state,
		accounts:  make(map[int64]*accountEntry),
		byAddress: make(map[string]int64),
		blocks:    make(map[int64]*blockEntry),
	}
}

// State returns the mutable application state of the pass.
func (c *Cache) State() *model.AppState {
	return c.state
}

// GetAccount returns the live account with id. A missing account is an invariant violation:
// ids only come from persisted references.
func (c *Cache) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	if e, ok := c.accounts[id]; ok {
		if e.removed() {
			return nil, common.Invariantf("account %d was removed in this pass", id)
		}
		return e.account, nil
	}

	acc, err := c.reader.GetAccountByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, common.Invariantf("account %d does not exist", id)
	}
	if err != nil {
		return nil, err
	}

	return c.track(acc), nil
}

// FindAccount returns the live account with address, or store.ErrNotFound.
func (c *Cache) FindAccount(ctx context.Context, address string) (*model.Account, error) {
	if id, ok := c.byAddress[address]; ok {
		e := c.accounts[id]
		if e.removed() {
			return nil, store.ErrNotFound
		}
		return e.account, nil
	}

	acc, err := c.reader.GetAccountByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	return c.track(acc), nil
}

// GetOrCreateAccount returns the account with address, creating a user account
// first seen at level when it does not exist.
func (c *Cache) GetOrCreateAccount(ctx context.Context, address string, level int64) (*model.Account, error) {
	if address == "" {
		return nil, common.Invariantf("empty account address at level %d", level)
	}

	acc, err := c.FindAccount(ctx, address)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if id, ok := c.byAddress[address]; ok && c.accounts[id].removed() {
		return nil, common.Invariantf("account %s re-created after removal in the same pass", address)
	}

	acc = &model.Account{
		ID:         c.nextAccountID(),
		Address:    address,
		Type:       model.AccountTypeUser,
		FirstLevel: level,
	}
	c.accounts[acc.ID] = &accountEntry{account: acc, state: stateCreated}
	c.byAddress[address] = acc.ID

	return acc, nil
}

// GetOrCreateDelegate returns the account with address as a delegate. A user account
// is promoted; DemoteIfIdle undoes the promotion.
func (c *Cache) GetOrCreateDelegate(ctx context.Context, address string, level int64) (*model.Account, error) {
	acc, err := c.GetOrCreateAccount(ctx, address, level)
	if err != nil {
		return nil, err
	}
	acc.Type = model.AccountTypeDelegate
	return acc, nil
}

// GetDelegate returns an existing delegate by address.
func (c *Cache) GetDelegate(ctx context.Context, address string) (*model.Account, error) {
	acc, err := c.FindAccount(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, common.Invariantf("delegate %s does not exist", address)
	}
	if err != nil {
		return nil, err
	}
	if !acc.IsDelegate() {
		return nil, common.Invariantf("account %s is not a delegate", address)
	}
	return acc, nil
}

// ResolveDelegate returns the delegate acc delegates to, or nil.
func (c *Cache) ResolveDelegate(ctx context.Context, acc *model.Account) (*model.Account, error) {
	if acc.DelegateID == nil {
		return nil, nil
	}

	delegate, err := c.GetAccount(ctx, *acc.DelegateID)
	if err != nil {
		return nil, fmt.Errorf("delegate of %s: %w", acc.Address, err)
	}
	if !delegate.IsDelegate() {
		return nil, common.Invariantf("account %s delegates to non-delegate %s", acc.Address, delegate.Address)
	}

	return delegate, nil
}

// DemoteIfIdle turns a delegate with no baking state back into a user.
func (c *Cache) DemoteIfIdle(acc *model.Account) {
	if acc.IsDelegate() && !acc.HasBakingState() {
		acc.Type = model.AccountTypeUser
	}
}

// RemoveIfUnused removes acc when nothing references it any more: it has no
// operations left and either never used its counter or was first seen at level,
// the level being reverted. Removal releases the account id, which must be the
// most recently allocated one.
func (c *Cache) RemoveIfUnused(acc *model.Account, level int64) (bool, error) {
	if acc.Operations != model.OperationsNone || acc.HasBakingState() || acc.Revealed() {
		return false, nil
	}
	if acc.Counter > 0 && acc.FirstLevel != level {
		return false, nil
	}

	e, ok := c.accounts[acc.ID]
	if !ok || e.account != acc {
		return false, common.Invariantf("account %d is not tracked by this pass", acc.ID)
	}

	if err := c.releaseAccountID(acc.ID); err != nil {
		return false, err
	}

	if e.state == stateCreated {
		e.state = stateCreatedRemoved
	} else {
		e.state = stateRemoved
	}

	return true, nil
}

// NextOperationID allocates the id of a new operation row.
func (c *Cache) NextOperationID() int64 {
	c.state.OperationCounter++
	return c.state.OperationCounter
}

// ReleaseOperationID returns id to the generator. Ids are released in reverse allocation order.
func (c *Cache) ReleaseOperationID(id int64) error {
	if id != c.state.OperationCounter {
		return common.Invariantf("operation id %d released out of order, last allocated is %d",
			id, c.state.OperationCounter)
	}
	c.state.OperationCounter--
	return nil
}

func (c *Cache) nextAccountID() int64 {
	c.state.AccountCounter++
	return c.state.AccountCounter
}

func (c *Cache) releaseAccountID(id int64) error {
	if id != c.state.AccountCounter {
		return common.Invariantf("account id %d released out of order, last allocated is %d",
			id, c.state.AccountCounter)
	}
	c.state.AccountCounter--
	return nil
}

// AddBlock registers a block created by this pass.
func (c *Cache) AddBlock(b *model.Block) error {
	if _, ok := c.blocks[b.Level]; ok {
		return common.Invariantf("block %d already exists", b.Level)
	}
	c.blocks[b.Level] = &blockEntry{block: b, state: stateCreated}
	return nil
}

// GetBlock returns the block at level.
func (c *Cache) GetBlock(ctx context.Context, level int64) (*model.Block, error) {
	if e, ok := c.blocks[level]; ok {
		if e.state == stateRemoved || e.state == stateCreatedRemoved {
			return nil, common.Invariantf("block %d was removed in this pass", level)
		}
		return e.block, nil
	}

	b, err := c.reader.GetBlock(ctx, level)
	if errors.Is(err, store.ErrNotFound) {
		return nil, common.Invariantf("block %d does not exist", level)
	}
	if err != nil {
		return nil, err
	}

	c.blocks[level] = &blockEntry{block: b, original: b.Clone(), state: stateLoaded}
	return b, nil
}

// RemoveBlock schedules the block at level for deletion.
func (c *Cache) RemoveBlock(ctx context.Context, level int64) error {
	if _, err := c.GetBlock(ctx, level); err != nil {
		return err
	}

	e := c.blocks[level]
	if e.state == stateCreated {
		e.state = stateCreatedRemoved
	} else {
		e.state = stateRemoved
	}
	return nil
}

// Flush stages every tracked change on tw: account and block deletes, then
// inserts, then updates, then the application state. Unchanged entities are skipped.
func (c *Cache) Flush(tw *store.TxWriter) error {
	ids := make([]int64, 0, len(c.accounts))
	for id := range c.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var inserts, updates []*model.Account
	for i := len(ids) - 1; i >= 0; i-- {
		e := c.accounts[ids[i]]
		if e.state == stateRemoved {
			tw.Delete(store.TableAccounts, e.original)
		}
	}
	for _, id := range ids {
		e := c.accounts[id]
		switch e.state {
		case stateCreated:
			inserts = append(inserts, e.account)
		case stateLoaded:
			if !reflect.DeepEqual(e.account, e.original) {
				updates = append(updates, e.account)
			}
		}
	}

	for _, acc := range append(inserts, updates...) {
		if c.opts.StrictBalances && acc.Balance < 0 {
			return common.Invariantf("account %s balance is negative: %d", acc.Address, acc.Balance)
		}
	}

	for _, acc := range inserts {
		tw.Insert(store.TableAccounts, acc)
	}
	for _, acc := range updates {
		tw.Update(store.TableAccounts, acc)
	}

	levels := make([]int64, 0, len(c.blocks))
	for level := range c.blocks {
		levels = append(levels, level)
	}
	slices.Sort(levels)

	for _, level := range levels {
		e := c.blocks[level]
		switch e.state {
		case stateRemoved:
			tw.Delete(store.TableBlocks, e.original)
		case stateCreated:
			tw.Insert(store.TableBlocks, e.block)
		case stateLoaded:
			if !reflect.DeepEqual(e.block, e.original) {
				tw.Update(store.TableBlocks, e.block)
			}
		}
	}

	if *c.state != c.original {
		tw.Update(store.TableAppState, c.state)
	}

	return nil
}

func (c *Cache) track(acc *model.Account) *model.Account {
	c.accounts[acc.ID] = &accountEntry{account: acc, original: acc.Clone(), state: stateLoaded}
	c.byAddress[acc.Address] = acc.ID
	return acc
}

func (e *accountEntry) removed() bool {
	return e.state == stateRemoved || e.state == stateCreatedRemoved
}
