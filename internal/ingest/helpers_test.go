package ingest

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/archive"
	"github.com/goran-ethernal/TzIndexor/internal/cache"
	"github.com/goran-ethernal/TzIndexor/internal/commit"
	"github.com/goran-ethernal/TzIndexor/internal/db"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/internal/migrations"
	"github.com/goran-ethernal/TzIndexor/internal/protocol"
	"github.com/goran-ethernal/TzIndexor/internal/rpc/mocks"
	"github.com/goran-ethernal/TzIndexor/internal/store"
	"github.com/goran-ethernal/TzIndexor/pkg/config"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
	"github.com/russross/meddler"
	"github.com/stretchr/testify/require"
)

const (
	genesisProto  = "PrihK96nBAFSxVL1GLJTVhu9YnzkMFiBeuJRPA8NwuZVZCE1L6i"
	activateProto = "Ps9mPmXaRzmzk35gbAYNCAw6UGdvQZGpgL6ZY4DjR5ZpMm3dRr1"
	proto1        = "PtCJ7pwoxe8JasnHY8YonnLYjcVHmhiARPJvqcC6VfHT5s8k8sY"
	proto4        = "Pt24m4xiPbLDhVgVfABUjirbmda3yohdN82Sp9FeuAXJ4eV9otd"
	proto7        = "PsCARTHAGazKbHtnKfLzQg3kms52kSRpgnDY982a9oYsSXRLQEb"

	blocksPerCycle = 4096
)

var baseTime = time.Date(2018, 6, 30, 16, 7, 32, 0, time.UTC)

type harness struct {
	store    *store.Store
	registry *protocol.Registry
	archive  *archive.Archive
	node     *mocks.NodeClient
	pipeline *Pipeline
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	noArchive bool
	opts      cache.Options
}

func withoutArchive() harnessOption {
	return func(c *harnessConfig) { c.noArchive = true }
}

func withStrictBalances() harnessOption {
	return func(c *harnessConfig) { c.opts.StrictBalances = true }
}

func newHarness(t *testing.T, options ...harnessOption) *harness {
	t.Helper()

	var hc harnessConfig
	for _, o := range options {
		o(&hc)
	}

	dir := t.TempDir()
	log := logger.NewNopLogger()

	sqlDB, err := db.NewSQLiteDB(filepath.Join(dir, "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, migrations.RunMigrationsDB(log, sqlDB))

	s := store.New(sqlDB, log)

	registry := protocol.NewRegistry(s, log)
	require.NoError(t, registry.Seed(t.Context(), nil))

	dispatcher := commit.NewDispatcher()
	require.NoError(t, dispatcher.Validate(commit.FirstProtocol, commit.LastProtocol))

	h := &harness{
		store:    s,
		registry: registry,
		node:     mocks.NewNodeClient(t),
	}

	var blockArchive BlockArchive
	if !hc.noArchive {
		h.archive, err = archive.Open(config.ArchiveConfig{Path: filepath.Join(dir, "archive.bolt")}, log)
		require.NoError(t, err)
		t.Cleanup(func() { h.archive.Close() })
		blockArchive = h.archive
	}

	h.pipeline = NewPipeline(s, registry, dispatcher, blockArchive, h.node, nil, hc.opts, log)
	return h
}

// seedHead stores a block and moves the head onto it without applying anything,
// so tests can start at an arbitrary level.
func (h *harness) seedHead(t *testing.T, level int64, hash, protoHash string) {
	t.Helper()

	proto, err := h.registry.Get(t.Context(), protoHash)
	require.NoError(t, err)

	state, err := h.store.GetAppState(t.Context())
	require.NoError(t, err)

	block := &model.Block{
		Level:     level,
		Hash:      hash,
		Timestamp: blockTime(level),
		ProtoCode: proto.Code,
		Protocol:  proto.Hash,
	}
	state.Level, state.Hash, state.Protocol, state.Timestamp = level, hash, proto.Hash, block.Timestamp

	tw := h.store.OpenTx()
	tw.Insert(store.TableBlocks, block)
	tw.Update(store.TableAppState, state)
	require.NoError(t, tw.Execute(t.Context()))
}

// seedAccount stores acc under the next account id.
func (h *harness) seedAccount(t *testing.T, acc *model.Account) *model.Account {
	t.Helper()

	state, err := h.store.GetAppState(t.Context())
	require.NoError(t, err)

	state.AccountCounter++
	acc.ID = state.AccountCounter

	tw := h.store.OpenTx()
	tw.Insert(store.TableAccounts, acc)
	tw.Update(store.TableAppState, state)
	require.NoError(t, tw.Execute(t.Context()))

	return acc
}

func (h *harness) account(t *testing.T, address string) *model.Account {
	t.Helper()

	acc, err := h.store.GetAccountByAddress(t.Context(), address)
	require.NoError(t, err)
	return acc
}

func (h *harness) head(t *testing.T) *model.AppState {
	t.Helper()

	state, err := h.store.GetAppState(t.Context())
	require.NoError(t, err)
	return state
}

type ledgerSnapshot struct {
	State       *model.AppState
	Blocks      []*model.Block
	Accounts    []*model.Account
	Reveals     []*model.RevealOperation
	Revelations []*model.NonceRevelationOperation
}

func (h *harness) snapshot(t *testing.T) ledgerSnapshot {
	t.Helper()

	var snap ledgerSnapshot
	snap.State = h.head(t)

	sqlDB := h.store.DB()
	require.NoError(t, meddler.QueryAll(sqlDB, &snap.Blocks, "SELECT * FROM blocks ORDER BY level"))
	require.NoError(t, meddler.QueryAll(sqlDB, &snap.Accounts, "SELECT * FROM accounts ORDER BY id"))
	require.NoError(t, meddler.QueryAll(sqlDB, &snap.Reveals, "SELECT * FROM reveal_ops ORDER BY id"))
	require.NoError(t, meddler.QueryAll(sqlDB, &snap.Revelations, "SELECT * FROM nonce_revelation_ops ORDER BY id"))

	return snap
}

func blockTime(level int64) time.Time {
	return baseTime.Add(time.Duration(level) * time.Minute)
}

func blockHash(level int64, branch string) string {
	return fmt.Sprintf("BL%s%d", branch, level)
}

// newBlock builds a block with empty validation passes. Levels 0 and 1 get no passes.
func newBlock(level int64, hash, predecessor, protoHash, baker string) *rpc.Block {
	b := &rpc.Block{
		Protocol: protoHash,
		ChainID:  "NetXdQprcVkpaWU",
		Hash:     hash,
		Header: rpc.BlockHeader{
			Level:       level,
			Predecessor: predecessor,
			Timestamp:   blockTime(level),
		},
		Metadata: &rpc.BlockMetadata{
			Protocol: protoHash,
			Baker:    baker,
		},
	}

	if level > 1 {
		b.Metadata.Level = &rpc.LevelInfo{
			Level:         level,
			Cycle:         (level - 1) / blocksPerCycle,
			CyclePosition: (level - 1) % blocksPerCycle,
		}
		b.Operations = make([][]rpc.Operation, rpc.ValidationPasses)
		for i := range b.Operations {
			b.Operations[i] = []rpc.Operation{}
		}
	}

	return b
}

func addOperation(b *rpc.Block, pass int, hash string, contents ...rpc.Content) {
	b.Operations[pass] = append(b.Operations[pass], rpc.Operation{
		Protocol: b.Protocol,
		Hash:     hash,
		Contents: contents,
	})
}

func revealContent(source, publicKey string, fee, counter int64, status string) rpc.Content {
	return rpc.Content{
		Kind:         rpc.KindReveal,
		Source:       source,
		Fee:          rpc.Int64(fee),
		Counter:      rpc.Int64(counter),
		GasLimit:     10000,
		StorageLimit: 0,
		PublicKey:    publicKey,
		Metadata: &rpc.ContentMetadata{
			OperationResult: &rpc.OperationResult{Status: status, ConsumedGas: 10000},
		},
	}
}

func nonceRevelationContent(level int64) rpc.Content {
	return rpc.Content{
		Kind:     rpc.KindSeedNonceRevelation,
		Level:    level,
		Nonce:    "a3f1",
		Metadata: &rpc.ContentMetadata{},
	}
}

func endorsementContent(level int64) rpc.Content {
	return rpc.Content{
		Kind:     rpc.KindEndorsement,
		Level:    level,
		Metadata: &rpc.ContentMetadata{},
	}
}

func freezerUpdate(category, delegate string, cycle, change int64) rpc.BalanceUpdate {
	c := rpc.Int64(cycle)
	return rpc.BalanceUpdate{
		Kind:     rpc.BalanceKindFreezer,
		Category: category,
		Delegate: delegate,
		Cycle:    &c,
		Change:   rpc.Int64(change),
	}
}

func contractUpdate(contract string, change int64) rpc.BalanceUpdate {
	return rpc.BalanceUpdate{
		Kind:     rpc.BalanceKindContract,
		Contract: contract,
		Change:   rpc.Int64(change),
	}
}
