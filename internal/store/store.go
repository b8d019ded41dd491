package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/russross/meddler"
)

const (
	TableAppState           = "app_state"
	TableProtocols          = "protocols"
	TableBlocks             = "blocks"
	TableAccounts           = "accounts"
	TableRevealOps          = "reveal_ops"
	TableNonceRevelationOps = "nonce_revelation_ops"
)

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("not found")

// Store provides point lookups over committed ledger state.
// Writes go through a TxWriter.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// New creates a Store over an open, migrated database.
func New(db *sql.DB, log *logger.Logger) *Store {
	return &Store{
		db:  db,
		log: log.WithComponent(common.ComponentStore),
	}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// OpenTx starts staging writes for one block pass.
func (s *Store) OpenTx() *TxWriter {
	return &TxWriter{db: s.db, log: s.log}
}

// GetAppState returns the ingestion head and id generators.
func (s *Store) GetAppState(ctx context.Context) (*model.AppState, error) {
	var state model.AppState
	if err := s.queryRow(ctx, &state, "SELECT * FROM app_state WHERE id = 1"); err != nil {
		return nil, fmt.Errorf("failed to load app state: %w", err)
	}
	return &state, nil
}

// GetBlock returns the block at level.
func (s *Store) GetBlock(ctx context.Context, level int64) (*model.Block, error) {
	var block model.Block
	if err := s.queryRow(ctx, &block, "SELECT * FROM blocks WHERE level = ?", level); err != nil {
		return nil, fmt.Errorf("failed to load block %d: %w", level, err)
	}
	return &block, nil
}

// GetBlocksFrom returns up to limit stored blocks at or above level, in ascending order.
func (s *Store) GetBlocksFrom(ctx context.Context, level int64, limit int) ([]*model.Block, error) {
	var blocks []*model.Block
	err := meddler.QueryAll(s.conn(ctx), &blocks,
		"SELECT * FROM blocks WHERE level >= ? ORDER BY level ASC LIMIT ?", level, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks from %d: %w", level, err)
	}
	return blocks, nil
}

// GetAccountByID returns the account with id.
func (s *Store) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	var acc model.Account
	if err := s.queryRow(ctx, &acc, "SELECT * FROM accounts WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", id, err)
	}
	return &acc, nil
}

// GetAccountByAddress returns the account with address.
func (s *Store) GetAccountByAddress(ctx context.Context, address string) (*model.Account, error) {
	var acc model.Account
	if err := s.queryRow(ctx, &acc, "SELECT * FROM accounts WHERE address = ?", address); err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	return &acc, nil
}

// GetProtocol returns the stored constants for a protocol hash.
func (s *Store) GetProtocol(ctx context.Context, hash string) (*model.Protocol, error) {
	var proto model.Protocol
	if err := s.queryRow(ctx, &proto, "SELECT * FROM protocols WHERE hash = ?", hash); err != nil {
		return nil, fmt.Errorf("failed to load protocol %s: %w", hash, err)
	}
	return &proto, nil
}

// ListProtocols returns every stored protocol ordered by code.
func (s *Store) ListProtocols(ctx context.Context) ([]*model.Protocol, error) {
	var protos []*model.Protocol
	if err := meddler.QueryAll(s.conn(ctx), &protos, "SELECT * FROM protocols ORDER BY code ASC"); err != nil {
		return nil, fmt.Errorf("failed to list protocols: %w", err)
	}
	return protos, nil
}

// GetRevealsAtLevel returns the reveals included at level in id order.
func (s *Store) GetRevealsAtLevel(ctx context.Context, level int64) ([]*model.RevealOperation, error) {
	var ops []*model.RevealOperation
	err := meddler.QueryAll(s.conn(ctx), &ops,
		"SELECT * FROM reveal_ops WHERE level = ? ORDER BY id ASC", level)
	if err != nil {
		return nil, fmt.Errorf("failed to load reveals at %d: %w", level, err)
	}
	return ops, nil
}

// GetNonceRevelationsAtLevel returns the seed nonce revelations included at level in id order.
func (s *Store) GetNonceRevelationsAtLevel(ctx context.Context, level int64) ([]*model.NonceRevelationOperation, error) {
	var ops []*model.NonceRevelationOperation
	err := meddler.QueryAll(s.conn(ctx), &ops,
		"SELECT * FROM nonce_revelation_ops WHERE level = ? ORDER BY id ASC", level)
	if err != nil {
		return nil, fmt.Errorf("failed to load nonce revelations at %d: %w", level, err)
	}
	return ops, nil
}

// HasAppliedReveal reports whether sender has an applied reveal with an id below beforeID.
func (s *Store) HasAppliedReveal(ctx context.Context, senderID, beforeID int64) (bool, error) {
	return s.exists(ctx,
		"SELECT 1 FROM reveal_ops WHERE sender_id = ? AND id < ? AND status = ? LIMIT 1",
		senderID, beforeID, model.OperationStatusApplied.String())
}

// HasRevealsBefore reports whether level holds a reveal with an id below beforeID.
func (s *Store) HasRevealsBefore(ctx context.Context, level, beforeID int64) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM reveal_ops WHERE level = ? AND id < ? LIMIT 1", level, beforeID)
}

// HasRevelationsBefore reports whether level holds a nonce revelation with an id below beforeID.
func (s *Store) HasRevelationsBefore(ctx context.Context, level, beforeID int64) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM nonce_revelation_ops WHERE level = ? AND id < ? LIMIT 1", level, beforeID)
}

// HasNonceRevelation reports whether the seed nonce of revealedLevel was already revealed.
func (s *Store) HasNonceRevelation(ctx context.Context, revealedLevel int64) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM nonce_revelation_ops WHERE revealed_level = ? LIMIT 1", revealedLevel)
}

func (s *Store) queryRow(ctx context.Context, dst any, query string, args ...any) error {
	err := meddler.QueryRow(s.conn(ctx), dst, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

// conn adapts the database handle so meddler queries honor ctx.
func (s *Store) conn(ctx context.Context) meddler.DB {
	return ctxDB{ctx: ctx, db: s.db}
}

type ctxDB struct {
	ctx context.Context
	db  *sql.DB
}

func (c ctxDB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(c.ctx, query, args...)
}

func (c ctxDB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(c.ctx, query, args...)
}

func (c ctxDB) QueryRow(query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(c.ctx, query, args...)
}
