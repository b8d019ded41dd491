package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/pkg/config"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
	"go.etcd.io/bbolt"
)

var blocksBucket = []byte("blocks")

// ErrNotFound is returned when no block with the requested level and hash is archived.
var ErrNotFound = errors.New("block not archived")

type record struct {
	Hash  string     `cbor:"1,keyasint"`
	Block *rpc.Block `cbor:"2,keyasint"`
}

// Archive keeps decoded blocks keyed by level so a revert does not depend on
// the node still serving a block that left its main branch.
type Archive struct {
	db      *bbolt.DB
	retain  uint64
	encMode cbor.EncMode
	log     *logger.Logger
}

// Open opens or creates the archive file.
func Open(cfg config.ArchiveConfig, log *logger.Logger) (*Archive, error) {
	cfg.ApplyDefaults()

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create archive directory: %w", err)
		}
	}

	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: cfg.OpenTimeout.Duration})
	if err != nil {
		return nil, fmt.Errorf("could not open archive: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blocksBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create bucket %s: %w", blocksBucket, err)
	}

	encMode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Archive{
		db:      db,
		retain:  cfg.RetainBlocks,
		encMode: encMode,
		log:     log.WithComponent(common.ComponentArchive),
	}, nil
}

// Close closes the archive file.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Put stores raw under its level, replacing any block archived at that level.
func (a *Archive) Put(raw *rpc.Block) error {
	data, err := a.encMode.Marshal(record{Hash: raw.Hash, Block: raw})
	if err != nil {
		return fmt.Errorf("could not encode block %d: %w", raw.Level(), err)
	}

	err = a.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blocksBucket).Put(levelKey(raw.Level()), data)
	})
	if err != nil {
		return fmt.Errorf("could not archive block %d: %w", raw.Level(), err)
	}

	ArchivedBlocksInc()
	return nil
}

// Get returns the block archived at level if its hash matches.
func (a *Archive) Get(level int64, hash string) (*rpc.Block, error) {
	var rec record

	err := a.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(blocksBucket).Get(levelKey(level))
		if len(data) == 0 {
			return ErrNotFound
		}
		return cbor.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}

	if rec.Hash != hash || rec.Block == nil {
		return nil, ErrNotFound
	}

	return rec.Block, nil
}

// Delete removes the block archived at level, if any.
func (a *Archive) Delete(level int64) error {
	return a.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blocksBucket).Delete(levelKey(level))
	})
}

// Prune drops blocks more than the retention window below the newest archived level.
// A zero window keeps everything.
func (a *Archive) Prune(ctx context.Context) error {
	if a.retain == 0 {
		return nil
	}

	var pruned uint64

	err := a.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket(blocksBucket).Cursor()

		last, _ := c.Last()
		if last == nil {
			return nil
		}

		newest := binary.BigEndian.Uint64(last)
		if newest < a.retain {
			return nil
		}
		cutoff := levelKey(int64(newest - a.retain))

		for k, _ := c.First(); k != nil && string(k) < string(cutoff); k, _ = c.First() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.Delete(); err != nil {
				return err
			}
			pruned++
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("could not prune archive: %w", err)
	}

	if pruned > 0 {
		PrunedBlocksAdd(pruned)
		a.log.Debugf("Pruned %d archived blocks", pruned)
	}

	return nil
}

func levelKey(level int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(level))
	return key
}
