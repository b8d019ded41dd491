package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/internal/store"
	"github.com/goran-ethernal/TzIndexor/pkg/config"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
)

const cacheSize = 32

// Registry resolves protocol constants by protocol hash.
// Returned values are shared and must not be mutated.
type Registry struct {
	store     *store.Store
	cache     *lru.Cache[string, *model.Protocol]
	bootstrap map[string]*model.Protocol
	log       *logger.Logger
}

// NewRegistry creates a registry backed by the protocols table.
func NewRegistry(s *store.Store, log *logger.Logger) *Registry {
	bootstrap := make(map[string]*model.Protocol, len(bootstrapProtocols))
	for i := range bootstrapProtocols {
		p := bootstrapProtocols[i]
		bootstrap[p.Hash] = &p
	}

	return &Registry{
		store:     s,
		cache:     lru.NewCache[string, *model.Protocol](cacheSize),
		bootstrap: bootstrap,
		log:       log.WithComponent(common.ComponentProtocols),
	}
}

// Seed stores the mainnet protocols with overrides applied. An override with a
// known code replaces that protocol; any other override is added.
func (r *Registry) Seed(ctx context.Context, overrides []config.ProtocolConfig) error {
	byCode := make(map[int]model.Protocol)
	for _, p := range MainnetProtocols() {
		byCode[p.Code] = p
	}

	for _, o := range overrides {
		if _, ok := r.bootstrap[o.Hash]; ok {
			return fmt.Errorf("protocol %s is a bootstrap protocol and cannot be overridden", o.Hash)
		}
		for code, p := range byCode {
			if p.Hash == o.Hash && code != o.Code {
				delete(byCode, code)
			}
		}
		byCode[o.Code] = model.Protocol{
			Code:             o.Code,
			Hash:             o.Hash,
			FirstLevel:       o.FirstLevel,
			BlocksPerCycle:   o.BlocksPerCycle,
			PreservedCycles:  o.PreservedCycles,
			BlockReward0:     o.BlockReward0,
			RevelationReward: o.RevelationReward,
		}
	}

	tw := r.store.OpenTx()
	for _, p := range byCode {
		tw.Upsert(store.TableProtocols, &p)
	}

	if err := tw.Execute(ctx); err != nil {
		return fmt.Errorf("failed to seed protocols: %w", err)
	}

	r.cache.Purge()
	r.log.Infof("Seeded %d protocols (%d overrides)", len(byCode), len(overrides))

	return nil
}

// Get returns the constants of the protocol with hash.
// An unknown hash is an ErrUnimplemented.
func (r *Registry) Get(ctx context.Context, hash string) (*model.Protocol, error) {
	if p, ok := r.bootstrap[hash]; ok {
		return p, nil
	}

	if p, ok := r.cache.Get(hash); ok {
		return p, nil
	}

	p, err := r.store.GetProtocol(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, common.Unimplementedf("unknown protocol %s", hash)
	}
	if err != nil {
		return nil, err
	}

	r.cache.Add(hash, p)
	r.log.Debugf("Loaded protocol %s (code %d)", hash, p.Code)

	return p, nil
}

// List returns the bootstrap protocols followed by every stored protocol.
func (r *Registry) List(ctx context.Context) ([]*model.Protocol, error) {
	stored, err := r.store.ListProtocols(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Protocol, 0, len(bootstrapProtocols)+len(stored))
	for i := range bootstrapProtocols {
		out = append(out, r.bootstrap[bootstrapProtocols[i].Hash])
	}

	return append(out, stored...), nil
}
