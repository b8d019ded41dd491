package commit

import (
	"context"
	"fmt"
	"slices"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
)

// Supported protocol codes.
const (
	FirstProtocol = 1
	LastProtocol  = 7
)

// FromContent builds the apply commit of one operation content.
type FromContent func(bc *BlockContext, op *rpc.Operation, content *rpc.Content) (Commit, error)

// FromStore builds the revert commits of every row a kind persisted for bc.Block.
type FromStore func(ctx context.Context, bc *BlockContext) ([]Persisted, error)

// Persisted is a revert commit rebuilt from a stored operation row.
type Persisted struct {
	ID     int64
	Commit Commit
}

// Strategy is one implementation of an operation kind over an inclusive protocol code range.
type Strategy struct {
	Name        string
	From, To    int
	FromContent FromContent
	// FromStore is nil for kinds that persist nothing.
	FromStore FromStore
}

type freezerStrategy struct {
	from, to int
	skip     skipRule
}

// Dispatcher maps (operation kind, protocol code) to a commit implementation.
type Dispatcher struct {
	kinds   map[string][]Strategy
	freezer []freezerStrategy
}

// NewDispatcher returns the dispatch table of every supported protocol.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{kinds: make(map[string][]Strategy)}

	d.Register(rpc.KindReveal, Strategy{Name: revealV1.name, From: 1, To: 3,
		FromContent: revealV1.fromContent, FromStore: revealV1.fromStore})
	d.Register(rpc.KindReveal, Strategy{Name: revealV2.name, From: 4, To: 7,
		FromContent: revealV2.fromContent, FromStore: revealV2.fromStore})

	d.Register(rpc.KindSeedNonceRevelation, Strategy{Name: "seed_nonce_revelation", From: 1, To: 7,
		FromContent: nonceRevelationFromContent, FromStore: nonceRevelationsFromStore})

	for _, kind := range []string{
		rpc.KindEndorsement,
		rpc.KindTransaction,
		rpc.KindDelegation,
		rpc.KindOrigination,
		rpc.KindActivateAccount,
		rpc.KindBallot,
		rpc.KindProposals,
		rpc.KindDoubleBakingEvidence,
		rpc.KindDoubleEndorsementEvidence,
	} {
		d.Register(kind, Strategy{Name: kind + "/noop", From: 1, To: 7, FromContent: noop})
	}

	d.freezer = []freezerStrategy{
		{from: 1, to: 6, skip: skipByEndorsements},
		{from: 7, to: 7, skip: skipByRewardAndEndorsements},
	}

	return d
}

// Register adds a strategy for kind.
func (d *Dispatcher) Register(kind string, s Strategy) {
	d.kinds[kind] = append(d.kinds[kind], s)
	slices.SortFunc(d.kinds[kind], func(a, b Strategy) int { return a.From - b.From })
}

// Validate checks that every kind and the freezer are covered exactly once for
// each protocol code in [from, to].
func (d *Dispatcher) Validate(from, to int) error {
	for kind, strategies := range d.kinds {
		if err := checkCoverage(kind, from, to, len(strategies), func(i int) (int, int) {
			return strategies[i].From, strategies[i].To
		}); err != nil {
			return err
		}
	}

	return checkCoverage("freezer", from, to, len(d.freezer), func(i int) (int, int) {
		return d.freezer[i].from, d.freezer[i].to
	})
}

func checkCoverage(kind string, from, to, n int, rangeAt func(int) (int, int)) error {
	next := from
	for i := 0; i < n; i++ {
		lo, hi := rangeAt(i)
		if lo > hi {
			return fmt.Errorf("%s: empty protocol range %d..%d", kind, lo, hi)
		}
		if lo != next {
			return fmt.Errorf("%s: protocol %d is not covered exactly once", kind, next)
		}
		next = hi + 1
	}
	if next <= to {
		return fmt.Errorf("%s: protocol %d is not covered", kind, next)
	}
	return nil
}

func (d *Dispatcher) strategy(kind string, code int) (Strategy, bool) {
	for _, s := range d.kinds[kind] {
		if code >= s.From && code <= s.To {
			return s, true
		}
	}
	return Strategy{}, false
}

// ForContent builds the apply commit of content under the protocol of bc.
func (d *Dispatcher) ForContent(bc *BlockContext, op *rpc.Operation, content *rpc.Content) (Commit, error) {
	s, ok := d.strategy(content.Kind, bc.Protocol.Code)
	if !ok {
		return nil, common.Unimplementedf("operation kind %q under protocol %d", content.Kind, bc.Protocol.Code)
	}
	return s.FromContent(bc, op, content)
}

// ForStore rebuilds the revert commits of every operation persisted for bc.Block,
// ordered by descending id, the reverse of application order.
func (d *Dispatcher) ForStore(ctx context.Context, bc *BlockContext) ([]Commit, error) {
	var all []Persisted

	kinds := make([]string, 0, len(d.kinds))
	for kind := range d.kinds {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)

	for _, kind := range kinds {
		s, ok := d.strategy(kind, bc.Protocol.Code)
		if !ok || s.FromStore == nil {
			continue
		}
		persisted, err := s.FromStore(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		all = append(all, persisted...)
	}

	slices.SortFunc(all, func(a, b Persisted) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})

	commits := make([]Commit, len(all))
	for i, p := range all {
		commits[i] = p.Commit
	}
	return commits, nil
}

// Freezer builds the settlement commit of bc.Block from its decoded form.
// Blocks without the cycle end event get a no-op.
func (d *Dispatcher) Freezer(bc *BlockContext, raw *rpc.Block, applied bool) (Commit, error) {
	code := bc.Protocol.Code
	if code < FirstProtocol {
		return noopCommit{}, nil
	}

	for _, f := range d.freezer {
		if code >= f.from && code <= f.to {
			return newFreezerCommit(bc, raw, f.skip, applied)
		}
	}

	return nil, common.Unimplementedf("freezer under protocol %d", code)
}

func noop(*BlockContext, *rpc.Operation, *rpc.Content) (Commit, error) {
	return noopCommit{}, nil
}
