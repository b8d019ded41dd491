package rpc

import "context"

// NodeClient is the contract with the Tezos node.
// Implementations classify transient failures with common.ErrRetryable.
type NodeClient interface {
	// GetHead returns the header of the node's current head.
	GetHead(ctx context.Context) (*BlockHeader, error)

	// GetBlock returns the fully decoded block at level on the node's current branch.
	GetBlock(ctx context.Context, level int64) (*Block, error)

	// GetBlockByHash returns the fully decoded block with the given hash, on any branch the node still knows.
	GetBlockByHash(ctx context.Context, hash string) (*Block, error)

	// Close releases idle connections.
	Close()
}
