package reorg

import (
	"context"
	"fmt"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/internal/metrics"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
)

// ReorgDetector decides whether the stored head still belongs to the node's main branch.
// It never reverts anything; the syncer reacts to a ReorgDetectedError.
type ReorgDetector struct {
	node rpc.NodeClient
	log  *logger.Logger
}

// NewReorgDetector creates a new ReorgDetector.
func NewReorgDetector(node rpc.NodeClient, log *logger.Logger) *ReorgDetector {
	detector := &ReorgDetector{
		node: node,
		log:  log.WithComponent(common.ComponentReorgDetector),
	}

	metrics.ComponentHealthSet(common.ComponentReorgDetector, true)
	detector.log.Info("reorg detector initialized")

	return detector
}

// VerifyNext checks that next extends the stored head.
func (r *ReorgDetector) VerifyNext(state *model.AppState, next *rpc.Block) error {
	if state.Empty() {
		return nil
	}

	if next.Level() != state.Level+1 {
		return common.Invariantf("node served level %d for level %d", next.Level(), state.Level+1)
	}

	if next.Header.Predecessor != state.Hash {
		r.log.Warnf("reorg detected on next block: level=%d stored_hash=%s node_predecessor=%s",
			state.Level, state.Hash, next.Header.Predecessor)
		ReorgDetectedLog(state.Level)
		return NewReorgError(state.Level,
			fmt.Sprintf("stored_hash=%s next_predecessor=%s", state.Hash, next.Header.Predecessor))
	}

	return nil
}

// VerifyHead checks the stored head against the node once ingestion has caught up.
// A node head below the stored level, or a different block at the stored level, is a fork.
func (r *ReorgDetector) VerifyHead(ctx context.Context, state *model.AppState, head *rpc.BlockHeader) error {
	if state.Empty() {
		return nil
	}

	if head.Level < state.Level {
		r.log.Warnf("reorg detected: node head %d is below stored head %d", head.Level, state.Level)
		ReorgDetectedLog(state.Level)
		return NewReorgError(state.Level,
			fmt.Sprintf("node_head=%d stored_head=%d", head.Level, state.Level))
	}

	nodeHash := head.Hash
	if head.Level != state.Level {
		block, err := r.node.GetBlock(ctx, state.Level)
		if err != nil {
			return fmt.Errorf("failed to fetch block %d: %w", state.Level, err)
		}
		nodeHash = block.Hash
	}

	if nodeHash != state.Hash {
		r.log.Warnf("reorg detected at head: level=%d stored_hash=%s node_hash=%s",
			state.Level, state.Hash, nodeHash)
		ReorgDetectedLog(state.Level)
		return NewReorgError(state.Level,
			fmt.Sprintf("stored_hash=%s node_hash=%s", state.Hash, nodeHash))
	}

	return nil
}

// Close marks the detector unhealthy.
func (r *ReorgDetector) Close() {
	metrics.ComponentHealthSet(common.ComponentReorgDetector, false)
}
