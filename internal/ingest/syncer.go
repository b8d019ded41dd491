package ingest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/internal/metrics"
	"github.com/goran-ethernal/TzIndexor/internal/reorg"
	"github.com/goran-ethernal/TzIndexor/pkg/config"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
)

// Detector checks the stored head against the node.
type Detector interface {
	VerifyNext(state *model.AppState, next *rpc.Block) error
	VerifyHead(ctx context.Context, state *model.AppState, head *rpc.BlockHeader) error
}

var _ Detector = (*reorg.ReorgDetector)(nil)

// SyncerConfig tunes the sync loop.
type SyncerConfig struct {
	// PollInterval is the wait once the head has caught up with the node.
	PollInterval time.Duration
	// InitialBackoff and MaxBackoff bound the wait after a retryable failure.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// StopAtLevel stops the loop once the head reaches it. Negative means follow forever.
	StopAtLevel int64
}

// SyncerConfigFromNode derives the loop timing from the node configuration.
func SyncerConfigFromNode(cfg config.NodeConfig) SyncerConfig {
	cfg.ApplyDefaults()

	return SyncerConfig{
		PollInterval:   cfg.PollInterval.Duration,
		InitialBackoff: cfg.Retry.InitialBackoff.Duration,
		MaxBackoff:     cfg.Retry.MaxBackoff.Duration,
		StopAtLevel:    -1,
	}
}

// Syncer follows the node: it applies the next block while the node is ahead and
// reverts the head while it is on a branch the node abandoned.
type Syncer struct {
	node     rpc.NodeClient
	pipeline *Pipeline
	detector Detector
	cfg      SyncerConfig
	log      *logger.Logger

	reorgDepth int
}

// NewSyncer creates a new Syncer.
func NewSyncer(node rpc.NodeClient, pipeline *Pipeline, detector Detector, cfg SyncerConfig, log *logger.Logger) *Syncer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	return &Syncer{
		node:     node,
		pipeline: pipeline,
		detector: detector,
		cfg:      cfg,
		log:      log.WithComponent(common.ComponentSyncer),
	}
}

// Run loops until ctx is cancelled, the stop level is reached, or a fatal error occurs.
// Retryable failures are retried with exponential backoff and never returned.
func (s *Syncer) Run(ctx context.Context) error {
	s.log.Info("Starting sync loop")
	metrics.ComponentHealthSet(common.ComponentSyncer, true)
	defer metrics.ComponentHealthSet(common.ComponentSyncer, false)

	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("Sync loop cancelled")
			return err
		}

		res, err := s.Step(ctx)
		switch {
		case err == nil:
			failures = 0

		case ctx.Err() != nil:
			s.log.Info("Sync loop cancelled")
			return ctx.Err()

		case common.IsRetryable(err):
			failures++
			wait := s.backoff(failures)
			metrics.ErrorsInc(common.ComponentSyncer, "retryable")
			s.log.Warnf("Retryable failure (attempt %d), retrying in %v: %v", failures, wait, err)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue

		default:
			metrics.FatalErrorsInc()
			metrics.ErrorsInc(common.ComponentSyncer, "fatal")
			s.log.Errorf("Fatal ingestion error: %v", err)
			return err
		}

		switch res {
		case StepStopped:
			s.log.Infof("Reached stop level %d", s.cfg.StopAtLevel)
			return nil
		case StepIdle:
			if err := sleep(ctx, s.cfg.PollInterval); err != nil {
				return err
			}
		}
	}
}

// StepResult tells what one sync step did.
type StepResult int

const (
	StepIdle StepResult = iota
	StepApplied
	StepReverted
	StepStopped
)

func (r StepResult) String() string {
	switch r {
	case StepIdle:
		return "idle"
	case StepApplied:
		return "applied"
	case StepReverted:
		return "reverted"
	case StepStopped:
		return "stopped"
	default:
		return fmt.Sprintf("StepResult(%d)", int(r))
	}
}

// Step does at most one block pass: revert the head when it left the node's main
// branch, apply the next block when the node is ahead, or nothing.
func (s *Syncer) Step(ctx context.Context) (StepResult, error) {
	state, err := s.pipeline.Head(ctx)
	if err != nil {
		return StepIdle, err
	}

	if s.cfg.StopAtLevel >= 0 && state.Level >= s.cfg.StopAtLevel {
		return StepStopped, nil
	}

	head, err := s.node.GetHead(ctx)
	if err != nil {
		return StepIdle, err
	}
	metrics.NodeHeadLevelSet(head.Level)

	if head.Level <= state.Level {
		if err := s.detector.VerifyHead(ctx, state, head); err != nil {
			return s.handleReorg(ctx, err)
		}
		return StepIdle, nil
	}

	next, err := s.node.GetBlock(ctx, state.Level+1)
	if err != nil {
		return StepIdle, err
	}

	if err := s.detector.VerifyNext(state, next); err != nil {
		return s.handleReorg(ctx, err)
	}

	if err := s.pipeline.ApplyBlock(ctx, next); err != nil {
		return StepIdle, err
	}

	if s.reorgDepth > 0 {
		s.log.Infof("Fork resolved after reverting %d blocks", s.reorgDepth)
		reorg.ReorgResolvedLog(s.reorgDepth)
		s.reorgDepth = 0
	}

	if next.Level()%1000 == 0 || next.Level() == head.Level {
		s.log.Infof("Applied block %d %s (node head %d)", next.Level(), next.Hash, head.Level)
	}

	return StepApplied, nil
}

func (s *Syncer) handleReorg(ctx context.Context, err error) (StepResult, error) {
	reorgErr, ok := reorg.AsReorg(err)
	if !ok {
		return StepIdle, err
	}

	s.log.Warnf("Reverting head: %v", reorgErr)

	block, err := s.pipeline.RevertLastBlock(ctx)
	if err != nil {
		return StepIdle, fmt.Errorf("failed to revert block %d: %w", reorgErr.Level, err)
	}

	s.reorgDepth++
	s.log.Infof("Reverted block %d %s", block.Level, block.Hash)

	return StepReverted, nil
}

// backoff doubles the wait per consecutive failure up to MaxBackoff, with up to 20% jitter.
func (s *Syncer) backoff(failures int) time.Duration {
	wait := s.cfg.InitialBackoff
	for i := 1; i < failures && wait < s.cfg.MaxBackoff; i++ {
		wait *= 2
	}
	if wait > s.cfg.MaxBackoff {
		wait = s.cfg.MaxBackoff
	}

	jitter := time.Duration(rand.Int64N(int64(wait)/5 + 1))
	return wait - jitter
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
