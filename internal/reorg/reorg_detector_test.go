package reorg

import (
	"errors"
	"testing"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/internal/rpc/mocks"
	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/goran-ethernal/TzIndexor/pkg/rpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func block(level int64, hash, predecessor string) *rpc.Block {
	return &rpc.Block{
		Hash:   hash,
		Header: rpc.BlockHeader{Level: level, Predecessor: predecessor},
	}
}

func TestReorgDetector_VerifyNext(t *testing.T) {
	node := mocks.NewNodeClient(t)
	detector := NewReorgDetector(node, logger.NewNopLogger())

	state := &model.AppState{Level: 10, Hash: "BL10"}

	t.Run("extends head", func(t *testing.T) {
		require.NoError(t, detector.VerifyNext(state, block(11, "BL11", "BL10")))
	})

	t.Run("predecessor mismatch", func(t *testing.T) {
		err := detector.VerifyNext(state, block(11, "BL11b", "BL10b"))
		reorgErr, ok := AsReorg(err)
		require.True(t, ok)
		require.Equal(t, int64(10), reorgErr.Level)
		require.Contains(t, reorgErr.Error(), "next_predecessor=BL10b")
	})

	t.Run("wrong level", func(t *testing.T) {
		err := detector.VerifyNext(state, block(12, "BL12", "BL11"))
		require.ErrorIs(t, err, common.ErrInvariant)
	})

	t.Run("empty state accepts anything", func(t *testing.T) {
		require.NoError(t, detector.VerifyNext(&model.AppState{Level: -1}, block(0, "BLgenesis", "")))
	})
}

func TestReorgDetector_VerifyHead(t *testing.T) {
	state := &model.AppState{Level: 10, Hash: "BL10"}

	t.Run("same head", func(t *testing.T) {
		node := mocks.NewNodeClient(t)
		detector := NewReorgDetector(node, logger.NewNopLogger())

		require.NoError(t, detector.VerifyHead(t.Context(), state, &rpc.BlockHeader{Level: 10, Hash: "BL10"}))
	})

	t.Run("same level different hash", func(t *testing.T) {
		node := mocks.NewNodeClient(t)
		detector := NewReorgDetector(node, logger.NewNopLogger())

		err := detector.VerifyHead(t.Context(), state, &rpc.BlockHeader{Level: 10, Hash: "BL10b"})
		reorgErr, ok := AsReorg(err)
		require.True(t, ok)
		require.Equal(t, int64(10), reorgErr.Level)
	})

	t.Run("node head below stored head", func(t *testing.T) {
		node := mocks.NewNodeClient(t)
		detector := NewReorgDetector(node, logger.NewNopLogger())

		err := detector.VerifyHead(t.Context(), state, &rpc.BlockHeader{Level: 9, Hash: "BL9"})
		_, ok := AsReorg(err)
		require.True(t, ok)
	})

	t.Run("node ahead on same branch", func(t *testing.T) {
		node := mocks.NewNodeClient(t)
		node.EXPECT().GetBlock(mock.Anything, int64(10)).Return(block(10, "BL10", "BL9"), nil).Once()
		detector := NewReorgDetector(node, logger.NewNopLogger())

		require.NoError(t, detector.VerifyHead(t.Context(), state, &rpc.BlockHeader{Level: 12, Hash: "BL12"}))
	})

	t.Run("node ahead on another branch", func(t *testing.T) {
		node := mocks.NewNodeClient(t)
		node.EXPECT().GetBlock(mock.Anything, int64(10)).Return(block(10, "BL10b", "BL9"), nil).Once()
		detector := NewReorgDetector(node, logger.NewNopLogger())

		err := detector.VerifyHead(t.Context(), state, &rpc.BlockHeader{Level: 12, Hash: "BL12b"})
		_, ok := AsReorg(err)
		require.True(t, ok)
	})

	t.Run("node error is passed through", func(t *testing.T) {
		node := mocks.NewNodeClient(t)
		nodeErr := common.Retryablef("node busy")
		node.EXPECT().GetBlock(mock.Anything, int64(10)).Return(nil, nodeErr).Once()
		detector := NewReorgDetector(node, logger.NewNopLogger())

		err := detector.VerifyHead(t.Context(), state, &rpc.BlockHeader{Level: 12, Hash: "BL12"})
		require.True(t, errors.Is(err, common.ErrRetryable))
		_, ok := AsReorg(err)
		require.False(t, ok)
	})
}
