package memory

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/launch-bundler/internal/storage"
)

func launchRecord(created time.Time) *storage.LaunchRecord {
	return &storage.LaunchRecord{
		ID:            uuid.New(),
		TokenAddress:  common.HexToAddress("0x1000000000000000000000000000000000000001"),
		TokenName:     "TEST",
		Network:       "local",
		WalletCount:   5,
		BundleKind:    storage.BundleSequential,
		TotalGas:      4_000_000,
		EstimatedCost: big.NewInt(80_000_000_000_000_000),
		TotalBuyETH:   big.NewInt(125_000_000_000_000_000),
		Status:        storage.StatusBuilt,
		CreatedAt:     created,
	}
}

func TestLaunchStore(t *testing.T) {
	ctx := context.Background()
	s := NewLaunchStore()
	base := time.Unix(1_700_000_000, 0)

	first := launchRecord(base)
	second := launchRecord(base.Add(time.Minute))
	require.NoError(t, s.Insert(ctx, first))
	require.NoError(t, s.Insert(ctx, second))
	assert.ErrorIs(t, s.Insert(ctx, first), storage.ErrDuplicateKey)
	assert.ErrorIs(t, s.Insert(ctx, &storage.LaunchRecord{}), storage.ErrInvalidInput)

	// stored copies are isolated from the caller
	first.EstimatedCost.SetInt64(1)
	got, err := s.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(80_000_000_000_000_000), got.EstimatedCost)

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	list, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.UpdateStatus(ctx, first.ID, storage.StatusSubmitted))
	got, _ = s.GetByID(ctx, first.ID)
	assert.Equal(t, storage.StatusSubmitted, got.Status)

	assert.ErrorIs(t, s.UpdateStatus(ctx, uuid.New(), storage.StatusFailed), storage.ErrNotFound)
	_, err = s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWalletStore_BulkIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewWalletStore()
	id := uuid.New()
	w := func(i int) *storage.WalletRecord {
		return &storage.WalletRecord{LaunchID: id, Index: i, Address: common.BigToAddress(big.NewInt(int64(i + 1))), FundAmount: big.NewInt(10), SealedKey: []byte{1, 2}}
	}

	require.NoError(t, s.InsertBulk(ctx, []*storage.WalletRecord{w(1), w(0)}))
	assert.ErrorIs(t, s.InsertBulk(ctx, []*storage.WalletRecord{w(2), w(1)}), storage.ErrDuplicateKey)
	assert.ErrorIs(t, s.InsertBulk(ctx, []*storage.WalletRecord{w(3), w(3)}), storage.ErrDuplicateKey)

	got, err := s.GetByLaunchID(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 1, got[1].Index)
	assert.Equal(t, []byte{1, 2}, got[0].SealedKey)

	none, err := s.GetByLaunchID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPositionStore(t *testing.T) {
	ctx := context.Background()
	s := NewPositionStore()
	id := uuid.New()
	require.NoError(t, s.InsertBulk(ctx, []*storage.PositionRecord{
		{LaunchID: id, WalletIndex: 1, ETHIn: big.NewInt(2), ExpectedTokens: big.NewInt(20)},
		{LaunchID: id, WalletIndex: 0, ETHIn: big.NewInt(1), ExpectedTokens: big.NewInt(20)},
	}))
	assert.ErrorIs(t, s.InsertBulk(ctx, []*storage.PositionRecord{{LaunchID: id}}), storage.ErrInvalidInput)

	got, err := s.GetByLaunchID(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, big.NewInt(1), got[0].ETHIn)
}
