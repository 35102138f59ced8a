package postgres

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
		Network:       "mainnet",
		WalletCount:   2,
		BundleKind:    storage.BundleRelay,
		TotalGas:      4_000_000,
		EstimatedCost: new(big.Int).Lsh(big.NewInt(1), 100),
		TotalBuyETH:   big.NewInt(125_000_000_000_000_000),
		PairAddress:   common.HexToAddress("0x3333333333333333333333333333333333333333"),
		TargetBlock:   19_000_001,
		Status:        storage.StatusBuilt,
		CreatedAt:     created.UTC().Truncate(time.Microsecond),
	}
}

func TestStores_Postgres(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	stores := NewStores(pool)

	base := time.Unix(1_700_000_000, 0)
	first := launchRecord(base)
	second := launchRecord(base.Add(time.Hour))
	second.PairAddress = common.Address{}
	second.EstimatedCost = nil

	require.NoError(t, stores.Launches.Insert(ctx, first))
	require.NoError(t, stores.Launches.Insert(ctx, second))
	assert.ErrorIs(t, stores.Launches.Insert(ctx, first), storage.ErrDuplicateKey)

	got, err := stores.Launches.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.EstimatedCost, got.EstimatedCost)
	assert.Equal(t, first.PairAddress, got.PairAddress)
	assert.Equal(t, first.TargetBlock, got.TargetBlock)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	got, err = stores.Launches.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EstimatedCost)
	assert.Equal(t, common.Address{}, got.PairAddress)

	list, err := stores.Launches.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, stores.Launches.UpdateStatus(ctx, first.ID, storage.StatusSubmitted))
	assert.ErrorIs(t, stores.Launches.UpdateStatus(ctx, uuid.New(), storage.StatusFailed), storage.ErrNotFound)
	_, err = stores.Launches.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	wallets := []*storage.WalletRecord{
		{LaunchID: first.ID, Index: 1, Address: common.HexToAddress("0xb1"), SealedKey: []byte{9, 9}, FundAmount: big.NewInt(7)},
		{LaunchID: first.ID, Index: 0, Address: common.HexToAddress("0xb0"), FundAmount: big.NewInt(5)},
	}
	require.NoError(t, stores.Wallets.InsertBulk(ctx, wallets))
	assert.ErrorIs(t, stores.Wallets.InsertBulk(ctx, wallets[:1]), storage.ErrDuplicateKey)

	gotWallets, err := stores.Wallets.GetByLaunchID(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, gotWallets, 2)
	assert.Equal(t, 0, gotWallets[0].Index)
	assert.Equal(t, []byte{9, 9}, gotWallets[1].SealedKey)
	assert.Equal(t, big.NewInt(7), gotWallets[1].FundAmount)

	positions := []*storage.PositionRecord{
		{LaunchID: first.ID, WalletIndex: 0, Address: common.HexToAddress("0xb0"), ETHIn: big.NewInt(100), ExpectedTokens: big.NewInt(20_000)},
	}
	require.NoError(t, stores.Positions.InsertBulk(ctx, positions))
	gotPositions, err := stores.Positions.GetByLaunchID(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, gotPositions, 1)
	assert.Equal(t, big.NewInt(20_000), gotPositions[0].ExpectedTokens)
}
