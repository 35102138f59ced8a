package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/chain/chaintest"
	"github.com/ligun0805/launch-bundler/internal/launch"
)

func TestSuggestFeeCaps(t *testing.T) {
	f := chaintest.New()
	f.Base = big.NewInt(10)
	f.Tip = big.NewInt(3)

	maxFee, tip, err := SuggestFeeCaps(context.Background(), f, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(23), maxFee)
	assert.Equal(t, big.NewInt(3), tip)

	maxFee, tip, err = SuggestFeeCaps(context.Background(), f, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, bundlecore.GweiToWei(1), tip)
	assert.Equal(t, new(big.Int).Add(big.NewInt(20), bundlecore.GweiToWei(1)), maxFee)
	assert.True(t, maxFee.Cmp(tip) >= 0)

	f.FeeErr = errors.New("boom")
	_, _, err = SuggestFeeCaps(context.Background(), f, 0, 2)
	assert.ErrorIs(t, err, launch.ErrChain)
}

func TestMaxReward(t *testing.T) {
	got := MaxReward([][]*big.Int{{big.NewInt(5)}, {}, {big.NewInt(9)}, {big.NewInt(2)}})
	assert.Equal(t, big.NewInt(9), got)
	assert.Nil(t, MaxReward(nil))
	assert.Nil(t, MaxReward([][]*big.Int{{big.NewInt(0)}}))
}

func TestFindPairCreated(t *testing.T) {
	factory := common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	pair := common.HexToAddress("0x3333333333333333333333333333333333333333")
	t0, t1 := bundlecore.SortTokens(token, weth)

	data := append(common.LeftPadBytes(pair.Bytes(), 32), common.LeftPadBytes(big.NewInt(1).Bytes(), 32)...)
	f := chaintest.New()
	f.LogList = []types.Log{{
		Address: factory,
		Topics:  []common.Hash{bundlecore.PairCreatedTopic(), common.BytesToHash(t0.Bytes()), common.BytesToHash(t1.Bytes())},
		Data:    data,
	}}

	got, err := FindPairCreated(context.Background(), f, factory, token, weth, 0)
	require.NoError(t, err)
	assert.Equal(t, pair, got)

	f.LogList = nil
	_, err = FindPairCreated(context.Background(), f, factory, token, weth, 0)
	assert.ErrorIs(t, err, ErrPairNotFound)
}
