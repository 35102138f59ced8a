package orchestrator

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ligun0805/launch-bundler/internal/amm"
	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/chain/chaintest"
	"github.com/ligun0805/launch-bundler/internal/launch"
	"github.com/ligun0805/launch-bundler/internal/registry"
)

type fixture struct {
	reg        *registry.Registry
	fake       *chaintest.Fake
	devKey     *ecdsa.PrivateKey
	fundingKey *ecdsa.PrivateKey
	req        Request
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	devKey, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	fundingKey, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	dev := gethcrypto.PubkeyToAddress(devKey.PublicKey)
	funding := gethcrypto.PubkeyToAddress(fundingKey.PublicKey)

	reg := registry.New()
	network, err := reg.Network("local")
	require.NoError(t, err)

	fake := chaintest.New()
	fake.Nonces[dev] = 7
	fake.Nonces[funding] = 3

	return &fixture{
		reg:        reg,
		fake:       fake,
		devKey:     devKey,
		fundingKey: fundingKey,
		req: Request{
			Config: launch.Config{
				TokenAddress:     common.HexToAddress("0x1000000000000000000000000000000000000001"),
				TokenName:        "TEST",
				TotalSupply:      big.NewInt(1_000_000),
				DevWallet:        dev,
				FundingWallet:    funding,
				WalletCount:      5,
				BundlePercent:    10,
				LiquidityETH:     big.NewInt(1_000_000_000_000_000_000),
				LiquidityPercent: 90,
			},
			Network:       network,
			DevKey:        devKey,
			FundingKey:    fundingKey,
			Fees:          bundlecore.Fees{GasPrice: bundlecore.GweiToWei(20)},
			WalletPadding: big.NewInt(1_000),
			SlippageBps:   500,
		},
	}
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	now := time.Unix(1_700_000_000, 0)
	return New(f.fake, f.reg, Options{Logger: zaptest.NewLogger(t), Now: func() time.Time { return now }})
}

func TestRun_Sequence(t *testing.T) {
	f := newFixture(t)
	res, err := f.orchestrator(t).Run(context.Background(), f.req)
	require.NoError(t, err)

	n := f.req.Config.WalletCount
	require.Len(t, res.Wallets, n)
	require.Len(t, res.Transactions, 4*n+5)
	assert.GreaterOrEqual(t, len(res.Transactions), 3*n+5)

	want := []launch.OpKind{}
	for i := 0; i < n; i++ {
		want = append(want, launch.OpFundWallet)
	}
	want = append(want, launch.OpClogTransfer, launch.OpCreatePair, launch.OpApproveRouter, launch.OpAddLiquidity, launch.OpOpenTrading)
	for _, k := range []launch.OpKind{launch.OpExcludeFromFee, launch.OpApproveRouter, launch.OpBuyTokens} {
		for i := 0; i < n; i++ {
			want = append(want, k)
		}
	}
	got := make([]launch.OpKind, len(res.Transactions))
	for i, tx := range res.Transactions {
		got[i] = tx.Kind
	}
	assert.Equal(t, want, got)

	var gas uint64
	for _, tx := range res.Transactions {
		gas += tx.Signed.Gas()
	}
	assert.Equal(t, gas, res.TotalGas)
	assert.NotEqual(t, common.Address{}, res.PairAddress)
	assert.Same(t, f.devKey, res.DevKey)
	assert.Same(t, f.fundingKey, res.FundingKey)
	require.NotNil(t, res.Distribution)
	assert.Len(t, res.Distribution.Buys, n)
}

func TestRun_EverythingSignedByOwner(t *testing.T) {
	f := newFixture(t)
	res, err := f.orchestrator(t).Run(context.Background(), f.req)
	require.NoError(t, err)

	signer := types.LatestSignerForChainID(f.req.Network.ChainID)
	for i, tx := range res.Transactions {
		require.True(t, tx.IsSigned(), "tx %d", i)
		from, err := types.Sender(signer, tx.Signed)
		require.NoError(t, err)
		assert.Equal(t, tx.From, from, "tx %d", i)

		switch tx.Signer {
		case launch.IdentityDev:
			assert.Equal(t, f.req.Config.DevWallet, from)
		case launch.IdentityFunding:
			assert.Equal(t, f.req.Config.FundingWallet, from)
		case launch.IdentityBundle:
			require.NotNil(t, tx.WalletIndex)
			assert.Equal(t, res.Wallets[*tx.WalletIndex].Address, from)
		default:
			t.Fatalf("tx %d: unexpected signer %q", i, tx.Signer)
		}
	}
}

func TestRun_Nonces(t *testing.T) {
	f := newFixture(t)
	res, err := f.orchestrator(t).Run(context.Background(), f.req)
	require.NoError(t, err)

	byFrom := map[common.Address][]uint64{}
	for _, tx := range res.Transactions {
		byFrom[tx.From] = append(byFrom[tx.From], tx.Signed.Nonce())
	}
	for from, nonces := range byFrom {
		for i := 1; i < len(nonces); i++ {
			assert.Equal(t, nonces[i-1]+1, nonces[i], "gap for %s", from.Hex())
		}
	}
	assert.Equal(t, uint64(7), byFrom[f.req.Config.DevWallet][0])
	assert.Len(t, byFrom[f.req.Config.DevWallet], 5+f.req.Config.WalletCount)
	assert.Equal(t, uint64(3), byFrom[f.req.Config.FundingWallet][0])
	for _, w := range res.Wallets {
		assert.Equal(t, []uint64{0, 1}, byFrom[w.Address])
	}
	// dev and funding only
	assert.Equal(t, 2, f.fake.NonceCalls())
}

func TestRun_SharedDevAndFundingWallet(t *testing.T) {
	f := newFixture(t)
	f.req.Config.FundingWallet = f.req.Config.DevWallet
	f.req.FundingKey = f.devKey

	res, err := f.orchestrator(t).Run(context.Background(), f.req)
	require.NoError(t, err)

	var nonces []uint64
	for _, tx := range res.Transactions {
		if tx.From == f.req.Config.DevWallet {
			nonces = append(nonces, tx.Signed.Nonce())
		}
	}
	require.Len(t, nonces, 2*f.req.Config.WalletCount+5)
	for i, n := range nonces {
		assert.Equal(t, uint64(7+i), n)
	}
}

func TestRun_FundingCoversBuyAndGas(t *testing.T) {
	f := newFixture(t)
	res, err := f.orchestrator(t).Run(context.Background(), f.req)
	require.NoError(t, err)

	limits := bundlecore.DefaultGasLimits()
	for _, tx := range res.Transactions {
		if tx.Kind != launch.OpFundWallet {
			continue
		}
		buy := res.Distribution.Buys[*tx.WalletIndex]
		want := bundlecore.FundAmount(buy.ETH, limits.Approve, limits.Buy, f.req.Fees.GasPrice, f.req.WalletPadding)
		assert.Equal(t, want, tx.Signed.Value())
		assert.Equal(t, res.Wallets[*tx.WalletIndex].Address, *tx.Signed.To())
	}
	for _, tx := range res.Transactions {
		if tx.Kind == launch.OpBuyTokens {
			assert.Equal(t, res.Distribution.Buys[*tx.WalletIndex].ETH, tx.Signed.Value())
		}
	}
}

func TestRun_NonceFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.fake.NonceErr = errors.New("connection refused")

	res, err := f.orchestrator(t).Run(context.Background(), f.req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, launch.ErrChain)

	var se *launch.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "nonces", se.Step)
	_, ok := se.Diagnostics.(*amm.Distribution)
	assert.True(t, ok)
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture)
		want   error
	}{
		{"wrong dev key", func(f *fixture) { f.req.DevKey = f.fundingKey }, launch.ErrConfig},
		{"missing funding key", func(f *fixture) { f.req.FundingKey = nil }, launch.ErrConfig},
		{"bad wallet count", func(f *fixture) { f.req.Config.WalletCount = 0 }, launch.ErrConfig},
		{"no fees", func(f *fixture) { f.req.Fees = bundlecore.Fees{} }, launch.ErrConfig},
		{"missing router", func(f *fixture) { f.reg = registry.NewEmpty(); f.reg.AddNetwork(f.req.Network, nil) }, launch.ErrMissingContract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)
			res, err := f.orchestrator(t).Run(context.Background(), f.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			var se *launch.StepError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestRun_DynamicFees(t *testing.T) {
	f := newFixture(t)
	f.req.Network, _ = f.reg.Network("mainnet")
	f.req.Fees = bundlecore.Fees{TipCap: bundlecore.GweiToWei(2), FeeCap: bundlecore.GweiToWei(40)}

	res, err := f.orchestrator(t).Run(context.Background(), f.req)
	require.NoError(t, err)
	for _, tx := range res.Transactions {
		assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Signed.Type())
		assert.Equal(t, int64(1), tx.Signed.ChainId().Int64())
	}
}
