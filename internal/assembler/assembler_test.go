package assembler

import (
	"context"
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

	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/chain/chaintest"
	"github.com/ligun0805/launch-bundler/internal/launch"
	"github.com/ligun0805/launch-bundler/internal/orchestrator"
	"github.com/ligun0805/launch-bundler/internal/registry"
)

func buildResult(t *testing.T, network string, fees bundlecore.Fees) (*orchestrator.Result, registry.Network, *chaintest.Fake) {
	t.Helper()
	devKey, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	fundingKey, err := gethcrypto.GenerateKey()
	require.NoError(t, err)

	reg := registry.New()
	net, err := reg.Network(network)
	require.NoError(t, err)
	fake := chaintest.New()

	o := orchestrator.New(fake, reg, orchestrator.Options{Logger: zaptest.NewLogger(t)})
	res, err := o.Run(context.Background(), orchestrator.Request{
		Config: launch.Config{
			TokenAddress:     common.HexToAddress("0x1000000000000000000000000000000000000001"),
			TokenName:        "TEST",
			TotalSupply:      big.NewInt(1_000_000),
			DevWallet:        gethcrypto.PubkeyToAddress(devKey.PublicKey),
			FundingWallet:    gethcrypto.PubkeyToAddress(fundingKey.PublicKey),
			WalletCount:      5,
			BundlePercent:    10,
			LiquidityETH:     big.NewInt(1_000_000_000_000_000_000),
			LiquidityPercent: 90,
		},
		Network:    net,
		DevKey:     devKey,
		FundingKey: fundingKey,
		Fees:       fees,
	})
	require.NoError(t, err)
	return res, net, fake
}

func TestAssemble_LocalIsSequential(t *testing.T) {
	res, net, fake := buildResult(t, "local", bundlecore.Fees{GasPrice: bundlecore.GweiToWei(20)})
	a := New(fake, nil, zaptest.NewLogger(t))

	b, err := a.Assemble(context.Background(), res, Target{Network: net})
	require.NoError(t, err)
	seq, ok := b.(*Sequential)
	require.True(t, ok, "got %T", b)

	assert.Len(t, seq.Transactions, 25)
	assert.Equal(t, res.TotalGas, seq.TotalGas)
	assert.Equal(t, bundlecore.GasCost(res.TotalGas, fake.Price), seq.EstimatedCost)
	for i := range seq.Transactions {
		assert.Equal(t, res.Transactions[i].Kind, seq.Transactions[i].Kind)
	}
	require.NoError(t, Validate(seq))
}

func TestAssemble_PublicIsRelay(t *testing.T) {
	fees := bundlecore.Fees{TipCap: bundlecore.GweiToWei(2), FeeCap: bundlecore.GweiToWei(40)}
	res, net, fake := buildResult(t, "mainnet", fees)
	a := New(fake, nil, zaptest.NewLogger(t))

	b, err := a.Assemble(context.Background(), res, Target{Network: net, BundleTimeout: time.Minute})
	require.NoError(t, err)
	relay, ok := b.(*Relay)
	require.True(t, ok, "got %T", b)

	assert.Len(t, relay.SignedTransactions, 25)
	assert.Equal(t, fake.Head+1, relay.TargetBlock)
	assert.Equal(t, bundlecore.GweiToWei(40), relay.FeeCaps.MaxFeePerGas)
	assert.Equal(t, bundlecore.GweiToWei(2), relay.FeeCaps.MaxPriorityFeePerGas)
	assert.Equal(t, time.Minute, relay.BundleTimeout)
	for i, tx := range relay.SignedTransactions {
		assert.Equal(t, res.Transactions[i].Signed.Hash(), tx.Hash())
	}
	require.NoError(t, Validate(relay))

	explicit, err := a.Assemble(context.Background(), res, Target{
		Network:     net,
		TargetBlock: 500,
		FeeCaps:     &FeeCaps{MaxFeePerGas: big.NewInt(9), MaxPriorityFeePerGas: big.NewInt(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), explicit.(*Relay).TargetBlock)
	assert.Equal(t, big.NewInt(9), explicit.(*Relay).FeeCaps.MaxFeePerGas)
}

func TestAssemble_FallbackGasPrice(t *testing.T) {
	res, net, fake := buildResult(t, "local", bundlecore.Fees{GasPrice: bundlecore.GweiToWei(20)})
	fake.PriceErr = errors.New("method not found")

	b, err := New(fake, nil, zaptest.NewLogger(t)).Assemble(context.Background(), res, Target{Network: net})
	require.NoError(t, err)
	assert.Equal(t, bundlecore.GasCost(res.TotalGas, bundlecore.GweiToWei(30)), b.Cost())
}

func TestAssemble_HeadFailure(t *testing.T) {
	res, net, fake := buildResult(t, "mainnet", bundlecore.Fees{TipCap: big.NewInt(1), FeeCap: big.NewInt(2)})
	fake.HeadErr = errors.New("timeout")

	_, err := New(fake, nil, nil).Assemble(context.Background(), res, Target{Network: net})
	assert.ErrorIs(t, err, launch.ErrChain)
}

func signedTx(t *testing.T) *types.Transaction {
	t.Helper()
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	u, err := bundlecore.BuildFundWallet(bundlecore.TxOpts{
		ChainID: big.NewInt(1), GasLimit: 21_000, Fees: bundlecore.Fees{GasPrice: big.NewInt(1)},
	}, common.HexToAddress("0x01"), big.NewInt(1))
	require.NoError(t, err)
	tx, err := bundlecore.NewChainSigner(big.NewInt(1)).Sign(u.Tx, key)
	require.NoError(t, err)
	return tx
}

func TestValidate_Rejections(t *testing.T) {
	tx := signedTx(t)
	okRelay := func() *Relay {
		return &Relay{
			SignedTransactions: []*types.Transaction{tx},
			TargetBlock:        10,
			FeeCaps:            FeeCaps{MaxFeePerGas: big.NewInt(10), MaxPriorityFeePerGas: big.NewInt(2)},
			TotalGas:           21_000,
			EstimatedCost:      big.NewInt(21_000),
		}
	}
	require.NoError(t, Validate(okRelay()))

	tests := []struct {
		name  string
		b     Bundle
		field string
	}{
		{"empty sequential", &Sequential{TotalGas: 1, EstimatedCost: big.NewInt(1)}, "transactions"},
		{"unsigned", &Sequential{Transactions: []launch.Transaction{{Kind: launch.OpFundWallet}}, TotalGas: 1, EstimatedCost: big.NewInt(1)}, "transactions"},
		{"zero gas", func() Bundle { r := okRelay(); r.TotalGas = 0; return r }(), "totalGas"},
		{"zero cost", func() Bundle { r := okRelay(); r.EstimatedCost = big.NewInt(0); return r }(), "estimatedCost"},
		{"no target block", func() Bundle { r := okRelay(); r.TargetBlock = 0; return r }(), "targetBlock"},
		{"fee below tip", func() Bundle {
			r := okRelay()
			r.FeeCaps.MaxFeePerGas = big.NewInt(1)
			return r
		}(), "feeCaps"},
		{"empty relay", &Relay{TargetBlock: 1, TotalGas: 1, EstimatedCost: big.NewInt(1)}, "signedTransactions"},
		{"nil", nil, "bundle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.b)
			require.Error(t, err)
			assert.ErrorIs(t, err, launch.ErrValidation)
			var ve *launch.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
