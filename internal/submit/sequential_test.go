package submit

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ligun0805/launch-bundler/internal/assembler"
	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/chain/chaintest"
	"github.com/ligun0805/launch-bundler/internal/launch"
)

func sequence(t *testing.T, n int) *assembler.Sequential {
	t.Helper()
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := bundlecore.NewChainSigner(big.NewInt(31337))
	seq := &assembler.Sequential{EstimatedCost: big.NewInt(1)}
	for i := 0; i < n; i++ {
		u, err := bundlecore.BuildFundWallet(bundlecore.TxOpts{
			ChainID: big.NewInt(31337), Nonce: uint64(i), GasLimit: 21_000, Fees: bundlecore.Fees{GasPrice: big.NewInt(1)},
		}, common.HexToAddress("0x01"), big.NewInt(1))
		require.NoError(t, err)
		tx, err := signer.Sign(u.Tx, key)
		require.NoError(t, err)
		seq.Transactions = append(seq.Transactions, launch.Transaction{Kind: launch.OpFundWallet, Unsigned: u.Tx, Signed: tx})
		seq.TotalGas += tx.Gas()
	}
	return seq
}

func fastPolling() Polling {
	return Polling{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, MaxElapsed: time.Second}
}

func TestSubmit_InOrder(t *testing.T) {
	fake := chaintest.New()
	fake.Pending = 2
	seq := sequence(t, 3)

	rep, err := NewSequential(fake, fastPolling(), zaptest.NewLogger(t)).Submit(context.Background(), seq)
	require.NoError(t, err)
	require.Len(t, rep.Receipts, 3)
	assert.Equal(t, uint64(3*21_000), rep.GasUsed)

	sent := fake.Sent()
	require.Len(t, sent, 3)
	for i, tx := range sent {
		assert.Equal(t, seq.Transactions[i].Signed.Hash(), tx.Hash())
	}
}

func TestSubmit_StopsOnRevert(t *testing.T) {
	fake := chaintest.New()
	fake.Revert = true

	rep, err := NewSequential(fake, fastPolling(), zaptest.NewLogger(t)).Submit(context.Background(), sequence(t, 3))
	var rev *RevertedError
	require.ErrorAs(t, err, &rev)
	assert.Equal(t, 0, rev.Index)
	assert.Len(t, rep.Receipts, 1)
	assert.Len(t, fake.Sent(), 1)
}

func TestSubmit_SendFailure(t *testing.T) {
	fake := chaintest.New()
	fake.SendErr = errors.New("nonce too low")

	_, err := NewSequential(fake, fastPolling(), nil).Submit(context.Background(), sequence(t, 2))
	assert.ErrorIs(t, err, launch.ErrChain)
}

func TestSubmit_RejectsInvalid(t *testing.T) {
	_, err := NewSequential(chaintest.New(), fastPolling(), nil).Submit(context.Background(), &assembler.Sequential{})
	assert.ErrorIs(t, err, launch.ErrValidation)
}
