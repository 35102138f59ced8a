package flashbots

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ligun0805/launch-bundler/internal/assembler"
	"github.com/ligun0805/launch-bundler/internal/bundlecore"
)

const authHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type captured struct {
	Method string `json:"method"`
	Params []struct {
		Txs          []string `json:"txs"`
		BlockNumber  string   `json:"blockNumber"`
		MaxTimestamp int64    `json:"maxTimestamp"`
	} `json:"params"`
	signer common.Address
}

func relayServer(t *testing.T, reply string, got *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) || !assert.NoError(t, json.Unmarshal(body, got)) {
			return
		}
		parts := strings.SplitN(r.Header.Get(signatureHeader), ":", 2)
		if !assert.Len(t, parts, 2) {
			return
		}
		sig, err := hexutil.Decode(parts[1])
		if !assert.NoError(t, err) {
			return
		}
		digest := accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(body))))
		pub, err := crypto.SigToPub(digest, sig)
		if !assert.NoError(t, err) {
			return
		}
		got.signer = crypto.PubkeyToAddress(*pub)
		assert.Equal(t, common.HexToAddress(parts[0]), got.signer)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
}

func relayBundle(t *testing.T) *assembler.Relay {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	u, err := bundlecore.BuildFundWallet(bundlecore.TxOpts{
		ChainID: big.NewInt(1), GasLimit: 21_000, Fees: bundlecore.Fees{TipCap: big.NewInt(1), FeeCap: big.NewInt(2)},
	}, common.HexToAddress("0x01"), big.NewInt(1))
	require.NoError(t, err)
	tx, err := bundlecore.NewChainSigner(big.NewInt(1)).Sign(u.Tx, key)
	require.NoError(t, err)
	return &assembler.Relay{
		SignedTransactions: []*types.Transaction{tx},
		TargetBlock:        0x1234,
		FeeCaps:            assembler.FeeCaps{MaxFeePerGas: big.NewInt(2), MaxPriorityFeePerGas: big.NewInt(1)},
		TotalGas:           21_000,
		EstimatedCost:      big.NewInt(42_000),
		BundleTimeout:      time.Minute,
	}
}

func TestSendBundle(t *testing.T) {
	var got captured
	srv := relayServer(t, `{"jsonrpc":"2.0","id":1,"result":{"bundleHash":"0xabc"}}`, &got)
	defer srv.Close()

	c, err := NewClient(srv.URL, authHex, zaptest.NewLogger(t))
	require.NoError(t, err)
	b := relayBundle(t)

	res, err := c.SendBundle(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "0xabc", res.BundleHash)

	assert.Equal(t, "eth_sendBundle", got.Method)
	require.Len(t, got.Params, 1)
	assert.Equal(t, "0x1234", got.Params[0].BlockNumber)
	require.Len(t, got.Params[0].Txs, 1)
	raw, _ := bundlecore.TxHex(b.SignedTransactions[0])
	assert.Equal(t, raw, got.Params[0].Txs[0])
	assert.Greater(t, got.Params[0].MaxTimestamp, time.Now().Unix())

	key, _ := bundlecore.ParsePrivateKey(authHex)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got.signer)
}

func TestSimulateBundle_Error(t *testing.T) {
	var got captured
	srv := relayServer(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"nonce too low"}}`, &got)
	defer srv.Close()

	c, err := NewClient(srv.URL, authHex, nil)
	require.NoError(t, err)
	res, err := c.SimulateBundle(context.Background(), relayBundle(t))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "-32000 nonce too low", res.Error)
	assert.Equal(t, "eth_callBundle", got.Method)
}

func TestNewClient_BadKey(t *testing.T) {
	_, err := NewClient("", "zz", nil)
	assert.Error(t, err)
}
