// Package flashbots posts relay bundles to a Flashbots-compatible relay.
package flashbots

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/ligun0805/launch-bundler/internal/assembler"
	"github.com/ligun0805/launch-bundler/internal/bundlecore"
)

// DefaultRelayURL is the Flashbots mainnet relay.
const DefaultRelayURL = "https://relay.flashbots.net"

const signatureHeader = "X-Flashbots-Signature"

type Client struct {
	relayURL string
	authKey  *ecdsa.PrivateKey
	http     *http.Client
	log      *zap.Logger
}

type SimResult struct {
	OK      bool
	Error   string
	RawJSON string
}

type SendResult struct {
	OK         bool
	BundleHash string
	Error      string
	RawJSON    string
}

// NewClient builds a relay client. authPrivHex signs request bodies; it
// should not hold funds.
func NewClient(relayURL, authPrivHex string, log *zap.Logger) (*Client, error) {
	key, err := bundlecore.ParsePrivateKey(authPrivHex)
	if err != nil {
		return nil, fmt.Errorf("auth key: %w", err)
	}
	if relayURL == "" {
		relayURL = DefaultRelayURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{relayURL: relayURL, authKey: key, http: &http.Client{Timeout: 12 * time.Second}, log: log.Named("relay")}, nil
}

// signBody returns "address:signature" over the EIP-191 hash of keccak(body) hex.
func (c *Client) signBody(b []byte) (string, error) {
	addr := crypto.PubkeyToAddress(c.authKey.PublicKey)
	digest := accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(b))))
	sig, err := crypto.Sign(digest, c.authKey)
	if err != nil {
		return "", err
	}
	return addr.Hex() + ":" + hexutil.Encode(sig), nil
}

func rawTxs(b *assembler.Relay) ([]string, error) {
	out := make([]string, 0, len(b.SignedTransactions))
	for i, tx := range b.SignedTransactions {
		raw, err := bundlecore.TxHex(tx)
		if err != nil {
			return nil, fmt.Errorf("encode tx %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) (*rpcResponse, string, error) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []any{params},
	})
	if err != nil {
		return nil, "", err
	}
	sig, err := c.signBody(body)
	if err != nil {
		return nil, "", fmt.Errorf("sign body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, sig)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: read body: %w", method, err)
	}
	var jr rpcResponse
	if err := json.Unmarshal(rb, &jr); err != nil {
		return nil, string(rb), fmt.Errorf("%s: http %d: %w", method, resp.StatusCode, err)
	}
	return &jr, string(rb), nil
}

// SimulateBundle runs eth_callBundle against the latest state.
func (c *Client) SimulateBundle(ctx context.Context, b *assembler.Relay) (*SimResult, error) {
	if b == nil {
		return nil, errors.New("nil bundle")
	}
	txs, err := rawTxs(b)
	if err != nil {
		return nil, err
	}
	jr, raw, err := c.call(ctx, "eth_callBundle", map[string]any{
		"txs":              txs,
		"blockNumber":      hexutil.EncodeUint64(b.TargetBlock),
		"stateBlockNumber": "latest",
	})
	if err != nil {
		return nil, err
	}
	res := &SimResult{RawJSON: raw}
	if jr.Error != nil {
		res.Error = fmt.Sprintf("%d %s", jr.Error.Code, jr.Error.Message)
		c.log.Warn("simulation rejected", zap.String("error", res.Error))
		return res, nil
	}
	res.OK = true
	return res, nil
}

// SendBundle posts eth_sendBundle for the bundle's target block. A bundle
// timeout becomes maxTimestamp.
func (c *Client) SendBundle(ctx context.Context, b *assembler.Relay) (*SendResult, error) {
	if b == nil {
		return nil, errors.New("nil bundle")
	}
	txs, err := rawTxs(b)
	if err != nil {
		return nil, err
	}
	params := map[string]any{
		"txs":         txs,
		"blockNumber": hexutil.EncodeUint64(b.TargetBlock),
	}
	if b.BundleTimeout > 0 {
		params["maxTimestamp"] = time.Now().Add(b.BundleTimeout).Unix()
	}
	jr, raw, err := c.call(ctx, "eth_sendBundle", params)
	if err != nil {
		return nil, err
	}
	res := &SendResult{RawJSON: raw}
	if jr.Error != nil {
		res.Error = fmt.Sprintf("%d %s", jr.Error.Code, jr.Error.Message)
		c.log.Warn("bundle rejected", zap.String("error", res.Error))
		return res, nil
	}
	var out struct {
		BundleHash string `json:"bundleHash"`
	}
	_ = json.Unmarshal(jr.Result, &out)
	res.OK = true
	res.BundleHash = out.BundleHash
	c.log.Info("bundle sent",
		zap.Uint64("target_block", b.TargetBlock),
		zap.Int("transactions", len(txs)),
		zap.String("bundle_hash", res.BundleHash))
	return res, nil
}
