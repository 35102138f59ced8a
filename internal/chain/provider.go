// Package chain is the boundary to the node: nonces, gas, blocks, logs, receipts.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/ligun0805/launch-bundler/internal/launch"
)

// Provider is the read side of the chain the core depends on.
type Provider interface {
	NextNonce(ctx context.Context, addr common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// FeeSource is implemented by providers on EIP-1559 chains.
type FeeSource interface {
	BaseFee(ctx context.Context) (*big.Int, error)
	TipCap(ctx context.Context) (*big.Int, error)
}

// Sender broadcasts a signed transaction.
type Sender interface {
	Send(ctx context.Context, tx *types.Transaction) error
}

var errNoBaseFee = errors.New("no baseFee (pre-1559?)")

// EthProvider implements Provider, FeeSource and Sender over ethclient.
type EthProvider struct {
	ec  *ethclient.Client
	log *zap.Logger

	// tip from fee history when tipBlocks > 0
	tipBlocks     uint64
	tipPercentile float64
}

var (
	_ Provider  = (*EthProvider)(nil)
	_ FeeSource = (*EthProvider)(nil)
	_ Sender    = (*EthProvider)(nil)
)

// Dial connects to rpcURL.
func Dial(ctx context.Context, rpcURL string, log *zap.Logger) (*EthProvider, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, launch.ChainError("dial", err)
	}
	return NewEthProvider(ec, log), nil
}

func NewEthProvider(ec *ethclient.Client, log *zap.Logger) *EthProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &EthProvider{ec: ec, log: log.Named("chain")}
}

func (p *EthProvider) Close() { p.ec.Close() }

// ChainID asks the node for its chain id.
func (p *EthProvider) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := p.ec.ChainID(ctx)
	if err != nil {
		return nil, launch.ChainError("chain id", err)
	}
	return id, nil
}

func (p *EthProvider) NextNonce(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := p.ec.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, launch.ChainError("pending nonce", err)
	}
	p.log.Debug("pending nonce", zap.String("addr", addr.Hex()), zap.Uint64("nonce", n))
	return n, nil
}

func (p *EthProvider) GasPrice(ctx context.Context) (*big.Int, error) {
	gp, err := p.ec.SuggestGasPrice(ctx)
	if err != nil {
		return nil, launch.ChainError("gas price", err)
	}
	return gp, nil
}

func (p *EthProvider) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := p.ec.BlockNumber(ctx)
	if err != nil {
		return 0, launch.ChainError("block number", err)
	}
	return n, nil
}

func (p *EthProvider) Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := p.ec.FilterLogs(ctx, q)
	if err != nil {
		return nil, launch.ChainError("filter logs", err)
	}
	return logs, nil
}

// Receipt returns ethereum.NotFound (wrapped) while the tx is pending.
func (p *EthProvider) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r, err := p.ec.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, launch.ChainError("receipt "+hash.Hex(), err)
	}
	return r, nil
}

// BaseFee of the latest header.
func (p *EthProvider) BaseFee(ctx context.Context) (*big.Int, error) {
	h, err := p.ec.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, launch.ChainError("latest header", err)
	}
	if h.BaseFee == nil {
		return nil, launch.ChainError("latest header", errNoBaseFee)
	}
	return new(big.Int).Set(h.BaseFee), nil
}

// WithFeeHistory makes TipCap use the highest reward at percentile over the
// last blocks instead of the node's suggestion.
func (p *EthProvider) WithFeeHistory(blocks uint64, percentile float64) *EthProvider {
	if percentile <= 0 || percentile > 99 {
		percentile = 99
	}
	p.tipBlocks, p.tipPercentile = blocks, percentile
	return p
}

func (p *EthProvider) TipCap(ctx context.Context) (*big.Int, error) {
	if p.tipBlocks > 0 {
		fh, err := p.ec.FeeHistory(ctx, p.tipBlocks, nil, []float64{p.tipPercentile})
		if err == nil {
			if tip := MaxReward(fh.Reward); tip != nil {
				return tip, nil
			}
		}
		p.log.Warn("fee history unavailable, asking for a tip", zap.Error(err))
	}
	tip, err := p.ec.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, launch.ChainError("tip cap", err)
	}
	return tip, nil
}

func (p *EthProvider) Send(ctx context.Context, tx *types.Transaction) error {
	if err := p.ec.SendTransaction(ctx, tx); err != nil {
		return launch.ChainError("send "+tx.Hash().Hex(), err)
	}
	p.log.Info("sent", zap.String("hash", tx.Hash().Hex()), zap.Uint64("nonce", tx.Nonce()))
	return nil
}
