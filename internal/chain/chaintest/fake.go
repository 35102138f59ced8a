// Package chaintest provides an in-memory chain for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/launch-bundler/internal/launch"
)

// Fake is a scriptable Provider, FeeSource and Sender.
// Zero values are usable; set the Err fields to inject failures.
type Fake struct {
	mu sync.Mutex

	Nonces   map[common.Address]uint64
	NonceErr error
	Price    *big.Int
	PriceErr error
	Head     uint64
	HeadErr  error
	Base     *big.Int
	Tip      *big.Int
	FeeErr   error
	LogList  []types.Log
	LogsErr  error
	SendErr  error
	// Revert makes every mined receipt fail.
	Revert bool
	// Pending keeps sent txs unmined for this many receipt polls.
	Pending int

	receipts   map[common.Hash]*types.Receipt
	polls      map[common.Hash]int
	sent       []*types.Transaction
	nonceCalls int
}

func New() *Fake {
	return &Fake{
		Nonces: make(map[common.Address]uint64),
		Price:  big.NewInt(20_000_000_000),
		Head:   100,
		Base:   big.NewInt(10_000_000_000),
		Tip:    big.NewInt(1_000_000_000),
	}
}

func (f *Fake) NextNonce(_ context.Context, addr common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	if f.NonceErr != nil {
		return 0, launch.ChainError("pending nonce", f.NonceErr)
	}
	return f.Nonces[addr], nil
}

// NonceCalls counts NextNonce invocations.
func (f *Fake) NonceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonceCalls
}

func (f *Fake) GasPrice(context.Context) (*big.Int, error) {
	if f.PriceErr != nil {
		return nil, launch.ChainError("gas price", f.PriceErr)
	}
	return new(big.Int).Set(f.Price), nil
}

func (f *Fake) BlockNumber(context.Context) (uint64, error) {
	if f.HeadErr != nil {
		return 0, launch.ChainError("block number", f.HeadErr)
	}
	return f.Head, nil
}

func (f *Fake) Logs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	if f.LogsErr != nil {
		return nil, launch.ChainError("filter logs", f.LogsErr)
	}
	return f.LogList, nil
}

func (f *Fake) Receipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, launch.ChainError("receipt", ethereum.NotFound)
	}
	if f.polls[hash] < f.Pending {
		f.polls[hash]++
		return nil, launch.ChainError("receipt", ethereum.NotFound)
	}
	return r, nil
}

func (f *Fake) BaseFee(context.Context) (*big.Int, error) {
	if f.FeeErr != nil {
		return nil, launch.ChainError("latest header", f.FeeErr)
	}
	return new(big.Int).Set(f.Base), nil
}

func (f *Fake) TipCap(context.Context) (*big.Int, error) {
	if f.FeeErr != nil {
		return nil, launch.ChainError("tip cap", f.FeeErr)
	}
	return new(big.Int).Set(f.Tip), nil
}

// Send records tx and mines it into a receipt.
func (f *Fake) Send(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return launch.ChainError("send", f.SendErr)
	}
	if f.receipts == nil {
		f.receipts = make(map[common.Hash]*types.Receipt)
		f.polls = make(map[common.Hash]int)
	}
	f.sent = append(f.sent, tx)
	f.Head++
	status := types.ReceiptStatusSuccessful
	if f.Revert {
		status = types.ReceiptStatusFailed
	}
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		GasUsed:     tx.Gas(),
		BlockNumber: new(big.Int).SetUint64(f.Head),
	}
	return nil
}

// Sent returns the broadcast transactions in order.
func (f *Fake) Sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}
