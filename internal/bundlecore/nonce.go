package bundlecore

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/launch-bundler/internal/launch"
)

// NonceSource returns the next pending nonce of an account.
type NonceSource interface {
	NextNonce(ctx context.Context, addr common.Address) (uint64, error)
}

// NonceAllocator hands out gap-free nonces per identity for one run.
// It is not safe for concurrent use.
type NonceAllocator struct {
	src  NonceSource
	next map[common.Address]uint64
}

func NewNonceAllocator(src NonceSource) *NonceAllocator {
	return &NonceAllocator{src: src, next: make(map[common.Address]uint64)}
}

// Begin loads the chain nonce of every addr not yet known. Either all
// identities are loaded or none are.
func (a *NonceAllocator) Begin(ctx context.Context, addrs ...common.Address) error {
	if a.src == nil {
		return fmt.Errorf("%w: no nonce source", launch.ErrChain)
	}
	loaded := make(map[common.Address]uint64, len(addrs))
	for _, addr := range addrs {
		if _, ok := a.next[addr]; ok {
			continue
		}
		if _, ok := loaded[addr]; ok {
			continue
		}
		n, err := a.src.NextNonce(ctx, addr)
		if err != nil {
			return launch.ChainError("pending nonce "+addr.Hex(), err)
		}
		loaded[addr] = n
	}
	for addr, n := range loaded {
		a.next[addr] = n
	}
	return nil
}

// Seed sets the starting nonce of an identity without a chain call.
func (a *NonceAllocator) Seed(addr common.Address, n uint64) {
	a.next[addr] = n
}

// Next returns the current nonce of addr and advances it.
func (a *NonceAllocator) Next(addr common.Address) (uint64, error) {
	n, ok := a.next[addr]
	if !ok {
		return 0, fmt.Errorf("%w: no nonce for %s", launch.ErrBuild, addr.Hex())
	}
	a.next[addr] = n + 1
	return n, nil
}

// Peek reports the next nonce without advancing.
func (a *NonceAllocator) Peek(addr common.Address) (uint64, bool) {
	n, ok := a.next[addr]
	return n, ok
}
