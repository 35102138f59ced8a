// Package submit replays a sequential bundle against a node.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ligun0805/launch-bundler/internal/assembler"
	"github.com/ligun0805/launch-bundler/internal/launch"
)

// Node is what the submitter needs from the chain.
type Node interface {
	Send(ctx context.Context, tx *types.Transaction) error
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// RevertedError stops a replay at the first failed receipt.
type RevertedError struct {
	Index int
	Kind  launch.OpKind
	Hash  common.Hash
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("transaction %d (%s) %s reverted", e.Index, e.Kind, e.Hash.Hex())
}

// Polling controls receipt polling.
type Polling struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultPolling suits local dev nodes and public testnets alike.
func DefaultPolling() Polling {
	return Polling{InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second, MaxElapsed: 3 * time.Minute}
}

type Sequential struct {
	node Node
	poll Polling
	log  *zap.Logger
}

func NewSequential(node Node, poll Polling, log *zap.Logger) *Sequential {
	if log == nil {
		log = zap.NewNop()
	}
	d := DefaultPolling()
	if poll.InitialInterval <= 0 {
		poll.InitialInterval = d.InitialInterval
	}
	if poll.MaxInterval <= 0 {
		poll.MaxInterval = d.MaxInterval
	}
	if poll.MaxElapsed <= 0 {
		poll.MaxElapsed = d.MaxElapsed
	}
	return &Sequential{node: node, poll: poll, log: log.Named("submit")}
}

// Report lists the receipts of the transactions that were mined.
type Report struct {
	Receipts []*types.Receipt
	GasUsed  uint64
}

// Submit sends each transaction and waits for its receipt before the next.
// The report is returned even on error and holds what was mined so far.
func (s *Sequential) Submit(ctx context.Context, seq *assembler.Sequential) (*Report, error) {
	rep := &Report{}
	if err := assembler.Validate(seq); err != nil {
		return rep, err
	}
	for i, tx := range seq.Transactions {
		log := s.log.With(zap.Int("index", i), zap.String("kind", string(tx.Kind)), zap.String("hash", tx.Signed.Hash().Hex()))
		if err := s.node.Send(ctx, tx.Signed); err != nil {
			return rep, fmt.Errorf("send transaction %d (%s): %w", i, tx.Kind, err)
		}
		r, err := s.wait(ctx, tx.Signed.Hash())
		if err != nil {
			return rep, fmt.Errorf("wait transaction %d (%s): %w", i, tx.Kind, err)
		}
		rep.Receipts = append(rep.Receipts, r)
		rep.GasUsed += r.GasUsed
		if r.Status != types.ReceiptStatusSuccessful {
			log.Error("reverted", zap.Uint64("gas_used", r.GasUsed))
			return rep, &RevertedError{Index: i, Kind: tx.Kind, Hash: tx.Signed.Hash()}
		}
		log.Info("mined", zap.Uint64("gas_used", r.GasUsed), zap.Stringer("block", r.BlockNumber))
	}
	return rep, nil
}

func (s *Sequential) wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.poll.InitialInterval
	policy.MaxInterval = s.poll.MaxInterval

	op := func() (*types.Receipt, error) {
		r, err := s.node.Receipt(ctx, hash)
		if err == nil {
			return r, nil
		}
		if errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	notify := func(err error, d time.Duration) {
		s.log.Debug("receipt pending", zap.String("hash", hash.Hex()), zap.Duration("backoff", d))
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(s.poll.MaxElapsed),
		backoff.WithNotify(notify))
}
