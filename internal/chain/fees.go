package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/launch"
)

// DefaultBaseFeeMul leaves room for a few full blocks of base fee growth.
const DefaultBaseFeeMul = 2

// SuggestFeeCaps derives relay fee caps: maxFee = baseFee*baseMul + tip.
// tipGwei <= 0 asks the node for a tip.
func SuggestFeeCaps(ctx context.Context, fs FeeSource, tipGwei int64, baseMul uint64) (maxFee, tip *big.Int, err error) {
	if fs == nil {
		return nil, nil, fmt.Errorf("%w: no fee source", launch.ErrChain)
	}
	if baseMul == 0 {
		baseMul = DefaultBaseFeeMul
	}
	base, err := fs.BaseFee(ctx)
	if err != nil {
		return nil, nil, err
	}
	if tipGwei > 0 {
		tip = bundlecore.GweiToWei(tipGwei)
	} else {
		tip, err = fs.TipCap(ctx)
		if err != nil {
			return nil, nil, err
		}
	}
	maxFee = new(big.Int).Mul(base, new(big.Int).SetUint64(baseMul))
	maxFee.Add(maxFee, tip)
	return maxFee, new(big.Int).Set(tip), nil
}

// MaxReward is the largest reward of the first requested percentile, nil when
// every block is empty.
func MaxReward(rewards [][]*big.Int) *big.Int {
	var best *big.Int
	for _, row := range rewards {
		if len(row) == 0 || row[0] == nil {
			continue
		}
		if best == nil || row[0].Cmp(best) > 0 {
			best = row[0]
		}
	}
	if best == nil || best.Sign() == 0 {
		return nil
	}
	return new(big.Int).Set(best)
}

// ErrPairNotFound is returned when no PairCreated log matches.
var ErrPairNotFound = errors.New("pair not created")

// FindPairCreated scans factory PairCreated logs for tokenA/tokenB from fromBlock.
func FindPairCreated(ctx context.Context, p Provider, factory, tokenA, tokenB common.Address, fromBlock uint64) (common.Address, error) {
	t0, t1 := bundlecore.SortTokens(tokenA, tokenB)
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{factory},
		Topics: [][]common.Hash{
			{bundlecore.PairCreatedTopic()},
			{common.BytesToHash(t0.Bytes())},
			{common.BytesToHash(t1.Bytes())},
		},
	}
	logs, err := p.Logs(ctx, q)
	if err != nil {
		return common.Address{}, err
	}
	for _, l := range logs {
		if l.Address != factory || len(l.Topics) < 3 {
			continue
		}
		if l.Topics[1] != q.Topics[1][0] || l.Topics[2] != q.Topics[2][0] {
			continue
		}
		pair, err := bundlecore.UnpackPairCreated(l.Data)
		if err != nil {
			return common.Address{}, fmt.Errorf("decode PairCreated: %w", err)
		}
		return pair, nil
	}
	return common.Address{}, ErrPairNotFound
}
