package amm

import (
	"fmt"
	"math/big"

	"github.com/ligun0805/launch-bundler/internal/launch"
)

// maxSearchBits caps the doubling phase of MinAmountIn.
const maxSearchBits = 256

// MinAmountIn binary-searches the smallest ETH input whose output is at least want.
func MinAmountIn(pool Pool, want *big.Int) (*big.Int, error) {
	if err := pool.check(); err != nil {
		return nil, err
	}
	if want == nil || want.Sign() <= 0 {
		return new(big.Int), nil
	}
	if want.Cmp(pool.ReserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	reaches := func(in *big.Int) (bool, error) {
		out, err := GetAmountOut(in, pool.ReserveIn, pool.ReserveOut)
		if err != nil {
			return false, err
		}
		return out.Cmp(want) >= 0, nil
	}

	hi := big.NewInt(1)
	for bits := 0; ; bits++ {
		ok, err := reaches(hi)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if bits >= maxSearchBits {
			return nil, ErrInsufficientLiquidity
		}
		hi.Lsh(hi, 1)
	}
	lo := new(big.Int).Rsh(hi, 1)
	one := big.NewInt(1)
	for lo.Cmp(hi) < 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Rsh(mid, 1)
		ok, err := reaches(mid)
		if err != nil {
			return nil, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid.Add(mid, one)
		}
	}
	return hi, nil
}

// Estimate plans the equal split without any chain call: each wallet gets the
// minimum ETH for its share and the simulated pool advances before the next one.
func Estimate(pool Pool, totalTokens *big.Int, n int) (*Distribution, error) {
	target, err := targetFor(pool, totalTokens, n)
	if err != nil {
		return nil, err
	}
	eth := make([]*big.Int, n)
	tokens := make([]*big.Int, n)
	cur := pool.Clone()
	for i := 0; i < n; i++ {
		in, err := MinAmountIn(cur, target)
		if err != nil {
			return nil, fmt.Errorf("wallet %d: %w", i, err)
		}
		out, next, err := cur.Quote(in)
		if err != nil {
			return nil, fmt.Errorf("wallet %d: %w", i, err)
		}
		eth[i], tokens[i], cur = in, out, next
	}
	d := summarize(eth, tokens, target)
	d.Converged = true
	return d, nil
}

// PoolFor seeds a simulated pool from the launch's initial liquidity.
func PoolFor(cfg launch.Config) Pool {
	return NewPool(cfg.LiquidityETH, cfg.TokensForLiquidity())
}

// CostEstimate is the pre-flight ETH breakdown of a launch.
// BuyETH + LiquidityETH + GasPadding == TotalETHRequired.
type CostEstimate struct {
	TokensForLiquidity *big.Int
	TokensForClog      *big.Int
	TokensPerWallet    *big.Int
	Distribution       *Distribution
	BuyETH             *big.Int
	LiquidityETH       *big.Int
	GasPadding         *big.Int
	TotalETHRequired   *big.Int
}

// EstimateCost runs Estimate against the configured initial pool.
func EstimateCost(cfg launch.Config, gasPadding *big.Int) (*CostEstimate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := Estimate(PoolFor(cfg), cfg.TokensForBundle(), cfg.WalletCount)
	if err != nil {
		return nil, err
	}
	pad := new(big.Int)
	if gasPadding != nil {
		pad.Set(gasPadding)
	}
	total := new(big.Int).Add(d.TotalETH, cfg.LiquidityETH)
	total.Add(total, pad)
	return &CostEstimate{
		TokensForLiquidity: cfg.TokensForLiquidity(),
		TokensForClog:      cfg.TokensForClog(),
		TokensPerWallet:    cfg.TokensPerWallet(),
		Distribution:       d,
		BuyETH:             new(big.Int).Set(d.TotalETH),
		LiquidityETH:       new(big.Int).Set(cfg.LiquidityETH),
		GasPadding:         pad,
		TotalETHRequired:   total,
	}, nil
}
