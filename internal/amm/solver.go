package amm

import (
	"errors"
	"fmt"
	"math/big"
)

// DefaultMaxIterations bounds the iterative solver.
const DefaultMaxIterations = 50

var errNoWallets = errors.New("wallet count must be > 0")

// WalletBuy is the ETH one wallet spends and the tokens it should receive.
type WalletBuy struct {
	Index  int
	ETH    *big.Int
	Tokens *big.Int
}

// Distribution is the per-wallet plan for an equal split.
type Distribution struct {
	Buys            []WalletBuy
	TargetPerWallet *big.Int
	TotalETH        *big.Int
	AverageETH      *big.Int
	TotalTokens     *big.Int
	// PriceImpactBps is (last-first)/first of committed ETH, in basis points.
	PriceImpactBps *big.Int
	Iterations     int
	Converged      bool
}

// Solver finds per-wallet ETH amounts that buy near-equal token amounts
// when the buys execute one after another against the same pool.
type Solver struct {
	MaxIterations int
	// Tolerance in token units. Nil means target/1000, at least 1.
	Tolerance *big.Int
	// MinAdjustment in wei. A pass whose summed ETH changes fall below it
	// ends the search. Nil means 1, i.e. stop only at a fixed point.
	MinAdjustment *big.Int
}

func (s Solver) minAdjustment() *big.Int {
	if s.MinAdjustment != nil && s.MinAdjustment.Sign() > 0 {
		return s.MinAdjustment
	}
	return big.NewInt(1)
}

func (s Solver) maxIterations() int {
	if s.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return s.MaxIterations
}

func (s Solver) tolerance(target *big.Int) *big.Int {
	if s.Tolerance != nil && s.Tolerance.Sign() > 0 {
		return new(big.Int).Set(s.Tolerance)
	}
	t := new(big.Int).Div(target, big.NewInt(1000))
	if t.Sign() == 0 {
		t.SetInt64(1)
	}
	return t
}

func targetFor(pool Pool, totalTokens *big.Int, n int) (*big.Int, error) {
	if n <= 0 {
		return nil, errNoWallets
	}
	if err := pool.check(); err != nil {
		return nil, err
	}
	if totalTokens == nil || totalTokens.Sign() <= 0 {
		return nil, fmt.Errorf("nothing to distribute: total tokens %v", totalTokens)
	}
	if totalTokens.Cmp(pool.ReserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	target := new(big.Int).Div(totalTokens, big.NewInt(int64(n)))
	if target.Sign() == 0 {
		return nil, fmt.Errorf("nothing to distribute: %s tokens over %d wallets", totalTokens, n)
	}
	return target, nil
}

// simulate runs the buys in index order and returns tokens per wallet and
// the pool state each wallet traded against.
func simulate(pool Pool, eth []*big.Int) ([]*big.Int, []Pool, error) {
	tokens := make([]*big.Int, len(eth))
	seen := make([]Pool, len(eth))
	cur := pool.Clone()
	for i, e := range eth {
		seen[i] = cur
		out, next, err := cur.Quote(e)
		if err != nil {
			return nil, nil, fmt.Errorf("wallet %d: %w", i, err)
		}
		tokens[i] = out
		cur = next
	}
	return tokens, seen, nil
}

func withinTolerance(tokens []*big.Int, target, tol *big.Int) bool {
	for _, t := range tokens {
		if absDiff(t, target).Cmp(tol) > 0 {
			return false
		}
	}
	return true
}

// Solve computes the equal split of totalTokens over n wallets.
func (s Solver) Solve(pool Pool, totalTokens *big.Int, n int) (*Distribution, error) {
	target, err := targetFor(pool, totalTokens, n)
	if err != nil {
		return nil, err
	}
	tol := s.tolerance(target)

	seed, err := GetAmountIn(target, pool.ReserveIn, pool.ReserveOut)
	if err != nil {
		return nil, err
	}
	eth := make([]*big.Int, n)
	for i := range eth {
		eth[i] = new(big.Int).Set(seed)
	}

	iterations := 0
	for iterations < s.maxIterations() {
		iterations++
		tokens, seen, err := simulate(pool, eth)
		if err != nil {
			return nil, err
		}
		if withinTolerance(tokens, target, tol) {
			break
		}

		adjusted := new(big.Int)
		for i := range eth {
			if absDiff(tokens[i], target).Cmp(tol) <= 0 {
				continue
			}
			need, err := GetAmountIn(target, seen[i].ReserveIn, seen[i].ReserveOut)
			if err != nil {
				return nil, fmt.Errorf("wallet %d: %w", i, err)
			}
			if need.Sign() < 0 {
				need.SetInt64(0)
			}
			adjusted.Add(adjusted, absDiff(need, eth[i]))
			eth[i] = need
		}
		if adjusted.Cmp(s.minAdjustment()) < 0 {
			break
		}
	}

	tokens, _, err := simulate(pool, eth)
	if err != nil {
		return nil, err
	}
	d := summarize(eth, tokens, target)
	d.Iterations = iterations
	d.Converged = withinTolerance(tokens, target, tol)
	return d, nil
}

func summarize(eth, tokens []*big.Int, target *big.Int) *Distribution {
	d := &Distribution{
		Buys:            make([]WalletBuy, len(eth)),
		TargetPerWallet: new(big.Int).Set(target),
		TotalETH:        new(big.Int),
		TotalTokens:     new(big.Int),
		AverageETH:      new(big.Int),
		PriceImpactBps:  new(big.Int),
	}
	for i := range eth {
		d.Buys[i] = WalletBuy{Index: i, ETH: new(big.Int).Set(eth[i]), Tokens: new(big.Int).Set(tokens[i])}
		d.TotalETH.Add(d.TotalETH, eth[i])
		d.TotalTokens.Add(d.TotalTokens, tokens[i])
	}
	if len(eth) > 0 {
		d.AverageETH.Div(d.TotalETH, big.NewInt(int64(len(eth))))
		d.PriceImpactBps = priceImpactBps(eth[0], eth[len(eth)-1])
	}
	return d
}

func priceImpactBps(first, last *big.Int) *big.Int {
	if first.Sign() == 0 {
		return new(big.Int)
	}
	d := new(big.Int).Sub(last, first)
	d.Mul(d, big.NewInt(10_000))
	return d.Quo(d, first)
}
