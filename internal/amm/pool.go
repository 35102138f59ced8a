// Package amm holds constant-product pricing and the equal-distribution solver.
package amm

import (
	"errors"
	"math/big"
)

var (
	// ErrNoLiquidity is returned when either reserve is zero.
	ErrNoLiquidity = errors.New("no liquidity: zero reserves")
	// ErrInsufficientLiquidity is returned when the requested output drains the pool.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for requested output")
)

var (
	feeNumerator   = big.NewInt(997)
	feeDenominator = big.NewInt(1000)
)

// Pool is a constant-product pool seen from the buyer: ETH in, tokens out.
type Pool struct {
	ReserveIn  *big.Int
	ReserveOut *big.Int
}

// NewPool copies the reserves.
func NewPool(reserveIn, reserveOut *big.Int) Pool {
	return Pool{ReserveIn: cp(reserveIn), ReserveOut: cp(reserveOut)}
}

func (p Pool) check() error {
	if p.ReserveIn == nil || p.ReserveOut == nil || p.ReserveIn.Sign() <= 0 || p.ReserveOut.Sign() <= 0 {
		return ErrNoLiquidity
	}
	return nil
}

// Clone returns an independent copy.
func (p Pool) Clone() Pool { return NewPool(p.ReserveIn, p.ReserveOut) }

// Swap returns the pool after buying amountOut tokens for amountIn ETH.
func (p Pool) Swap(amountIn, amountOut *big.Int) Pool {
	return Pool{
		ReserveIn:  new(big.Int).Add(p.ReserveIn, amountIn),
		ReserveOut: new(big.Int).Sub(p.ReserveOut, amountOut),
	}
}

// GetAmountOut is the router's getAmountOut with the 0.3% fee.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int), nil
	}
	inWithFee := new(big.Int).Mul(amountIn, feeNumerator)
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, feeDenominator)
	den.Add(den, inWithFee)
	return num.Div(num, den), nil
}

// GetAmountIn is the router's getAmountIn: the minimum input yielding at least amountOut.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return new(big.Int), nil
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, feeDenominator)
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, feeNumerator)
	num.Div(num, den)
	return num.Add(num, big.NewInt(1)), nil
}

// Quote returns tokens received and the pool after the trade.
func (p Pool) Quote(amountIn *big.Int) (*big.Int, Pool, error) {
	if err := p.check(); err != nil {
		return nil, p, err
	}
	out, err := GetAmountOut(amountIn, p.ReserveIn, p.ReserveOut)
	if err != nil {
		return nil, p, err
	}
	return out, p.Swap(amountIn, out), nil
}

func cp(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

func absDiff(a, b *big.Int) *big.Int {
	d := new(big.Int).Sub(a, b)
	return d.Abs(d)
}
