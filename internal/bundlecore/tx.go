package bundlecore

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/launch-bundler/internal/launch"
	"github.com/ligun0805/launch-bundler/internal/registry"
)

// Fees is either a legacy gas price or a pair of EIP-1559 caps.
type Fees struct {
	GasPrice *big.Int
	TipCap   *big.Int
	FeeCap   *big.Int
}

// Dynamic reports whether the fees describe an EIP-1559 transaction.
func (f Fees) Dynamic() bool { return f.TipCap != nil && f.FeeCap != nil }

// PerGas is the most one unit of gas can cost.
func (f Fees) PerGas() *big.Int {
	if f.Dynamic() {
		return new(big.Int).Set(f.FeeCap)
	}
	if f.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(f.GasPrice)
}

func (f Fees) validate() error {
	if f.Dynamic() {
		if f.FeeCap.Cmp(f.TipCap) < 0 {
			return errors.New("fee cap below tip cap")
		}
		return nil
	}
	if f.GasPrice == nil || f.GasPrice.Sign() <= 0 {
		return errors.New("gas price must be > 0")
	}
	return nil
}

// TxOpts carries the signer-side fields every builder needs.
type TxOpts struct {
	ChainID  *big.Int
	From     common.Address
	Nonce    uint64
	GasLimit uint64
	Fees     Fees
}

// Unsigned is a built but not yet signed transaction and the identity that must sign it.
type Unsigned struct {
	From common.Address
	Tx   *types.Transaction
}

// Contracts resolves named contracts for one network.
type Contracts struct {
	Registry *registry.Registry
	Network  string
}

func (c Contracts) resolve(name string) (common.Address, error) {
	if c.Registry == nil {
		return common.Address{}, fmt.Errorf("%w: no registry for %s", launch.ErrMissingContract, name)
	}
	return c.Registry.Resolve(name, c.Network)
}

// GasLimits per operation.
type GasLimits struct {
	Transfer       uint64
	TokenTransfer  uint64
	CreatePair     uint64
	Approve        uint64
	AddLiquidity   uint64
	OpenTrading    uint64
	ExcludeFromFee uint64
	Buy            uint64
}

// DefaultGasLimits are generous upper bounds for V2 style launches.
func DefaultGasLimits() GasLimits {
	return GasLimits{
		Transfer:       21_000,
		TokenTransfer:  90_000,
		CreatePair:     3_000_000,
		Approve:        60_000,
		AddLiquidity:   400_000,
		OpenTrading:    100_000,
		ExcludeFromFee: 60_000,
		Buy:            300_000,
	}
}

// WithDefaults fills zero limits from DefaultGasLimits.
func (g GasLimits) WithDefaults() GasLimits {
	d := DefaultGasLimits()
	pick := func(v, def uint64) uint64 {
		if v == 0 {
			return def
		}
		return v
	}
	return GasLimits{
		Transfer:       pick(g.Transfer, d.Transfer),
		TokenTransfer:  pick(g.TokenTransfer, d.TokenTransfer),
		CreatePair:     pick(g.CreatePair, d.CreatePair),
		Approve:        pick(g.Approve, d.Approve),
		AddLiquidity:   pick(g.AddLiquidity, d.AddLiquidity),
		OpenTrading:    pick(g.OpenTrading, d.OpenTrading),
		ExcludeFromFee: pick(g.ExcludeFromFee, d.ExcludeFromFee),
		Buy:            pick(g.Buy, d.Buy),
	}
}

func buildErr(op launch.OpKind, err error) error {
	return fmt.Errorf("%w: %s: %w", launch.ErrBuild, op, err)
}

// newTx builds a legacy or EIP-1559 transaction depending on opts.Fees.
func newTx(op launch.OpKind, opts TxOpts, to *common.Address, value *big.Int, data []byte) (*Unsigned, error) {
	if opts.ChainID == nil || opts.ChainID.Sign() <= 0 {
		return nil, buildErr(op, errors.New("chain id is not set"))
	}
	if opts.GasLimit == 0 {
		return nil, buildErr(op, errors.New("gas limit is zero"))
	}
	if err := opts.Fees.validate(); err != nil {
		return nil, buildErr(op, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	var tx *types.Transaction
	if opts.Fees.Dynamic() {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).Set(opts.ChainID),
			Nonce:     opts.Nonce,
			Gas:       opts.GasLimit,
			GasTipCap: new(big.Int).Set(opts.Fees.TipCap),
			GasFeeCap: new(big.Int).Set(opts.Fees.FeeCap),
			To:        to,
			Value:     new(big.Int).Set(value),
			Data:      data,
		})
	} else {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    opts.Nonce,
			GasPrice: new(big.Int).Set(opts.Fees.GasPrice),
			Gas:      opts.GasLimit,
			To:       to,
			Value:    new(big.Int).Set(value),
			Data:     data,
		})
	}
	return &Unsigned{From: opts.From, Tx: tx}, nil
}

func positive(op launch.OpKind, what string, x *big.Int) error {
	if x == nil || x.Sign() <= 0 {
		return buildErr(op, fmt.Errorf("%s must be > 0", what))
	}
	return nil
}

// BuildClogTransfer sends the non-liquidity share to the token contract itself.
func BuildClogTransfer(opts TxOpts, token common.Address, amount *big.Int) (*Unsigned, error) {
	if err := positive(launch.OpClogTransfer, "clog amount", amount); err != nil {
		return nil, err
	}
	data, err := EncodeTransfer(token, amount)
	if err != nil {
		return nil, buildErr(launch.OpClogTransfer, err)
	}
	return newTx(launch.OpClogTransfer, opts, &token, nil, data)
}

// BuildCreatePair calls factory.createPair(token, WETH).
func BuildCreatePair(c Contracts, opts TxOpts, token common.Address) (*Unsigned, error) {
	factory, err := c.resolve(registry.Factory)
	if err != nil {
		return nil, err
	}
	weth, err := c.resolve(registry.WETH)
	if err != nil {
		return nil, err
	}
	data, err := encodeCreatePair(token, weth)
	if err != nil {
		return nil, buildErr(launch.OpCreatePair, err)
	}
	return newTx(launch.OpCreatePair, opts, &factory, nil, data)
}

// BuildApproveRouter approves the router to spend amount of token. Nil amount means unlimited.
func BuildApproveRouter(c Contracts, opts TxOpts, token common.Address, amount *big.Int) (*Unsigned, error) {
	router, err := c.resolve(registry.Router)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		amount = math.MaxBig256
	}
	data, err := EncodeApprove(router, amount)
	if err != nil {
		return nil, buildErr(launch.OpApproveRouter, err)
	}
	return newTx(launch.OpApproveRouter, opts, &token, nil, data)
}

// AddLiquidityParams for router.addLiquidityETH.
type AddLiquidityParams struct {
	Token       common.Address
	TokenAmount *big.Int
	MinTokens   *big.Int
	ETHAmount   *big.Int
	MinETH      *big.Int
	To          common.Address
	Deadline    *big.Int
}

// BuildAddLiquidity seeds the pool with tokens and ETH.
func BuildAddLiquidity(c Contracts, opts TxOpts, p AddLiquidityParams) (*Unsigned, error) {
	if err := positive(launch.OpAddLiquidity, "token amount", p.TokenAmount); err != nil {
		return nil, err
	}
	if err := positive(launch.OpAddLiquidity, "ETH amount", p.ETHAmount); err != nil {
		return nil, err
	}
	if err := positive(launch.OpAddLiquidity, "deadline", p.Deadline); err != nil {
		return nil, err
	}
	router, err := c.resolve(registry.Router)
	if err != nil {
		return nil, err
	}
	minTokens, minETH := orZero(p.MinTokens), orZero(p.MinETH)
	data, err := encodeAddLiquidityETH(p.Token, p.TokenAmount, minTokens, minETH, p.To, p.Deadline)
	if err != nil {
		return nil, buildErr(launch.OpAddLiquidity, err)
	}
	return newTx(launch.OpAddLiquidity, opts, &router, p.ETHAmount, data)
}

// BuildOpenTrading calls token.openTrading().
func BuildOpenTrading(opts TxOpts, token common.Address) (*Unsigned, error) {
	data, err := encodeOpenTrading()
	if err != nil {
		return nil, buildErr(launch.OpOpenTrading, err)
	}
	return newTx(launch.OpOpenTrading, opts, &token, nil, data)
}

// BuildExcludeFromFee calls token.excludeFromFee(wallet).
func BuildExcludeFromFee(opts TxOpts, token, wallet common.Address) (*Unsigned, error) {
	if wallet == (common.Address{}) {
		return nil, buildErr(launch.OpExcludeFromFee, errors.New("wallet is zero"))
	}
	data, err := encodeExcludeFromFee(wallet)
	if err != nil {
		return nil, buildErr(launch.OpExcludeFromFee, err)
	}
	return newTx(launch.OpExcludeFromFee, opts, &token, nil, data)
}

// BuildFundWallet is a plain ETH transfer.
func BuildFundWallet(opts TxOpts, to common.Address, amount *big.Int) (*Unsigned, error) {
	if err := positive(launch.OpFundWallet, "fund amount", amount); err != nil {
		return nil, err
	}
	return newTx(launch.OpFundWallet, opts, &to, amount, nil)
}

// BuyParams for router.swapExactETHForTokensSupportingFeeOnTransferTokens.
type BuyParams struct {
	Token     common.Address
	ETHIn     *big.Int
	MinTokens *big.Int
	To        common.Address
	Deadline  *big.Int
}

// BuildBuyTokens swaps ETH for the launch token through WETH.
func BuildBuyTokens(c Contracts, opts TxOpts, p BuyParams) (*Unsigned, error) {
	if err := positive(launch.OpBuyTokens, "ETH in", p.ETHIn); err != nil {
		return nil, err
	}
	if err := positive(launch.OpBuyTokens, "deadline", p.Deadline); err != nil {
		return nil, err
	}
	router, err := c.resolve(registry.Router)
	if err != nil {
		return nil, err
	}
	weth, err := c.resolve(registry.WETH)
	if err != nil {
		return nil, err
	}
	data, err := encodeSwapExactETH(orZero(p.MinTokens), []common.Address{weth, p.Token}, p.To, p.Deadline)
	if err != nil {
		return nil, buildErr(launch.OpBuyTokens, err)
	}
	return newTx(launch.OpBuyTokens, opts, &router, p.ETHIn, data)
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
