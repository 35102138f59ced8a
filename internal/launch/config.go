package launch

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Limits on the launch parameters.
const (
	MinWallets          = 1
	MaxWallets          = 50
	MinLiquidityPercent = 10
	MaxLiquidityPercent = 100
)

// Config describes one token launch.
// Percentages are whole percent of total supply, PercentPerWalletBps is in basis points.
type Config struct {
	TokenAddress        common.Address
	TokenName           string
	TotalSupply         *big.Int // smallest token unit
	DevWallet           common.Address
	FundingWallet       common.Address
	WalletCount         int
	BundlePercent       int64
	PercentPerWalletBps int64
	LiquidityETH        *big.Int // wei
	LiquidityPercent    int64
}

// Validate checks the config invariants. All failures wrap ErrConfig.
func (c Config) Validate() error {
	if c.TokenAddress == (common.Address{}) {
		return configErr("token address is zero")
	}
	if c.DevWallet == (common.Address{}) {
		return configErr("dev wallet is zero")
	}
	if c.FundingWallet == (common.Address{}) {
		return configErr("funding wallet is zero")
	}
	if c.TotalSupply == nil || c.TotalSupply.Sign() <= 0 {
		return configErr("total supply must be > 0")
	}
	if c.LiquidityETH == nil || c.LiquidityETH.Sign() <= 0 {
		return configErr("liquidity ETH must be > 0")
	}
	if c.WalletCount < MinWallets || c.WalletCount > MaxWallets {
		return configErr(fmt.Sprintf("wallet count %d outside [%d,%d]", c.WalletCount, MinWallets, MaxWallets))
	}
	if c.LiquidityPercent < MinLiquidityPercent || c.LiquidityPercent > MaxLiquidityPercent {
		return configErr(fmt.Sprintf("liquidity percent %d outside [%d,%d]", c.LiquidityPercent, MinLiquidityPercent, MaxLiquidityPercent))
	}
	if c.BundlePercent <= 0 || c.BundlePercent > 100 {
		return configErr(fmt.Sprintf("bundle percent %d outside (0,100]", c.BundlePercent))
	}
	// bundle buys come out of the pool
	if c.BundlePercent > c.LiquidityPercent {
		return configErr(fmt.Sprintf("bundle percent %d exceeds liquidity percent %d", c.BundlePercent, c.LiquidityPercent))
	}
	if c.PercentPerWalletBps < 0 {
		return configErr("percent per wallet is negative")
	}
	if c.PercentPerWalletBps*int64(c.WalletCount) > c.BundlePercent*100 {
		return configErr(fmt.Sprintf("percent per wallet %d bps x %d wallets exceeds bundle percent %d", c.PercentPerWalletBps, c.WalletCount, c.BundlePercent))
	}
	return nil
}

// Normalized returns a copy with PercentPerWalletBps derived from the bundle percent when unset.
func (c Config) Normalized() Config {
	if c.PercentPerWalletBps == 0 && c.WalletCount > 0 {
		c.PercentPerWalletBps = c.BundlePercent * 100 / int64(c.WalletCount)
	}
	return c
}

// TokensForLiquidity is floor(S*L/100).
func (c Config) TokensForLiquidity() *big.Int {
	return percentOf(c.TotalSupply, c.LiquidityPercent)
}

// TokensForClog is what stays on the token contract: S - TokensForLiquidity.
func (c Config) TokensForClog() *big.Int {
	return new(big.Int).Sub(c.TotalSupply, c.TokensForLiquidity())
}

// TokensForBundle is floor(S*P/100).
func (c Config) TokensForBundle() *big.Int {
	return percentOf(c.TotalSupply, c.BundlePercent)
}

// TokensPerWallet is floor(TokensForBundle / N).
func (c Config) TokensPerWallet() *big.Int {
	if c.WalletCount <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Div(c.TokensForBundle(), big.NewInt(int64(c.WalletCount)))
}

func percentOf(x *big.Int, pct int64) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(x, big.NewInt(pct))
	return out.Div(out, big.NewInt(100))
}
