package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/launch-bundler/internal/launch"
)

// LaunchSettings are the per-launch parameters in their textual form.
// Amounts are decimal strings: whole tokens for TotalSupply, ETH for LiquidityETH.
type LaunchSettings struct {
	TokenAddress        string `mapstructure:"token_address"`
	TokenName           string `mapstructure:"token_name"`
	TotalSupply         string `mapstructure:"total_supply"`
	TokenDecimals       int32  `mapstructure:"token_decimals"`
	DevWallet           string `mapstructure:"dev_wallet"`
	FundingWallet       string `mapstructure:"funding_wallet"`
	WalletCount         int    `mapstructure:"wallet_count"`
	BundlePercent       int64  `mapstructure:"bundle_percent"`
	PercentPerWalletBps int64  `mapstructure:"percent_per_wallet_bps"`
	LiquidityETH        string `mapstructure:"liquidity_eth"`
	LiquidityPercent    int64  `mapstructure:"liquidity_percent"`
}

// LaunchConfig parses the launch parameters. Empty dev or funding wallets are
// filled from the given fallbacks (usually the addresses of the loaded keys).
// The result is validated and normalized.
func (s *Settings) LaunchConfig(devFallback, fundingFallback common.Address) (launch.Config, error) {
	ls := s.Launch
	token, err := parseAddress("token_address", ls.TokenAddress, common.Address{})
	if err != nil {
		return launch.Config{}, err
	}
	dev, err := parseAddress("dev_wallet", ls.DevWallet, devFallback)
	if err != nil {
		return launch.Config{}, err
	}
	funding, err := parseAddress("funding_wallet", ls.FundingWallet, fundingFallback)
	if err != nil {
		return launch.Config{}, err
	}
	if ls.TokenDecimals < 0 || ls.TokenDecimals > 36 {
		return launch.Config{}, fmt.Errorf("%w: token_decimals %d outside [0,36]", launch.ErrConfig, ls.TokenDecimals)
	}
	if strings.TrimSpace(ls.TotalSupply) == "" {
		return launch.Config{}, fmt.Errorf("%w: total_supply is required", launch.ErrConfig)
	}
	supply, err := ParseUnits(ls.TotalSupply, ls.TokenDecimals)
	if err != nil {
		return launch.Config{}, fmt.Errorf("%w: total_supply: %w", launch.ErrConfig, err)
	}
	if strings.TrimSpace(ls.LiquidityETH) == "" {
		return launch.Config{}, fmt.Errorf("%w: liquidity_eth is required", launch.ErrConfig)
	}
	liqETH, err := ParseUnits(ls.LiquidityETH, 18)
	if err != nil {
		return launch.Config{}, fmt.Errorf("%w: liquidity_eth: %w", launch.ErrConfig, err)
	}

	cfg := launch.Config{
		TokenAddress:        token,
		TokenName:           ls.TokenName,
		TotalSupply:         supply,
		DevWallet:           dev,
		FundingWallet:       funding,
		WalletCount:         ls.WalletCount,
		BundlePercent:       ls.BundlePercent,
		PercentPerWalletBps: ls.PercentPerWalletBps,
		LiquidityETH:        liqETH,
		LiquidityPercent:    ls.LiquidityPercent,
	}
	if err := cfg.Validate(); err != nil {
		return launch.Config{}, err
	}
	return cfg.Normalized(), nil
}

func parseAddress(field, s string, fallback common.Address) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if fallback == (common.Address{}) {
			return common.Address{}, fmt.Errorf("%w: %s is required", launch.ErrConfig, field)
		}
		return fallback, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not an address", launch.ErrConfig, field, s)
	}
	return common.HexToAddress(s), nil
}
