// Package config loads settings from .env files, an optional config file,
// the environment and command line flags.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ligun0805/launch-bundler/internal/amm"
	"github.com/ligun0805/launch-bundler/internal/bundlecore"
)

// Settings keeps all configuration options.
// Keys are lower_case; the environment may use either case.
type Settings struct {
	RPCURL             string `mapstructure:"rpc_url"`
	ChainID            int64  `mapstructure:"chain_id"` // 0 asks the node
	Network            string `mapstructure:"network"`
	RelayURL           string `mapstructure:"relay_url"`
	FlashbotsAuthPKHex string `mapstructure:"flashbots_auth_pk"`
	DevPrivateKeyHex   string `mapstructure:"dev_private_key"`
	FundingPrivKeyHex  string `mapstructure:"funding_private_key"`
	DatabaseURL        string `mapstructure:"database_url"`
	SealKeyHex         string `mapstructure:"seal_key"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	Debug    bool   `mapstructure:"debug"`

	TipGwei              int64  `mapstructure:"tip_gwei"` // 0 asks the node
	BasefeeMul           uint64 `mapstructure:"basefee_mul"`
	FallbackGasPriceGwei int64  `mapstructure:"fallback_gas_price_gwei"`
	GasPriceGwei         int64  `mapstructure:"gas_price_gwei"` // 0 asks the node
	TipHistoryBlocks     uint64 `mapstructure:"tip_history_blocks"`
	TipPercentile        int    `mapstructure:"tip_percentile"`

	GasLimitTransfer      uint64 `mapstructure:"gas_limit_transfer"`
	GasLimitTokenTransfer uint64 `mapstructure:"gas_limit_token_transfer"`
	GasLimitCreatePair    uint64 `mapstructure:"gas_limit_create_pair"`
	GasLimitApprove       uint64 `mapstructure:"gas_limit_approve"`
	GasLimitAddLiquidity  uint64 `mapstructure:"gas_limit_add_liquidity"`
	GasLimitOpenTrading   uint64 `mapstructure:"gas_limit_open_trading"`
	GasLimitExclude       uint64 `mapstructure:"gas_limit_exclude"`
	GasLimitBuy           uint64 `mapstructure:"gas_limit_buy"`

	SlippageBps         int64         `mapstructure:"slippage_bps"`
	SolverMaxIterations int           `mapstructure:"solver_max_iterations"`
	SolverTolerance     string        `mapstructure:"solver_tolerance"` // token units, empty = target/1000
	WalletPaddingGwei   int64         `mapstructure:"wallet_padding_gwei"`
	GasPaddingETH       string        `mapstructure:"gas_padding_eth"`
	TargetBlock         uint64        `mapstructure:"target_block"`
	BundleTimeout       time.Duration `mapstructure:"bundle_timeout"`
	Deadline            time.Duration `mapstructure:"deadline"`

	Launch LaunchSettings `mapstructure:",squash"`
}

// Defaults.
const (
	DefaultRPCURL           = "http://127.0.0.1:8545"
	DefaultNetwork          = "local"
	DefaultLogLevel         = "info"
	DefaultBasefeeMul       = 2
	DefaultFallbackGasPrice = 30
	DefaultSlippageBps      = 500
	DefaultTokenDecimals    = 18
	DefaultBundleTimeout    = 2 * time.Minute
	DefaultTipPercentile    = 90
)

func defaults() map[string]any {
	return map[string]any{
		"rpc_url":                 DefaultRPCURL,
		"network":                 DefaultNetwork,
		"log_level":               DefaultLogLevel,
		"basefee_mul":             DefaultBasefeeMul,
		"fallback_gas_price_gwei": DefaultFallbackGasPrice,
		"slippage_bps":            DefaultSlippageBps,
		"solver_max_iterations":   amm.DefaultMaxIterations,
		"token_decimals":          DefaultTokenDecimals,
		"bundle_timeout":          DefaultBundleTimeout,
		"gas_padding_eth":         "0",
		"tip_percentile":          DefaultTipPercentile,
	}
}

// envAliases are extra variable names accepted for a key.
var envAliases = map[string][]string{
	"basefee_mul":       {"BASE_MUL"},
	"flashbots_auth_pk": {"FLASHBOTS_AUTH_KEY"},
	"database_url":      {"POSTGRES_URL"},
}

// LoadDotenv loads .env, then lets .env.local override it. Missing files are fine.
func LoadDotenv() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
}

// Load resolves settings. flags may be nil; configFile may be empty.
// Precedence: changed flags, environment, config file, defaults.
func Load(flags *pflag.FlagSet, configFile string) (*Settings, error) {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	for _, key := range keys() {
		names := append([]string{key, strings.ToUpper(key)}, envAliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
		if flags == nil {
			continue
		}
		if f := flags.Lookup(flagName(key)); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		}
	}

	var st Settings
	if err := v.Unmarshal(&st); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	st.Network = strings.ToLower(strings.TrimSpace(st.Network))
	return &st, st.validate()
}

func flagName(key string) string { return strings.ReplaceAll(key, "_", "-") }

// RegisterFlags adds a flag for every setting to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(flagName("rpc_url"), DefaultRPCURL, "JSON-RPC endpoint")
	fs.Int64(flagName("chain_id"), 0, "chain id (0 asks the node)")
	fs.String(flagName("network"), DefaultNetwork, "network name in the contract registry")
	fs.String(flagName("relay_url"), "", "bundle relay URL")
	fs.String(flagName("database_url"), "", "postgres DSN; empty keeps records in memory")
	fs.String(flagName("log_level"), DefaultLogLevel, "debug|info|warn|error")
	fs.String(flagName("log_file"), "", "also write JSON logs to this file")
	fs.Bool(flagName("debug"), false, "development logging")
	fs.Int64(flagName("tip_gwei"), 0, "priority fee in gwei (0 asks the node)")
	fs.Uint64(flagName("basefee_mul"), DefaultBasefeeMul, "max fee = base fee * mul + tip")
	fs.Uint64(flagName("tip_history_blocks"), 0, "derive the tip from this many blocks of fee history (0 asks the node)")
	fs.Int(flagName("tip_percentile"), DefaultTipPercentile, "fee history reward percentile")
	fs.Int64(flagName("gas_price_gwei"), 0, "legacy gas price in gwei (0 asks the node)")
	fs.Int64(flagName("fallback_gas_price_gwei"), DefaultFallbackGasPrice, "gas price used for estimates when the node cannot quote one")
	fs.Int64(flagName("slippage_bps"), DefaultSlippageBps, "minimum output tolerance of each buy")
	fs.Int64(flagName("wallet_padding_gwei"), 0, "extra gwei sent to each bundle wallet")
	fs.String(flagName("gas_padding_eth"), "0", "gas allowance added to the estimate, in ETH")
	fs.Uint64(flagName("target_block"), 0, "relay target block (0 = next block)")
	fs.Duration(flagName("bundle_timeout"), DefaultBundleTimeout, "relay bundle validity window")
	fs.Duration(flagName("deadline"), 0, "router deadline from now")

	fs.String(flagName("token_address"), "", "token contract")
	fs.String(flagName("token_name"), "", "token name for display")
	fs.String(flagName("total_supply"), "", "total supply in whole tokens")
	fs.Int32(flagName("token_decimals"), DefaultTokenDecimals, "token decimals")
	fs.String(flagName("dev_wallet"), "", "dev wallet (defaults to the dev key's address)")
	fs.String(flagName("funding_wallet"), "", "funding wallet (defaults to the funding key's address)")
	fs.Int(flagName("wallet_count"), 0, "number of bundle wallets")
	fs.Int64(flagName("bundle_percent"), 0, "percent of supply bought by the bundle")
	fs.Int64(flagName("percent_per_wallet_bps"), 0, "per wallet share in bps (0 = even split)")
	fs.String(flagName("liquidity_eth"), "", "ETH paired with the liquidity tokens")
	fs.Int64(flagName("liquidity_percent"), 0, "percent of supply added as liquidity")
}

func keys() []string {
	return []string{
		"rpc_url", "chain_id", "network", "relay_url", "flashbots_auth_pk",
		"dev_private_key", "funding_private_key", "database_url", "seal_key",
		"log_level", "log_file", "debug",
		"tip_gwei", "basefee_mul", "fallback_gas_price_gwei", "gas_price_gwei", "tip_history_blocks", "tip_percentile",
		"gas_limit_transfer", "gas_limit_token_transfer", "gas_limit_create_pair", "gas_limit_approve",
		"gas_limit_add_liquidity", "gas_limit_open_trading", "gas_limit_exclude", "gas_limit_buy",
		"slippage_bps", "solver_max_iterations", "solver_tolerance", "wallet_padding_gwei",
		"gas_padding_eth", "target_block", "bundle_timeout", "deadline",
		"token_address", "token_name", "total_supply", "token_decimals", "dev_wallet",
		"funding_wallet", "wallet_count", "bundle_percent", "percent_per_wallet_bps",
		"liquidity_eth", "liquidity_percent",
	}
}

func (s *Settings) validate() error {
	var errs []error
	if u, err := url.Parse(s.RPCURL); err != nil || u.Scheme == "" {
		errs = append(errs, fmt.Errorf("rpc_url %q is not a URL", s.RPCURL))
	}
	if s.RelayURL != "" {
		if u, err := url.Parse(s.RelayURL); err != nil || !strings.HasPrefix(u.Scheme, "http") {
			errs = append(errs, fmt.Errorf("relay_url %q is not an http URL", s.RelayURL))
		}
	}
	if s.SlippageBps < 0 || s.SlippageBps > 10_000 {
		errs = append(errs, fmt.Errorf("slippage_bps %d outside [0,10000]", s.SlippageBps))
	}
	if s.TipGwei < 0 || s.GasPriceGwei < 0 || s.FallbackGasPriceGwei < 0 || s.WalletPaddingGwei < 0 {
		errs = append(errs, errors.New("gas settings must not be negative"))
	}
	if s.TipPercentile < 0 || s.TipPercentile > 99 {
		errs = append(errs, fmt.Errorf("tip_percentile %d outside [0,99]", s.TipPercentile))
	}
	if s.SolverMaxIterations < 0 {
		errs = append(errs, errors.New("solver_max_iterations must not be negative"))
	}
	if s.SealKeyHex != "" {
		if _, err := s.SealKey(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GasLimits returns the configured limits with defaults for unset ones.
func (s *Settings) GasLimits() bundlecore.GasLimits {
	return bundlecore.GasLimits{
		Transfer:       s.GasLimitTransfer,
		TokenTransfer:  s.GasLimitTokenTransfer,
		CreatePair:     s.GasLimitCreatePair,
		Approve:        s.GasLimitApprove,
		AddLiquidity:   s.GasLimitAddLiquidity,
		OpenTrading:    s.GasLimitOpenTrading,
		ExcludeFromFee: s.GasLimitExclude,
		Buy:            s.GasLimitBuy,
	}.WithDefaults()
}

func (s *Settings) Solver() (amm.Solver, error) {
	sv := amm.Solver{MaxIterations: s.SolverMaxIterations}
	if s.SolverTolerance != "" {
		tol, ok := new(big.Int).SetString(s.SolverTolerance, 10)
		if !ok || tol.Sign() < 0 {
			return amm.Solver{}, fmt.Errorf("solver_tolerance %q is not a token amount", s.SolverTolerance)
		}
		sv.Tolerance = tol
	}
	return sv, nil
}

func (s *Settings) WalletPadding() *big.Int { return bundlecore.GweiToWei(s.WalletPaddingGwei) }

func (s *Settings) FallbackGasPrice() *big.Int { return bundlecore.GweiToWei(s.FallbackGasPriceGwei) }

// GasPadding is the estimate's gas allowance in wei.
func (s *Settings) GasPadding() (*big.Int, error) {
	if strings.TrimSpace(s.GasPaddingETH) == "" {
		return new(big.Int), nil
	}
	return ParseUnits(s.GasPaddingETH, 18)
}

// SealKey decodes the 32 byte hex key used to seal wallet keys. Empty means none.
func (s *Settings) SealKey() ([]byte, error) {
	if s.SealKeyHex == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s.SealKeyHex), "0x"))
	if err != nil || len(b) != 32 {
		return nil, errors.New("seal_key must be 32 bytes of hex")
	}
	return b, nil
}

// ParseUnits converts a decimal string ("1.5") to integer units with the given decimals.
// Fractions finer than the unit are rejected.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	return scaled.BigInt(), nil
}
