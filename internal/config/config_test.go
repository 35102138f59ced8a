package config

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/launch"
)

func TestLoad_Defaults(t *testing.T) {
	st, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRPCURL, st.RPCURL)
	assert.Equal(t, DefaultNetwork, st.Network)
	assert.Equal(t, uint64(DefaultBasefeeMul), st.BasefeeMul)
	assert.Equal(t, int64(DefaultSlippageBps), st.SlippageBps)
	assert.Equal(t, DefaultBundleTimeout, st.BundleTimeout)
	assert.Equal(t, bundlecore.DefaultGasLimits(), st.GasLimits())
}

func TestLoad_EnvBothCases(t *testing.T) {
	t.Setenv("RPC_URL", "http://node:8545")
	t.Setenv("network", "Mainnet")
	t.Setenv("BASE_MUL", "3")
	t.Setenv("gas_limit_buy", "250000")
	t.Setenv("BUNDLE_TIMEOUT", "45s")

	st, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "http://node:8545", st.RPCURL)
	assert.Equal(t, "mainnet", st.Network)
	assert.Equal(t, uint64(3), st.BasefeeMul)
	assert.Equal(t, uint64(250000), st.GasLimits().Buy)
	assert.Equal(t, uint64(21000), st.GasLimits().Transfer)
	assert.Equal(t, 45*time.Second, st.BundleTimeout)
}

func TestLoad_FilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"rpc_url: http://file:8545\nslippage_bps: 100\nwallet_count: 5\n"), 0o600))
	t.Setenv("SLIPPAGE_BPS", "200")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--wallet-count=7"}))

	st, err := Load(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "http://file:8545", st.RPCURL)
	assert.Equal(t, int64(200), st.SlippageBps, "env beats file")
	assert.Equal(t, 7, st.Launch.WalletCount, "changed flag beats file")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("SLIPPAGE_BPS", "20000")
	t.Setenv("SEAL_KEY", "abcd")
	_, err := Load(nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slippage_bps")
	assert.Contains(t, err.Error(), "seal_key")

	_, err = Load(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSettings_LaunchConfig(t *testing.T) {
	dev := common.HexToAddress("0x00000000000000000000000000000000000000d1")
	st := &Settings{Launch: LaunchSettings{
		TokenAddress:     "0x00000000000000000000000000000000000000aa",
		TotalSupply:      "1000000",
		TokenDecimals:    18,
		WalletCount:      4,
		BundlePercent:    20,
		LiquidityETH:     "1.5",
		LiquidityPercent: 80,
		FundingWallet:    "0x00000000000000000000000000000000000000f1",
	}}
	cfg, err := st.LaunchConfig(dev, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, dev, cfg.DevWallet)
	assert.Equal(t, common.HexToAddress("0xf1"), cfg.FundingWallet)
	want, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	assert.Equal(t, want, cfg.TotalSupply)
	assert.Equal(t, big.NewInt(1_500_000_000_000_000_000), cfg.LiquidityETH)
	assert.Equal(t, int64(500), cfg.PercentPerWalletBps)

	st.Launch.FundingWallet = ""
	_, err = st.LaunchConfig(dev, common.Address{})
	assert.True(t, errors.Is(err, launch.ErrConfig))

	st.Launch.FundingWallet = "0xf1"
	_, err = st.LaunchConfig(dev, common.Address{})
	assert.True(t, errors.Is(err, launch.ErrConfig))

	st.Launch.FundingWallet = "0x00000000000000000000000000000000000000f1"
	st.Launch.BundlePercent = 90
	_, err = st.LaunchConfig(dev, common.Address{})
	assert.True(t, errors.Is(err, launch.ErrConfig), "bundle above liquidity percent")
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("0.000000001", 18)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000_000), v)

	v, err = ParseUnits(" 42 ", 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), v)

	_, err = ParseUnits("1.5", 0)
	assert.Error(t, err)
	_, err = ParseUnits("-1", 18)
	assert.Error(t, err)
	_, err = ParseUnits("abc", 18)
	assert.Error(t, err)
}

func TestSettings_Helpers(t *testing.T) {
	st := &Settings{WalletPaddingGwei: 2, FallbackGasPriceGwei: 30, SolverTolerance: "17", GasPaddingETH: "0.01"}
	assert.Equal(t, big.NewInt(2_000_000_000), st.WalletPadding())
	assert.Equal(t, big.NewInt(30_000_000_000), st.FallbackGasPrice())

	sv, err := st.Solver()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(17), sv.Tolerance)

	pad, err := st.GasPadding()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000_000_000_000), pad)

	st.SolverTolerance = "x"
	_, err = st.Solver()
	assert.Error(t, err)

	key, err := (&Settings{}).SealKey()
	require.NoError(t, err)
	assert.Nil(t, key)
}
