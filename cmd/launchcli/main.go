// Command launchcli estimates, builds and submits bundled token launches.
package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/chain"
	"github.com/ligun0805/launch-bundler/internal/config"
	"github.com/ligun0805/launch-bundler/internal/launcher"
	"github.com/ligun0805/launch-bundler/internal/logging"
	"github.com/ligun0805/launch-bundler/internal/registry"
	"github.com/ligun0805/launch-bundler/internal/storage"
	"github.com/ligun0805/launch-bundler/internal/storage/memory"
	"github.com/ligun0805/launch-bundler/internal/storage/migrations"
	"github.com/ligun0805/launch-bundler/internal/storage/postgres"
)

const usageText = `usage: launchcli <command> [flags]

commands:
  estimate   print the ETH needed for a launch (no chain access)
  build      build, sign and validate the launch bundle
  launches   list recorded launches

run "launchcli <command> --help" for flags.
`

func main() {
	config.LoadDotenv()
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "estimate":
		err = runEstimate(args)
	case "build":
		err = runBuild(ctx, args)
	case "launches":
		err = runLaunches(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	if err != nil {
		die(err.Error())
	}
}

// app holds what every command needs after flags are parsed.
type app struct {
	st  *config.Settings
	log *zap.Logger
	reg *registry.Registry
}

func setup(fs *pflag.FlagSet, args []string) (*app, error) {
	config.RegisterFlags(fs)
	configFile := fs.String("config", "", "config file (yaml, json or toml)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	st, err := config.Load(fs, *configFile)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(st.LogLevel, st.Debug, st.LogFile)
	if err != nil {
		return nil, err
	}
	return &app{st: st, log: log, reg: registry.New()}, nil
}

func (a *app) launcherOptions() (launcher.Options, error) {
	solver, err := a.st.Solver()
	if err != nil {
		return launcher.Options{}, err
	}
	pad, err := a.st.GasPadding()
	if err != nil {
		return launcher.Options{}, err
	}
	return launcher.Options{
		TipGwei:          a.st.TipGwei,
		BaseFeeMul:       a.st.BasefeeMul,
		GasLimits:        a.st.GasLimits(),
		Solver:           solver,
		FallbackGasPrice: a.st.FallbackGasPrice(),
		WalletPadding:    a.st.WalletPadding(),
		GasPadding:       pad,
		SlippageBps:      a.st.SlippageBps,
		Deadline:         a.st.Deadline,
		Logger:           a.log,
	}, nil
}

// openStores connects to Postgres when a DSN is configured, memory otherwise.
// The returned func releases the connection.
func (a *app) openStores(ctx context.Context) (storage.Stores, func(), error) {
	if a.st.DatabaseURL == "" {
		a.log.Info("no database configured, launch records stay in memory")
		return memory.NewStores(), func() {}, nil
	}
	pool, err := postgres.NewPool(ctx, a.st.DatabaseURL)
	if err != nil {
		return storage.Stores{}, nil, err
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return storage.Stores{}, nil, err
	}
	return postgres.NewStores(pool), pool.Close, nil
}

func (a *app) sealer() (*storage.KeySealer, error) {
	key, err := a.st.SealKey()
	if err != nil || key == nil {
		return nil, err
	}
	return storage.NewKeySealer(key)
}

// loadKeys reads the dev and funding keys from settings, prompting for any
// that are missing. An empty funding key reuses the dev key.
func (a *app) loadKeys() (dev, funding *ecdsa.PrivateKey, err error) {
	devHex := a.st.DevPrivateKeyHex
	if strings.TrimSpace(devHex) == "" {
		devHex = readPassword("Dev wallet private key: ")
	}
	dev, err = bundlecore.ParsePrivateKey(devHex)
	if err != nil {
		return nil, nil, fmt.Errorf("dev key: %w", err)
	}
	fundHex := a.st.FundingPrivKeyHex
	if strings.TrimSpace(fundHex) == "" {
		fundHex = readPassword("Funding wallet private key (empty = dev key): ")
	}
	if strings.TrimSpace(fundHex) == "" {
		return dev, dev, nil
	}
	funding, err = bundlecore.ParsePrivateKey(fundHex)
	if err != nil {
		return nil, nil, fmt.Errorf("funding key: %w", err)
	}
	return dev, funding, nil
}

func runEstimate(args []string) error {
	fs := pflag.NewFlagSet("estimate", pflag.ExitOnError)
	jsonOut := fs.String("out", "", "also write the estimate as JSON to this file")
	a, err := setup(fs, args)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()

	// Estimates need addresses only; keys are not read.
	cfg, err := a.st.LaunchConfig(addressOrZero(a.st.DevPrivateKeyHex), addressOrZero(a.st.FundingPrivKeyHex))
	if err != nil {
		return err
	}
	opts, err := a.launcherOptions()
	if err != nil {
		return err
	}
	est, err := launcher.New(a.reg, nil, opts).Estimate(cfg)
	if err != nil {
		return err
	}
	printEstimate(cfg, est)
	if *jsonOut != "" {
		return writeJSON(*jsonOut, estimateJSON(cfg, est), 0o644)
	}
	return nil
}

func runBuild(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("build", pflag.ExitOnError)
	out := fs.String("out", "", "write the bundle as JSON to this file")
	keysOut := fs.String("keys-out", "", "where to write bundle wallet keys when they are not sealed into storage")
	doSubmit := fs.Bool("submit", false, "submit the bundle after building it")
	simulate := fs.Bool("simulate", true, "simulate relay bundles before sending")
	a, err := setup(fs, args)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()

	dev, funding, err := a.loadKeys()
	if err != nil {
		return err
	}
	cfg, err := a.st.LaunchConfig(crypto.PubkeyToAddress(dev.PublicKey), crypto.PubkeyToAddress(funding.PublicKey))
	if err != nil {
		return err
	}

	provider, err := chain.Dial(ctx, a.st.RPCURL, a.log)
	if err != nil {
		return err
	}
	defer provider.Close()
	if a.st.TipHistoryBlocks > 0 {
		provider.WithFeeHistory(a.st.TipHistoryBlocks, float64(a.st.TipPercentile))
	}
	if err := checkNetwork(ctx, a, provider); err != nil {
		return err
	}

	stores, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()
	sealer, err := a.sealer()
	if err != nil {
		return err
	}

	opts, err := a.launcherOptions()
	if err != nil {
		return err
	}
	opts.FeeSource = provider
	opts.Stores = &stores
	opts.Sealer = sealer
	l := launcher.New(a.reg, provider, opts)

	printSettings(a.st, dev, funding)
	res, err := l.Build(ctx, cfg, launcher.Exec{
		Network:       a.st.Network,
		DevKey:        dev,
		FundingKey:    funding,
		GasPrice:      bundlecore.GweiToWei(a.st.GasPriceGwei),
		TargetBlock:   a.st.TargetBlock,
		BundleTimeout: a.st.BundleTimeout,
	})
	if err != nil {
		return err
	}
	if res.PersistErr != nil {
		fmt.Println("  [!] launch was not recorded:", res.PersistErr)
	}
	printOutcome(cfg, res)

	if res.KeysRetained {
		path := *keysOut
		if path == "" {
			path = "wallets-" + res.LaunchID.String() + ".json"
		}
		if err := writeWalletKeys(path, res); err != nil {
			return err
		}
		fmt.Println("Bundle wallet keys written to", path)
	}
	if *out != "" {
		if err := writeJSON(*out, bundleJSON(res), 0o644); err != nil {
			return err
		}
		fmt.Println("Bundle written to", *out)
	}
	if !*doSubmit {
		return nil
	}

	subErr := submitBundle(ctx, a, provider, cfg, res, *simulate)
	if err := l.MarkSubmitted(ctx, res.LaunchID, subErr); err != nil && res.PersistErr == nil {
		a.log.Warn("update launch status", zap.Error(err))
	}
	return subErr
}

// checkNetwork compares the node's chain id with the configured network.
func checkNetwork(ctx context.Context, a *app, p *chain.EthProvider) error {
	net, err := a.reg.Network(a.st.Network)
	if err != nil {
		return err
	}
	id, err := p.ChainID(ctx)
	if err != nil {
		return err
	}
	if a.st.ChainID != 0 && id.Int64() != a.st.ChainID {
		return fmt.Errorf("node chain id %s, configured chain_id %d", id, a.st.ChainID)
	}
	if net.ChainID != nil && net.ChainID.Cmp(id) == 0 {
		return nil
	}
	if net.AtomicInclusion {
		return fmt.Errorf("node chain id %s does not match network %s (%s)", id, net.Name, net.ChainID)
	}
	// local forks may keep the forked chain's id; sign for what the node runs
	a.log.Info("using node chain id", zap.String("network", net.Name), zap.String("chain_id", id.String()))
	net.ChainID = id
	a.reg.AddNetwork(net, nil)
	return nil
}

func runLaunches(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("launches", pflag.ExitOnError)
	limit := fs.Int("limit", 20, "how many launches to list")
	a, err := setup(fs, args)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()
	if a.st.DatabaseURL == "" {
		return errors.New("launches needs database_url")
	}
	stores, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()
	list, err := stores.Launches.List(ctx, *limit)
	if err != nil {
		return err
	}
	printLaunches(list)
	return nil
}

func addressOrZero(hexKey string) common.Address {
	if strings.TrimSpace(hexKey) == "" {
		return common.Address{}
	}
	k, err := bundlecore.ParsePrivateKey(hexKey)
	if err != nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(k.PublicKey)
}
