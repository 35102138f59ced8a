// Package orchestrator turns a launch config into the full, signed,
// strictly ordered transaction sequence of a bundled launch.
package orchestrator

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/launch-bundler/internal/amm"
	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/launch"
	"github.com/ligun0805/launch-bundler/internal/registry"
)

// DefaultDeadline is how long router calls stay valid after the run.
const DefaultDeadline = 20 * time.Minute

// Request is everything one run needs besides the chain.
type Request struct {
	Config     launch.Config
	Network    registry.Network
	DevKey     *ecdsa.PrivateKey
	FundingKey *ecdsa.PrivateKey
	Fees       bundlecore.Fees
	// WalletPadding is extra wei sent to every bundle wallet.
	WalletPadding *big.Int
	// SlippageBps bounds each buy's minimum output. 0 disables the bound.
	SlippageBps int64
	Deadline    time.Duration
}

// Result is a complete, signed launch sequence.
type Result struct {
	Wallets      []launch.Wallet
	Transactions []launch.Transaction
	PairAddress  common.Address
	TotalGas     uint64
	DevKey       *ecdsa.PrivateKey
	FundingKey   *ecdsa.PrivateKey
	Distribution *amm.Distribution
	Fees         bundlecore.Fees
}

// NonceSource is the only chain access a run needs.
type NonceSource = bundlecore.NonceSource

// Options tune an Orchestrator. Zero values pick defaults.
type Options struct {
	GasLimits bundlecore.GasLimits
	Solver    amm.Solver
	// Signer overrides the chain signer built from the request's network.
	Signer bundlecore.Signer
	Logger *zap.Logger
	Now    func() time.Time
}

type Orchestrator struct {
	nonces NonceSource
	reg    *registry.Registry
	limits bundlecore.GasLimits
	solver amm.Solver
	signer bundlecore.Signer
	log    *zap.Logger
	now    func() time.Time
}

func New(nonces NonceSource, reg *registry.Registry, opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		nonces: nonces,
		reg:    reg,
		limits: opts.GasLimits.WithDefaults(),
		solver: opts.Solver,
		signer: opts.Signer,
		log:    log.Named("orchestrator"),
		now:    now,
	}
}

// job is one planned transaction. Nonce and opts are fixed before any build runs.
type job struct {
	step   string
	kind   launch.OpKind
	who    launch.Identity
	wallet int
	desc   string
	opts   bundlecore.TxOpts
	build  func(bundlecore.TxOpts) (*bundlecore.Unsigned, error)
}

// runContext is the state of a single Run.
type runContext struct {
	req       Request
	cfg       launch.Config
	contracts bundlecore.Contracts
	alloc     *bundlecore.NonceAllocator
	signer    bundlecore.Signer
	wallets   []launch.Wallet
	dist      *amm.Distribution
	deadline  *big.Int
	jobs      []job
}

func (rc *runContext) fail(step string, kind launch.OpKind, wallet int, err error) error {
	var diag any
	if rc.dist != nil {
		diag = rc.dist
	}
	return &launch.StepError{Step: step, Kind: kind, WalletIndex: wallet, Err: err, Diagnostics: diag}
}

func (rc *runContext) discardWallets() {
	for i := range rc.wallets {
		rc.wallets[i].Discard()
	}
}

// Run executes the launch plan. Any failure aborts with a *launch.StepError
// and no partial result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	rc := &runContext{req: req, cfg: req.Config.Normalized()}
	if err := o.prepare(rc); err != nil {
		return nil, err
	}
	log := o.log.With(zap.String("token", rc.cfg.TokenAddress.Hex()), zap.String("network", req.Network.Name))

	dist, err := o.solver.Solve(amm.PoolFor(rc.cfg), rc.cfg.TokensForBundle(), rc.cfg.WalletCount)
	if err != nil {
		return nil, rc.fail("solve", launch.OpBuyTokens, -1, fmt.Errorf("%w: %w", launch.ErrBuild, err))
	}
	rc.dist = dist
	log.Debug("distribution solved",
		zap.Int("iterations", dist.Iterations),
		zap.Bool("converged", dist.Converged),
		zap.String("total_eth", launch.FormatETH(dist.TotalETH)),
		zap.String("price_impact", launch.FormatBps(dist.PriceImpactBps)))

	wallets, err := bundlecore.GenerateWallets(rc.cfg.WalletCount)
	if err != nil {
		return nil, rc.fail("generate-wallets", "", -1, err)
	}
	rc.wallets = wallets

	rc.alloc = bundlecore.NewNonceAllocator(o.nonces)
	if err := rc.alloc.Begin(ctx, rc.cfg.DevWallet, rc.cfg.FundingWallet); err != nil {
		rc.discardWallets()
		return nil, rc.fail("nonces", "", -1, err)
	}
	for _, w := range rc.wallets {
		rc.alloc.Seed(w.Address, 0)
	}

	if err := o.plan(rc); err != nil {
		rc.discardWallets()
		return nil, err
	}
	txs, err := o.buildAndSign(ctx, rc)
	if err != nil {
		rc.discardWallets()
		return nil, err
	}

	res := &Result{
		Wallets:      rc.wallets,
		Transactions: txs,
		DevKey:       req.DevKey,
		FundingKey:   req.FundingKey,
		Distribution: dist,
		Fees:         req.Fees,
	}
	for _, tx := range txs {
		res.TotalGas += tx.Signed.Gas()
	}
	res.PairAddress = o.pairAddress(rc)
	log.Info("launch sequence built",
		zap.Int("wallets", len(res.Wallets)),
		zap.Int("transactions", len(res.Transactions)),
		zap.Uint64("total_gas", res.TotalGas),
		zap.String("pair", res.PairAddress.Hex()))
	return res, nil
}

func (o *Orchestrator) prepare(rc *runContext) error {
	req := rc.req
	if err := rc.cfg.Validate(); err != nil {
		return rc.fail("validate", "", -1, err)
	}
	if req.Network.ChainID == nil || req.Network.ChainID.Sign() <= 0 {
		return rc.fail("validate", "", -1, fmt.Errorf("%w: network %q has no chain id", launch.ErrConfig, req.Network.Name))
	}
	if err := checkKey(req.DevKey, rc.cfg.DevWallet, "dev"); err != nil {
		return rc.fail("validate", "", -1, err)
	}
	if err := checkKey(req.FundingKey, rc.cfg.FundingWallet, "funding"); err != nil {
		return rc.fail("validate", "", -1, err)
	}
	if req.Fees.PerGas().Sign() <= 0 {
		return rc.fail("validate", "", -1, fmt.Errorf("%w: fees are not set", launch.ErrConfig))
	}
	if req.SlippageBps < 0 || req.SlippageBps > 10_000 {
		return rc.fail("validate", "", -1, fmt.Errorf("%w: slippage %d bps outside [0,10000]", launch.ErrConfig, req.SlippageBps))
	}
	rc.contracts = bundlecore.Contracts{Registry: o.reg, Network: req.Network.Name}
	rc.signer = o.signer
	if rc.signer == nil {
		rc.signer = bundlecore.NewChainSigner(req.Network.ChainID)
	}
	d := req.Deadline
	if d <= 0 {
		d = DefaultDeadline
	}
	rc.deadline = big.NewInt(o.now().Add(d).Unix())
	return nil
}

func checkKey(key *ecdsa.PrivateKey, want common.Address, who string) error {
	if key == nil {
		return fmt.Errorf("%w: missing %s key", launch.ErrConfig, who)
	}
	if got := gethcrypto.PubkeyToAddress(key.PublicKey); got != want {
		return fmt.Errorf("%w: %s key is for %s, config says %s", launch.ErrConfig, who, got.Hex(), want.Hex())
	}
	return nil
}

func (o *Orchestrator) pairAddress(rc *runContext) common.Address {
	if rc.req.Network.PairInitCodeHash == (common.Hash{}) {
		return common.Address{}
	}
	factory, err := o.reg.Resolve(registry.Factory, rc.req.Network.Name)
	if err != nil {
		return common.Address{}
	}
	weth, err := o.reg.Resolve(registry.WETH, rc.req.Network.Name)
	if err != nil {
		return common.Address{}
	}
	return bundlecore.PairAddress(factory, rc.req.Network.PairInitCodeHash, rc.cfg.TokenAddress, weth)
}

func (o *Orchestrator) buildAndSign(ctx context.Context, rc *runContext) ([]launch.Transaction, error) {
	txs := make([]launch.Transaction, len(rc.jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range rc.jobs {
		j := rc.jobs[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u, err := j.build(j.opts)
			if err != nil {
				return rc.fail(j.step, j.kind, j.wallet, err)
			}
			key, err := rc.keyFor(j)
			if err != nil {
				return rc.fail(j.step, j.kind, j.wallet, err)
			}
			signed, err := rc.signer.Sign(u.Tx, key)
			if err != nil {
				return rc.fail(j.step, j.kind, j.wallet, err)
			}
			tx := launch.Transaction{
				Kind:        j.kind,
				Description: j.desc,
				Signer:      j.who,
				From:        u.From,
				Unsigned:    u.Tx,
				Signed:      signed,
			}
			if j.wallet >= 0 {
				idx := j.wallet
				tx.WalletIndex = &idx
			}
			txs[i] = tx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (rc *runContext) keyFor(j job) (*ecdsa.PrivateKey, error) {
	switch j.who {
	case launch.IdentityDev:
		return rc.req.DevKey, nil
	case launch.IdentityFunding:
		return rc.req.FundingKey, nil
	case launch.IdentityBundle:
		if j.wallet < 0 || j.wallet >= len(rc.wallets) || rc.wallets[j.wallet].PrivateKey == nil {
			return nil, fmt.Errorf("%w: no key for wallet %d", launch.ErrSigning, j.wallet)
		}
		return rc.wallets[j.wallet].PrivateKey, nil
	}
	return nil, fmt.Errorf("%w: unknown signer %q", launch.ErrSigning, j.who)
}
