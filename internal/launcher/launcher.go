// Package launcher is the single entry point of a launch: it estimates costs,
// builds and validates the bundle and records what was built.
package launcher

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ligun0805/launch-bundler/internal/amm"
	"github.com/ligun0805/launch-bundler/internal/assembler"
	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/chain"
	"github.com/ligun0805/launch-bundler/internal/launch"
	"github.com/ligun0805/launch-bundler/internal/orchestrator"
	"github.com/ligun0805/launch-bundler/internal/registry"
	"github.com/ligun0805/launch-bundler/internal/storage"
)

// Node is the chain access a build needs.
type Node interface {
	NextNonce(ctx context.Context, addr common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Options tune a Launcher. Zero values pick defaults.
type Options struct {
	// FeeSource derives EIP-1559 caps for relay networks. Nil builds legacy
	// transactions everywhere.
	FeeSource  chain.FeeSource
	TipGwei    int64
	BaseFeeMul uint64

	// Stores receive built launches. Nil stores skip persistence.
	Stores *storage.Stores
	// Sealer encrypts wallet keys before they are stored. Without it wallet
	// records carry no key and the keys stay with the outcome.
	Sealer *storage.KeySealer

	GasLimits        bundlecore.GasLimits
	Solver           amm.Solver
	FallbackGasPrice *big.Int
	WalletPadding    *big.Int
	GasPadding       *big.Int
	SlippageBps      int64
	Deadline         time.Duration

	Logger *zap.Logger
	Now    func() time.Time
}

// Exec are the per-run execution parameters.
type Exec struct {
	Network    string
	DevKey     *ecdsa.PrivateKey
	FundingKey *ecdsa.PrivateKey
	// FeeCaps pins relay fee caps. Nil derives them from the node.
	FeeCaps *assembler.FeeCaps
	// GasPrice pins the legacy gas price. Nil asks the node.
	GasPrice      *big.Int
	TargetBlock   uint64
	BundleTimeout time.Duration
}

// Outcome of a build.
type Outcome struct {
	LaunchID uuid.UUID
	Network  registry.Network
	Result   *orchestrator.Result
	Bundle   assembler.Bundle
	// KeysRetained is true when wallet keys were not sealed into storage and
	// are still held by Result.Wallets.
	KeysRetained bool
	// PersistErr is set when recording the launch failed. The bundle is still valid.
	PersistErr error
}

type Launcher struct {
	reg  *registry.Registry
	node Node
	orch *orchestrator.Orchestrator
	asm  *assembler.Assembler
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

func New(reg *registry.Registry, node Node, opts Options) *Launcher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.BaseFeeMul == 0 {
		opts.BaseFeeMul = chain.DefaultBaseFeeMul
	}
	orch := orchestrator.New(node, reg, orchestrator.Options{
		GasLimits: opts.GasLimits,
		Solver:    opts.Solver,
		Logger:    log,
		Now:       now,
	})
	return &Launcher{
		reg:  reg,
		node: node,
		orch: orch,
		asm:  assembler.New(node, opts.FallbackGasPrice, log),
		opts: opts,
		log:  log.Named("launcher"),
		now:  now,
	}
}

// Estimate returns the cost breakdown of cfg without touching the chain.
func (l *Launcher) Estimate(cfg launch.Config) (*amm.CostEstimate, error) {
	est, err := amm.EstimateCost(cfg.Normalized(), l.opts.GasPadding)
	if err != nil {
		return nil, err
	}
	l.log.Info("estimate",
		zap.String("token", cfg.TokenName),
		zap.Int("wallets", cfg.WalletCount),
		zap.String("buy_eth", launch.FormatETH(est.BuyETH)),
		zap.String("total_eth", launch.FormatETH(est.TotalETHRequired)),
		zap.Bool("converged", est.Distribution.Converged))
	return est, nil
}

// Build orchestrates, assembles and validates a bundle for cfg, then records it.
// Persistence failures are logged and reported in Outcome.PersistErr.
func (l *Launcher) Build(ctx context.Context, cfg launch.Config, exec Exec) (*Outcome, error) {
	net, err := l.reg.Network(exec.Network)
	if err != nil {
		return nil, err
	}
	fees, err := l.fees(ctx, net, exec)
	if err != nil {
		return nil, err
	}

	res, err := l.orch.Run(ctx, orchestrator.Request{
		Config:        cfg,
		Network:       net,
		DevKey:        exec.DevKey,
		FundingKey:    exec.FundingKey,
		Fees:          fees,
		WalletPadding: l.opts.WalletPadding,
		SlippageBps:   l.opts.SlippageBps,
		Deadline:      l.opts.Deadline,
	})
	if err != nil {
		return nil, err
	}

	b, err := l.asm.Assemble(ctx, res, assembler.Target{
		Network:       net,
		TargetBlock:   exec.TargetBlock,
		FeeCaps:       exec.FeeCaps,
		BundleTimeout: exec.BundleTimeout,
	})
	if err != nil {
		discard(res)
		return nil, err
	}
	if err := assembler.Validate(b); err != nil {
		discard(res)
		return nil, err
	}

	out := &Outcome{LaunchID: uuid.New(), Network: net, Result: res, Bundle: b, KeysRetained: true}
	if l.opts.Stores == nil {
		return out, nil
	}
	if err := l.persist(ctx, cfg.Normalized(), out); err != nil {
		l.log.Error("persist launch", zap.String("launch_id", out.LaunchID.String()), zap.Error(err))
		out.PersistErr = err
		return out, nil
	}
	if l.opts.Sealer != nil {
		discard(res)
		out.KeysRetained = false
	}
	return out, nil
}

// fees picks EIP-1559 caps on relay networks when they can be derived and a
// legacy gas price otherwise.
func (l *Launcher) fees(ctx context.Context, net registry.Network, exec Exec) (bundlecore.Fees, error) {
	if net.AtomicInclusion {
		if exec.FeeCaps != nil && exec.FeeCaps.MaxFeePerGas != nil && exec.FeeCaps.MaxPriorityFeePerGas != nil {
			return bundlecore.Fees{
				FeeCap: new(big.Int).Set(exec.FeeCaps.MaxFeePerGas),
				TipCap: new(big.Int).Set(exec.FeeCaps.MaxPriorityFeePerGas),
			}, nil
		}
		if l.opts.FeeSource != nil {
			maxFee, tip, err := chain.SuggestFeeCaps(ctx, l.opts.FeeSource, l.opts.TipGwei, l.opts.BaseFeeMul)
			if err != nil {
				return bundlecore.Fees{}, err
			}
			return bundlecore.Fees{FeeCap: maxFee, TipCap: tip}, nil
		}
	}
	if exec.GasPrice != nil && exec.GasPrice.Sign() > 0 {
		return bundlecore.Fees{GasPrice: new(big.Int).Set(exec.GasPrice)}, nil
	}
	gp, err := l.node.GasPrice(ctx)
	if err != nil {
		return bundlecore.Fees{}, err
	}
	return bundlecore.Fees{GasPrice: gp}, nil
}

func (l *Launcher) persist(ctx context.Context, cfg launch.Config, out *Outcome) error {
	res := out.Result
	rec := &storage.LaunchRecord{
		ID:            out.LaunchID,
		TokenAddress:  cfg.TokenAddress,
		TokenName:     cfg.TokenName,
		Network:       out.Network.Name,
		WalletCount:   len(res.Wallets),
		TotalGas:      res.TotalGas,
		EstimatedCost: storage.CopyBig(out.Bundle.Cost()),
		TotalBuyETH:   storage.CopyBig(res.Distribution.TotalETH),
		PairAddress:   res.PairAddress,
		Status:        storage.StatusBuilt,
		CreatedAt:     l.now().UTC(),
	}
	switch b := out.Bundle.(type) {
	case *assembler.Sequential:
		rec.BundleKind = storage.BundleSequential
	case *assembler.Relay:
		rec.BundleKind = storage.BundleRelay
		rec.TargetBlock = b.TargetBlock
	}
	if err := l.opts.Stores.Launches.Insert(ctx, rec); err != nil {
		return fmt.Errorf("insert launch: %w", err)
	}

	funded := fundAmounts(res.Transactions)
	wallets := make([]*storage.WalletRecord, 0, len(res.Wallets))
	for _, w := range res.Wallets {
		wr := &storage.WalletRecord{
			LaunchID:   out.LaunchID,
			Index:      w.Index,
			Address:    w.Address,
			FundAmount: funded[w.Index],
		}
		if l.opts.Sealer != nil {
			sealed, err := l.opts.Sealer.Seal(w.PrivateKey, w.Address.Bytes())
			if err != nil {
				return fmt.Errorf("seal wallet %d: %w", w.Index, err)
			}
			wr.SealedKey = sealed
		}
		wallets = append(wallets, wr)
	}
	if l.opts.Sealer == nil {
		l.log.Warn("no seal key configured, wallet keys are not stored",
			zap.String("launch_id", out.LaunchID.String()))
	}
	if err := l.opts.Stores.Wallets.InsertBulk(ctx, wallets); err != nil {
		return fmt.Errorf("insert wallets: %w", err)
	}

	positions := make([]*storage.PositionRecord, 0, len(res.Distribution.Buys))
	for _, buy := range res.Distribution.Buys {
		if buy.Index < 0 || buy.Index >= len(res.Wallets) {
			return errors.New("distribution does not match wallets")
		}
		positions = append(positions, &storage.PositionRecord{
			LaunchID:       out.LaunchID,
			WalletIndex:    buy.Index,
			Address:        res.Wallets[buy.Index].Address,
			ETHIn:          storage.CopyBig(buy.ETH),
			ExpectedTokens: storage.CopyBig(buy.Tokens),
		})
	}
	if err := l.opts.Stores.Positions.InsertBulk(ctx, positions); err != nil {
		return fmt.Errorf("insert positions: %w", err)
	}
	l.log.Info("launch recorded",
		zap.String("launch_id", out.LaunchID.String()),
		zap.String("bundle", string(rec.BundleKind)),
		zap.Int("wallets", len(wallets)))
	return nil
}

// MarkSubmitted records the submission outcome of a stored launch.
func (l *Launcher) MarkSubmitted(ctx context.Context, id uuid.UUID, submitErr error) error {
	if l.opts.Stores == nil {
		return nil
	}
	status := storage.StatusSubmitted
	if submitErr != nil {
		status = storage.StatusFailed
	}
	return l.opts.Stores.Launches.UpdateStatus(ctx, id, status)
}

func fundAmounts(txs []launch.Transaction) map[int]*big.Int {
	out := make(map[int]*big.Int)
	for _, tx := range txs {
		if tx.Kind != launch.OpFundWallet || tx.WalletIndex == nil || tx.Unsigned == nil {
			continue
		}
		out[*tx.WalletIndex] = new(big.Int).Set(tx.Unsigned.Value())
	}
	return out
}

func discard(res *orchestrator.Result) {
	for i := range res.Wallets {
		res.Wallets[i].Discard()
	}
}
