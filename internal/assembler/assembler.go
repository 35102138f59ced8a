// Package assembler packages a signed launch sequence for its target:
// a replay list for chains without atomic inclusion, a relay bundle otherwise.
package assembler

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/launch"
	"github.com/ligun0805/launch-bundler/internal/orchestrator"
	"github.com/ligun0805/launch-bundler/internal/registry"
)

// DefaultFallbackGasPriceGwei is used for the cost estimate when the node
// cannot quote a gas price.
const DefaultFallbackGasPriceGwei = 30

// Bundle is either *Sequential or *Relay.
type Bundle interface {
	isBundle()
	Gas() uint64
	Cost() *big.Int
}

// Sequential is an ordered list replayed one transaction at a time.
type Sequential struct {
	Transactions  []launch.Transaction
	TotalGas      uint64
	EstimatedCost *big.Int
}

// FeeCaps of a relay bundle.
type FeeCaps struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Relay is an atomic bundle for a block builder relay.
type Relay struct {
	SignedTransactions []*types.Transaction
	TargetBlock        uint64
	FeeCaps            FeeCaps
	TotalGas           uint64
	EstimatedCost      *big.Int
	// BundleTimeout is advisory; nothing here enforces it.
	BundleTimeout time.Duration
}

func (*Sequential) isBundle() {}
func (*Relay) isBundle()      {}

func (s *Sequential) Gas() uint64    { return s.TotalGas }
func (s *Sequential) Cost() *big.Int { return s.EstimatedCost }
func (r *Relay) Gas() uint64         { return r.TotalGas }
func (r *Relay) Cost() *big.Int      { return r.EstimatedCost }

// Target describes where the bundle goes.
type Target struct {
	Network registry.Network
	// TargetBlock 0 means head+1.
	TargetBlock   uint64
	FeeCaps       *FeeCaps
	BundleTimeout time.Duration
}

// ChainReader is what assembling needs from the node.
type ChainReader interface {
	GasPrice(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type Assembler struct {
	chain    ChainReader
	fallback *big.Int
	log      *zap.Logger
}

// New returns an Assembler. fallbackGasPrice nil means DefaultFallbackGasPriceGwei.
func New(chain ChainReader, fallbackGasPrice *big.Int, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	if fallbackGasPrice == nil || fallbackGasPrice.Sign() <= 0 {
		fallbackGasPrice = bundlecore.GweiToWei(DefaultFallbackGasPriceGwei)
	}
	return &Assembler{chain: chain, fallback: new(big.Int).Set(fallbackGasPrice), log: log.Named("assembler")}
}

// Assemble packages res for target. It does not validate; call Validate.
func (a *Assembler) Assemble(ctx context.Context, res *orchestrator.Result, target Target) (Bundle, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nothing to assemble", launch.ErrBuild)
	}
	gasPrice := a.gasPrice(ctx)
	cost := bundlecore.GasCost(res.TotalGas, gasPrice)

	if !target.Network.AtomicInclusion {
		seq := &Sequential{
			Transactions:  append([]launch.Transaction(nil), res.Transactions...),
			TotalGas:      res.TotalGas,
			EstimatedCost: cost,
		}
		a.log.Info("sequential bundle",
			zap.String("network", target.Network.Name),
			zap.Int("transactions", len(seq.Transactions)),
			zap.Uint64("total_gas", seq.TotalGas),
			zap.String("estimated_cost_eth", launch.FormatETH(cost)))
		return seq, nil
	}

	block := target.TargetBlock
	if block == 0 {
		head, err := a.chain.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		block = head + 1
	}
	caps := a.feeCaps(res, target, gasPrice)
	signed := make([]*types.Transaction, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		signed = append(signed, tx.Signed)
	}
	relay := &Relay{
		SignedTransactions: signed,
		TargetBlock:        block,
		FeeCaps:            caps,
		TotalGas:           res.TotalGas,
		EstimatedCost:      cost,
		BundleTimeout:      target.BundleTimeout,
	}
	a.log.Info("relay bundle",
		zap.String("network", target.Network.Name),
		zap.Int("transactions", len(signed)),
		zap.Uint64("target_block", block),
		zap.String("max_fee_gwei", launch.FormatGwei(caps.MaxFeePerGas)),
		zap.String("tip_gwei", launch.FormatGwei(caps.MaxPriorityFeePerGas)),
		zap.String("estimated_cost_eth", launch.FormatETH(cost)))
	return relay, nil
}

func (a *Assembler) gasPrice(ctx context.Context) *big.Int {
	if a.chain != nil {
		gp, err := a.chain.GasPrice(ctx)
		if err == nil && gp != nil && gp.Sign() > 0 {
			return gp
		}
		a.log.Warn("gas price unavailable, using fallback",
			zap.Error(err), zap.String("fallback_gwei", launch.FormatGwei(a.fallback)))
	}
	return new(big.Int).Set(a.fallback)
}

// feeCaps prefers explicit caps, then the caps the transactions were built with.
func (a *Assembler) feeCaps(res *orchestrator.Result, target Target, gasPrice *big.Int) FeeCaps {
	if target.FeeCaps != nil {
		return FeeCaps{MaxFeePerGas: cp(target.FeeCaps.MaxFeePerGas), MaxPriorityFeePerGas: cp(target.FeeCaps.MaxPriorityFeePerGas)}
	}
	if res.Fees.Dynamic() {
		return FeeCaps{MaxFeePerGas: cp(res.Fees.FeeCap), MaxPriorityFeePerGas: cp(res.Fees.TipCap)}
	}
	p := res.Fees.PerGas()
	if p.Sign() == 0 {
		p = gasPrice
	}
	return FeeCaps{MaxFeePerGas: cp(p), MaxPriorityFeePerGas: cp(p)}
}

func cp(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
