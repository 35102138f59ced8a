package orchestrator

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/launch"
)

// plan lays out every transaction in replay order and assigns nonces.
// Order: fund xN, clog, create pair, approve, add liquidity, open trading,
// exclude xN, wallet approve xN, buy xN.
func (o *Orchestrator) plan(rc *runContext) error {
	cfg := rc.cfg
	n := cfg.WalletCount
	rc.jobs = make([]job, 0, 4*n+5)
	perGas := rc.req.Fees.PerGas()

	for i := 0; i < n; i++ {
		w := rc.wallets[i]
		amount := bundlecore.FundAmount(rc.dist.Buys[i].ETH, o.limits.Approve, o.limits.Buy, perGas, rc.req.WalletPadding)
		if err := o.add(rc, "fund-wallets", launch.OpFundWallet, launch.IdentityFunding, cfg.FundingWallet, i, o.limits.Transfer,
			fmt.Sprintf("fund wallet %d (%s) with %s ETH", i, w.Address.Hex(), launch.FormatETH(amount)),
			func(opts bundlecore.TxOpts) (*bundlecore.Unsigned, error) {
				return bundlecore.BuildFundWallet(opts, w.Address, amount)
			}); err != nil {
			return err
		}
	}

	clog := cfg.TokensForClog()
	if clog.Sign() > 0 {
		if err := o.add(rc, "clog", launch.OpClogTransfer, launch.IdentityDev, cfg.DevWallet, -1, o.limits.TokenTransfer,
			fmt.Sprintf("transfer %s %s to the token contract", clog, cfg.TokenName),
			func(opts bundlecore.TxOpts) (*bundlecore.Unsigned, error) {
				return bundlecore.BuildClogTransfer(opts, cfg.TokenAddress, clog)
			}); err != nil {
			return err
		}
	}

	if err := o.add(rc, "create-pair", launch.OpCreatePair, launch.IdentityDev, cfg.DevWallet, -1, o.limits.CreatePair,
		fmt.Sprintf("create %s/WETH pair", cfg.TokenName),
		func(opts bundlecore.TxOpts) (*bundlecore.Unsigned, error) {
			return bundlecore.BuildCreatePair(rc.contracts, opts, cfg.TokenAddress)
		}); err != nil {
		return err
	}

	liqTokens := cfg.TokensForLiquidity()
	if err := o.add(rc, "approve-liquidity", launch.OpApproveRouter, launch.IdentityDev, cfg.DevWallet, -1, o.limits.Approve,
		fmt.Sprintf("approve router for %s %s", liqTokens, cfg.TokenName),
		func(opts bundlecore.TxOpts) (*bundlecore.Unsigned, error) {
			return bundlecore.BuildApproveRouter(rc.contracts, opts, cfg.TokenAddress, liqTokens)
		}); err != nil {
		return err
	}

	if err := o.add(rc, "add-liquidity", launch.OpAddLiquidity, launch.IdentityDev, cfg.DevWallet, -1, o.limits.AddLiquidity,
		fmt.Sprintf("add liquidity: %s %s + %s ETH", liqTokens, cfg.TokenName, launch.FormatETH(cfg.LiquidityETH)),
		func(opts bundlecore.TxOpts) (*bundlecore.Unsigned, error) {
			return bundlecore.BuildAddLiquidity(rc.contracts, opts, bundlecore.AddLiquidityParams{
				Token:       cfg.TokenAddress,
				TokenAmount: liqTokens,
				ETHAmount:   cfg.LiquidityETH,
				To:          cfg.DevWallet,
				Deadline:    rc.deadline,
			})
		}); err != nil {
		return err
	}

	if err := o.add(rc, "open-trading", launch.OpOpenTrading, launch.IdentityDev, cfg.DevWallet, -1, o.limits.OpenTrading,
		"open trading",
		func(opts bundlecore.TxOpts) (*bundlecore.Unsigned, error) {
			return bundlecore.BuildOpenTrading(opts, cfg.TokenAddress)
		}); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		w := rc.wallets[i]
		if err := o.add(rc, "exclude-from-fee", launch.OpExcludeFromFee, launch.IdentityDev, cfg.DevWallet, i, o.limits.ExcludeFromFee,
			fmt.Sprintf("exclude wallet %d from fee", i),
			func(opts bundlecore.TxOpts) (*bundlecore.Unsigned, error) {
				return bundlecore.BuildExcludeFromFee(opts, cfg.TokenAddress, w.Address)
			}); err != nil {
			return err
		}
	}

	for i := 0; i < n; i++ {
		w := rc.wallets[i]
		if err := o.add(rc, "approve-router", launch.OpApproveRouter, launch.IdentityBundle, w.Address, i, o.limits.Approve,
			fmt.Sprintf("wallet %d approves router", i),
			func(opts bundlecore.TxOpts) (*bundlecore.Unsigned, error) {
				return bundlecore.BuildApproveRouter(rc.contracts, opts, cfg.TokenAddress, nil)
			}); err != nil {
			return err
		}
	}

	for i := 0; i < n; i++ {
		w := rc.wallets[i]
		buy := rc.dist.Buys[i]
		minOut := minOut(buy.Tokens, rc.req.SlippageBps)
		if err := o.add(rc, "buy", launch.OpBuyTokens, launch.IdentityBundle, w.Address, i, o.limits.Buy,
			fmt.Sprintf("wallet %d buys ~%s %s for %s ETH", i, buy.Tokens, cfg.TokenName, launch.FormatETH(buy.ETH)),
			func(opts bundlecore.TxOpts) (*bundlecore.Unsigned, error) {
				return bundlecore.BuildBuyTokens(rc.contracts, opts, bundlecore.BuyParams{
					Token:     cfg.TokenAddress,
					ETHIn:     buy.ETH,
					MinTokens: minOut,
					To:        w.Address,
					Deadline:  rc.deadline,
				})
			}); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) add(rc *runContext, step string, kind launch.OpKind, who launch.Identity, from common.Address, wallet int, gas uint64, desc string, build func(bundlecore.TxOpts) (*bundlecore.Unsigned, error)) error {
	nonce, err := rc.alloc.Next(from)
	if err != nil {
		return rc.fail(step, kind, wallet, err)
	}
	rc.jobs = append(rc.jobs, job{
		step:   step,
		kind:   kind,
		who:    who,
		wallet: wallet,
		desc:   desc,
		opts: bundlecore.TxOpts{
			ChainID:  rc.req.Network.ChainID,
			From:     from,
			Nonce:    nonce,
			GasLimit: gas,
			Fees:     rc.req.Fees,
		},
		build: build,
	})
	return nil
}

func minOut(expected *big.Int, slippageBps int64) *big.Int {
	if slippageBps <= 0 || expected == nil {
		return nil
	}
	out := new(big.Int).Mul(expected, big.NewInt(10_000-slippageBps))
	return out.Div(out, big.NewInt(10_000))
}
