package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ligun0805/launch-bundler/internal/assembler"
	"github.com/ligun0805/launch-bundler/internal/chain"
	"github.com/ligun0805/launch-bundler/internal/flashbots"
	"github.com/ligun0805/launch-bundler/internal/launch"
	"github.com/ligun0805/launch-bundler/internal/launcher"
	"github.com/ligun0805/launch-bundler/internal/registry"
	"github.com/ligun0805/launch-bundler/internal/submit"
)

// submitBundle hands a sequential bundle to the node one tx at a time, or a
// relay bundle to the configured relay.
func submitBundle(ctx context.Context, a *app, p *chain.EthProvider, cfg launch.Config, out *launcher.Outcome, simulate bool) error {
	switch b := out.Bundle.(type) {
	case *assembler.Sequential:
		start, err := p.BlockNumber(ctx)
		if err != nil {
			return err
		}
		rep, err := submit.NewSequential(p, submit.DefaultPolling(), a.log).Submit(ctx, b)
		if err != nil {
			var rev *submit.RevertedError
			if errors.As(err, &rev) {
				fmt.Printf("  [X] %s (tx %d, %s) reverted\n", rev.Kind, rev.Index, rev.Hash.Hex())
			}
			return err
		}
		fmt.Printf("Submitted %d transactions, gas used %d\n", len(rep.Receipts), rep.GasUsed)
		confirmPair(ctx, a, p, cfg, out, start)
		return nil

	case *assembler.Relay:
		if a.st.FlashbotsAuthPKHex == "" {
			return errors.New("flashbots_auth_pk is required to send relay bundles")
		}
		relay, err := flashbots.NewClient(a.st.RelayURL, a.st.FlashbotsAuthPKHex, a.log)
		if err != nil {
			return err
		}
		if simulate {
			sim, err := relay.SimulateBundle(ctx, b)
			if err != nil {
				return fmt.Errorf("simulate: %s", friendlyRelayErr(err.Error()))
			}
			if !sim.OK {
				return fmt.Errorf("simulation failed: %s", friendlyRelayErr(sim.Error))
			}
			fmt.Println("Simulation OK")
		}
		res, err := relay.SendBundle(ctx, b)
		if err != nil {
			return fmt.Errorf("send bundle: %s", friendlyRelayErr(err.Error()))
		}
		if !res.OK {
			return fmt.Errorf("relay rejected bundle: %s", friendlyRelayErr(res.Error))
		}
		fmt.Println("Bundle sent for block", b.TargetBlock, "hash", res.BundleHash)
		return nil
	}
	return fmt.Errorf("unknown bundle %T", out.Bundle)
}

// confirmPair looks for the factory's PairCreated log after a sequential replay.
func confirmPair(ctx context.Context, a *app, p *chain.EthProvider, cfg launch.Config, out *launcher.Outcome, from uint64) {
	factory, err := a.reg.Resolve(registry.Factory, out.Network.Name)
	if err != nil {
		return
	}
	weth, err := a.reg.Resolve(registry.WETH, out.Network.Name)
	if err != nil {
		return
	}
	pair, err := chain.FindPairCreated(ctx, p, factory, cfg.TokenAddress, weth, from)
	if err != nil {
		a.log.Warn("pair not confirmed", zap.Error(err))
		return
	}
	if pair != out.Result.PairAddress {
		a.log.Warn("pair differs from the computed address",
			zap.String("created", pair.Hex()), zap.String("computed", out.Result.PairAddress.Hex()))
	}
	fmt.Println("Pair created:", pair.Hex())
}

// friendlyRelayErr normalizes common relay errors for readable output.
func friendlyRelayErr(s string) string {
	ls := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(ls, "unsupported: eth_callbundle"), strings.Contains(ls, "invalid method"), strings.Contains(ls, "method not found"):
		return "simulation not supported by relay"
	case strings.Contains(ls, "insufficient funds for gas"):
		return "insufficient ETH for simulation"
	case strings.Contains(ls, "nonce too low"):
		return "a wallet nonce moved since the bundle was built, rebuild it"
	case strings.Contains(ls, "invalid character '<'"):
		return "non-JSON/HTML response (proxy/cf?)"
	case strings.Contains(ls, "dial tcp"), strings.Contains(ls, "lookup "):
		return "network/DNS error"
	}
	return s
}
