package main

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/launch-bundler/internal/amm"
	"github.com/ligun0805/launch-bundler/internal/assembler"
	"github.com/ligun0805/launch-bundler/internal/bundlecore"
	"github.com/ligun0805/launch-bundler/internal/config"
	"github.com/ligun0805/launch-bundler/internal/launch"
	"github.com/ligun0805/launch-bundler/internal/launcher"
	"github.com/ligun0805/launch-bundler/internal/storage"
)

func printSettings(st *config.Settings, dev, funding *ecdsa.PrivateKey) {
	fmt.Println("=== CONFIG ===")
	fmt.Println("RPC_URL           :", st.RPCURL)
	fmt.Println("NETWORK           :", st.Network)
	fmt.Println("RELAY_URL         :", st.RelayURL)
	fmt.Println("FLASHBOTS_AUTH_PK :", maskHex(st.FlashbotsAuthPKHex))
	fmt.Println("DEV_PRIVATE_KEY   :", maskHex(st.DevPrivateKeyHex))
	fmt.Println("  -> Dev address  :", crypto.PubkeyToAddress(dev.PublicKey).Hex())
	fmt.Println("  -> Funding      :", crypto.PubkeyToAddress(funding.PublicKey).Hex())
	fmt.Println("Tip (gwei)        :", st.TipGwei)
	fmt.Println("BaseFeeMul        :", st.BasefeeMul)
	fmt.Println("Slippage (bps)    :", st.SlippageBps)
	fmt.Println("==============")
}

func printEstimate(cfg launch.Config, est *amm.CostEstimate) {
	d := est.Distribution
	fmt.Println("=== ESTIMATE ===")
	fmt.Println("Token               :", cfg.TokenName, cfg.TokenAddress.Hex())
	fmt.Println("Wallets             :", cfg.WalletCount)
	fmt.Println("Tokens for liquidity:", est.TokensForLiquidity)
	fmt.Println("Tokens clogged      :", est.TokensForClog)
	fmt.Println("Tokens per wallet   :", est.TokensPerWallet)
	for _, b := range d.Buys {
		fmt.Printf("  wallet %-2d  %s ETH -> %s tokens\n", b.Index, launch.FormatETH(b.ETH), b.Tokens)
	}
	fmt.Println("Price impact        :", launch.FormatBps(d.PriceImpactBps))
	fmt.Println("Buy ETH             :", launch.FormatETH(est.BuyETH))
	fmt.Println("Liquidity ETH       :", launch.FormatETH(est.LiquidityETH))
	fmt.Println("Gas padding         :", launch.FormatETH(est.GasPadding))
	fmt.Println("Total ETH required  :", launch.FormatETH(est.TotalETHRequired))
	if !d.Converged {
		fmt.Printf("  [!] solver stopped after %d iterations without converging\n", d.Iterations)
	}
	fmt.Println("================")
}

type buyJSON struct {
	Index  int    `json:"index"`
	ETHWei string `json:"ethWei"`
	Tokens string `json:"tokens"`
}

type estimateOut struct {
	Token              string    `json:"token"`
	TokensForLiquidity string    `json:"tokensForLiquidity"`
	TokensForClog      string    `json:"tokensForClog"`
	TokensPerWallet    string    `json:"tokensPerWallet"`
	Buys               []buyJSON `json:"buys"`
	PriceImpactBps     string    `json:"priceImpactBps"`
	Converged          bool      `json:"converged"`
	BuyETHWei          string    `json:"buyEthWei"`
	LiquidityETHWei    string    `json:"liquidityEthWei"`
	GasPaddingWei      string    `json:"gasPaddingWei"`
	TotalETHWei        string    `json:"totalEthWei"`
}

func estimateJSON(cfg launch.Config, est *amm.CostEstimate) estimateOut {
	out := estimateOut{
		Token:              cfg.TokenAddress.Hex(),
		TokensForLiquidity: str(est.TokensForLiquidity),
		TokensForClog:      str(est.TokensForClog),
		TokensPerWallet:    str(est.TokensPerWallet),
		PriceImpactBps:     str(est.Distribution.PriceImpactBps),
		Converged:          est.Distribution.Converged,
		BuyETHWei:          str(est.BuyETH),
		LiquidityETHWei:    str(est.LiquidityETH),
		GasPaddingWei:      str(est.GasPadding),
		TotalETHWei:        str(est.TotalETHRequired),
	}
	for _, b := range est.Distribution.Buys {
		out.Buys = append(out.Buys, buyJSON{Index: b.Index, ETHWei: str(b.ETH), Tokens: str(b.Tokens)})
	}
	return out
}

func printOutcome(cfg launch.Config, out *launcher.Outcome) {
	res := out.Result
	fmt.Println("=== BUNDLE ===")
	fmt.Println("Launch id   :", out.LaunchID)
	fmt.Println("Network     :", out.Network.Name)
	fmt.Println("Token       :", cfg.TokenName, cfg.TokenAddress.Hex())
	fmt.Println("Pair        :", res.PairAddress.Hex())
	for i, tx := range res.Transactions {
		fmt.Printf("  %2d  %-16s nonce=%-4d %s\n", i, tx.Kind, tx.Signed.Nonce(), tx.Description)
	}
	fmt.Println("Total gas   :", res.TotalGas)
	fmt.Println("Est. cost   :", launch.FormatETH(out.Bundle.Cost()), "ETH")
	switch b := out.Bundle.(type) {
	case *assembler.Sequential:
		fmt.Println("Kind        : sequential,", len(b.Transactions), "transactions")
	case *assembler.Relay:
		fmt.Println("Kind        : relay, target block", b.TargetBlock)
		fmt.Println("Max fee     :", launch.FormatGwei(b.FeeCaps.MaxFeePerGas), "gwei")
		fmt.Println("Tip         :", launch.FormatGwei(b.FeeCaps.MaxPriorityFeePerGas), "gwei")
		if b.BundleTimeout > 0 {
			fmt.Println("Valid for   :", b.BundleTimeout)
		}
	}
	fmt.Println("==============")
}

type txJSON struct {
	Index       int    `json:"index"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Signer      string `json:"signer"`
	From        string `json:"from"`
	Nonce       uint64 `json:"nonce"`
	Hash        string `json:"hash"`
	Raw         string `json:"raw"`
	WalletIndex *int   `json:"walletIndex,omitempty"`
}

type bundleOut struct {
	LaunchID       string   `json:"launchId"`
	Network        string   `json:"network"`
	Kind           string   `json:"kind"`
	PairAddress    string   `json:"pairAddress"`
	TotalGas       uint64   `json:"totalGas"`
	EstimatedCost  string   `json:"estimatedCostWei"`
	TargetBlock    uint64   `json:"targetBlock,omitempty"`
	MaxFeePerGas   string   `json:"maxFeePerGas,omitempty"`
	MaxPriorityFee string   `json:"maxPriorityFeePerGas,omitempty"`
	BundleTimeout  string   `json:"bundleTimeout,omitempty"`
	Transactions   []txJSON `json:"transactions"`
}

func bundleJSON(out *launcher.Outcome) bundleOut {
	res := out.Result
	b := bundleOut{
		LaunchID:      out.LaunchID.String(),
		Network:       out.Network.Name,
		PairAddress:   res.PairAddress.Hex(),
		TotalGas:      res.TotalGas,
		EstimatedCost: str(out.Bundle.Cost()),
	}
	switch bb := out.Bundle.(type) {
	case *assembler.Sequential:
		b.Kind = string(storage.BundleSequential)
	case *assembler.Relay:
		b.Kind = string(storage.BundleRelay)
		b.TargetBlock = bb.TargetBlock
		b.MaxFeePerGas = str(bb.FeeCaps.MaxFeePerGas)
		b.MaxPriorityFee = str(bb.FeeCaps.MaxPriorityFeePerGas)
		if bb.BundleTimeout > 0 {
			b.BundleTimeout = bb.BundleTimeout.Round(time.Second).String()
		}
	}
	for i, tx := range res.Transactions {
		raw, _ := bundlecore.TxHex(tx.Signed)
		b.Transactions = append(b.Transactions, txJSON{
			Index:       i,
			Kind:        string(tx.Kind),
			Description: tx.Description,
			Signer:      string(tx.Signer),
			From:        tx.From.Hex(),
			Nonce:       tx.Signed.Nonce(),
			Hash:        tx.Signed.Hash().Hex(),
			Raw:         raw,
			WalletIndex: tx.WalletIndex,
		})
	}
	return b
}

type walletKeyJSON struct {
	Index      int    `json:"index"`
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
}

// writeWalletKeys saves the bundle wallet keys owner-readable only.
func writeWalletKeys(path string, out *launcher.Outcome) error {
	keys := make([]walletKeyJSON, 0, len(out.Result.Wallets))
	for _, w := range out.Result.Wallets {
		if w.PrivateKey == nil {
			continue
		}
		keys = append(keys, walletKeyJSON{
			Index:      w.Index,
			Address:    w.Address.Hex(),
			PrivateKey: hexutil.Encode(crypto.FromECDSA(w.PrivateKey)),
		})
	}
	return writeJSON(path, map[string]any{"launchId": out.LaunchID.String(), "wallets": keys}, 0o600)
}

func printLaunches(list []*storage.LaunchRecord) {
	if len(list) == 0 {
		fmt.Println("no launches recorded")
		return
	}
	for _, r := range list {
		fmt.Printf("%s  %s  %-8s %-10s %-9s wallets=%-3d buy=%s ETH  cost=%s ETH\n",
			r.CreatedAt.Format(time.RFC3339), r.ID, r.Network, r.BundleKind, r.Status,
			r.WalletCount, launch.FormatETH(r.TotalBuyETH), launch.FormatETH(r.EstimatedCost))
	}
}

func str(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}
