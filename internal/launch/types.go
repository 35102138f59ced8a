package launch

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// OpKind is the kind of a launch transaction.
type OpKind string

const (
	OpClogTransfer   OpKind = "clog-transfer"
	OpCreatePair     OpKind = "create-pair"
	OpAddLiquidity   OpKind = "add-liquidity"
	OpOpenTrading    OpKind = "open-trading"
	OpExcludeFromFee OpKind = "exclude-from-fee"
	OpFundWallet     OpKind = "fund-wallet"
	OpApproveRouter  OpKind = "approve-router"
	OpBuyTokens      OpKind = "buy-tokens"
)

// Identity names who signs a transaction.
type Identity string

const (
	IdentityDev     Identity = "dev"
	IdentityFunding Identity = "funding"
	IdentityBundle  Identity = "bundle"
)

// Wallet is a freshly generated bundle wallet. It lives for one run only.
type Wallet struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
	Index      int
}

// Discard drops the key material. The wallet cannot sign afterwards.
func (w *Wallet) Discard() {
	if w.PrivateKey != nil && w.PrivateKey.D != nil {
		w.PrivateKey.D.SetInt64(0)
	}
	w.PrivateKey = nil
}

// Transaction is one step of the launch sequence.
type Transaction struct {
	Kind        OpKind
	Description string
	Signer      Identity
	From        common.Address
	Unsigned    *types.Transaction
	WalletIndex *int
	Signed      *types.Transaction
}

// IsSigned reports whether a signed payload is attached.
func (t Transaction) IsSigned() bool { return t.Signed != nil }
