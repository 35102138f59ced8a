package bundlecore

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ParsePrivateKey parses a hex ECDSA private key (with / without 0x).
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if len(h) == 0 {
		return nil, errors.New("empty private key")
	}
	k, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return k, nil
}

// GweiToWei converts whole gwei to wei.
func GweiToWei(g int64) *big.Int {
	x := new(big.Int).SetInt64(g)
	return x.Mul(x, big.NewInt(1_000_000_000))
}

// TxHex returns the 0x-prefixed RLP/typed encoding of a signed tx.
func TxHex(tx *types.Transaction) (string, error) {
	b, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

func mulBig(a *big.Int, m uint64) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(a, new(big.Int).SetUint64(m))
}

func addBig(a, b *big.Int) *big.Int {
	switch {
	case a == nil && b == nil:
		return big.NewInt(0)
	case a == nil:
		return new(big.Int).Set(b)
	case b == nil:
		return new(big.Int).Set(a)
	}
	return new(big.Int).Add(a, b)
}

// GasCost is gas * perGas in wei.
func GasCost(gas uint64, perGas *big.Int) *big.Int { return mulBig(perGas, gas) }

// FundAmount is what a bundle wallet must hold to pay for its approve and buy:
// buy ETH + (approveGas + buyGas) * perGas + padding.
func FundAmount(buyETH *big.Int, approveGas, buyGas uint64, perGas, padding *big.Int) *big.Int {
	fees := GasCost(approveGas+buyGas, perGas)
	return addBig(addBig(buyETH, fees), padding)
}
