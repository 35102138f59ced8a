package bundlecore

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SortTokens orders two tokens the way the V2 factory does.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// PairAddress is the CREATE2 address of the V2 pair for tokenA/tokenB.
func PairAddress(factory common.Address, initCodeHash common.Hash, tokenA, tokenB common.Address) common.Address {
	t0, t1 := SortTokens(tokenA, tokenB)
	salt := gethcrypto.Keccak256Hash(t0.Bytes(), t1.Bytes())
	return gethcrypto.CreateAddress2(factory, salt, initCodeHash.Bytes())
}
