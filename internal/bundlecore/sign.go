package bundlecore

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/launch-bundler/internal/launch"
)

// Signer signs one transaction with one key.
type Signer interface {
	Sign(tx *types.Transaction, key *ecdsa.PrivateKey) (*types.Transaction, error)
}

// ChainSigner signs with the latest signer for ChainID.
type ChainSigner struct {
	ChainID *big.Int
}

func NewChainSigner(chainID *big.Int) ChainSigner {
	return ChainSigner{ChainID: new(big.Int).Set(chainID)}
}

func (s ChainSigner) Sign(tx *types.Transaction, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: nil transaction", launch.ErrSigning)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: missing key", launch.ErrSigning)
	}
	if s.ChainID == nil {
		return nil, fmt.Errorf("%w: chain id is not set", launch.ErrSigning)
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.ChainID), key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", launch.ErrSigning, err)
	}
	return signed, nil
}

// Sender recovers the from address of a signed tx.
func Sender(chainID *big.Int, tx *types.Transaction) (common.Address, error) {
	return types.Sender(types.LatestSignerForChainID(chainID), tx)
}
