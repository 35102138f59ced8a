package bundlecore

import (
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/launch-bundler/internal/launch"
)

// GenerateWallets creates n fresh keys indexed from 0.
func GenerateWallets(n int) ([]launch.Wallet, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: wallet count %d", launch.ErrConfig, n)
	}
	out := make([]launch.Wallet, n)
	for i := range out {
		k, err := gethcrypto.GenerateKey()
		if err != nil {
			for j := 0; j < i; j++ {
				out[j].Discard()
			}
			return nil, fmt.Errorf("generate wallet %d: %w", i, err)
		}
		out[i] = launch.Wallet{Address: gethcrypto.PubkeyToAddress(k.PublicKey), PrivateKey: k, Index: i}
	}
	return out, nil
}
