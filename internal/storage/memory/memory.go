// Package memory holds in-memory stores for tests and dry runs.
package memory

import "github.com/ligun0805/launch-bundler/internal/storage"

// NewStores returns empty in-memory stores.
func NewStores() storage.Stores {
	return storage.Stores{
		Launches:  NewLaunchStore(),
		Wallets:   NewWalletStore(),
		Positions: NewPositionStore(),
	}
}
