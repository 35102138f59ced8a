package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ligun0805/launch-bundler/internal/storage"
)

type walletKey struct {
	launch uuid.UUID
	index  int
}

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[walletKey]*storage.WalletRecord
}

var _ storage.WalletStore = (*WalletStore)(nil)

func NewWalletStore() *WalletStore {
	return &WalletStore{data: make(map[walletKey]*storage.WalletRecord)}
}

// InsertBulk adds wallets atomically. Fails entire batch on any duplicate.
func (s *WalletStore) InsertBulk(_ context.Context, wallets []*storage.WalletRecord) error {
	for _, w := range wallets {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make(map[walletKey]bool, len(wallets))
	for _, w := range wallets {
		k := walletKey{w.LaunchID, w.Index}
		if _, exists := s.data[k]; exists || batch[k] {
			return storage.ErrDuplicateKey
		}
		batch[k] = true
	}
	for _, w := range wallets {
		s.data[walletKey{w.LaunchID, w.Index}] = w.Clone()
	}
	return nil
}

func (s *WalletStore) GetByLaunchID(_ context.Context, launchID uuid.UUID) ([]*storage.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.WalletRecord
	for k, w := range s.data {
		if k.launch == launchID {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}
