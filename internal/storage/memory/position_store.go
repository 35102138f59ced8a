package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ligun0805/launch-bundler/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[walletKey]*storage.PositionRecord
}

var _ storage.PositionStore = (*PositionStore)(nil)

func NewPositionStore() *PositionStore {
	return &PositionStore{data: make(map[walletKey]*storage.PositionRecord)}
}

func (s *PositionStore) InsertBulk(_ context.Context, positions []*storage.PositionRecord) error {
	for _, p := range positions {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make(map[walletKey]bool, len(positions))
	for _, p := range positions {
		k := walletKey{p.LaunchID, p.WalletIndex}
		if _, exists := s.data[k]; exists || batch[k] {
			return storage.ErrDuplicateKey
		}
		batch[k] = true
	}
	for _, p := range positions {
		s.data[walletKey{p.LaunchID, p.WalletIndex}] = p.Clone()
	}
	return nil
}

func (s *PositionStore) GetByLaunchID(_ context.Context, launchID uuid.UUID) ([]*storage.PositionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.PositionRecord
	for k, p := range s.data {
		if k.launch == launchID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WalletIndex < out[j].WalletIndex })
	return out, nil
}
