package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ligun0805/launch-bundler/internal/storage"
)

// LaunchStore is an in-memory implementation of storage.LaunchStore.
type LaunchStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*storage.LaunchRecord
}

var _ storage.LaunchStore = (*LaunchStore)(nil)

func NewLaunchStore() *LaunchStore {
	return &LaunchStore{data: make(map[uuid.UUID]*storage.LaunchRecord)}
}

func (s *LaunchStore) Insert(_ context.Context, r *storage.LaunchRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.ID] = r.Clone()
	return nil
}

func (s *LaunchStore) GetByID(_ context.Context, id uuid.UUID) (*storage.LaunchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *LaunchStore) List(_ context.Context, limit int) ([]*storage.LaunchRecord, error) {
	s.mu.RLock()
	out := make([]*storage.LaunchRecord, 0, len(s.data))
	for _, r := range s.data {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *LaunchStore) UpdateStatus(_ context.Context, id uuid.UUID, status storage.LaunchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.Status = status
	return nil
}
