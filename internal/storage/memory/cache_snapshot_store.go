package memory

import (
	"context"
	"sort"
	"sync"

	"portfolio-engine/internal/storage"
)

// CacheSnapshotStore is an in-memory implementation of storage.CacheSnapshotStore.
type CacheSnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*storage.CacheSnapshot // keyed by cache key
}

// NewCacheSnapshotStore creates a new in-memory cache snapshot store.
func NewCacheSnapshotStore() *CacheSnapshotStore {
	return &CacheSnapshotStore{
		data: make(map[string]*storage.CacheSnapshot),
	}
}

// Compile-time interface check.
var _ storage.CacheSnapshotStore = (*CacheSnapshotStore)(nil)

// Upsert writes a snapshot, replacing any existing entry for the key.
func (s *CacheSnapshotStore) Upsert(_ context.Context, snap *storage.CacheSnapshot) error {
	if snap == nil || snap.Key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapCopy := *snap
	snapCopy.ValueJSON = append([]byte(nil), snap.ValueJSON...)
	s.data[snap.Key] = &snapCopy
	return nil
}

// GetAll retrieves all snapshots, ordered by key ASC.
func (s *CacheSnapshotStore) GetAll(_ context.Context) ([]*storage.CacheSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.CacheSnapshot, 0, len(s.data))
	for _, snap := range s.data {
		snapCopy := *snap
		snapCopy.ValueJSON = append([]byte(nil), snap.ValueJSON...)
		result = append(result, &snapCopy)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Delete removes a snapshot. Missing keys are not an error.
func (s *CacheSnapshotStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
