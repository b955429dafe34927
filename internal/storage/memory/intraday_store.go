package memory

import (
	"context"
	"sort"
	"sync"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// IntradayPointStore is an in-memory implementation of storage.IntradayPointStore.
type IntradayPointStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.IntradayPoint // keyed by timestamp_ms
}

// NewIntradayPointStore creates a new in-memory intraday store.
func NewIntradayPointStore() *IntradayPointStore {
	return &IntradayPointStore{
		data: make(map[int64]*domain.IntradayPoint),
	}
}

// Compile-time interface check.
var _ storage.IntradayPointStore = (*IntradayPointStore)(nil)

// BulkAdd appends samples. Duplicate timestamps are rejected.
func (s *IntradayPointStore) BulkAdd(_ context.Context, points []*domain.IntradayPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: reject existing and intra-batch duplicates
	batch := make(map[int64]struct{}, len(points))
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[p.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[p.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		batch[p.TimestampMs] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		pointCopy := *p
		s.data[p.TimestampMs] = &pointCopy
	}
	return nil
}

// GetByTimeRange retrieves samples within [start, end] ms (inclusive),
// ordered by timestamp ASC.
func (s *IntradayPointStore) GetByTimeRange(_ context.Context, startMs, endMs int64) ([]*domain.IntradayPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.IntradayPoint, 0)
	for ts, p := range s.data {
		if ts >= startMs && ts <= endMs {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetAll retrieves all samples, ordered by timestamp ASC.
func (s *IntradayPointStore) GetAll(_ context.Context) ([]*domain.IntradayPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.IntradayPoint, 0, len(s.data))
	for _, p := range s.data {
		pointCopy := *p
		result = append(result, &pointCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// PruneBefore removes samples older than cutoff, returning the count removed.
func (s *IntradayPointStore) PruneBefore(_ context.Context, cutoffMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ts := range s.data {
		if ts < cutoffMs {
			delete(s.data, ts)
			removed++
		}
	}
	return removed, nil
}
