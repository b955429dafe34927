package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// HistoryPointStore is an in-memory implementation of storage.HistoryPointStore.
type HistoryPointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.HistoryPoint // keyed by calendar day
}

// NewHistoryPointStore creates a new in-memory history store.
func NewHistoryPointStore() *HistoryPointStore {
	return &HistoryPointStore{
		data: make(map[string]*domain.HistoryPoint),
	}
}

// Compile-time interface check.
var _ storage.HistoryPointStore = (*HistoryPointStore)(nil)

// dayKey normalizes a timestamp to its calendar day.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// BulkUpsert writes points, replacing any existing point for the same day.
func (s *HistoryPointStore) BulkUpsert(_ context.Context, points []*domain.HistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		pointCopy := *p
		s.data[dayKey(p.Date)] = &pointCopy
	}
	return nil
}

// GetByDateRange retrieves points within [start, end] (inclusive), ordered
// by date ASC.
func (s *HistoryPointStore) GetByDateRange(_ context.Context, start, end time.Time) ([]*domain.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startKey := dayKey(start)
	endKey := dayKey(end)

	result := make([]*domain.HistoryPoint, 0)
	for key, p := range s.data {
		if key >= startKey && key <= endKey {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// GetAll retrieves the full history, ordered by date ASC.
func (s *HistoryPointStore) GetAll(_ context.Context) ([]*domain.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.HistoryPoint, 0, len(s.data))
	for _, p := range s.data {
		pointCopy := *p
		result = append(result, &pointCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}
