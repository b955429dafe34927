package memory

import (
	"context"
	"sort"
	"sync"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by id
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert adds a new ledger entry. Returns ErrDuplicateKey if the id exists.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.ID]; exists {
		return storage.ErrDuplicateKey
	}
	txCopy := *tx
	s.data[tx.ID] = &txCopy
	return nil
}

// Update replaces an existing entry. Returns ErrNotFound if not exists.
func (s *TransactionStore) Update(_ context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.ID]; !exists {
		return storage.ErrNotFound
	}
	txCopy := *tx
	s.data[tx.ID] = &txCopy
	return nil
}

// Delete removes an entry. Returns ErrNotFound if not exists.
func (s *TransactionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// GetByID retrieves an entry by its id. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	txCopy := *tx
	return &txCopy, nil
}

// GetAll retrieves the full ledger, ordered by date ASC then id ASC.
func (s *TransactionStore) GetAll(_ context.Context) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Transaction, 0, len(s.data))
	for _, tx := range s.data {
		txCopy := *tx
		result = append(result, &txCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// SetCachedIncome writes the per-transaction income annex without touching
// UpdatedAt.
func (s *TransactionStore) SetCachedIncome(_ context.Context, id string, income *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if income == nil {
		tx.CachedIncome = nil
		return nil
	}
	v := *income
	tx.CachedIncome = &v
	return nil
}
