package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// AssetDefinitionStore is an in-memory implementation of storage.AssetDefinitionStore.
type AssetDefinitionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AssetDefinition // keyed by id
}

// NewAssetDefinitionStore creates a new in-memory asset definition store.
func NewAssetDefinitionStore() *AssetDefinitionStore {
	return &AssetDefinitionStore{
		data: make(map[string]*domain.AssetDefinition),
	}
}

// Compile-time interface check.
var _ storage.AssetDefinitionStore = (*AssetDefinitionStore)(nil)

// Insert adds a new definition. Returns ErrDuplicateKey if the id exists.
func (s *AssetDefinitionStore) Insert(_ context.Context, def *domain.AssetDefinition) error {
	if def == nil || def.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[def.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[def.ID] = copyDefinition(def)
	return nil
}

// Update replaces an existing definition. Returns ErrNotFound if not exists.
func (s *AssetDefinitionStore) Update(_ context.Context, def *domain.AssetDefinition) error {
	if def == nil || def.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[def.ID]; !exists {
		return storage.ErrNotFound
	}
	s.data[def.ID] = copyDefinition(def)
	return nil
}

// GetByID retrieves a definition by its id. Returns ErrNotFound if not exists.
func (s *AssetDefinitionStore) GetByID(_ context.Context, id string) (*domain.AssetDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyDefinition(def), nil
}

// GetByTicker retrieves a definition by ticker. Returns ErrNotFound if not exists.
func (s *AssetDefinitionStore) GetByTicker(_ context.Context, ticker string) (*domain.AssetDefinition, error) {
	if ticker == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, def := range s.data {
		if def.Ticker == ticker {
			return copyDefinition(def), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetAll retrieves all definitions, ordered by id ASC.
func (s *AssetDefinitionStore) GetAll(_ context.Context) ([]*domain.AssetDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AssetDefinition, 0, len(s.data))
	for _, def := range s.data {
		result = append(result, copyDefinition(def))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// UpdatePrice sets the current price and bumps UpdatedAt.
func (s *AssetDefinitionStore) UpdatePrice(_ context.Context, id string, price float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	def.CurrentPrice = price
	def.UpdatedAt = at
	return nil
}

// copyDefinition deep-copies a definition including its schedule payloads.
func copyDefinition(def *domain.AssetDefinition) *domain.AssetDefinition {
	defCopy := *def
	if def.DividendInfo != nil {
		info := *def.DividendInfo
		info.PaymentMonths = append([]int(nil), def.DividendInfo.PaymentMonths...)
		if def.DividendInfo.CustomAmounts != nil {
			info.CustomAmounts = make(map[int]float64, len(def.DividendInfo.CustomAmounts))
			for m, v := range def.DividendInfo.CustomAmounts {
				info.CustomAmounts[m] = v
			}
		}
		defCopy.DividendInfo = &info
	}
	if def.BondInfo != nil {
		info := *def.BondInfo
		defCopy.BondInfo = &info
	}
	if def.RentalInfo != nil {
		info := *def.RentalInfo
		defCopy.RentalInfo = &info
	}
	return &defCopy
}
