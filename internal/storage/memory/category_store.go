package memory

import (
	"context"
	"sort"
	"sync"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// CategoryStore is an in-memory implementation of storage.CategoryStore.
type CategoryStore struct {
	mu          sync.RWMutex
	categories  map[string]*domain.Category
	assignments map[string]*domain.CategoryAssignment
}

// NewCategoryStore creates a new in-memory category store.
func NewCategoryStore() *CategoryStore {
	return &CategoryStore{
		categories:  make(map[string]*domain.Category),
		assignments: make(map[string]*domain.CategoryAssignment),
	}
}

// Compile-time interface check.
var _ storage.CategoryStore = (*CategoryStore)(nil)

// InsertCategory adds a category. Returns ErrDuplicateKey if the id exists.
func (s *CategoryStore) InsertCategory(_ context.Context, c *domain.Category) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categories[c.ID]; exists {
		return storage.ErrDuplicateKey
	}
	cCopy := *c
	s.categories[c.ID] = &cCopy
	return nil
}

// DeleteCategory removes a category and its assignments.
func (s *CategoryStore) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categories[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.categories, id)
	for aid, a := range s.assignments {
		if a.CategoryID == id {
			delete(s.assignments, aid)
		}
	}
	return nil
}

// GetCategories retrieves all categories, ordered by id ASC.
func (s *CategoryStore) GetCategories(_ context.Context) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		cCopy := *c
		result = append(result, &cCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// InsertAssignment links an asset definition to a category.
func (s *CategoryStore) InsertAssignment(_ context.Context, a *domain.CategoryAssignment) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assignments[a.ID]; exists {
		return storage.ErrDuplicateKey
	}
	aCopy := *a
	s.assignments[a.ID] = &aCopy
	return nil
}

// DeleteAssignment removes an assignment.
func (s *CategoryStore) DeleteAssignment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assignments[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.assignments, id)
	return nil
}

// GetAssignments retrieves all assignments, ordered by id ASC.
func (s *CategoryStore) GetAssignments(_ context.Context) ([]*domain.CategoryAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CategoryAssignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		aCopy := *a
		result = append(result, &aCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
