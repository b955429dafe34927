package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// CategoryStore implements storage.CategoryStore using PostgreSQL.
// Assignment cleanup on category deletion is handled by the foreign key's
// ON DELETE CASCADE.
type CategoryStore struct {
	pool *Pool
}

// NewCategoryStore creates a new CategoryStore.
func NewCategoryStore(pool *Pool) *CategoryStore {
	return &CategoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CategoryStore = (*CategoryStore)(nil)

// InsertCategory adds a category. Returns ErrDuplicateKey if the id exists.
func (s *CategoryStore) InsertCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO categories (id, name, updated_at) VALUES ($1, $2, $3)`,
		c.ID, c.Name, c.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category and, via cascade, its assignments.
// Returns ErrNotFound if not exists.
func (s *CategoryStore) DeleteCategory(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetCategories retrieves all categories, ordered by id ASC.
func (s *CategoryStore) GetCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, updated_at FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		c.UpdatedAt = c.UpdatedAt.UTC()
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// InsertAssignment links an asset definition to a category.
// Returns ErrDuplicateKey if the id exists.
func (s *CategoryStore) InsertAssignment(ctx context.Context, a *domain.CategoryAssignment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO category_assignments (id, category_id, asset_definition_id, updated_at)
		VALUES ($1, $2, $3, $4)
	`, a.ID, a.CategoryID, a.AssetDefinitionID, a.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert category assignment: %w", err)
	}
	return nil
}

// DeleteAssignment removes an assignment. Returns ErrNotFound if not exists.
func (s *CategoryStore) DeleteAssignment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM category_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetAssignments retrieves all assignments, ordered by id ASC.
func (s *CategoryStore) GetAssignments(ctx context.Context) ([]*domain.CategoryAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category_id, asset_definition_id, updated_at
		FROM category_assignments ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get category assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

func scanAssignments(rows pgx.Rows) ([]*domain.CategoryAssignment, error) {
	var assignments []*domain.CategoryAssignment
	for rows.Next() {
		var a domain.CategoryAssignment
		if err := rows.Scan(&a.ID, &a.CategoryID, &a.AssetDefinitionID, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment row: %w", err)
		}
		a.UpdatedAt = a.UpdatedAt.UTC()
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignment rows: %w", err)
	}
	return assignments, nil
}
