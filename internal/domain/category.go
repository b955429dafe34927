package domain

import "time"

// Category is a user-defined grouping for assets.
type Category struct {
	ID        string
	Name      string
	UpdatedAt time.Time
}

// CategoryAssignment links one asset definition to one category.
// The relation is many-to-many; a position may carry 0..n assignments.
type CategoryAssignment struct {
	ID                string
	CategoryID        string
	AssetDefinitionID string
	UpdatedAt         time.Time
}
