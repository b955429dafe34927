package storage

import (
	"context"
	"time"

	"portfolio-engine/internal/domain"
)

// TransactionStore provides access to the transaction ledger.
type TransactionStore interface {
	// Insert adds a new ledger entry. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, tx *domain.Transaction) error

	// Update replaces an existing entry. Returns ErrNotFound if not exists.
	Update(ctx context.Context, tx *domain.Transaction) error

	// Delete removes an entry. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves an entry by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// GetAll retrieves the full ledger, ordered by date ASC then id ASC.
	GetAll(ctx context.Context) ([]*domain.Transaction, error)

	// SetCachedIncome writes the per-transaction income annex without
	// touching UpdatedAt; the annex is derived data, not a ledger edit.
	SetCachedIncome(ctx context.Context, id string, income *float64) error
}

// AssetDefinitionStore provides access to asset metadata.
type AssetDefinitionStore interface {
	// Insert adds a new definition. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, def *domain.AssetDefinition) error

	// Update replaces an existing definition. Returns ErrNotFound if not exists.
	Update(ctx context.Context, def *domain.AssetDefinition) error

	// GetByID retrieves a definition by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.AssetDefinition, error)

	// GetByTicker retrieves a definition by ticker. Returns ErrNotFound if not exists.
	GetByTicker(ctx context.Context, ticker string) (*domain.AssetDefinition, error)

	// GetAll retrieves all definitions, ordered by id ASC.
	GetAll(ctx context.Context) ([]*domain.AssetDefinition, error)

	// UpdatePrice sets the current price and bumps UpdatedAt.
	// Returns ErrNotFound if not exists.
	UpdatePrice(ctx context.Context, id string, price float64, at time.Time) error
}

// CategoryStore provides access to categories and their asset assignments.
type CategoryStore interface {
	// InsertCategory adds a category. Returns ErrDuplicateKey if the id exists.
	InsertCategory(ctx context.Context, c *domain.Category) error

	// DeleteCategory removes a category and its assignments.
	// Returns ErrNotFound if not exists.
	DeleteCategory(ctx context.Context, id string) error

	// GetCategories retrieves all categories, ordered by id ASC.
	GetCategories(ctx context.Context) ([]*domain.Category, error)

	// InsertAssignment links an asset definition to a category.
	// Returns ErrDuplicateKey if the id exists.
	InsertAssignment(ctx context.Context, a *domain.CategoryAssignment) error

	// DeleteAssignment removes an assignment. Returns ErrNotFound if not exists.
	DeleteAssignment(ctx context.Context, id string) error

	// GetAssignments retrieves all assignments, ordered by id ASC.
	GetAssignments(ctx context.Context) ([]*domain.CategoryAssignment, error)
}

// HistoryPointStore provides access to daily portfolio snapshots.
type HistoryPointStore interface {
	// BulkUpsert writes points, replacing any existing point for the same
	// calendar day. The worker rebuilds history wholesale, so upsert
	// semantics are required rather than append-only.
	BulkUpsert(ctx context.Context, points []*domain.HistoryPoint) error

	// GetByDateRange retrieves points within [start, end] (inclusive),
	// ordered by date ASC.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.HistoryPoint, error)

	// GetAll retrieves the full history, ordered by date ASC.
	GetAll(ctx context.Context) ([]*domain.HistoryPoint, error)
}

// IntradayPointStore provides access to minute-level portfolio samples.
type IntradayPointStore interface {
	// BulkAdd appends samples. Duplicate timestamps within the batch are
	// rejected with ErrDuplicateKey.
	BulkAdd(ctx context.Context, points []*domain.IntradayPoint) error

	// GetByTimeRange retrieves samples within [start, end] ms (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*domain.IntradayPoint, error)

	// GetAll retrieves all samples, ordered by timestamp ASC.
	GetAll(ctx context.Context) ([]*domain.IntradayPoint, error)

	// PruneBefore removes samples older than cutoff, returning the count
	// removed. Enforces the rolling retention window.
	PruneBefore(ctx context.Context, cutoffMs int64) (int, error)
}

// CacheSnapshot is one persisted derived-result entry. Values are stored as
// JSON so the snapshot store stays agnostic of result types.
type CacheSnapshot struct {
	Key        string
	ValueJSON  []byte
	InputHash  string
	ComputedAt time.Time
}

// CacheSnapshotStore persists cache entries across restarts.
type CacheSnapshotStore interface {
	// Upsert writes a snapshot, replacing any existing entry for the key.
	Upsert(ctx context.Context, snap *CacheSnapshot) error

	// GetAll retrieves all snapshots, ordered by key ASC.
	GetAll(ctx context.Context) ([]*CacheSnapshot, error)

	// Delete removes a snapshot. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
