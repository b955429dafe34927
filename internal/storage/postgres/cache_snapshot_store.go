package postgres

import (
	"context"
	"fmt"

	"portfolio-engine/internal/storage"
)

// CacheSnapshotStore implements storage.CacheSnapshotStore using PostgreSQL.
type CacheSnapshotStore struct {
	pool *Pool
}

// NewCacheSnapshotStore creates a new CacheSnapshotStore.
func NewCacheSnapshotStore(pool *Pool) *CacheSnapshotStore {
	return &CacheSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CacheSnapshotStore = (*CacheSnapshotStore)(nil)

// Upsert writes a snapshot, replacing any existing entry for the key.
func (s *CacheSnapshotStore) Upsert(ctx context.Context, snap *storage.CacheSnapshot) error {
	query := `
		INSERT INTO cache_snapshots (key, value_json, input_hash, computed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			value_json = EXCLUDED.value_json,
			input_hash = EXCLUDED.input_hash,
			computed_at = EXCLUDED.computed_at
	`

	_, err := s.pool.Exec(ctx, query, snap.Key, snap.ValueJSON, snap.InputHash, snap.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert cache snapshot: %w", err)
	}
	return nil
}

// GetAll retrieves all snapshots, ordered by key ASC.
func (s *CacheSnapshotStore) GetAll(ctx context.Context) ([]*storage.CacheSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value_json, input_hash, computed_at FROM cache_snapshots ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all cache snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*storage.CacheSnapshot
	for rows.Next() {
		var snap storage.CacheSnapshot
		if err := rows.Scan(&snap.Key, &snap.ValueJSON, &snap.InputHash, &snap.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan cache snapshot row: %w", err)
		}
		snap.ComputedAt = snap.ComputedAt.UTC()
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache snapshot rows: %w", err)
	}
	return snaps, nil
}

// Delete removes a snapshot. Missing keys are not an error.
func (s *CacheSnapshotStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cache_snapshots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache snapshot: %w", err)
	}
	return nil
}
