package clickhouse

import (
	"context"
	"fmt"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// IntradayPointStore implements storage.IntradayPointStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicate timestamps are
// rejected by explicit checks before the batch insert.
type IntradayPointStore struct {
	conn *Conn
}

// NewIntradayPointStore creates a new IntradayPointStore.
func NewIntradayPointStore(conn *Conn) *IntradayPointStore {
	return &IntradayPointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.IntradayPointStore = (*IntradayPointStore)(nil)

// BulkAdd appends samples. Duplicate timestamps, within the batch or
// against stored rows, reject the whole batch with ErrDuplicateKey.
func (s *IntradayPointStore) BulkAdd(ctx context.Context, points []*domain.IntradayPoint) error {
	if len(points) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(points))
	for _, p := range points {
		if _, exists := seen[p.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[p.TimestampMs] = struct{}{}
	}

	for _, p := range points {
		exists, err := s.exists(ctx, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO intraday_points (timestamp_ms, value)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(uint64(p.TimestampMs), p.Value); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves samples within [start, end] ms (inclusive),
// ordered by timestamp ASC.
func (s *IntradayPointStore) GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*domain.IntradayPoint, error) {
	query := `
		SELECT timestamp_ms, value
		FROM intraday_points
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(startMs), uint64(endMs))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanIntradayPoints(rows)
}

// GetAll retrieves all samples, ordered by timestamp ASC.
func (s *IntradayPointStore) GetAll(ctx context.Context) ([]*domain.IntradayPoint, error) {
	query := `
		SELECT timestamp_ms, value
		FROM intraday_points
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanIntradayPoints(rows)
}

// PruneBefore removes samples older than cutoff, returning the count
// removed. Enforces the rolling retention window.
func (s *IntradayPointStore) PruneBefore(ctx context.Context, cutoffMs int64) (int, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM intraday_points WHERE timestamp_ms < ?`,
		uint64(cutoffMs)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count prunable: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	// mutations_sync makes the delete visible to the next query, which the
	// engine's read-after-prune flow relies on.
	err = s.conn.Exec(ctx,
		`ALTER TABLE intraday_points DELETE WHERE timestamp_ms < ? SETTINGS mutations_sync = 1`,
		uint64(cutoffMs))
	if err != nil {
		return 0, fmt.Errorf("prune intraday points: %w", err)
	}
	return int(count), nil
}

// exists checks if a sample with the given timestamp exists.
func (s *IntradayPointStore) exists(ctx context.Context, timestampMs int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM intraday_points WHERE timestamp_ms = ?`,
		uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanIntradayPoints scans multiple rows.
func scanIntradayPoints(rows chRows) ([]*domain.IntradayPoint, error) {
	var points []*domain.IntradayPoint

	for rows.Next() {
		var p domain.IntradayPoint
		var timestampMs uint64

		if err := rows.Scan(&timestampMs, &p.Value); err != nil {
			return nil, fmt.Errorf("scan intraday point row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intraday point rows: %w", err)
	}

	return points, nil
}
