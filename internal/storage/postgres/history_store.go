package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// HistoryPointStore implements storage.HistoryPointStore using PostgreSQL.
// One row per calendar day, keyed by the date column.
type HistoryPointStore struct {
	pool *Pool
}

// NewHistoryPointStore creates a new HistoryPointStore.
func NewHistoryPointStore(pool *Pool) *HistoryPointStore {
	return &HistoryPointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HistoryPointStore = (*HistoryPointStore)(nil)

// BulkUpsert writes points, replacing any existing point for the same day.
func (s *HistoryPointStore) BulkUpsert(ctx context.Context, points []*domain.HistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO history_points (date, total_value, total_invested, total_return, total_return_pct)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			total_value = EXCLUDED.total_value,
			total_invested = EXCLUDED.total_invested,
			total_return = EXCLUDED.total_return,
			total_return_pct = EXCLUDED.total_return_pct
	`

	for _, p := range points {
		_, err := tx.Exec(ctx, query,
			p.Date,
			p.TotalValue,
			p.TotalInvested,
			p.TotalReturn,
			p.TotalReturnPct,
		)
		if err != nil {
			return fmt.Errorf("upsert history point: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByDateRange retrieves points within [start, end] (inclusive), ordered
// by date ASC.
func (s *HistoryPointStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.HistoryPoint, error) {
	query := `
		SELECT date, total_value, total_invested, total_return, total_return_pct
		FROM history_points
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get history points by date range: %w", err)
	}
	defer rows.Close()

	return scanHistoryPoints(rows)
}

// GetAll retrieves the full history, ordered by date ASC.
func (s *HistoryPointStore) GetAll(ctx context.Context) ([]*domain.HistoryPoint, error) {
	query := `
		SELECT date, total_value, total_invested, total_return, total_return_pct
		FROM history_points
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all history points: %w", err)
	}
	defer rows.Close()

	return scanHistoryPoints(rows)
}

func scanHistoryPoints(rows pgx.Rows) ([]*domain.HistoryPoint, error) {
	var points []*domain.HistoryPoint

	for rows.Next() {
		var p domain.HistoryPoint
		err := rows.Scan(
			&p.Date,
			&p.TotalValue,
			&p.TotalInvested,
			&p.TotalReturn,
			&p.TotalReturnPct,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history point row: %w", err)
		}
		// DATE columns scan at midnight; pin to UTC so range comparisons
		// behave the same as the in-memory store.
		p.Date = time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history point rows: %w", err)
	}

	return points, nil
}
