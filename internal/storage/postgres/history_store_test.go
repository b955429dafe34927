package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestHistoryPointStore_BulkUpsertReplacesSameDay(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewHistoryPointStore(pool)
	ctx := context.Background()

	first := []*domain.HistoryPoint{
		{Date: day(2024, 3, 1), TotalValue: 1000, TotalInvested: 900, TotalReturn: 100, TotalReturnPct: 11.11},
		{Date: day(2024, 3, 2), TotalValue: 1100, TotalInvested: 900, TotalReturn: 200, TotalReturnPct: 22.22},
	}
	require.NoError(t, store.BulkUpsert(ctx, first))

	// Rebuilds rewrite existing days in place.
	second := []*domain.HistoryPoint{
		{Date: day(2024, 3, 2), TotalValue: 1150, TotalInvested: 900, TotalReturn: 250, TotalReturnPct: 27.78},
		{Date: day(2024, 3, 3), TotalValue: 1200, TotalInvested: 900, TotalReturn: 300, TotalReturnPct: 33.33},
	}
	require.NoError(t, store.BulkUpsert(ctx, second))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, day(2024, 3, 1).Equal(all[0].Date))
	assert.Equal(t, 1150.0, all[1].TotalValue)
	assert.Equal(t, 1200.0, all[2].TotalValue)
}

func TestHistoryPointStore_GetByDateRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewHistoryPointStore(pool)
	ctx := context.Background()

	var points []*domain.HistoryPoint
	for d := 1; d <= 10; d++ {
		points = append(points, &domain.HistoryPoint{
			Date: day(2024, 3, d), TotalValue: float64(d * 100),
		})
	}
	require.NoError(t, store.BulkUpsert(ctx, points))

	got, err := store.GetByDateRange(ctx, day(2024, 3, 3), day(2024, 3, 6))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.True(t, day(2024, 3, 3).Equal(got[0].Date))
	assert.True(t, day(2024, 3, 6).Equal(got[3].Date))
}

func TestCacheSnapshotStore_UpsertGetDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCacheSnapshotStore(pool)
	ctx := context.Background()

	value, err := json.Marshal(map[string]float64{"TotalAssetValue": 900})
	require.NoError(t, err)

	snap := &storage.CacheSnapshot{
		Key:        "summary",
		ValueJSON:  value,
		InputHash:  "hash-1",
		ComputedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Upsert(ctx, snap))

	// Upsert replaces wholesale.
	snap.InputHash = "hash-2"
	require.NoError(t, store.Upsert(ctx, snap))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "hash-2", all[0].InputHash)
	assert.JSONEq(t, string(value), string(all[0].ValueJSON))

	require.NoError(t, store.Delete(ctx, "summary"))
	require.NoError(t, store.Delete(ctx, "summary")) // missing key is not an error

	all, err = store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
