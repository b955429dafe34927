package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

func TestAssetDefinitionStore_RoundTripsSchedulePayloads(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetDefinitionStore(pool)
	ctx := context.Background()

	def := &domain.AssetDefinition{
		ID:           "def-001",
		Name:         "Acme Corp",
		Ticker:       "ACME",
		Type:         domain.AssetTypeStock,
		CurrentPrice: 150,
		DividendInfo: &domain.DividendInfo{
			Frequency:     domain.FrequencyCustom,
			Amount:        2,
			PaymentMonths: []int{3, 6, 9, 12},
			CustomAmounts: map[int]float64{12: 3.5},
		},
		UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.Insert(ctx, def))

	retrieved, err := store.GetByID(ctx, "def-001")
	require.NoError(t, err)
	require.NotNil(t, retrieved.DividendInfo)
	assert.Equal(t, domain.FrequencyCustom, retrieved.DividendInfo.Frequency)
	assert.Equal(t, []int{3, 6, 9, 12}, retrieved.DividendInfo.PaymentMonths)
	assert.Equal(t, 3.5, retrieved.DividendInfo.CustomAmounts[12])
	assert.Nil(t, retrieved.BondInfo)
	assert.Nil(t, retrieved.RentalInfo)
}

func TestAssetDefinitionStore_GetByTicker(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetDefinitionStore(pool)
	ctx := context.Background()

	def := &domain.AssetDefinition{
		ID: "def-002", Name: "Treasury Bond", Ticker: "TB30",
		Type:     domain.AssetTypeBond,
		BondInfo: &domain.BondInfo{InterestRate: 4.5},
		UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Insert(ctx, def))

	retrieved, err := store.GetByTicker(ctx, "TB30")
	require.NoError(t, err)
	assert.Equal(t, "def-002", retrieved.ID)
	require.NotNil(t, retrieved.BondInfo)
	assert.Equal(t, 4.5, retrieved.BondInfo.InterestRate)

	_, err = store.GetByTicker(ctx, "NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAssetDefinitionStore_UpdatePrice(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetDefinitionStore(pool)
	ctx := context.Background()

	inserted := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	def := &domain.AssetDefinition{
		ID: "def-003", Name: "Acme Corp", Ticker: "ACME",
		Type: domain.AssetTypeStock, CurrentPrice: 100, UpdatedAt: inserted,
	}
	require.NoError(t, store.Insert(ctx, def))

	at := inserted.Add(24 * time.Hour)
	require.NoError(t, store.UpdatePrice(ctx, "def-003", 117.5, at))

	retrieved, err := store.GetByID(ctx, "def-003")
	require.NoError(t, err)
	assert.Equal(t, 117.5, retrieved.CurrentPrice)
	assert.True(t, at.Equal(retrieved.UpdatedAt))

	assert.ErrorIs(t, store.UpdatePrice(ctx, "missing", 1, at), storage.ErrNotFound)
}

func TestAssetDefinitionStore_InsertDuplicateAndUpdateMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetDefinitionStore(pool)
	ctx := context.Background()

	def := &domain.AssetDefinition{
		ID: "def-004", Name: "Cash", Type: domain.AssetTypeCash,
		UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Insert(ctx, def))
	assert.ErrorIs(t, store.Insert(ctx, def), storage.ErrDuplicateKey)

	missing := &domain.AssetDefinition{ID: "missing", Name: "X", Type: domain.AssetTypeOther,
		UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	assert.ErrorIs(t, store.Update(ctx, missing), storage.ErrNotFound)
}
