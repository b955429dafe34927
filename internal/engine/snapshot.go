package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"portfolio-engine/internal/cache"
	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage"
)

// put stores a cache entry and, when a snapshot store is configured,
// persists it so the cache survives restarts. Persistence failures are
// logged and swallowed; the in-memory entry is already usable.
func (e *Engine) put(ctx context.Context, key string, value any, inputHash string) {
	entry := e.cache.Put(key, value, inputHash)

	if e.snapshots == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		e.logf("cache snapshot marshal failed for %s: %v", key, err)
		return
	}
	err = e.snapshots.Upsert(ctx, &storage.CacheSnapshot{
		Key:        key,
		ValueJSON:  raw,
		InputHash:  inputHash,
		ComputedAt: entry.ComputedAt,
	})
	if err != nil {
		e.logf("cache snapshot persist failed for %s: %v", key, err)
	}
}

// Restore rehydrates the cache from persisted snapshots. Each entry passes
// the TTL rule once before being trusted; entries that went stale while the
// application was closed are dropped from both tiers. Hash validity is not
// checked here, the per-lookup hash gate covers it.
func (e *Engine) Restore(ctx context.Context) error {
	if e.snapshots == nil {
		return nil
	}
	snaps, err := e.snapshots.GetAll(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, snap := range snaps {
		value, err := decodeSnapshotValue(snap.Key, snap.ValueJSON)
		if err != nil {
			e.logf("dropping undecodable cache snapshot %s: %v", snap.Key, err)
			_ = e.snapshots.Delete(ctx, snap.Key)
			continue
		}
		ok := e.cache.Restore(cache.Entry{
			Key:        snap.Key,
			Value:      value,
			InputHash:  snap.InputHash,
			ComputedAt: snap.ComputedAt,
		}, snapshotMaxAge(snap.Key))
		if !ok {
			_ = e.snapshots.Delete(ctx, snap.Key)
			continue
		}
		restored++
	}
	e.logf("restored %d of %d cache snapshots", restored, len(snaps))
	return nil
}

// decodeSnapshotValue maps a persisted key back to its concrete value type.
func decodeSnapshotValue(key string, raw []byte) (any, error) {
	switch {
	case key == keySummary:
		var s domain.FinancialSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case key == keyPositions:
		var res PositionsResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, err
		}
		return &res, nil
	case strings.HasPrefix(key, historyPrefix):
		var points []*domain.MergedPoint
		if err := json.Unmarshal(raw, &points); err != nil {
			return nil, err
		}
		return points, nil
	default:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// snapshotMaxAge returns the TTL to apply at rehydration. Only history
// entries carry a TTL; hash-gated entries rehydrate at any age.
func snapshotMaxAge(key string) time.Duration {
	if strings.HasPrefix(key, historyPrefix) {
		return cache.DefaultHistoryTTL
	}
	return 0
}
