// Package reconcile merges persisted daily history with transient intraday
// samples into one ordered, de-duplicated series per requested time range.
// Output is deterministic: for fixed inputs, ordering and content are
// identical across calls.
package reconcile

import (
	"sort"
	"time"

	"portfolio-engine/internal/domain"
)

// intradayWindow is the rolling window used for the 1D range, computed
// relative to the latest available sample rather than wall-clock now
// because the data source may lag.
const intradayWindow = 24 * time.Hour

// Reconcile selects and merges series for the requested range:
//
//   - 1D: intraday samples within 24h of the latest sample; daily history
//     when no intraday data exists.
//   - 5D: every intraday sample in the window merged with one end-of-day
//     daily value per day, both granularities tagged in the output.
//   - 1M and longer: daily history only; ALL is the full unfiltered history.
func Reconcile(r domain.TimeRange, daily []*domain.HistoryPoint, intraday []*domain.IntradayPoint, now time.Time) []*domain.MergedPoint {
	switch r {
	case domain.Range1D:
		points := intradayRecent(intraday)
		if len(points) > 0 {
			return finalize(points)
		}
		return finalize(dailyMerged(daily, r.Start(now)))

	case domain.Range5D:
		start := r.Start(now)
		merged := dailyMerged(daily, start)
		for _, p := range intraday {
			if p == nil {
				continue
			}
			if p.TimestampMs >= start.UnixMilli() {
				merged = append(merged, &domain.MergedPoint{
					TimestampMs: p.TimestampMs,
					Value:       p.Value,
					Source:      domain.PointSourceIntraday,
				})
			}
		}
		return finalize(merged)

	case domain.RangeAll:
		return finalize(dailyMerged(daily, time.Time{}))

	default:
		return finalize(dailyMerged(daily, r.Start(now)))
	}
}

// intradayRecent filters samples to the rolling window ending at the latest
// available sample.
func intradayRecent(intraday []*domain.IntradayPoint) []*domain.MergedPoint {
	var latest int64
	for _, p := range intraday {
		if p != nil && p.TimestampMs > latest {
			latest = p.TimestampMs
		}
	}
	if latest == 0 {
		return nil
	}

	cutoff := latest - intradayWindow.Milliseconds()
	var out []*domain.MergedPoint
	for _, p := range intraday {
		if p == nil || p.TimestampMs < cutoff {
			continue
		}
		out = append(out, &domain.MergedPoint{
			TimestampMs: p.TimestampMs,
			Value:       p.Value,
			Source:      domain.PointSourceIntraday,
		})
	}
	return out
}

// dailyMerged converts daily history at or after start into merged points,
// stamped at end of day so they sort after the same day's intraday samples.
// A zero start means unfiltered.
func dailyMerged(daily []*domain.HistoryPoint, start time.Time) []*domain.MergedPoint {
	var out []*domain.MergedPoint
	for _, p := range daily {
		if p == nil {
			continue
		}
		if !start.IsZero() && p.Date.Before(start.Truncate(24*time.Hour)) {
			continue
		}
		out = append(out, &domain.MergedPoint{
			TimestampMs: endOfDayMs(p.Date),
			Value:       p.TotalValue,
			Source:      domain.PointSourceDaily,
		})
	}
	return out
}

// endOfDayMs is the last millisecond of the point's calendar day.
func endOfDayMs(date time.Time) int64 {
	day := date.UTC().Truncate(24 * time.Hour)
	return day.AddDate(0, 0, 1).Add(-time.Millisecond).UnixMilli()
}

// finalize sorts strictly ascending by (timestamp, source) and drops
// duplicate timestamps within the same source, keeping the last occurrence.
func finalize(points []*domain.MergedPoint) []*domain.MergedPoint {
	if len(points) == 0 {
		return []*domain.MergedPoint{}
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].TimestampMs != points[j].TimestampMs {
			return points[i].TimestampMs < points[j].TimestampMs
		}
		return points[i].Source < points[j].Source
	})

	out := points[:0]
	for i, p := range points {
		if i+1 < len(points) &&
			points[i+1].TimestampMs == p.TimestampMs &&
			points[i+1].Source == p.Source {
			continue
		}
		out = append(out, p)
	}
	return out
}
