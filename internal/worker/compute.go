package worker

import (
	"time"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/holdings"
)

// BuildDailyHistory rebuilds the daily snapshot series from the full
// ledger: one point per calendar day from the earliest transaction through
// now, valuing the holdings-as-of-day at the definitions' current prices.
// An empty ledger yields an empty series.
func BuildDailyHistory(transactions []*domain.Transaction, definitions []*domain.AssetDefinition, now time.Time) []*domain.HistoryPoint {
	if len(transactions) == 0 {
		return []*domain.HistoryPoint{}
	}

	first := transactions[0].Date
	for _, tx := range transactions[1:] {
		if tx != nil && tx.Date.Before(first) {
			first = tx.Date
		}
	}

	startDay := first.UTC().Truncate(24 * time.Hour)
	endDay := now.UTC().Truncate(24 * time.Hour)

	var points []*domain.HistoryPoint
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		cutoff := day.AddDate(0, 0, 1)

		var asOf []*domain.Transaction
		for _, tx := range transactions {
			if tx != nil && tx.Date.Before(cutoff) {
				asOf = append(asOf, tx)
			}
		}
		if len(asOf) == 0 {
			continue
		}

		totals := holdings.AggregateTotals(holdings.Aggregate(asOf, definitions, nil))
		points = append(points, &domain.HistoryPoint{
			Date:           day,
			TotalValue:     totals.TotalValue,
			TotalInvested:  totals.TotalInvestment,
			TotalReturn:    totals.TotalReturn,
			TotalReturnPct: totals.TotalReturnPct,
		})
	}
	if points == nil {
		points = []*domain.HistoryPoint{}
	}
	return points
}

// CurrentSample computes one intraday sample from the current positions,
// truncated to minute granularity.
func CurrentSample(positions []*domain.Position, now time.Time) *domain.IntradayPoint {
	totals := holdings.AggregateTotals(positions)
	return &domain.IntradayPoint{
		TimestampMs: now.UTC().Truncate(time.Minute).UnixMilli(),
		Value:       totals.TotalValue,
	}
}
