package engine

import (
	"context"
	"fmt"

	"portfolio-engine/internal/cache"
	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/fingerprint"
	"portfolio-engine/internal/reconcile"
)

// PositionsResult pairs aggregated positions with their portfolio totals.
type PositionsResult struct {
	Positions []*domain.Position
	Totals    domain.Totals
}

// GetPositions returns current positions and totals, cached against the
// ledger, definitions and categories. Misses aggregate synchronously on the
// calling goroutine; aggregation is cheap relative to a history rebuild.
func (e *Engine) GetPositions(ctx context.Context) (*PositionsResult, error) {
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	hash := snap.positionsHash()

	if entry, ok := e.cache.Lookup(keyPositions, hash, cache.Options{}); ok {
		if res, ok := entry.Value.(*PositionsResult); ok {
			e.recordHit(keyPositions)
			return res, nil
		}
	}
	e.recordMiss(keyPositions)

	res := &PositionsResult{Positions: snap.positions, Totals: snap.totals}
	e.put(ctx, keyPositions, res, hash)
	return res, nil
}

// RefreshFinancialSummary replaces the non-portfolio inputs (liabilities,
// recurring expenses, outside income) and recomputes the summary.
func (e *Engine) RefreshFinancialSummary(
	ctx context.Context,
	liabilities []*domain.Liability,
	expenses []*domain.Expense,
	income []*domain.IncomeSource,
) (*domain.FinancialSummary, error) {
	e.mu.Lock()
	e.liabilities = liabilities
	e.expenses = expenses
	e.income = income
	e.mu.Unlock()

	e.cache.Invalidate(keySummary)
	return e.GetFinancialSummary(ctx)
}

// GetFinancialSummary returns the whole-picture summary. The cache is
// hash-gated: any change to the ledger, definitions or summary inputs is a
// miss. An all-zero summary computed from non-empty inputs is never served
// from cache.
func (e *Engine) GetFinancialSummary(ctx context.Context) (*domain.FinancialSummary, error) {
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	liabilities, expenses, income := e.liabilities, e.expenses, e.income
	e.mu.Unlock()

	hash := fingerprint.Combine(
		snap.assetHash(),
		fingerprint.Summary(liabilities, expenses, income),
	)

	hasInputs := len(snap.transactions) > 0 || len(liabilities) > 0 ||
		len(expenses) > 0 || len(income) > 0
	opts := cache.Options{}
	if hasInputs {
		opts.Degenerate = func(v any) bool {
			s, ok := v.(*domain.FinancialSummary)
			return ok && s.IsZero()
		}
	}

	if entry, ok := e.cache.Lookup(keySummary, hash, opts); ok {
		if s, ok := entry.Value.(*domain.FinancialSummary); ok {
			e.recordHit(keySummary)
			return s, nil
		}
	}
	e.recordMiss(keySummary)

	s := e.computeSummary(snap, liabilities, expenses, income)
	e.put(ctx, keySummary, s, hash)
	return s, nil
}

func (e *Engine) computeSummary(
	snap *snapshot,
	liabilities []*domain.Liability,
	expenses []*domain.Expense,
	income []*domain.IncomeSource,
) *domain.FinancialSummary {
	s := &domain.FinancialSummary{
		TotalAssetValue:    snap.totals.TotalValue,
		TotalInvestment:    snap.totals.TotalInvestment,
		TotalReturn:        snap.totals.TotalReturn,
		MonthlyAssetIncome: snap.totals.MonthlyIncome,
		AnnualAssetIncome:  snap.totals.AnnualIncome,
		ComputedAt:         e.clock(),
	}
	for _, l := range liabilities {
		s.TotalLiabilities += l.CurrentBalance
		s.MonthlyLiabilityPay += l.MonthlyPayment
	}
	for _, ex := range expenses {
		s.MonthlyExpenses += ex.Amount
	}
	for _, in := range income {
		s.MonthlyOtherIncome += in.MonthlyAmount
	}
	s.NetWorth = s.TotalAssetValue - s.TotalLiabilities
	s.MonthlyCashflow = s.MonthlyAssetIncome + s.MonthlyOtherIncome -
		s.MonthlyLiabilityPay - s.MonthlyExpenses
	return s
}

// GetPortfolioHistory returns the reconciled chart series for one time
// range. Valid cached entries (hash match, within TTL) are returned without
// recomputation; otherwise a full rebuild runs through the worker, with
// concurrent requests coalescing onto the in-flight one.
func (e *Engine) GetPortfolioHistory(ctx context.Context, r domain.TimeRange) ([]*domain.MergedPoint, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid time range %q", r)
	}
	key := historyKey(r)

	currentHash, err := e.currentAssetHash(ctx)
	if err != nil {
		return nil, err
	}
	opts := cache.Options{MaxAge: cache.DefaultHistoryTTL}
	if entry, ok := e.cache.Lookup(key, currentHash, opts); ok {
		if points, ok := entry.Value.([]*domain.MergedPoint); ok {
			e.recordHit("history")
			return points, nil
		}
	}
	e.recordMiss("history")

	_, jobHash, err := e.recalculateAll(ctx)
	if err != nil {
		return e.historyFallback(ctx, r, err)
	}

	merged, err := e.reconcileRange(ctx, r)
	if err != nil {
		return nil, err
	}
	// A superseded rebuild returns an empty hash; serve the result but let
	// the next request recompute.
	if jobHash != "" {
		e.put(ctx, key, merged, jobHash)
	}
	return merged, nil
}

// RefreshPortfolioHistory forces a rebuild for one time range regardless of
// cache state.
func (e *Engine) RefreshPortfolioHistory(ctx context.Context, r domain.TimeRange) ([]*domain.MergedPoint, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid time range %q", r)
	}
	e.cache.Invalidate(historyKey(r))
	return e.GetPortfolioHistory(ctx, r)
}

// historyFallback serves the last cached series, stale or not, when a
// rebuild fails. A failed recomputation must not take down the read path.
func (e *Engine) historyFallback(ctx context.Context, r domain.TimeRange, cause error) ([]*domain.MergedPoint, error) {
	if entry, ok := e.cache.Get(historyKey(r)); ok {
		if points, ok := entry.Value.([]*domain.MergedPoint); ok {
			e.logf("serving stale history for %s after rebuild failure: %v", r, cause)
			return points, nil
		}
	}
	return nil, cause
}

// reconcileRange merges persisted daily and intraday series for the range.
func (e *Engine) reconcileRange(ctx context.Context, r domain.TimeRange) ([]*domain.MergedPoint, error) {
	now := e.clock()

	daily, err := e.history.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	intraday, err := e.intraday.GetByTimeRange(ctx,
		now.Add(-domain.IntradayRetention).UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, err
	}
	return reconcile.Reconcile(r, daily, intraday, now), nil
}

// GetPortfolioIntraday returns the stored intraday samples within the
// retention window and triggers a fresh background sample so the series
// keeps populating while charts poll it.
func (e *Engine) GetPortfolioIntraday(ctx context.Context) ([]*domain.IntradayPoint, error) {
	now := e.clock()
	points, err := e.intraday.GetByTimeRange(ctx,
		now.Add(-domain.IntradayRetention).UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, err
	}

	if snap, err := e.loadSnapshot(ctx); err == nil {
		e.sampleIntraday(ctx, snap.positions)
	} else {
		e.logf("intraday sample skipped: %v", err)
	}
	return points, nil
}

func historyKey(r domain.TimeRange) string {
	return historyPrefix + string(r)
}
