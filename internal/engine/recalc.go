package engine

import (
	"context"
	"errors"
	"time"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/fingerprint"
	"portfolio-engine/internal/holdings"
	"portfolio-engine/internal/schedule"
	"portfolio-engine/internal/storage"
	"portfolio-engine/internal/worker"
)

// snapshot is one consistent read of everything a recalculation needs.
type snapshot struct {
	transactions []*domain.Transaction
	definitions  []*domain.AssetDefinition
	categories   []*domain.Category
	assignments  []*domain.CategoryAssignment
	positions    []*domain.Position
	totals       domain.Totals
}

// assetHash fingerprints the inputs of the asset-level caches: the ledger
// plus the asset definitions. Categories are deliberately excluded.
func (s *snapshot) assetHash() string {
	return fingerprint.Combine(
		fingerprint.Transactions(s.transactions),
		fingerprint.AssetDefinitions(s.definitions),
	)
}

// positionsHash additionally covers categories; positions carry category
// assignments, so their cache must move when categories do.
func (s *snapshot) positionsHash() string {
	return fingerprint.Combine(
		fingerprint.Transactions(s.transactions),
		fingerprint.AssetDefinitions(s.definitions),
		fingerprint.Categories(s.categories, s.assignments),
	)
}

// loadSnapshot reads all stores and aggregates current positions.
func (e *Engine) loadSnapshot(ctx context.Context) (*snapshot, error) {
	txs, err := e.transactions.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	defs, err := e.definitions.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	cats, err := e.categories.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	asgs, err := e.categories.GetAssignments(ctx)
	if err != nil {
		return nil, err
	}

	s := &snapshot{
		transactions: txs,
		definitions:  defs,
		categories:   cats,
		assignments:  asgs,
	}
	s.positions = holdings.Aggregate(txs, defs, &holdings.CategoryContext{
		Categories:  cats,
		Assignments: asgs,
	})
	s.totals = holdings.AggregateTotals(s.positions)
	return s, nil
}

// recalculateAll runs the full history rebuild through the worker, with
// in-flight coalescing: while one rebuild runs, every other caller attaches
// to it instead of dispatching a second job.
func (e *Engine) recalculateAll(ctx context.Context) (worker.Response, string, error) {
	e.mu.Lock()
	if fl, ok := e.inflight[recalcAllKey]; ok {
		e.mu.Unlock()
		e.recordCoalesced()
		select {
		case <-fl.done:
			return fl.resp, "", fl.err
		case <-ctx.Done():
			return worker.Response{}, "", ctx.Err()
		}
	}
	fl := &flight{done: make(chan struct{})}
	e.inflight[recalcAllKey] = fl
	e.mu.Unlock()

	resp, hash, err := e.executeAll(ctx)
	fl.resp, fl.err = resp, err

	e.mu.Lock()
	delete(e.inflight, recalcAllKey)
	e.mu.Unlock()
	close(fl.done)

	return resp, hash, err
}

// executeAll dispatches one full rebuild, persists its result, and returns
// the asset fingerprint the result is still valid for. An empty hash means
// the inputs moved while the job ran and the result is already stale; it is
// persisted anyway but must not be cached.
func (e *Engine) executeAll(ctx context.Context) (worker.Response, string, error) {
	start := e.clock()
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return worker.Response{}, "", err
	}
	jobHash := snap.assetHash()

	h, err := e.worker.Dispatch(ctx, worker.Request{
		Kind:         worker.KindAll,
		Transactions: snap.transactions,
		Definitions:  snap.definitions,
		Positions:    snap.positions,
		Now:          e.clock(),
	})
	if err != nil {
		e.recordRecalcError(string(worker.KindAll))
		return worker.Response{}, "", err
	}
	resp, err := h.Await(ctx)
	if err != nil {
		e.recordRecalcError(string(worker.KindAll))
		return worker.Response{}, "", err
	}
	if resp.Err != nil {
		// Leave the cache invalid rather than poison it with a partial value.
		e.recordRecalcError(string(worker.KindAll))
		return resp, "", resp.Err
	}

	if err := e.persistResult(ctx, resp); err != nil {
		return resp, "", err
	}
	e.recordRecalc(string(worker.KindAll), e.clock().Sub(start))

	// Re-validate against the now-current fingerprint. A superseded job is
	// persisted but not cached; the next request recomputes.
	current, err := e.currentAssetHash(ctx)
	if err != nil {
		return resp, "", err
	}
	if current != jobHash {
		e.logf("rebuild %s superseded, result persisted but not cached", resp.ID)
		return resp, "", nil
	}
	return resp, jobHash, nil
}

// persistResult writes worker output to the durable stores.
func (e *Engine) persistResult(ctx context.Context, resp worker.Response) error {
	if len(resp.History) > 0 {
		if err := e.history.BulkUpsert(ctx, resp.History); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.HistoryPointsStored.Add(float64(len(resp.History)))
		}
	}
	if resp.Intraday != nil {
		if err := e.storeIntradaySample(ctx, resp.Intraday); err != nil {
			return err
		}
	}
	return nil
}

// storeIntradaySample appends one sample and prunes past retention.
// A duplicate timestamp means this minute is already sampled; not an error.
func (e *Engine) storeIntradaySample(ctx context.Context, p *domain.IntradayPoint) error {
	err := e.intraday.BulkAdd(ctx, []*domain.IntradayPoint{p})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return err
	}
	if e.metrics != nil {
		e.metrics.IntradayPointsStored.Inc()
	}

	cutoff := e.clock().Add(-domain.IntradayRetention).UnixMilli()
	pruned, err := e.intraday.PruneBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if pruned > 0 && e.metrics != nil {
		e.metrics.IntradayPointsPruned.Add(float64(pruned))
	}
	return nil
}

// sampleIntraday dispatches one current-value sample and persists it in the
// background. Concurrent calls coalesce onto the in-flight sample.
func (e *Engine) sampleIntraday(ctx context.Context, positions []*domain.Position) {
	e.mu.Lock()
	if _, ok := e.inflight[recalcSnapKey]; ok {
		e.mu.Unlock()
		e.recordCoalesced()
		return
	}
	fl := &flight{done: make(chan struct{})}
	e.inflight[recalcSnapKey] = fl
	e.mu.Unlock()

	h, err := e.worker.Dispatch(ctx, worker.Request{
		Kind:      worker.KindIntraday,
		Positions: positions,
		Now:       e.clock(),
	})
	if err != nil {
		e.clearFlight(recalcSnapKey, fl)
		if !errors.Is(err, worker.ErrClosed) {
			e.logf("intraday sample dispatch failed: %v", err)
		}
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.clearFlight(recalcSnapKey, fl)

		resp, err := h.Await(context.Background())
		if err != nil || resp.Err != nil {
			if err == nil {
				err = resp.Err
			}
			if !errors.Is(err, worker.ErrClosed) {
				e.logf("intraday sample failed: %v", err)
			}
			return
		}
		if resp.Intraday == nil {
			return
		}
		if err := e.storeIntradaySample(context.Background(), resp.Intraday); err != nil {
			e.logf("intraday sample persist failed: %v", err)
			return
		}
		e.recordRecalc(string(worker.KindIntraday), 0)
	}()
}

func (e *Engine) clearFlight(key string, fl *flight) {
	e.mu.Lock()
	delete(e.inflight, key)
	e.mu.Unlock()
	close(fl.done)
}

func (e *Engine) currentAssetHash(ctx context.Context) (string, error) {
	txs, err := e.transactions.GetAll(ctx)
	if err != nil {
		return "", err
	}
	defs, err := e.definitions.GetAll(ctx)
	if err != nil {
		return "", err
	}
	return fingerprint.Combine(
		fingerprint.Transactions(txs),
		fingerprint.AssetDefinitions(defs),
	), nil
}

// rewriteIncomeAnnex recomputes the per-transaction monthly income under the
// current schedules. Sell legs carry no income of their own.
func (e *Engine) rewriteIncomeAnnex(ctx context.Context, defs []*domain.AssetDefinition) error {
	txs, err := e.transactions.GetAll(ctx)
	if err != nil {
		return err
	}
	defByID := make(map[string]*domain.AssetDefinition, len(defs))
	for _, def := range defs {
		defByID[def.ID] = def
	}

	for _, tx := range txs {
		var annex *float64
		if tx.TransactionType == domain.TransactionBuy {
			if def, ok := defByID[tx.AssetDefinitionID]; ok {
				monthly, _ := schedule.IncomeForAsset(def, tx.Quantity, tx.Quantity*def.CurrentPrice)
				annex = &monthly
			}
		}
		if err := e.transactions.SetCachedIncome(ctx, tx.ID, annex); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) recordRecalc(kind string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.RecalculationsTotal.WithLabelValues(kind).Inc()
		if d > 0 {
			e.metrics.RecalculationLatency.WithLabelValues(kind).Observe(d.Seconds())
		}
	}
}

func (e *Engine) recordRecalcError(kind string) {
	if e.metrics != nil {
		e.metrics.RecalculationErrors.WithLabelValues(kind).Inc()
	}
}
