// Package engine orchestrates portfolio recalculation: it owns the derived
// cache, coalesces concurrent refresh requests, debounces ledger-change
// bursts, and hands expensive rebuilds to the background worker.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"portfolio-engine/internal/cache"
	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/fingerprint"
	"portfolio-engine/internal/observability"
	"portfolio-engine/internal/storage"
	"portfolio-engine/internal/worker"
)

// Cache keys. History entries are keyed per time range under a shared
// prefix so they can be invalidated together.
const (
	keySummary      = "summary"
	keyPositions    = "positions"
	historyPrefix   = "history|"
	recalcAllKey    = "calculateAll"
	recalcSnapKey   = "calculateIntraday"
	defaultDebounce = time.Second
)

// Engine is the recalculation orchestrator. It is safe for concurrent use.
type Engine struct {
	transactions storage.TransactionStore
	definitions  storage.AssetDefinitionStore
	categories   storage.CategoryStore
	history      storage.HistoryPointStore
	intraday     storage.IntradayPointStore
	snapshots    storage.CacheSnapshotStore // optional

	cache   *cache.Store
	worker  *worker.Worker
	logger  *log.Logger
	metrics *observability.Metrics

	clock    func() time.Time
	debounce time.Duration

	mu            sync.Mutex
	inflight      map[string]*flight
	debounceTimer *time.Timer
	scheduleHash  string

	// Non-portfolio summary inputs, set via RefreshFinancialSummary.
	liabilities []*domain.Liability
	expenses    []*domain.Expense
	income      []*domain.IncomeSource

	wg sync.WaitGroup
}

// flight tracks one in-flight recalculation so concurrent requests for the
// same key attach to it instead of starting a second one.
type flight struct {
	done chan struct{}
	resp worker.Response
	err  error
}

// New creates an engine around the given stores and an injected worker.
// The engine owns the worker's lifecycle from this point on: Close stops it.
func New(
	transactions storage.TransactionStore,
	definitions storage.AssetDefinitionStore,
	categories storage.CategoryStore,
	history storage.HistoryPointStore,
	intraday storage.IntradayPointStore,
	w *worker.Worker,
) *Engine {
	return &Engine{
		transactions: transactions,
		definitions:  definitions,
		categories:   categories,
		history:      history,
		intraday:     intraday,
		cache:        cache.New(),
		worker:       w,
		clock:        time.Now,
		debounce:     defaultDebounce,
		inflight:     make(map[string]*flight),
	}
}

// WithLogger sets the engine logger. A nil logger disables logging.
func (e *Engine) WithLogger(logger *log.Logger) *Engine {
	e.logger = logger
	return e
}

// WithMetrics sets the Prometheus metrics sink.
func (e *Engine) WithMetrics(m *observability.Metrics) *Engine {
	e.metrics = m
	return e
}

// WithSnapshots enables cache persistence across restarts.
func (e *Engine) WithSnapshots(s storage.CacheSnapshotStore) *Engine {
	e.snapshots = s
	return e
}

// WithClock sets a custom clock function for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	e.cache.SetClock(clock)
	return e
}

// WithDebounce overrides the ledger-change debounce interval.
func (e *Engine) WithDebounce(d time.Duration) *Engine {
	e.debounce = d
	return e
}

// Close stops the debounce timer, waits for background persistence, and
// shuts down the worker.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.worker.Close()
}

// Transaction ledger mutations. Each one invalidates the asset-level caches
// and arms the debounced recalculation.

// AddTransaction inserts a ledger entry.
func (e *Engine) AddTransaction(ctx context.Context, tx *domain.Transaction) error {
	if err := e.transactions.Insert(ctx, tx); err != nil {
		return err
	}
	e.onLedgerChanged()
	return nil
}

// UpdateTransaction replaces a ledger entry.
func (e *Engine) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if err := e.transactions.Update(ctx, tx); err != nil {
		return err
	}
	e.onLedgerChanged()
	return nil
}

// DeleteTransaction removes a ledger entry.
func (e *Engine) DeleteTransaction(ctx context.Context, id string) error {
	if err := e.transactions.Delete(ctx, id); err != nil {
		return err
	}
	e.onLedgerChanged()
	return nil
}

// Asset definition mutations.

// AddAssetDefinition inserts an asset definition.
func (e *Engine) AddAssetDefinition(ctx context.Context, def *domain.AssetDefinition) error {
	if err := e.definitions.Insert(ctx, def); err != nil {
		return err
	}
	e.onDefinitionChanged(ctx)
	return nil
}

// UpdateAssetDefinition replaces an asset definition. If the income schedule
// changed, the per-transaction income annex is cleared so it cannot serve
// values computed under the old schedule.
func (e *Engine) UpdateAssetDefinition(ctx context.Context, def *domain.AssetDefinition) error {
	if err := e.definitions.Update(ctx, def); err != nil {
		return err
	}
	e.onDefinitionChanged(ctx)
	return nil
}

// UpdateAssetPrice sets the current price of one asset. Price edits never
// touch the income schedule, so the annex survives them.
func (e *Engine) UpdateAssetPrice(ctx context.Context, id string, price float64) error {
	if err := e.definitions.UpdatePrice(ctx, id, price, e.clock()); err != nil {
		return err
	}
	e.invalidateAssetCaches()
	e.armDebounce()
	return nil
}

// NotifyPriceUpdated invalidates asset-derived caches after a price was
// written to the store by an outside writer, such as the price feed client.
// The store write has already happened; only invalidation and the debounced
// recalculation remain.
func (e *Engine) NotifyPriceUpdated() {
	e.invalidateAssetCaches()
	e.armDebounce()
}

// Category mutations invalidate only the category-aware caches; prices and
// schedules are untouched, so no full recalculation is triggered.

// AddCategory inserts a category.
func (e *Engine) AddCategory(ctx context.Context, c *domain.Category) error {
	if err := e.categories.InsertCategory(ctx, c); err != nil {
		return err
	}
	e.cache.Invalidate(keyPositions)
	return nil
}

// DeleteCategory removes a category and its assignments.
func (e *Engine) DeleteCategory(ctx context.Context, id string) error {
	if err := e.categories.DeleteCategory(ctx, id); err != nil {
		return err
	}
	e.cache.Invalidate(keyPositions)
	return nil
}

// AssignCategory links an asset definition to a category.
func (e *Engine) AssignCategory(ctx context.Context, a *domain.CategoryAssignment) error {
	if err := e.categories.InsertAssignment(ctx, a); err != nil {
		return err
	}
	e.cache.Invalidate(keyPositions)
	return nil
}

// UnassignCategory removes a category assignment.
func (e *Engine) UnassignCategory(ctx context.Context, id string) error {
	if err := e.categories.DeleteAssignment(ctx, id); err != nil {
		return err
	}
	e.cache.Invalidate(keyPositions)
	return nil
}

func (e *Engine) onLedgerChanged() {
	e.invalidateAssetCaches()
	e.armDebounce()
}

func (e *Engine) onDefinitionChanged(ctx context.Context) {
	e.invalidateAssetCaches()
	if err := e.reconcileIncomeAnnex(ctx); err != nil {
		e.logf("income annex reconcile failed: %v", err)
	}
	e.armDebounce()
}

// invalidateAssetCaches clears every cache whose fingerprint covers
// transactions or asset definitions.
func (e *Engine) invalidateAssetCaches() {
	e.cache.Invalidate(keySummary)
	e.cache.Invalidate(keyPositions)
	e.cache.InvalidatePrefix(historyPrefix)
}

// armDebounce starts or extends the recalculation timer so a burst of edits
// triggers one rebuild, not one per edit.
func (e *Engine) armDebounce() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.debounceTimer != nil {
		if e.debounceTimer.Stop() {
			e.recordDebounceCollapsed()
		}
		e.debounceTimer.Reset(e.debounce)
		return
	}
	e.debounceTimer = time.AfterFunc(e.debounce, func() {
		e.mu.Lock()
		e.debounceTimer = nil
		e.mu.Unlock()

		if _, _, err := e.recalculateAll(context.Background()); err != nil && !errors.Is(err, worker.ErrClosed) {
			e.logf("debounced recalculation failed: %v", err)
		}
	})
}

// reconcileIncomeAnnex clears the per-transaction cached income when the
// schedule fingerprint moved, then rewrites it from the current schedules.
func (e *Engine) reconcileIncomeAnnex(ctx context.Context) error {
	defs, err := e.definitions.GetAll(ctx)
	if err != nil {
		return err
	}
	current := fingerprint.DividendSchedules(defs)

	e.mu.Lock()
	changed := current != e.scheduleHash
	e.scheduleHash = current
	e.mu.Unlock()

	if !changed {
		return nil
	}
	return e.rewriteIncomeAnnex(ctx, defs)
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf("[engine] "+format, args...)
	}
}

func (e *Engine) recordHit(kind string) {
	if e.metrics != nil {
		e.metrics.CacheHits.WithLabelValues(kind).Inc()
	}
}

func (e *Engine) recordMiss(kind string) {
	if e.metrics != nil {
		e.metrics.CacheMisses.WithLabelValues(kind).Inc()
	}
}

func (e *Engine) recordCoalesced() {
	if e.metrics != nil {
		e.metrics.CoalescedRequests.Inc()
	}
}

func (e *Engine) recordDebounceCollapsed() {
	if e.metrics != nil {
		e.metrics.DebounceCollapsed.Inc()
	}
}
