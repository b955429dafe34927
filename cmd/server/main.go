// Package main provides the portfolio engine service:
// - Storage: PostgreSQL (ledger, definitions, daily history) + ClickHouse (intraday)
// - Engine: cached valuation queries with debounced background recalculation
// - Price feed (optional): WebSocket quote stream driving cache invalidation
// - HTTP API: read endpoints, summary refresh, health, Prometheus metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/engine"
	"portfolio-engine/internal/observability"
	"portfolio-engine/internal/pricefeed"
	"portfolio-engine/internal/storage"
	chstore "portfolio-engine/internal/storage/clickhouse"
	"portfolio-engine/internal/storage/memory"
	"portfolio-engine/internal/storage/migrations"
	pgstore "portfolio-engine/internal/storage/postgres"
	"portfolio-engine/internal/worker"
)

// Server holds the running service and its request-time state.
type Server struct {
	engine *engine.Engine
	logger *log.Logger

	mu      sync.Mutex
	started time.Time
}

// allStores holds all storage implementations behind their interfaces.
type allStores struct {
	transactions storage.TransactionStore
	definitions  storage.AssetDefinitionStore
	categories   storage.CategoryStore
	history      storage.HistoryPointStore
	intraday     storage.IntradayPointStore
	snapshots    storage.CacheSnapshotStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	feedEndpoint := flag.String("pricefeed-endpoint", os.Getenv("PRICEFEED_ENDPOINT"), "Price feed WebSocket endpoint (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API and metrics address")
	debounce := flag.Duration("recalc-debounce", time.Second, "Quiet period before a background recalculation")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("", prometheus.DefaultRegisterer)

	eng := engine.New(
		stores.transactions,
		stores.definitions,
		stores.categories,
		stores.history,
		stores.intraday,
		worker.New(log.New(os.Stdout, "[worker] ", log.LstdFlags)),
	).
		WithLogger(log.New(os.Stdout, "[engine] ", log.LstdFlags)).
		WithMetrics(metrics).
		WithSnapshots(stores.snapshots).
		WithDebounce(*debounce)
	defer eng.Close()

	// Rehydrate caches persisted by the previous run. Losing them only costs
	// one recomputation, so failures are logged, not fatal.
	if err := eng.Restore(ctx); err != nil {
		logger.Printf("Cache restore failed: %v", err)
	}

	// Optional price feed: quotes land in the definition store, the engine
	// only needs to know its asset caches went stale.
	if *feedEndpoint != "" {
		feed, err := startPriceFeed(ctx, *feedEndpoint, stores.definitions, eng, metrics)
		if err != nil {
			logger.Fatalf("Failed to start price feed: %v", err)
		}
		defer feed.Close()
		logger.Printf("Price feed connected to %s", *feedEndpoint)
	}

	server := &Server{
		engine:  eng,
		logger:  logger,
		started: time.Now(),
	}

	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: server.routes(),
	}

	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	logger.Printf("Starting HTTP server on %s", *httpAddr)
	err = httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		done <- err
		logger.Fatalf("HTTP server error: %v", err)
	}
	done <- nil

	logger.Println("Shutdown complete")
}

// createStores creates all required stores and runs migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			transactions: memory.NewTransactionStore(),
			definitions:  memory.NewAssetDefinitionStore(),
			categories:   memory.NewCategoryStore(),
			history:      memory.NewHistoryPointStore(),
			intraday:     memory.NewIntradayPointStore(),
			snapshots:    memory.NewCacheSnapshotStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	stores := &allStores{
		transactions: pgstore.NewTransactionStore(pool),
		definitions:  pgstore.NewAssetDefinitionStore(pool),
		categories:   pgstore.NewCategoryStore(pool),
		history:      pgstore.NewHistoryPointStore(pool),
		intraday:     chstore.NewIntradayPointStore(chConn),
		snapshots:    pgstore.NewCacheSnapshotStore(pool),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// startPriceFeed connects the WebSocket quote client and subscribes to the
// tickers of every known asset definition.
func startPriceFeed(
	ctx context.Context,
	endpoint string,
	definitions storage.AssetDefinitionStore,
	eng *engine.Engine,
	metrics *observability.Metrics,
) (*pricefeed.Client, error) {
	client, err := pricefeed.New(ctx, endpoint, definitions, nil)
	if err != nil {
		return nil, err
	}
	client.
		WithLogger(log.New(os.Stdout, "[pricefeed] ", log.LstdFlags)).
		WithMetrics(metrics).
		WithOnUpdate(func(ticker string, price float64) {
			eng.NotifyPriceUpdated()
		})

	defs, err := definitions.GetAll(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	tickers := make([]string, 0, len(defs))
	for _, def := range defs {
		if def.Ticker != "" {
			tickers = append(tickers, def.Ticker)
		}
	}
	if len(tickers) > 0 {
		if err := client.Subscribe(tickers); err != nil {
			client.Close()
			return nil, err
		}
	}
	return client, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/summary/refresh", s.handleSummaryRefresh)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/refresh", s.handleHistoryRefresh)
	mux.HandleFunc("/api/intraday", s.handleIntraday)

	return mux
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status  string    `json:"status"`
	Uptime  string    `json:"uptime"`
	Started time.Time `json:"started"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:  "running",
		Uptime:  time.Since(s.started).String(),
		Started: s.started,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result, err := s.engine.GetPositions(r.Context())
	if err != nil {
		s.serverError(w, "positions", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	summary, err := s.engine.GetFinancialSummary(r.Context())
	if err != nil {
		s.serverError(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SummaryRefreshRequest carries the non-portfolio inputs of the summary.
type SummaryRefreshRequest struct {
	Liabilities []*domain.Liability
	Expenses    []*domain.Expense
	Income      []*domain.IncomeSource
}

func (s *Server) handleSummaryRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req SummaryRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	summary, err := s.engine.RefreshFinancialSummary(r.Context(), req.Liabilities, req.Expenses, req.Income)
	if err != nil {
		s.serverError(w, "summary refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rng, ok := parseRange(w, r)
	if !ok {
		return
	}
	points, err := s.engine.GetPortfolioHistory(r.Context(), rng)
	if err != nil {
		s.serverError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleHistoryRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rng, ok := parseRange(w, r)
	if !ok {
		return
	}
	points, err := s.engine.RefreshPortfolioHistory(r.Context(), rng)
	if err != nil {
		s.serverError(w, "history refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleIntraday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	points, err := s.engine.GetPortfolioIntraday(r.Context())
	if err != nil {
		s.serverError(w, "intraday", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// parseRange reads and validates the range query parameter, defaulting to 1M.
func parseRange(w http.ResponseWriter, r *http.Request) (domain.TimeRange, bool) {
	raw := r.URL.Query().Get("range")
	if raw == "" {
		raw = string(domain.Range1M)
	}
	rng := domain.TimeRange(strings.ToUpper(raw))
	if !rng.IsValid() {
		http.Error(w, "unknown range: "+raw, http.StatusBadRequest)
		return "", false
	}
	return rng, true
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("%s error: %v", op, err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
