// Package main provides an end-to-end engine run on in-memory stores with
// fixture data. Executes: aggregation → summary → history rebuild → intraday
// and prints the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/engine"
	"portfolio-engine/internal/storage/memory"
	"portfolio-engine/internal/worker"
)

func main() {
	rangeFlag := flag.String("range", "1M", "History range (1D, 5D, 1M, 3M, 6M, 1Y, ALL)")
	flag.Parse()

	rng := domain.TimeRange(strings.ToUpper(*rangeFlag))
	if !rng.IsValid() {
		fmt.Fprintf(os.Stderr, "Unknown range: %s\n", *rangeFlag)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling...\n", sig)
		cancel()
	}()

	txs := memory.NewTransactionStore()
	defs := memory.NewAssetDefinitionStore()
	cats := memory.NewCategoryStore()
	history := memory.NewHistoryPointStore()
	intraday := memory.NewIntradayPointStore()

	// Fixed clock for deterministic output
	fixedTime := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	eng := engine.New(txs, defs, cats, history, intraday, worker.New(nil)).
		WithClock(func() time.Time { return fixedTime })
	defer eng.Close()

	if err := loadFixtureData(ctx, eng); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Positions ===")
	result, err := eng.GetPositions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Positions error: %v\n", err)
		os.Exit(1)
	}
	for _, p := range result.Positions {
		fmt.Printf("  %-20s %-12s qty=%8.2f value=%12.2f return=%10.2f (%6.2f%%) income/mo=%8.2f\n",
			p.Name, p.Type, p.NetQuantity, p.CurrentValue, p.TotalReturn, p.TotalReturnPct, p.MonthlyIncome)
	}
	fmt.Printf("  Total: value=%.2f invested=%.2f return=%.2f (%.2f%%)\n",
		result.Totals.TotalValue, result.Totals.TotalInvestment,
		result.Totals.TotalReturn, result.Totals.TotalReturnPct)

	fmt.Println("\n=== Financial Summary ===")
	summary, err := eng.RefreshFinancialSummary(ctx, fixtureLiabilities(), fixtureExpenses(), fixtureIncome())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Summary error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Net worth:        %12.2f\n", summary.NetWorth)
	fmt.Printf("  Asset value:      %12.2f\n", summary.TotalAssetValue)
	fmt.Printf("  Liabilities:      %12.2f\n", summary.TotalLiabilities)
	fmt.Printf("  Monthly cashflow: %12.2f\n", summary.MonthlyCashflow)
	fmt.Printf("  Asset income/mo:  %12.2f\n", summary.MonthlyAssetIncome)

	fmt.Printf("\n=== History (%s) ===\n", rng)
	points, err := eng.GetPortfolioHistory(ctx, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "History error: %v\n", err)
		os.Exit(1)
	}
	for _, p := range points {
		ts := time.UnixMilli(p.TimestampMs).UTC()
		fmt.Printf("  %s  %12.2f  (%s)\n", ts.Format("2006-01-02 15:04"), p.Value, p.Source)
	}

	fmt.Println("\n=== Intraday ===")
	samples, err := eng.GetPortfolioIntraday(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Intraday error: %v\n", err)
		os.Exit(1)
	}
	for _, p := range samples {
		ts := time.UnixMilli(p.TimestampMs).UTC()
		fmt.Printf("  %s  %12.2f\n", ts.Format("2006-01-02 15:04"), p.Value)
	}

	fmt.Println("\nEngine run completed successfully")
}

// loadFixtureData seeds a small mixed portfolio through the engine so the
// income annex and cache invalidation paths run the same way they do live.
func loadFixtureData(ctx context.Context, eng *engine.Engine) error {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	definitions := []*domain.AssetDefinition{
		{
			ID: "def-acme", Name: "Acme Corp", Ticker: "ACME",
			Type: domain.AssetTypeStock, CurrentPrice: 152.40,
			DividendInfo: &domain.DividendInfo{
				Frequency:     domain.FrequencyQuarterly,
				Amount:        1.10,
				PaymentMonths: []int{3, 6, 9, 12},
			},
			UpdatedAt: day(2024, 12, 30),
		},
		{
			ID: "def-govbond", Name: "Gov Bond 2031", Ticker: "GB31",
			Type: domain.AssetTypeBond, CurrentPrice: 98.70,
			BondInfo:  &domain.BondInfo{InterestRate: 3.25},
			UpdatedAt: day(2024, 12, 30),
		},
		{
			ID: "def-flat", Name: "Rental Flat", Type: domain.AssetTypeRealEstate,
			CurrentPrice: 240000,
			RentalInfo:   &domain.RentalInfo{BaseRent: 950},
			UpdatedAt:    day(2024, 12, 30),
		},
	}
	for _, def := range definitions {
		if err := eng.AddAssetDefinition(ctx, def); err != nil {
			return fmt.Errorf("add definition %s: %w", def.ID, err)
		}
	}

	transactions := []*domain.Transaction{
		{
			ID: "tx-1", AssetDefinitionID: "def-acme", Name: "Acme Corp",
			Type: domain.AssetTypeStock, TransactionType: domain.TransactionBuy,
			Quantity: 40, UnitPrice: 120.00, Costs: 9.90,
			Date: day(2024, 9, 2), UpdatedAt: day(2024, 9, 2),
		},
		{
			ID: "tx-2", AssetDefinitionID: "def-acme", Name: "Acme Corp",
			Type: domain.AssetTypeStock, TransactionType: domain.TransactionSell,
			Quantity: 10, UnitPrice: 145.00, Costs: 9.90,
			Date: day(2024, 11, 18), UpdatedAt: day(2024, 11, 18),
		},
		{
			ID: "tx-3", AssetDefinitionID: "def-govbond", Name: "Gov Bond 2031",
			Type: domain.AssetTypeBond, TransactionType: domain.TransactionBuy,
			Quantity: 100, UnitPrice: 99.50,
			Date: day(2024, 10, 1), UpdatedAt: day(2024, 10, 1),
		},
		{
			ID: "tx-4", AssetDefinitionID: "def-flat", Name: "Rental Flat",
			Type: domain.AssetTypeRealEstate, TransactionType: domain.TransactionBuy,
			Quantity: 1, UnitPrice: 215000, Costs: 12000,
			Date: day(2024, 7, 15), UpdatedAt: day(2024, 7, 15),
		},
	}
	for _, tx := range transactions {
		if err := eng.AddTransaction(ctx, tx); err != nil {
			return fmt.Errorf("add transaction %s: %w", tx.ID, err)
		}
	}

	if err := eng.AddCategory(ctx, &domain.Category{
		ID: "cat-income", Name: "Income Generating", UpdatedAt: day(2024, 12, 30),
	}); err != nil {
		return fmt.Errorf("add category: %w", err)
	}
	assignments := []*domain.CategoryAssignment{
		{ID: "as-1", CategoryID: "cat-income", AssetDefinitionID: "def-acme", UpdatedAt: day(2024, 12, 30)},
		{ID: "as-2", CategoryID: "cat-income", AssetDefinitionID: "def-flat", UpdatedAt: day(2024, 12, 30)},
	}
	for _, a := range assignments {
		if err := eng.AssignCategory(ctx, a); err != nil {
			return fmt.Errorf("assign category %s: %w", a.ID, err)
		}
	}

	return nil
}

func fixtureLiabilities() []*domain.Liability {
	return []*domain.Liability{
		{ID: "li-1", Name: "Mortgage", CurrentBalance: 180000, MonthlyPayment: 1150},
	}
}

func fixtureExpenses() []*domain.Expense {
	return []*domain.Expense{
		{ID: "ex-1", Name: "Insurance", Amount: 210},
	}
}

func fixtureIncome() []*domain.IncomeSource {
	return []*domain.IncomeSource{
		{ID: "in-1", Name: "Salary", MonthlyAmount: 4800},
	}
}
