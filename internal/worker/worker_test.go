package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio-engine/internal/domain"
)

var testNow = time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

func buyTx(id string, day int, qty, price float64) *domain.Transaction {
	return &domain.Transaction{
		ID:                id,
		AssetDefinitionID: "d1",
		TransactionType:   domain.TransactionBuy,
		Quantity:          qty,
		UnitPrice:         price,
		Date:              time.Date(2024, 6, day, 10, 0, 0, 0, time.UTC),
	}
}

func testDefs() []*domain.AssetDefinition {
	return []*domain.AssetDefinition{
		{ID: "d1", Name: "Stock", Type: domain.AssetTypeStock, CurrentPrice: 150},
	}
}

func TestBuildDailyHistory_OnePointPerDay(t *testing.T) {
	txs := []*domain.Transaction{
		buyTx("t1", 8, 10, 100),
		buyTx("t2", 9, 5, 110),
	}

	points := BuildDailyHistory(txs, testDefs(), testNow)
	if len(points) != 3 {
		t.Fatalf("expected 3 points (June 8-10), got %d", len(points))
	}

	// Day one: only the first buy is visible.
	if points[0].TotalValue != 1500 {
		t.Errorf("day 1: expected value 1500, got %v", points[0].TotalValue)
	}
	// Day two onward: both buys.
	if points[1].TotalValue != 2250 {
		t.Errorf("day 2: expected value 2250, got %v", points[1].TotalValue)
	}
	if points[2].TotalValue != points[1].TotalValue {
		t.Errorf("expected value carried forward, got %v vs %v", points[2].TotalValue, points[1].TotalValue)
	}

	for i := 1; i < len(points); i++ {
		if !points[i-1].Date.Before(points[i].Date) {
			t.Fatal("expected strictly ascending dates")
		}
	}
}

func TestBuildDailyHistory_EmptyLedger(t *testing.T) {
	points := BuildDailyHistory(nil, testDefs(), testNow)
	if len(points) != 0 {
		t.Errorf("expected empty series, got %d points", len(points))
	}
}

func TestCurrentSample(t *testing.T) {
	positions := []*domain.Position{
		{CurrentValue: 900},
		{CurrentValue: 100},
	}

	sample := CurrentSample(positions, testNow)
	if sample.Value != 1000 {
		t.Errorf("expected value 1000, got %v", sample.Value)
	}
	if sample.TimestampMs%60000 != 0 {
		t.Errorf("expected minute-truncated timestamp, got %d", sample.TimestampMs)
	}
}

func TestWorker_DispatchAll(t *testing.T) {
	w := New(nil)
	defer w.Close()

	ctx := context.Background()
	h, err := w.Dispatch(ctx, Request{
		Kind:         KindAll,
		Transactions: []*domain.Transaction{buyTx("t1", 9, 10, 100)},
		Definitions:  testDefs(),
		Positions:    []*domain.Position{{CurrentValue: 1500}},
		Now:          testNow,
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if h.ID() == "" {
		t.Error("expected an assigned request id")
	}

	resp, err := h.Await(ctx)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if resp.Err != nil {
		t.Fatalf("job failed: %v", resp.Err)
	}
	if resp.ID != h.ID() {
		t.Errorf("expected response id %s, got %s", h.ID(), resp.ID)
	}
	if len(resp.History) != 2 {
		t.Errorf("expected 2 history points, got %d", len(resp.History))
	}
	if resp.Intraday == nil || resp.Intraday.Value != 1500 {
		t.Errorf("expected intraday sample 1500, got %v", resp.Intraday)
	}
}

func TestWorker_DispatchIntraday(t *testing.T) {
	w := New(nil)
	defer w.Close()

	ctx := context.Background()
	h, err := w.Dispatch(ctx, Request{
		Kind:      KindIntraday,
		Positions: []*domain.Position{{CurrentValue: 250}},
		Now:       testNow,
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	resp, err := h.Await(ctx)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if resp.History != nil {
		t.Error("expected no history for intraday job")
	}
	if resp.Intraday == nil || resp.Intraday.Value != 250 {
		t.Errorf("expected sample 250, got %v", resp.Intraday)
	}
}

func TestWorker_UnknownKind(t *testing.T) {
	w := New(nil)
	defer w.Close()

	ctx := context.Background()
	h, err := w.Dispatch(ctx, Request{Kind: Kind("bogus")})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	resp, err := h.Await(ctx)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if !errors.Is(resp.Err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", resp.Err)
	}
}

func TestWorker_DispatchAfterClose(t *testing.T) {
	w := New(nil)
	w.Close()

	_, err := w.Dispatch(context.Background(), Request{Kind: KindIntraday})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestWorker_InOrderDelivery(t *testing.T) {
	w := New(nil)
	defer w.Close()

	ctx := context.Background()
	var handles []*Handle
	for i := 0; i < 5; i++ {
		h, err := w.Dispatch(ctx, Request{
			Kind:      KindIntraday,
			Positions: []*domain.Position{{CurrentValue: float64(i)}},
			Now:       testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Dispatch %d failed: %v", i, err)
		}
		handles = append(handles, h)
	}

	for i, h := range handles {
		resp, err := h.Await(ctx)
		if err != nil {
			t.Fatalf("Await %d failed: %v", i, err)
		}
		if resp.Intraday.Value != float64(i) {
			t.Errorf("request %d: expected value %d, got %v", i, i, resp.Intraday.Value)
		}
	}
}

func TestHandle_SingleResolution(t *testing.T) {
	h := NewHandle("r1")
	h.Resolve(Response{ID: "r1"})
	h.Resolve(Response{ID: "r2"}) // dropped

	resp, err := h.Await(context.Background())
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if resp.ID != "r1" {
		t.Errorf("expected first resolution to win, got %s", resp.ID)
	}
}

func TestHandle_AwaitContextCancel(t *testing.T) {
	h := NewHandle("r1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Await(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
