package fingerprint

import (
	"testing"
	"time"

	"portfolio-engine/internal/domain"
)

func tx(id string, updated time.Time) *domain.Transaction {
	return &domain.Transaction{ID: id, UpdatedAt: updated}
}

func TestTransactions_OrderIndependent(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	a := tx("a", now)
	b := tx("b", now.Add(time.Hour))
	c := tx("c", now.Add(2*time.Hour))

	first := Transactions([]*domain.Transaction{a, b, c})
	second := Transactions([]*domain.Transaction{c, a, b})
	if first != second {
		t.Errorf("expected order-independent hash, got %q vs %q", first, second)
	}
}

func TestTransactions_ChangesOnUpdate(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	before := Transactions([]*domain.Transaction{tx("a", now)})
	after := Transactions([]*domain.Transaction{tx("a", now.Add(time.Second))})
	if before == after {
		t.Error("expected hash to change when UpdatedAt changes")
	}
}

func TestTransactions_IgnoresIrrelevantFields(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	a := tx("a", now)
	a.Quantity = 10

	b := tx("a", now)
	b.Quantity = 99 // differs, but UpdatedAt is what the tuple tracks

	if Transactions([]*domain.Transaction{a}) != Transactions([]*domain.Transaction{b}) {
		t.Error("expected hash over minimal tuple only (id + UpdatedAt)")
	}
}

func TestTransactions_Empty(t *testing.T) {
	if Transactions(nil) != Transactions([]*domain.Transaction{}) {
		t.Error("expected stable hash for empty collections")
	}
}

func TestCombine_OrderIndependent(t *testing.T) {
	if Combine("x", "y", "z") != Combine("z", "y", "x") {
		t.Error("expected combined hash to be order-independent")
	}
	if Combine("x", "y") == Combine("x", "z") {
		t.Error("expected different inputs to produce different combinations")
	}
}

func TestDividendSchedules_ValueSensitive(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	def := &domain.AssetDefinition{
		ID:        "d1",
		Type:      domain.AssetTypeStock,
		UpdatedAt: now,
		DividendInfo: &domain.DividendInfo{
			Frequency: domain.FrequencyQuarterly,
			Amount:    2,
		},
	}
	before := DividendSchedules([]*domain.AssetDefinition{def})

	changed := *def
	changedInfo := *def.DividendInfo
	changedInfo.Amount = 3
	changed.DividendInfo = &changedInfo

	after := DividendSchedules([]*domain.AssetDefinition{&changed})
	if before == after {
		t.Error("expected schedule hash to change when the amount changes")
	}
}

func TestDividendSchedules_IgnoresPrice(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	def := &domain.AssetDefinition{
		ID:           "d1",
		Type:         domain.AssetTypeStock,
		CurrentPrice: 100,
		UpdatedAt:    now,
		DividendInfo: &domain.DividendInfo{Frequency: domain.FrequencyMonthly, Amount: 1},
	}
	before := DividendSchedules([]*domain.AssetDefinition{def})

	repriced := *def
	repriced.CurrentPrice = 200
	repriced.UpdatedAt = now.Add(time.Hour)

	after := DividendSchedules([]*domain.AssetDefinition{&repriced})
	if before != after {
		t.Error("expected schedule hash to ignore price refreshes")
	}
}

func TestDividendSchedules_CustomAmountsDeterministic(t *testing.T) {
	now := time.Now()
	def := func() *domain.AssetDefinition {
		return &domain.AssetDefinition{
			ID:        "d1",
			UpdatedAt: now,
			DividendInfo: &domain.DividendInfo{
				Frequency:     domain.FrequencyCustom,
				PaymentMonths: []int{1, 4, 7},
				CustomAmounts: map[int]float64{1: 2, 4: 3, 7: 4},
			},
		}
	}

	// Map iteration order must not leak into the hash.
	for i := 0; i < 10; i++ {
		if DividendSchedules([]*domain.AssetDefinition{def()}) != DividendSchedules([]*domain.AssetDefinition{def()}) {
			t.Fatal("expected deterministic hash across identical schedules")
		}
	}
}

func TestCategories_AssignmentChangeInvalidates(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	cats := []*domain.Category{{ID: "c1", UpdatedAt: now}}
	asgs := []*domain.CategoryAssignment{{ID: "a1", UpdatedAt: now}}

	before := Categories(cats, asgs)
	after := Categories(cats, []*domain.CategoryAssignment{{ID: "a1", UpdatedAt: now.Add(time.Minute)}})
	if before == after {
		t.Error("expected assignment edit to change the category hash")
	}
}

func TestSummary_InputKindsDoNotCollide(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	withLiability := Summary([]*domain.Liability{{ID: "x", UpdatedAt: now}}, nil, nil)
	withExpense := Summary(nil, []*domain.Expense{{ID: "x", UpdatedAt: now}}, nil)
	if withLiability == withExpense {
		t.Error("expected same id under different input kinds to hash differently")
	}
}
