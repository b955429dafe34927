package schedule

import (
	"errors"
	"math"
	"testing"

	"portfolio-engine/internal/domain"
)

func TestMonthlyAndAnnual_Monthly(t *testing.T) {
	info := &domain.DividendInfo{Frequency: domain.FrequencyMonthly, Amount: 0.5}

	amounts, err := MonthlyAndAnnual(info, 10)
	if err != nil {
		t.Fatalf("MonthlyAndAnnual failed: %v", err)
	}
	if amounts.Monthly != 5 {
		t.Errorf("expected monthly 5, got %v", amounts.Monthly)
	}
	if amounts.Annual != 60 {
		t.Errorf("expected annual 60, got %v", amounts.Annual)
	}
}

func TestMonthlyAndAnnual_Quarterly(t *testing.T) {
	info := &domain.DividendInfo{Frequency: domain.FrequencyQuarterly, Amount: 2}

	amounts, err := MonthlyAndAnnual(info, 10)
	if err != nil {
		t.Fatalf("MonthlyAndAnnual failed: %v", err)
	}
	if amounts.Annual != 60 {
		t.Errorf("expected annual 60, got %v", amounts.Annual)
	}
	if amounts.Monthly != 5 {
		t.Errorf("expected monthly 5, got %v", amounts.Monthly)
	}
}

func TestForMonth_QuarterlyPaysInThreeMonths(t *testing.T) {
	info := &domain.DividendInfo{Frequency: domain.FrequencyQuarterly, Amount: 2}

	paid := 0
	var total float64
	for month := 1; month <= 12; month++ {
		amount, err := ForMonth(info, 10, month)
		if err != nil {
			t.Fatalf("ForMonth(%d) failed: %v", month, err)
		}
		if amount != 0 {
			if amount != 20 {
				t.Errorf("month %d: expected 20, got %v", month, amount)
			}
			paid++
		}
		total += amount
	}

	if paid != 3 {
		t.Errorf("expected payments in exactly 3 months, got %d", paid)
	}
	if total != 60 {
		t.Errorf("expected 12-month total 60, got %v", total)
	}
}

func TestForMonth_QuarterlyAnchor(t *testing.T) {
	info := &domain.DividendInfo{
		Frequency:     domain.FrequencyQuarterly,
		Amount:        1,
		PaymentMonths: []int{3},
	}

	// Anchored at March: pays March, July, November.
	expectPaid := map[int]bool{3: true, 7: true, 11: true}
	for month := 1; month <= 12; month++ {
		amount, err := ForMonth(info, 1, month)
		if err != nil {
			t.Fatalf("ForMonth(%d) failed: %v", month, err)
		}
		if expectPaid[month] && amount != 1 {
			t.Errorf("month %d: expected payment, got %v", month, amount)
		}
		if !expectPaid[month] && amount != 0 {
			t.Errorf("month %d: expected 0, got %v", month, amount)
		}
	}
}

func TestForMonth_AnnuallyPaysOnce(t *testing.T) {
	info := &domain.DividendInfo{
		Frequency:     domain.FrequencyAnnually,
		Amount:        3,
		PaymentMonths: []int{6},
	}

	var total float64
	for month := 1; month <= 12; month++ {
		amount, err := ForMonth(info, 2, month)
		if err != nil {
			t.Fatalf("ForMonth(%d) failed: %v", month, err)
		}
		if month == 6 && amount != 6 {
			t.Errorf("month 6: expected 6, got %v", amount)
		}
		if month != 6 && amount != 0 {
			t.Errorf("month %d: expected 0, got %v", month, amount)
		}
		total += amount
	}

	amounts, err := MonthlyAndAnnual(info, 2)
	if err != nil {
		t.Fatalf("MonthlyAndAnnual failed: %v", err)
	}
	if total != amounts.Annual {
		t.Errorf("12-month total %v != annual %v", total, amounts.Annual)
	}
}

func TestForMonth_SumMatchesAnnual(t *testing.T) {
	schedules := []*domain.DividendInfo{
		{Frequency: domain.FrequencyMonthly, Amount: 1.25},
		{Frequency: domain.FrequencyQuarterly, Amount: 2},
		{Frequency: domain.FrequencyAnnually, Amount: 7},
	}

	for _, info := range schedules {
		var total float64
		for month := 1; month <= 12; month++ {
			amount, err := ForMonth(info, 4, month)
			if err != nil {
				t.Fatalf("%s: ForMonth(%d) failed: %v", info.Frequency, month, err)
			}
			total += amount
		}

		amounts, err := MonthlyAndAnnual(info, 4)
		if err != nil {
			t.Fatalf("%s: MonthlyAndAnnual failed: %v", info.Frequency, err)
		}
		if math.Abs(total-amounts.Annual) > 1e-9 {
			t.Errorf("%s: 12-month total %v != annual %v", info.Frequency, total, amounts.Annual)
		}
	}
}

func TestCustom_ExplicitMonths(t *testing.T) {
	info := &domain.DividendInfo{
		Frequency:     domain.FrequencyCustom,
		Amount:        2,
		PaymentMonths: []int{1, 4, 10},
	}

	amount, err := ForMonth(info, 5, 4)
	if err != nil {
		t.Fatalf("ForMonth failed: %v", err)
	}
	if amount != 10 {
		t.Errorf("expected 10, got %v", amount)
	}

	amount, err = ForMonth(info, 5, 5)
	if err != nil {
		t.Fatalf("ForMonth failed: %v", err)
	}
	if amount != 0 {
		t.Errorf("expected 0 outside payment months, got %v", amount)
	}

	amounts, err := MonthlyAndAnnual(info, 5)
	if err != nil {
		t.Fatalf("MonthlyAndAnnual failed: %v", err)
	}
	if amounts.Annual != 30 {
		t.Errorf("expected annual 30, got %v", amounts.Annual)
	}
}

func TestCustom_OverrideTakesPrecedence(t *testing.T) {
	info := &domain.DividendInfo{
		Frequency:     domain.FrequencyCustom,
		Amount:        2,
		PaymentMonths: []int{1, 7},
		CustomAmounts: map[int]float64{7: 5},
	}

	jan, err := ForMonth(info, 1, 1)
	if err != nil {
		t.Fatalf("ForMonth failed: %v", err)
	}
	if jan != 2 {
		t.Errorf("expected flat amount 2 in January, got %v", jan)
	}

	jul, err := ForMonth(info, 1, 7)
	if err != nil {
		t.Fatalf("ForMonth failed: %v", err)
	}
	if jul != 5 {
		t.Errorf("expected override 5 in July, got %v", jul)
	}
}

func TestCustom_MonthsFromOverrideMap(t *testing.T) {
	info := &domain.DividendInfo{
		Frequency:     domain.FrequencyCustom,
		CustomAmounts: map[int]float64{2: 3, 8: 4},
	}

	amounts, err := MonthlyAndAnnual(info, 1)
	if err != nil {
		t.Fatalf("MonthlyAndAnnual failed: %v", err)
	}
	if amounts.Annual != 7 {
		t.Errorf("expected annual 7, got %v", amounts.Annual)
	}
}

func TestQuantityZeroOrNegative(t *testing.T) {
	info := &domain.DividendInfo{Frequency: domain.FrequencyMonthly, Amount: 10}

	for _, qty := range []float64{0, -3} {
		amounts, err := MonthlyAndAnnual(info, qty)
		if err != nil {
			t.Fatalf("MonthlyAndAnnual(%v) failed: %v", qty, err)
		}
		if amounts.Monthly != 0 || amounts.Annual != 0 {
			t.Errorf("quantity %v: expected zero income, got %+v", qty, amounts)
		}

		amount, err := ForMonth(info, qty, 3)
		if err != nil {
			t.Fatalf("ForMonth(%v) failed: %v", qty, err)
		}
		if amount != 0 {
			t.Errorf("quantity %v: expected 0, got %v", qty, amount)
		}
	}
}

func TestForMonth_MonthOutOfRange(t *testing.T) {
	info := &domain.DividendInfo{Frequency: domain.FrequencyMonthly, Amount: 1}

	for _, month := range []int{0, 13, -1} {
		_, err := ForMonth(info, 1, month)
		var calcErr *CalcError
		if !errors.As(err, &calcErr) {
			t.Errorf("month %d: expected CalcError, got %v", month, err)
		}
	}
}

func TestNonFiniteFoldsToError(t *testing.T) {
	info := &domain.DividendInfo{Frequency: domain.FrequencyMonthly, Amount: math.Inf(1)}

	_, err := MonthlyAndAnnual(info, 1)
	var calcErr *CalcError
	if !errors.As(err, &calcErr) {
		t.Fatalf("expected CalcError for non-finite amount, got %v", err)
	}
}

func TestIncomeForAsset_Stock(t *testing.T) {
	def := &domain.AssetDefinition{
		Type:         domain.AssetTypeStock,
		DividendInfo: &domain.DividendInfo{Frequency: domain.FrequencyQuarterly, Amount: 2},
	}

	monthly, annual := IncomeForAsset(def, 10, 1500)
	if annual != 60 {
		t.Errorf("expected annual 60, got %v", annual)
	}
	if monthly != 5 {
		t.Errorf("expected monthly 5, got %v", monthly)
	}
}

func TestIncomeForAsset_Bond(t *testing.T) {
	def := &domain.AssetDefinition{
		Type:     domain.AssetTypeBond,
		BondInfo: &domain.BondInfo{InterestRate: 5},
	}

	monthly, annual := IncomeForAsset(def, 1, 1200)
	if monthly != 5 {
		t.Errorf("expected monthly 5, got %v", monthly)
	}
	if annual != 60 {
		t.Errorf("expected annual 60, got %v", annual)
	}
}

func TestIncomeForAsset_Cash(t *testing.T) {
	def := &domain.AssetDefinition{
		Type:     domain.AssetTypeCash,
		BondInfo: &domain.BondInfo{InterestRate: 2.4},
	}

	monthly, _ := IncomeForAsset(def, 1, 1000)
	if monthly != 2 {
		t.Errorf("expected monthly 2, got %v", monthly)
	}
}

func TestIncomeForAsset_RealEstateNotQuantityScaled(t *testing.T) {
	def := &domain.AssetDefinition{
		Type:       domain.AssetTypeRealEstate,
		RentalInfo: &domain.RentalInfo{BaseRent: 900},
	}

	monthly, annual := IncomeForAsset(def, 3, 500000)
	if monthly != 900 {
		t.Errorf("expected flat rent 900, got %v", monthly)
	}
	if annual != 10800 {
		t.Errorf("expected annual 10800, got %v", annual)
	}
}

func TestIncomeForAsset_UnsupportedTypes(t *testing.T) {
	defs := []*domain.AssetDefinition{
		{Type: domain.AssetTypeCrypto},
		{Type: domain.AssetTypeOther},
		{Type: domain.AssetType("commodity")},
		nil,
	}

	for _, def := range defs {
		monthly, annual := IncomeForAsset(def, 10, 1000)
		if monthly != 0 || annual != 0 {
			t.Errorf("%v: expected zero income, got %v/%v", def, monthly, annual)
		}
	}
}

func TestIncomeForAsset_MissingSubInfo(t *testing.T) {
	// Declared type without its schedule payload must not panic or pay.
	defs := []*domain.AssetDefinition{
		{Type: domain.AssetTypeStock},
		{Type: domain.AssetTypeBond},
		{Type: domain.AssetTypeRealEstate},
	}

	for _, def := range defs {
		monthly, annual := IncomeForAsset(def, 10, 1000)
		if monthly != 0 || annual != 0 {
			t.Errorf("%s: expected zero income, got %v/%v", def.Type, monthly, annual)
		}
	}
}

func TestIncomeForAssetMonth_BondFlatAcrossMonths(t *testing.T) {
	def := &domain.AssetDefinition{
		Type:     domain.AssetTypeBond,
		BondInfo: &domain.BondInfo{InterestRate: 5},
	}

	for month := 1; month <= 12; month++ {
		amount := IncomeForAssetMonth(def, 1, 1200, month)
		if amount != 5 {
			t.Errorf("month %d: expected 5, got %v", month, amount)
		}
	}
}
