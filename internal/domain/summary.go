package domain

import "time"

// Liability is an outstanding debt with a recurring payment.
type Liability struct {
	ID             string
	Name           string
	CurrentBalance float64
	MonthlyPayment float64
	UpdatedAt      time.Time
}

// Expense is a recurring monthly outflow.
type Expense struct {
	ID        string
	Name      string
	Amount    float64
	UpdatedAt time.Time
}

// IncomeSource is a recurring monthly inflow outside the portfolio.
type IncomeSource struct {
	ID            string
	Name          string
	MonthlyAmount float64
	UpdatedAt     time.Time
}

// FinancialSummary is the running whole-picture aggregate: portfolio totals
// combined with liabilities, expenses and non-portfolio income.
type FinancialSummary struct {
	TotalAssetValue     float64
	TotalInvestment     float64
	TotalReturn         float64
	MonthlyAssetIncome  float64
	AnnualAssetIncome   float64
	TotalLiabilities    float64
	MonthlyLiabilityPay float64
	MonthlyExpenses     float64
	MonthlyOtherIncome  float64
	NetWorth            float64 // assets minus liabilities
	MonthlyCashflow     float64 // all monthly income minus payments and expenses
	ComputedAt          time.Time
}

// IsZero reports whether every monetary field of the summary is zero.
// A zero summary computed from non-empty inputs indicates a degenerate
// cached result.
func (s *FinancialSummary) IsZero() bool {
	return s.TotalAssetValue == 0 &&
		s.TotalInvestment == 0 &&
		s.TotalReturn == 0 &&
		s.MonthlyAssetIncome == 0 &&
		s.AnnualAssetIncome == 0 &&
		s.TotalLiabilities == 0 &&
		s.MonthlyLiabilityPay == 0 &&
		s.MonthlyExpenses == 0 &&
		s.MonthlyOtherIncome == 0
}
