package domain

// Position is the derived net holding for one asset across all of its
// transactions. Positions are rebuilt wholesale on every aggregation pass
// and never partially mutated.
type Position struct {
	AssetDefinitionID    string // synthetic key when the ledger entries carry no definition
	Name                 string
	Type                 AssetType
	NetQuantity          float64 // buys minus sells, never clamped
	AveragePurchasePrice float64 // buy legs only
	TotalInvestment      float64
	CurrentValue         float64
	TotalReturn          float64
	TotalReturnPct       float64
	MonthlyIncome        float64
	AnnualIncome         float64
	Assignments          []*CategoryAssignment
}

// Totals is the reduction of a position set.
type Totals struct {
	TotalValue      float64
	TotalInvestment float64
	TotalReturn     float64
	TotalReturnPct  float64
	MonthlyIncome   float64
	AnnualIncome    float64
}
