// Package holdings turns a transaction ledger into net positions.
// Aggregation is pure: identical inputs yield structurally identical output.
package holdings

import (
	"fmt"
	"sort"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/schedule"
)

// CategoryContext carries the category data positions are cross-referenced
// against. Nil context means no assignments are attached.
type CategoryContext struct {
	Categories  []*domain.Category
	Assignments []*domain.CategoryAssignment
}

// Aggregate groups the ledger by asset identity, nets buy/sell quantities,
// computes cost basis and current value, and attaches schedule income and
// category assignments to each resulting position.
//
// Legacy entries without a linked definition group under a synthetic
// (name, type) key so they still form a position. Output is sorted by group
// key so repeated calls on identical inputs are byte-for-byte equal.
func Aggregate(transactions []*domain.Transaction, definitions []*domain.AssetDefinition, catCtx *CategoryContext) []*domain.Position {
	defByID := make(map[string]*domain.AssetDefinition, len(definitions))
	for _, def := range definitions {
		if def != nil && def.ID != "" {
			defByID[def.ID] = def
		}
	}

	groups := make(map[string][]*domain.Transaction)
	var keys []string
	for _, tx := range transactions {
		if tx == nil {
			continue
		}
		key := groupKey(tx)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], tx)
	}
	sort.Strings(keys)

	positions := make([]*domain.Position, 0, len(keys))
	for _, key := range keys {
		positions = append(positions, buildPosition(key, groups[key], defByID, catCtx))
	}
	return positions
}

// groupKey is the asset identity a transaction aggregates under.
func groupKey(tx *domain.Transaction) string {
	if tx.AssetDefinitionID != "" {
		return tx.AssetDefinitionID
	}
	return fmt.Sprintf("unlinked|%s|%s", tx.Name, tx.Type)
}

// buildPosition computes one position from a transaction group.
func buildPosition(key string, group []*domain.Transaction, defByID map[string]*domain.AssetDefinition, catCtx *CategoryContext) *domain.Position {
	var buyCost, buyQty, sellQty, totalCosts float64
	for _, tx := range group {
		totalCosts += tx.Costs
		switch tx.TransactionType {
		case domain.TransactionBuy:
			buyCost += tx.Quantity * tx.UnitPrice
			buyQty += tx.Quantity
		case domain.TransactionSell:
			sellQty += tx.Quantity
		}
	}

	avgPrice := safeDiv(buyCost, buyQty)

	// Net quantity is buys minus sells, deliberately unclamped: a negative
	// value means the ledger records more sold than bought.
	netQty := buyQty - sellQty

	// Costs are added on every leg, buys and sells alike.
	investment := netQty*avgPrice + totalCosts

	def := defByID[group[0].AssetDefinitionID]

	var currentValue float64
	if def != nil && netQty > 0 {
		currentValue = netQty * def.CurrentPrice
	}

	totalReturn := currentValue - investment
	returnPct := safeDiv(totalReturn, abs(investment)) * 100

	monthlyIncome, annualIncome := schedule.IncomeForAsset(def, netQty, currentValue)

	pos := &domain.Position{
		AssetDefinitionID:    key,
		NetQuantity:          netQty,
		AveragePurchasePrice: avgPrice,
		TotalInvestment:      investment,
		CurrentValue:         currentValue,
		TotalReturn:          totalReturn,
		TotalReturnPct:       returnPct,
		MonthlyIncome:        monthlyIncome,
		AnnualIncome:         annualIncome,
	}

	if def != nil {
		pos.Name = def.Name
		pos.Type = def.Type
	} else {
		// Degrade gracefully: identity falls back to the ledger's own fields.
		pos.Name = group[0].Name
		pos.Type = group[0].Type
	}

	if catCtx != nil && def != nil {
		for _, a := range catCtx.Assignments {
			if a != nil && a.AssetDefinitionID == def.ID {
				pos.Assignments = append(pos.Assignments, a)
			}
		}
	}

	return pos
}

// AggregateTotals reduces a position set to portfolio totals.
func AggregateTotals(positions []*domain.Position) domain.Totals {
	var totals domain.Totals
	for _, p := range positions {
		if p == nil {
			continue
		}
		totals.TotalValue += p.CurrentValue
		totals.TotalInvestment += p.TotalInvestment
		totals.TotalReturn += p.TotalReturn
		totals.MonthlyIncome += p.MonthlyIncome
		totals.AnnualIncome += p.AnnualIncome
	}
	totals.TotalReturnPct = safeDiv(totals.TotalReturn, abs(totals.TotalInvestment)) * 100
	return totals
}

// MonthlyIncomeFor computes the income the position set pays in one
// calendar month (1-12).
func MonthlyIncomeFor(positions []*domain.Position, definitions []*domain.AssetDefinition, month int) float64 {
	defByID := make(map[string]*domain.AssetDefinition, len(definitions))
	for _, def := range definitions {
		if def != nil && def.ID != "" {
			defByID[def.ID] = def
		}
	}

	var total float64
	for _, p := range positions {
		if p == nil {
			continue
		}
		total += schedule.IncomeForAssetMonth(defByID[p.AssetDefinitionID], p.NetQuantity, p.CurrentValue, month)
	}
	return total
}

// safeDiv divides, folding zero denominators and non-finite results to 0.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	v := num / den
	if v != v { // NaN
		return 0
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
