package schedule

import "portfolio-engine/internal/domain"

// IncomeForAsset computes monthly and annual income for one asset given its
// net quantity and current value. Evaluation errors and non-finite results
// fold to zero; unknown asset types yield zero rather than failing.
func IncomeForAsset(def *domain.AssetDefinition, netQuantity, currentValue float64) (monthly, annual float64) {
	if def == nil || netQuantity <= 0 {
		return 0, 0
	}

	switch def.Type {
	case domain.AssetTypeStock:
		amounts, err := MonthlyAndAnnual(def.DividendInfo, netQuantity)
		if err != nil {
			return 0, 0
		}
		return amounts.Monthly, amounts.Annual

	case domain.AssetTypeBond, domain.AssetTypeCash:
		if def.BondInfo == nil {
			return 0, 0
		}
		m := def.BondInfo.InterestRate * currentValue / 100 / 12
		if !isFinite(m) {
			return 0, 0
		}
		return m, m * 12

	case domain.AssetTypeRealEstate:
		if def.RentalInfo == nil {
			return 0, 0
		}
		m := def.RentalInfo.BaseRent
		if !isFinite(m) {
			return 0, 0
		}
		return m, m * 12

	case domain.AssetTypeCrypto, domain.AssetTypeOther:
		return 0, 0

	default:
		return 0, 0
	}
}

// IncomeForAssetMonth computes the income one asset pays in a specific
// calendar month (1-12). Bond interest and rent are flat across months;
// stock dividends follow the schedule.
func IncomeForAssetMonth(def *domain.AssetDefinition, netQuantity, currentValue float64, month int) float64 {
	if def == nil || netQuantity <= 0 {
		return 0
	}

	switch def.Type {
	case domain.AssetTypeStock:
		amount, err := ForMonth(def.DividendInfo, netQuantity, month)
		if err != nil {
			return 0
		}
		return amount
	default:
		monthly, _ := IncomeForAsset(def, netQuantity, currentValue)
		return monthly
	}
}
