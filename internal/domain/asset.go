package domain

import "time"

// AssetType is the closed set of supported asset classes.
type AssetType string

const (
	AssetTypeStock      AssetType = "stock"
	AssetTypeBond       AssetType = "bond"
	AssetTypeRealEstate AssetType = "real_estate"
	AssetTypeCrypto     AssetType = "crypto"
	AssetTypeCash       AssetType = "cash"
	AssetTypeOther      AssetType = "other"
)

// String returns the string representation of AssetType.
func (t AssetType) String() string {
	return string(t)
}

// IsValid checks if the asset type is a known value.
func (t AssetType) IsValid() bool {
	switch t {
	case AssetTypeStock, AssetTypeBond, AssetTypeRealEstate,
		AssetTypeCrypto, AssetTypeCash, AssetTypeOther:
		return true
	}
	return false
}

// Frequency describes how often a schedule pays out.
type Frequency string

const (
	FrequencyNone      Frequency = "none"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
	FrequencyCustom    Frequency = "custom"
)

// String returns the string representation of Frequency.
func (f Frequency) String() string {
	return string(f)
}

// IsValid checks if the frequency is a known value.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyNone, FrequencyMonthly, FrequencyQuarterly,
		FrequencyAnnually, FrequencyCustom:
		return true
	}
	return false
}

// DividendInfo describes a per-share payout schedule.
type DividendInfo struct {
	Frequency     Frequency
	Amount        float64         // per share, per payment
	PaymentMonths []int           // calendar months 1-12; anchor for quarterly/annual
	CustomAmounts map[int]float64 // per-month override, takes precedence over Amount
}

// BondInfo describes fixed-interest metadata. The rate also applies to
// interest-bearing cash holdings.
type BondInfo struct {
	InterestRate float64 // annual, percent
}

// RentalInfo describes rental income metadata.
type RentalInfo struct {
	BaseRent float64 // flat monthly amount, not quantity-scaled
}

// AssetDefinition holds static and semi-static metadata for one tradable
// instrument. Corresponds to asset_definitions table in PostgreSQL.
// The engine reads definitions but never writes them; price-refresh and
// editing flows own updates.
type AssetDefinition struct {
	ID           string
	Name         string
	Ticker       string
	Type         AssetType
	CurrentPrice float64
	DividendInfo *DividendInfo // stocks
	BondInfo     *BondInfo     // bonds and cash
	RentalInfo   *RentalInfo   // real estate
	UpdatedAt    time.Time
}
