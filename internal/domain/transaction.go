package domain

import "time"

// TransactionType distinguishes ledger entry direction.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// String returns the string representation of TransactionType.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is a known value.
func (t TransactionType) IsValid() bool {
	return t == TransactionBuy || t == TransactionSell
}

// Transaction is one immutable ledger entry. Corresponds to transactions
// table in PostgreSQL. Entries are never mutated after creation except for
// CachedIncome, a cache annex that is cleared whenever dividend-relevant
// definition fields change.
type Transaction struct {
	ID                string
	AssetDefinitionID string    // empty for legacy entries without a linked definition
	Name              string    // fallback identity when AssetDefinitionID is empty
	Type              AssetType // fallback identity when AssetDefinitionID is empty
	TransactionType   TransactionType
	Quantity          float64
	UnitPrice         float64
	Costs             float64 // fees and commissions for this leg
	Date              time.Time
	UpdatedAt         time.Time
	CachedIncome      *float64 // previously computed per-transaction income (nullable)
}
