// Package fingerprint computes stable, order-independent content hashes over
// the minimal fields that affect a derived result. Hashes gate cache
// validity: re-ordering a collection never produces a spurious miss, and
// edits to fields outside the minimal tuple never invalidate.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"

	"github.com/mr-tron/base58"

	"portfolio-engine/internal/domain"
)

// hashTuples digests a collection of minimal field tuples. Tuples are
// sorted before hashing so collection order cannot influence the result.
func hashTuples(tuples []string) string {
	sorted := make([]string, len(tuples))
	copy(sorted, tuples)
	sort.Strings(sorted)

	h := sha256.New()
	for _, t := range sorted {
		h.Write([]byte(t))
		h.Write([]byte{'\n'})
	}
	return base58.Encode(h.Sum(nil))
}

// Combine merges multiple fingerprints into one, order-independently:
// a hash of the sorted hashes, never an order-sensitive concatenation.
func Combine(hashes ...string) string {
	return hashTuples(hashes)
}

// Transactions fingerprints a ledger by id and last-modified timestamp.
func Transactions(txs []*domain.Transaction) string {
	tuples := make([]string, 0, len(txs))
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		tuples = append(tuples, tx.ID+"|"+strconv.FormatInt(tx.UpdatedAt.UnixNano(), 10))
	}
	return hashTuples(tuples)
}

// AssetDefinitions fingerprints definitions by id and last-modified
// timestamp. Price refreshes bump UpdatedAt, so price changes invalidate.
func AssetDefinitions(defs []*domain.AssetDefinition) string {
	tuples := make([]string, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		tuples = append(tuples, def.ID+"|"+strconv.FormatInt(def.UpdatedAt.UnixNano(), 10))
	}
	return hashTuples(tuples)
}

// DividendSchedules fingerprints the full value tuple of each definition's
// payout schedule. Schedules carry no timestamp of their own; hashing the
// values keeps per-transaction income annexes honest without invalidating
// on unrelated definition edits such as price refreshes.
func DividendSchedules(defs []*domain.AssetDefinition) string {
	tuples := make([]string, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		tuples = append(tuples, def.ID+"|"+scheduleTuple(def))
	}
	return hashTuples(tuples)
}

// scheduleTuple serializes the dividend-relevant fields of one definition.
func scheduleTuple(def *domain.AssetDefinition) string {
	if def.DividendInfo == nil {
		if def.BondInfo != nil {
			return fmt.Sprintf("bond|%g", def.BondInfo.InterestRate)
		}
		if def.RentalInfo != nil {
			return fmt.Sprintf("rental|%g", def.RentalInfo.BaseRent)
		}
		return "none"
	}

	info := def.DividendInfo
	months := make([]int, len(info.PaymentMonths))
	copy(months, info.PaymentMonths)
	sort.Ints(months)

	overrides := make([]string, 0, len(info.CustomAmounts))
	for m, amount := range info.CustomAmounts {
		overrides = append(overrides, fmt.Sprintf("%d=%g", m, amount))
	}
	sort.Strings(overrides)

	return fmt.Sprintf("dividend|%s|%g|%v|%v", info.Frequency, info.Amount, months, overrides)
}

// Categories fingerprints categories and their assignments together, by id
// and last-modified timestamp.
func Categories(categories []*domain.Category, assignments []*domain.CategoryAssignment) string {
	tuples := make([]string, 0, len(categories)+len(assignments))
	for _, c := range categories {
		if c == nil {
			continue
		}
		tuples = append(tuples, "cat|"+c.ID+"|"+strconv.FormatInt(c.UpdatedAt.UnixNano(), 10))
	}
	for _, a := range assignments {
		if a == nil {
			continue
		}
		tuples = append(tuples, "asg|"+a.ID+"|"+strconv.FormatInt(a.UpdatedAt.UnixNano(), 10))
	}
	return hashTuples(tuples)
}

// Summary fingerprints the non-portfolio inputs of the financial summary.
func Summary(liabilities []*domain.Liability, expenses []*domain.Expense, income []*domain.IncomeSource) string {
	tuples := make([]string, 0, len(liabilities)+len(expenses)+len(income))
	for _, l := range liabilities {
		if l == nil {
			continue
		}
		tuples = append(tuples, "lia|"+l.ID+"|"+strconv.FormatInt(l.UpdatedAt.UnixNano(), 10))
	}
	for _, e := range expenses {
		if e == nil {
			continue
		}
		tuples = append(tuples, "exp|"+e.ID+"|"+strconv.FormatInt(e.UpdatedAt.UnixNano(), 10))
	}
	for _, i := range income {
		if i == nil {
			continue
		}
		tuples = append(tuples, "inc|"+i.ID+"|"+strconv.FormatInt(i.UpdatedAt.UnixNano(), 10))
	}
	return hashTuples(tuples)
}
