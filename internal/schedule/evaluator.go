// Package schedule evaluates income schedules: given a payout rule and a
// quantity, it computes monthly/annual amounts and the amount attributable
// to one specific calendar month.
package schedule

import (
	"math"

	"portfolio-engine/internal/domain"
)

// Amounts is the evaluation result for one schedule.
type Amounts struct {
	Monthly float64
	Annual  float64
}

// paymentsPerYear for the quarterly frequency. Payments are evenly spaced
// from the anchor month, three per year.
const quarterlyPayments = 3

// MonthlyAndAnnual computes the average monthly amount and the annual amount
// for a dividend schedule at the given quantity.
// Quantity <= 0 yields zero amounts regardless of schedule.
func MonthlyAndAnnual(info *domain.DividendInfo, quantity float64) (Amounts, error) {
	if info == nil || quantity <= 0 {
		return Amounts{}, nil
	}

	annual, err := annualAmount(info, quantity)
	if err != nil {
		return Amounts{}, err
	}

	monthly := annual / 12
	if !isFinite(monthly) || !isFinite(annual) {
		return Amounts{}, &CalcError{Op: "monthly_and_annual", Reason: ReasonNonFinite}
	}
	return Amounts{Monthly: monthly, Annual: annual}, nil
}

// ForMonth computes the amount the schedule pays in one calendar month
// (1-12) at the given quantity.
func ForMonth(info *domain.DividendInfo, quantity float64, month int) (float64, error) {
	if month < 1 || month > 12 {
		return 0, &CalcError{Op: "for_month", Month: month, Reason: ReasonBadMonth}
	}
	if info == nil || quantity <= 0 {
		return 0, nil
	}

	var amount float64
	switch info.Frequency {
	case domain.FrequencyNone:
		amount = 0
	case domain.FrequencyMonthly:
		amount = info.Amount * quantity
	case domain.FrequencyQuarterly:
		if paysInMonth(month, anchorMonth(info), 12/quarterlyPayments) {
			amount = info.Amount * quantity
		}
	case domain.FrequencyAnnually:
		if month == anchorMonth(info) {
			amount = info.Amount * quantity
		}
	case domain.FrequencyCustom:
		amount = customForMonth(info, month) * quantity
	default:
		return 0, &CalcError{Op: "for_month", Month: month, Reason: ReasonUnknownFrequency}
	}

	if !isFinite(amount) {
		return 0, &CalcError{Op: "for_month", Month: month, Reason: ReasonNonFinite}
	}
	return amount, nil
}

// annualAmount sums the schedule's payouts over one year.
func annualAmount(info *domain.DividendInfo, quantity float64) (float64, error) {
	switch info.Frequency {
	case domain.FrequencyNone:
		return 0, nil
	case domain.FrequencyMonthly:
		return info.Amount * quantity * 12, nil
	case domain.FrequencyQuarterly:
		return info.Amount * quantity * quarterlyPayments, nil
	case domain.FrequencyAnnually:
		return info.Amount * quantity, nil
	case domain.FrequencyCustom:
		var total float64
		for _, m := range paidMonths(info) {
			total += customForMonth(info, m) * quantity
		}
		return total, nil
	default:
		return 0, &CalcError{Op: "annual_amount", Reason: ReasonUnknownFrequency}
	}
}

// anchorMonth returns the first configured payment month, defaulting to
// January.
func anchorMonth(info *domain.DividendInfo) int {
	if len(info.PaymentMonths) > 0 {
		m := info.PaymentMonths[0]
		if m >= 1 && m <= 12 {
			return m
		}
	}
	return 1
}

// paysInMonth reports whether month falls on the anchor or an even step
// after it, wrapping around the year.
func paysInMonth(month, anchor, step int) bool {
	diff := month - anchor
	if diff < 0 {
		diff += 12
	}
	return diff%step == 0
}

// paidMonths returns the months a custom schedule pays in: the explicit
// payment-month list, falling back to the override map's keys.
func paidMonths(info *domain.DividendInfo) []int {
	var months []int
	if len(info.PaymentMonths) > 0 {
		for _, m := range info.PaymentMonths {
			if m >= 1 && m <= 12 {
				months = append(months, m)
			}
		}
		return months
	}
	for m := 1; m <= 12; m++ {
		if _, ok := info.CustomAmounts[m]; ok {
			months = append(months, m)
		}
	}
	return months
}

// customForMonth returns the per-payment amount for one month of a custom
// schedule, zero when the month is not a payment month. A per-month
// override takes precedence over the flat amount.
func customForMonth(info *domain.DividendInfo, month int) float64 {
	paid := false
	for _, m := range paidMonths(info) {
		if m == month {
			paid = true
			break
		}
	}
	if !paid {
		return 0
	}
	if override, ok := info.CustomAmounts[month]; ok {
		return override
	}
	return info.Amount
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
