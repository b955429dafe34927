package domain

import "time"

// HistoryPoint is a once-per-day portfolio snapshot, kept indefinitely.
// Corresponds to history_points table in PostgreSQL.
type HistoryPoint struct {
	Date           time.Time // calendar day, truncated to midnight UTC
	TotalValue     float64
	TotalInvested  float64
	TotalReturn    float64
	TotalReturnPct float64
}

// IntradayPoint is a minute-granularity portfolio value sample, kept only
// for a short rolling window. Corresponds to intraday_points table in
// ClickHouse.
type IntradayPoint struct {
	TimestampMs int64 // Unix timestamp in milliseconds
	Value       float64
}

// IntradayRetention is the rolling window intraday samples are kept for.
const IntradayRetention = 5 * 24 * time.Hour

// PointSource tags which series a merged point came from.
type PointSource string

const (
	PointSourceDaily    PointSource = "daily"
	PointSourceIntraday PointSource = "intraday"
)

// MergedPoint is one entry of a reconciled daily/intraday series.
type MergedPoint struct {
	TimestampMs int64
	Value       float64
	Source      PointSource
}

// TimeRange selects how much history a chart request covers.
type TimeRange string

const (
	Range1D  TimeRange = "1D"
	Range5D  TimeRange = "5D"
	Range1M  TimeRange = "1M"
	Range3M  TimeRange = "3M"
	Range6M  TimeRange = "6M"
	Range1Y  TimeRange = "1Y"
	RangeAll TimeRange = "ALL"
)

// IsValid checks if the time range is a known value.
func (r TimeRange) IsValid() bool {
	switch r {
	case Range1D, Range5D, Range1M, Range3M, Range6M, Range1Y, RangeAll:
		return true
	}
	return false
}

// Start returns the inclusive lower bound of the range relative to now.
// RangeAll returns the zero time (unbounded).
func (r TimeRange) Start(now time.Time) time.Time {
	switch r {
	case Range1D:
		return now.AddDate(0, 0, -1)
	case Range5D:
		return now.AddDate(0, 0, -5)
	case Range1M:
		return now.AddDate(0, -1, 0)
	case Range3M:
		return now.AddDate(0, -3, 0)
	case Range6M:
		return now.AddDate(0, -6, 0)
	case Range1Y:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}
