package schedule

import "fmt"

// CalcError reasons.
const (
	ReasonNonFinite        = "non-finite result"
	ReasonBadMonth         = "month out of range"
	ReasonUnknownFrequency = "unknown frequency"
)

// CalcError describes a failed schedule evaluation. Callers fold these to
// zero income explicitly rather than relying on an implicit catch.
type CalcError struct {
	Op     string
	Month  int // 0 when not month-specific
	Reason string
}

// Error implements the error interface.
func (e *CalcError) Error() string {
	if e.Month != 0 {
		return fmt.Sprintf("schedule %s (month %d): %s", e.Op, e.Month, e.Reason)
	}
	return fmt.Sprintf("schedule %s: %s", e.Op, e.Reason)
}
