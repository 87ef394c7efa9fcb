package balancer

import "github.com/shopspring/decimal"

// Velocity is average progress per elapsed day, 0 when no day has elapsed.
func Velocity(current decimal.Decimal, elapsedDays int) decimal.Decimal {
	if elapsedDays <= 0 {
		return decimal.Zero
	}
	return current.Div(decimal.NewFromInt(int64(elapsedDays)))
}

// EstimateCompletionDate extrapolates the current pace linearly.
//
// Returns false when there is nothing to extrapolate from: no progress yet,
// or today is the period's first day. The estimate is not clamped to the
// period end; a date past it means the current pace won't make it.
func EstimateCompletionDate(current, target decimal.Decimal, periodStart, today Date) (Date, bool) {
	elapsed := DaysBetween(periodStart, today)
	if !current.IsPositive() || elapsed <= 0 {
		return Date{}, false
	}

	left := target.Sub(current)
	if !left.IsPositive() {
		return today, true
	}

	// left / (current / elapsed), kept as one exact division
	days := ceilDiv(left.Mul(decimal.NewFromInt(int64(elapsed))), current)
	return today.AddDays(int(days.IntPart())), true
}
