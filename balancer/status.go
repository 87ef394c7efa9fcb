package balancer

import "github.com/shopspring/decimal"

// ScheduleStatus compares actual progress with linear expected progress.
type ScheduleStatus string

const (
	StatusAhead   ScheduleStatus = "ahead"
	StatusOnTrack ScheduleStatus = "on-track"
	StatusBehind  ScheduleStatus = "behind"
)

// ScheduleTolerancePercent is the half-width of the on-track band, as a
// percentage of the target.
var ScheduleTolerancePercent = decimal.NewFromInt(10)

// ExpectedProgress is target * elapsed / total: where progress would be if
// the target were done at a constant rate from period start.
func ExpectedProgress(target decimal.Decimal, period Period, today Date) decimal.Decimal {
	total := period.TotalDays()
	if total <= 0 {
		return decimal.Zero
	}
	elapsed := decimal.NewFromInt(int64(period.ElapsedDays(today)))
	return target.Mul(elapsed).Div(decimal.NewFromInt(int64(total)))
}

// ClassifySchedule returns ahead/on-track/behind for current progress.
// On the first day of the period (nothing elapsed) it is always on-track.
func ClassifySchedule(current, target decimal.Decimal, period Period, today Date) ScheduleStatus {
	if period.ElapsedDays(today) == 0 || !target.IsPositive() {
		return StatusOnTrack
	}

	expected := ExpectedProgress(target, period, today)
	deviation := current.Sub(expected).Div(target).Mul(hundred)

	switch {
	case deviation.GreaterThan(ScheduleTolerancePercent):
		return StatusAhead
	case deviation.LessThan(ScheduleTolerancePercent.Neg()):
		return StatusBehind
	default:
		return StatusOnTrack
	}
}
