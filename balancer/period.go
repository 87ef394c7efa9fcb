package balancer

import (
	"fmt"
	"iter"
)

// =============================================================================
// PERIOD - Inclusive [Start, End] window a milestone must be reached in
// =============================================================================

// Period defines the window a milestone target is spread across.
// Both ends are inclusive, so a period with Start == End lasts one day.
//
// Examples:
//   - Month: Feb 1 - Feb 28 (28 days)
//   - Sprint: Mon - Sun (7 days)
//   - Single day: Mar 3 - Mar 3 (1 day)
type Period struct {
	Start Date
	End   Date
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end Date) (Period, error) {
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: %s is before %s", ErrInvalidPeriod, end, start)
	}
	return Period{Start: start, End: end}, nil
}

// ParsePeriod parses both bounds and validates them.
func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	return NewPeriod(s, e)
}

// TotalDays returns the inclusive day count of [start, end].
func TotalDays(start, end Date) int {
	return DaysBetween(start, end) + 1
}

// RemainingDays returns the inclusive day count of [today, end], or 0 once
// today is past end.
func RemainingDays(end, today Date) int {
	n := DaysBetween(today, end) + 1
	if n < 0 {
		return 0
	}
	return n
}

// DateRange yields every day in [start, end]. The sequence is lazy and can
// be ranged over any number of times.
func DateRange(start, end Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}
}

// IsInPeriod is the inclusive membership test.
func IsInPeriod(d, start, end Date) bool {
	return d.AfterOrEqual(start) && d.BeforeOrEqual(end)
}

func (p Period) TotalDays() int                 { return TotalDays(p.Start, p.End) }
func (p Period) RemainingDays(today Date) int   { return RemainingDays(p.End, today) }
func (p Period) Dates() iter.Seq[Date]          { return DateRange(p.Start, p.End) }
func (p Period) Contains(d Date) bool           { return IsInPeriod(d, p.Start, p.End) }
func (p Period) HasEnded(today Date) bool       { return today.After(p.End) }
func (p Period) IsActive(today Date) bool       { return !p.HasEnded(today) }

// ElapsedDays is TotalDays - RemainingDays, clamped to [0, TotalDays].
// Before the period starts nothing has elapsed.
func (p Period) ElapsedDays(today Date) int {
	total := p.TotalDays()
	elapsed := total - p.RemainingDays(today)
	switch {
	case elapsed < 0:
		return 0
	case elapsed > total:
		return total
	}
	return elapsed
}

// Days collects Dates into a slice.
func (p Period) Days() []Date {
	days := make([]Date, 0, p.TotalDays())
	for d := range p.Dates() {
		days = append(days, d)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// MonthPeriod returns the calendar month containing d.
func MonthPeriod(d Date) Period {
	return Period{Start: StartOfMonth(d), End: EndOfMonth(d)}
}
