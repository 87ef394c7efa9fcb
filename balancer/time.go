package balancer

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day, the only time resolution the balancer works in
// =============================================================================

// Date is a calendar day normalized to midnight UTC.
// Milestone bounds are stored with a time component but the engine only
// ever counts whole days, so every Date is truncated on construction.
type Date struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a Date from its calendar parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day (in t's own location).
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// TodayAt returns the calendar day at now shifted by offsetMinutes from UTC.
func TodayAt(now time.Time, offsetMinutes int) Date {
	return DateOf(now.UTC().Add(time.Duration(offsetMinutes) * time.Minute))
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t.UTC()), nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) IsZero() bool   { return d.Time.IsZero() }
func (d Date) String() string { return d.Time.Format(dateLayout) }

// DaysBetween returns the signed number of whole days from -> to.
func DaysBetween(from, to Date) int {
	return int(math.Round(to.Time.Sub(from.Time).Hours() / 24))
}

// StartOfMonth and EndOfMonth bound the calendar month containing d.
func StartOfMonth(d Date) Date { return NewDate(d.Time.Year(), d.Time.Month(), 1) }

func EndOfMonth(d Date) Date {
	return NewDate(d.Time.Year(), d.Time.Month()+1, 1).AddDays(-1)
}
