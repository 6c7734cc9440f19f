package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date abstraction (holiday years are day-granular)
// =============================================================================

// TimePoint is a calendar date. Time is kept at midnight UTC.
type TimePoint struct {
	Time time.Time
}

// DateLayout is the canonical text form of a TimePoint.
const DateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts YYYY-MM-DD, with or without a time suffix.
func ParseDate(s string) (TimePoint, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return DateOf(t), nil
		}
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint  { return DateOf(tp.Time.AddDate(0, 0, n)) }
func (tp TimePoint) AddYears(n int) TimePoint { return DateOf(tp.Time.AddDate(n, 0, 0)) }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

// StartOfDay and EndOfDay bound the instants that fall on this date.
func (tp TimePoint) StartOfDay() time.Time { return tp.normalize() }
func (tp TimePoint) EndOfDay() time.Time   { return tp.normalize().AddDate(0, 0, 1).Add(-time.Nanosecond) }

func (tp TimePoint) String() string { return tp.Time.Format(DateLayout) }

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween counts whole days from -> to (exclusive of to).
func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// DaysInclusive counts the calendar days in [from, to].
func DaysInclusive(from, to TimePoint) int {
	if to.Before(from) {
		return 0
	}
	return DaysBetween(from, to) + 1
}

func MaxTimePoint(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}

func MinTimePoint(a, b TimePoint) TimePoint {
	if a.Before(b) {
		return a
	}
	return b
}

// Clock returns the current instant. Engines take one so tests can pin "now".
type Clock func() time.Time
