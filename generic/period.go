package generic

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// =============================================================================
// PERIOD - The window every entitlement is computed for
// =============================================================================

// Period is an inclusive range of calendar days.
//
// Examples:
//   - UK holiday year 2025: Apr 6 2025 - Apr 5 2026
//   - Calendar year 2025:   Jan 1 - Dec 31
//   - Employment overlap:   max(hire, yearStart) - min(leave, yearEnd)
type Period struct {
	Start TimePoint
	End   TimePoint
}

// YearFrom returns the one-year period starting on start.
func YearFrom(start TimePoint) Period {
	return Period{Start: start, End: start.AddYears(1).AddDays(-1)}
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// ContainsInstant reports whether t falls on any day of the period.
func (p Period) ContainsInstant(t time.Time) bool {
	return !t.Before(p.Start.StartOfDay()) && !t.After(p.End.EndOfDay())
}

// Days is the number of calendar days in the period, 0 if inverted.
func (p Period) Days() int {
	return DaysInclusive(p.Start, p.End)
}

// IsEmpty is true when End precedes Start.
func (p Period) IsEmpty() bool {
	return p.End.Before(p.Start)
}

// Intersect clips p to other. The result may be empty.
func (p Period) Intersect(other Period) Period {
	return Period{
		Start: MaxTimePoint(p.Start, other.Start),
		End:   MinTimePoint(p.End, other.End),
	}
}

// Covers reports whether p contains every day of other.
func (p Period) Covers(other Period) bool {
	return p.Start.BeforeOrEqual(other.Start) && p.End.AfterOrEqual(other.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// NextYear returns the year-long period after this one.
func (p Period) NextYear() Period {
	return YearFrom(p.End.AddDays(1))
}

// PreviousYear returns the year-long period ending the day before this one.
func (p Period) PreviousYear() Period {
	return YearFrom(p.Start.AddYears(-1))
}

// =============================================================================
// ANNIVERSARY CONFIG - Fixed month/day year boundary
// =============================================================================

// PeriodConfig describes a year that always starts on the same month and day.
// The UK statutory leave year used by most care providers starts on April 6.
type PeriodConfig struct {
	StartMonth time.Month
	StartDay   int
}

// UKTaxYear is the April 6 - April 5 holiday year.
var UKTaxYear = PeriodConfig{StartMonth: time.April, StartDay: 6}

// Validate rejects boundaries that do not exist every year. The recurrence
// rule's own bounds check covers months and days out of range; a date that
// is valid only in some years (Feb 29, Apr 31) yields no boundary in 2023.
func (pc PeriodConfig) Validate() error {
	rule, err := pc.rule(time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPeriod, err)
	}
	got := rule.All()
	if len(got) != 1 || got[0].Month() != pc.StartMonth || got[0].Day() != pc.StartDay {
		return fmt.Errorf("%w: %s %d is not a yearly date", ErrInvalidPeriod, pc.StartMonth, pc.StartDay)
	}
	return nil
}

// PeriodFor returns the anniversary year that contains date.
func (pc PeriodConfig) PeriodFor(date TimePoint) (Period, error) {
	start, err := pc.lastBoundary(date)
	if err != nil {
		return Period{}, err
	}
	return YearFrom(start), nil
}

// lastBoundary is the most recent anniversary on or before date.
func (pc PeriodConfig) lastBoundary(date TimePoint) (TimePoint, error) {
	rule, err := pc.rule(time.Date(date.Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC), date.normalize())
	if err != nil {
		return TimePoint{}, fmt.Errorf("%w: %w", ErrInvalidPeriod, err)
	}
	got := rule.All()
	if len(got) == 0 {
		return TimePoint{}, fmt.Errorf("%w: no %s %d on or before %s", ErrInvalidPeriod, pc.StartMonth, pc.StartDay, date)
	}
	return DateOf(got[len(got)-1]), nil
}

// rule is the yearly boundary recurrence over [from, until].
func (pc PeriodConfig) rule(from, until time.Time) (*rrule.RRule, error) {
	return rrule.NewRRule(rrule.ROption{
		Freq:       rrule.YEARLY,
		Dtstart:    from,
		Until:      until,
		Bymonth:    []int{int(pc.StartMonth)},
		Bymonthday: []int{pc.StartDay},
	})
}
