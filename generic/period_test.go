package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/holiday-engine/generic"
)

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

// =============================================================================
// ANNIVERSARY YEARS
// =============================================================================

func TestPeriodFor_UKTaxYear(t *testing.T) {
	tests := []struct {
		name      string
		day       generic.TimePoint
		wantStart generic.TimePoint
		wantEnd   generic.TimePoint
	}{
		{"on the boundary", date(2025, time.April, 6), date(2025, time.April, 6), date(2026, time.April, 5)},
		{"day before boundary", date(2025, time.April, 5), date(2024, time.April, 6), date(2025, time.April, 5)},
		{"mid year", date(2025, time.October, 15), date(2025, time.April, 6), date(2026, time.April, 5)},
		{"january", date(2026, time.January, 2), date(2025, time.April, 6), date(2026, time.April, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := generic.UKTaxYear.PeriodFor(tt.day)
			require.NoError(t, err)
			assert.True(t, p.Start.Equal(tt.wantStart), "start %s", p.Start)
			assert.True(t, p.End.Equal(tt.wantEnd), "end %s", p.End)
			assert.True(t, p.Contains(tt.day))
		})
	}
}

func TestPeriodFor_CalendarYear(t *testing.T) {
	cfg := generic.PeriodConfig{StartMonth: time.January, StartDay: 1}

	p, err := cfg.PeriodFor(date(2025, time.June, 15))
	require.NoError(t, err)

	assert.Equal(t, "2025-01-01", p.Start.String())
	assert.Equal(t, "2025-12-31", p.End.String())
	assert.Equal(t, 365, p.Days())
}

func TestPeriodConfig_Validate(t *testing.T) {
	assert.NoError(t, generic.UKTaxYear.Validate())

	err := generic.PeriodConfig{StartMonth: time.February, StartDay: 29}.Validate()
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	err = generic.PeriodConfig{StartMonth: 13, StartDay: 1}.Validate()
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestPeriodConfig_ValidateReportsRecurrenceBounds(t *testing.T) {
	// GIVEN boundaries outside the recurrence rule's month and day ranges
	// WHEN they are validated
	// THEN the rule's own bounds error comes back wrapped as an invalid period
	err := generic.PeriodConfig{StartMonth: 13, StartDay: 1}.Validate()
	require.ErrorIs(t, err, generic.ErrInvalidPeriod)
	assert.Contains(t, err.Error(), "bymonth must be between 1 and 12")

	err = generic.PeriodConfig{StartMonth: time.April, StartDay: 0}.Validate()
	require.ErrorIs(t, err, generic.ErrInvalidPeriod)
	assert.Contains(t, err.Error(), "bymonthday")

	// AND a day that exists in no month of that length is rejected too
	err = generic.PeriodConfig{StartMonth: time.April, StartDay: 31}.Validate()
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	// AND a negative day counted from month end is not a fixed anniversary
	err = generic.PeriodConfig{StartMonth: time.April, StartDay: -1}.Validate()
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestPeriodFor_InvalidConfigFails(t *testing.T) {
	_, err := generic.PeriodConfig{StartMonth: 13, StartDay: 1}.PeriodFor(date(2025, time.June, 1))

	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestPeriodFor_LeapDayBoundaryOnLeapYear(t *testing.T) {
	// GIVEN a boundary that only exists every fourth year
	cfg := generic.PeriodConfig{StartMonth: time.February, StartDay: 29}

	// WHEN a date shortly after a leap day is resolved
	p, err := cfg.PeriodFor(date(2024, time.March, 10))

	// THEN the rule finds the leap day, even though Validate would refuse it
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", p.Start.String())
}

// =============================================================================
// PERIOD ARITHMETIC
// =============================================================================

func TestPeriod_Intersect(t *testing.T) {
	year := generic.YearFrom(date(2025, time.April, 6))
	employment := generic.Period{Start: date(2025, time.September, 1), End: date(2030, time.January, 1)}

	got := employment.Intersect(year)

	assert.Equal(t, "2025-09-01", got.Start.String())
	assert.Equal(t, "2026-04-05", got.End.String())
	assert.False(t, got.IsEmpty())
}

func TestPeriod_IntersectDisjointIsEmpty(t *testing.T) {
	year := generic.YearFrom(date(2025, time.April, 6))
	left := generic.Period{Start: date(2020, time.January, 1), End: date(2024, time.December, 31)}

	got := left.Intersect(year)

	assert.True(t, got.IsEmpty())
	assert.Equal(t, 0, got.Days())
}

func TestPeriod_ContainsInstant(t *testing.T) {
	year := generic.YearFrom(date(2025, time.April, 6))

	assert.True(t, year.ContainsInstant(time.Date(2026, time.April, 5, 23, 59, 0, 0, time.UTC)))
	assert.False(t, year.ContainsInstant(time.Date(2026, time.April, 6, 0, 0, 0, 0, time.UTC)))
	assert.False(t, year.ContainsInstant(time.Date(2025, time.April, 5, 23, 0, 0, 0, time.UTC)))
}

func TestPeriod_NextAndPreviousYear(t *testing.T) {
	year := generic.YearFrom(date(2025, time.April, 6))

	assert.Equal(t, "2026-04-06", year.NextYear().Start.String())
	assert.Equal(t, "2027-04-05", year.NextYear().End.String())
	assert.Equal(t, "2024-04-06", year.PreviousYear().Start.String())
}

// =============================================================================
// DATES
// =============================================================================

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2025-04-05")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-05", d.String())

	d, err = generic.ParseDate("2025-04-05T22:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-05", d.String())

	_, err = generic.ParseDate("05/04/2025")
	assert.Error(t, err)
}

func TestDaysInclusive(t *testing.T) {
	assert.Equal(t, 1, generic.DaysInclusive(date(2025, time.May, 1), date(2025, time.May, 1)))
	assert.Equal(t, 366, generic.DaysInclusive(date(2023, time.April, 6), date(2024, time.April, 5)))
	assert.Equal(t, 0, generic.DaysInclusive(date(2025, time.May, 2), date(2025, time.May, 1)))
}
