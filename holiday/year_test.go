package holiday_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

func TestResolveYear(t *testing.T) {
	today := generic.NewTimePoint(2025, time.June, 1)
	tp := func(y int, m time.Month, d int) *generic.TimePoint {
		p := generic.NewTimePoint(y, m, d)
		return &p
	}

	tests := []struct {
		name      string
		marker    *generic.TimePoint
		wantStart string
		wantEnd   string
	}{
		{"no marker uses anniversary", nil, "2025-04-06", "2026-04-05"},
		{"marker yesterday starts year today", tp(2025, time.May, 31), "2025-06-01", "2026-05-31"},
		{"marker today is not yet effective", tp(2025, time.June, 1), "2025-04-06", "2026-04-05"},
		{"recent marker", tp(2025, time.March, 31), "2025-04-01", "2026-03-31"},
		{"stale marker advances whole years", tp(2023, time.March, 31), "2025-04-01", "2026-03-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, err := holiday.ResolveYear(generic.UKTaxYear, today, tt.marker)

			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, year.Start.String())
			assert.Equal(t, tt.wantEnd, year.End.String())
			assert.True(t, year.Contains(today))
		})
	}
}

func TestRolloverYear(t *testing.T) {
	year := holiday.RolloverYear(generic.NewTimePoint(2026, time.April, 5))

	assert.Equal(t, "2026-04-06", year.Start.String())
	assert.Equal(t, "2027-04-05", year.End.String())
}

func TestAggregateUsage(t *testing.T) {
	// GIVEN two holidays in the year, one outside it and an ordinary shift
	year := taxYear2025()
	at := time.Date(2025, time.July, 1, 8, 0, 0, 0, time.UTC)
	shifts := []holiday.ShiftRecord{
		shiftAt("h1", "s-1", at, 12, holiday.ShiftHoliday),
		shiftAt("h2", "s-1", at.AddDate(0, 0, 1), 8, holiday.ShiftHoliday),
		shiftAt("h3", "s-1", at.AddDate(1, 0, 0), 12, holiday.ShiftHoliday),
		shiftAt("d1", "s-1", at.AddDate(0, 0, 2), 12, holiday.ShiftDay),
	}

	// WHEN
	u := holiday.AggregateUsage(year, shifts)

	// THEN one day per holiday shift, hours by length
	assert.True(t, u.Days.Value.Equal(decimal.NewFromInt(2)), "days %s", u.Days)
	assert.True(t, u.Hours.Value.Equal(decimal.NewFromInt(20)), "hours %s", u.Hours)
	assert.Equal(t, generic.UnitHours, u.Hours.Unit)

	// Pure sum: same answer again
	again := holiday.AggregateUsage(year, shifts)
	assert.True(t, again.Days.Equal(u.Days))
	assert.True(t, again.Hours.Equal(u.Hours))
}

func TestShiftHours(t *testing.T) {
	start := time.Date(2025, time.July, 1, 20, 0, 0, 0, time.UTC)
	night := holiday.ShiftRecord{Start: start, End: start.Add(10*time.Hour + 30*time.Minute)}
	inverted := holiday.ShiftRecord{Start: start, End: start.Add(-time.Hour)}

	assert.True(t, night.Hours().Equal(dec("10.5")))
	assert.True(t, inverted.Hours().IsZero())
}
