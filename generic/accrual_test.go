package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/holiday-engine/generic"
)

func TestProRataFactor_FullYearIsExactlyOne(t *testing.T) {
	// GIVEN employment that spans the whole holiday year and beyond
	year := generic.YearFrom(date(2025, time.April, 6))
	window := generic.Period{Start: date(2020, time.January, 1), End: date(2030, time.January, 1)}

	// WHEN prorating by months and by days
	byMonths := generic.ProRataFactor(generic.ProrateMonths, year, window, generic.DefaultDaysPerMonth)
	byDays := generic.ProRataFactor(generic.ProrateDays, year, window, generic.DefaultDaysPerMonth)

	// THEN both are exactly 1, not 365/365.28
	assert.True(t, byMonths.Equal(decimal.NewFromInt(1)), "months: %s", byMonths)
	assert.True(t, byDays.Equal(decimal.NewFromInt(1)), "days: %s", byDays)
}

func TestProRataFactor_PartialYearByMonths(t *testing.T) {
	// GIVEN a start leaving 270 days of the year
	year := generic.YearFrom(date(2025, time.April, 6))
	window := generic.Period{Start: year.End.AddDays(-269), End: year.End}

	// WHEN
	f := generic.ProRataFactor(generic.ProrateMonths, year, window, generic.DefaultDaysPerMonth)

	// THEN 270 / 30.44 / 12
	want := decimal.NewFromInt(270).Div(generic.DefaultDaysPerMonth).Div(decimal.NewFromInt(12))
	assert.True(t, f.Equal(want), "got %s want %s", f, want)
	assert.InDelta(t, 0.739, f.InexactFloat64(), 0.001)
}

func TestProRataFactor_PartialYearByDays(t *testing.T) {
	year := generic.YearFrom(date(2025, time.April, 6))
	window := generic.Period{Start: year.Start, End: year.Start.AddDays(72)}

	f := generic.ProRataFactor(generic.ProrateDays, year, window, generic.DefaultDaysPerMonth)

	assert.True(t, f.Equal(decimal.NewFromInt(73).Div(decimal.NewFromInt(365))))
}

func TestProRataFactor_NoOverlapIsZero(t *testing.T) {
	year := generic.YearFrom(date(2025, time.April, 6))
	window := generic.Period{Start: date(2024, time.January, 1), End: date(2024, time.June, 1)}

	f := generic.ProRataFactor(generic.ProrateMonths, year, window, generic.DefaultDaysPerMonth)

	assert.True(t, f.IsZero())
}

func TestProRataFactor_NeverExceedsOne(t *testing.T) {
	// 365 days in a short 30-day "month" model would exceed a year
	year := generic.YearFrom(date(2025, time.April, 6))
	window := generic.Period{Start: year.Start.AddDays(1), End: year.End}

	f := generic.ProRataFactor(generic.ProrateMonths, year, window, decimal.NewFromInt(28))

	assert.True(t, f.Equal(decimal.NewFromInt(1)))
}

func TestAmount_Convert(t *testing.T) {
	hoursPerDay := decimal.NewFromInt(12)
	days := generic.NewAmountFromDecimal(decimal.RequireFromString("11.2"), generic.UnitDays)

	hours := days.Convert(generic.UnitHours, hoursPerDay)

	assert.Equal(t, generic.UnitHours, hours.Unit)
	assert.True(t, hours.Value.Equal(decimal.RequireFromString("134.4")), "got %s", hours)
}
