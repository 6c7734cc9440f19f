package holiday_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func taxYear2025() generic.Period {
	return generic.YearFrom(generic.NewTimePoint(2025, time.April, 6))
}

func fixedStaff(hours string, start generic.TimePoint) holiday.StaffMember {
	return holiday.StaffMember{
		ID:              "s-1",
		Name:            "Alex",
		Role:            holiday.RoleMember,
		Active:          true,
		ContractedHours: dec(hours),
		EmploymentStart: start,
	}
}

func longServing(hours string) holiday.StaffMember {
	return fixedStaff(hours, generic.NewTimePoint(2020, time.January, 1))
}

func shiftAt(id string, staff holiday.StaffID, start time.Time, hours int, typ holiday.ShiftType) holiday.ShiftRecord {
	return holiday.ShiftRecord{
		ID:      holiday.ShiftID(id),
		StaffID: staff,
		Start:   start,
		End:     start.Add(time.Duration(hours) * time.Hour),
		Type:    typ,
	}
}

func assertDays(t *testing.T, want decimal.Decimal, got generic.Amount) {
	t.Helper()
	assert.Equal(t, generic.UnitDays, got.Unit)
	assert.True(t, got.Value.Equal(want), "want %s days, got %s", want, got.Value)
}

// =============================================================================
// FIXED HOURS
// =============================================================================

func TestCalculate_FullYear24Hours(t *testing.T) {
	// GIVEN 24 hours a week for the whole year
	policy := holiday.DefaultPolicy()
	year := taxYear2025()

	// WHEN
	calc := policy.Calculate(holiday.CalculationInput{Staff: longServing("24"), Year: year})

	// THEN (24/12) x 5.6 = 11.2 days = 134.4 hours
	assertDays(t, dec("11.2"), calc.Days)
	assert.True(t, calc.Hours.Value.Equal(dec("134.4")), "hours %s", calc.Hours)
	assert.Equal(t, generic.UnitHours, calc.Hours.Unit)
	assert.True(t, calc.ProRata.Equal(decimal.NewFromInt(1)))
	assert.False(t, calc.ZeroHours)
}

func TestCalculate_BaseIsHoursOverTwelveTimesWeeks(t *testing.T) {
	policy := holiday.DefaultPolicy()
	year := taxYear2025()

	for _, h := range []string{"6", "12", "30", "37.5", "40", "48"} {
		t.Run(h, func(t *testing.T) {
			calc := policy.Calculate(holiday.CalculationInput{Staff: longServing(h), Year: year})

			want := dec(h).Div(decimal.NewFromInt(12)).Mul(dec("5.6"))
			assertDays(t, want, calc.Days)
		})
	}
}

func TestCalculate_MidYearStarter(t *testing.T) {
	// GIVEN a 24h starter with 270 of 365 days of the year left
	policy := holiday.DefaultPolicy()
	year := taxYear2025()
	start := year.End.AddDays(-269)

	// WHEN
	calc := policy.Calculate(holiday.CalculationInput{Staff: fixedStaff("24", start), Year: year})

	// THEN roughly 11.2 x 270/365
	assert.Equal(t, 270, calc.Window.Days())
	assert.InDelta(t, 8.28, calc.Days.Float64(), 0.01)
	assert.True(t, calc.Days.LessThan(generic.NewAmount(11.2, generic.UnitDays)))
}

func TestCalculate_StrictlyMonotonicInHoursAndStart(t *testing.T) {
	policy := holiday.DefaultPolicy()
	year := taxYear2025()

	// More contracted hours earn strictly more
	prev := generic.ZeroAmount(generic.UnitDays)
	for h := 6; h <= 60; h += 6 {
		calc := policy.Calculate(holiday.CalculationInput{Staff: longServing(fmt.Sprint(h)), Year: year})
		assert.True(t, calc.Days.GreaterThan(prev), "%dh earned %s, not more than %dh", h, calc.Days, h-6)
		prev = calc.Days
	}

	// Each later start, and so a smaller overlap, earns strictly less
	prev = generic.NewAmount(1000, generic.UnitDays)
	for offset := 0; offset < 365; offset += 30 {
		calc := policy.Calculate(holiday.CalculationInput{
			Staff: fixedStaff("24", year.Start.AddDays(offset)),
			Year:  year,
		})
		assert.True(t, calc.Days.LessThan(prev), "start +%d earned %s, not less than %s", offset, calc.Days, prev)
		prev = calc.Days
	}
}

func TestCalculate_EmploymentEndedBeforeYear(t *testing.T) {
	policy := holiday.DefaultPolicy()
	staff := longServing("24")
	end := generic.NewTimePoint(2024, time.December, 31)
	staff.EmploymentEnd = &end

	calc := policy.Calculate(holiday.CalculationInput{Staff: staff, Year: taxYear2025()})

	assert.True(t, calc.Window.IsEmpty())
	assert.True(t, calc.Days.IsZero())
	assert.True(t, calc.Hours.IsZero())
}

func TestCalculate_EndOverrideReplacesStoredEnd(t *testing.T) {
	// GIVEN no stored end, but an override at the end of September
	policy := holiday.DefaultPolicy()
	year := taxYear2025()
	override := generic.NewTimePoint(2025, time.September, 30)

	// WHEN
	calc := policy.Calculate(holiday.CalculationInput{Staff: longServing("24"), Year: year, EmploymentEnd: &override})

	// THEN only Apr 6 - Sep 30 is earned
	want := holiday.FixedHoursAccrual{HoursPerWeek: dec("24"), Policy: policy}.
		Accrue(year, generic.Period{Start: year.Start, End: override})
	assertDays(t, want.Value, calc.Days)
	assert.Equal(t, 178, calc.Window.Days())
}

func TestCalculate_OvertimeAddsHoursOverTwelve(t *testing.T) {
	// GIVEN a full-year 24h contract with one 12h overtime shift, one
	// ordinary shift and an overtime-flagged holiday
	policy := holiday.DefaultPolicy()
	staff := longServing("24")
	at := time.Date(2025, time.May, 10, 8, 0, 0, 0, time.UTC)

	overtime := shiftAt("a", staff.ID, at, 12, holiday.ShiftDay)
	overtime.Overtime = true
	ordinary := shiftAt("b", staff.ID, at.AddDate(0, 0, 1), 12, holiday.ShiftDay)
	leave := shiftAt("c", staff.ID, at.AddDate(0, 0, 2), 12, holiday.ShiftHoliday)
	leave.Overtime = true

	// WHEN
	calc := policy.Calculate(holiday.CalculationInput{
		Staff:  staff,
		Year:   taxYear2025(),
		Shifts: []holiday.ShiftRecord{overtime, ordinary, leave},
	})

	// THEN one extra day
	assert.True(t, calc.OvertimeHours.Equal(decimal.NewFromInt(12)))
	assertDays(t, dec("12.2"), calc.Days)
}

// =============================================================================
// MID-YEAR HOURS CHANGES
// =============================================================================

func hoursChange(from, to string, effective time.Time) holiday.ChangeEntry {
	return holiday.ChangeEntry{
		ID:            "c-1",
		StaffID:       "s-1",
		Category:      holiday.ChangeContractedHours,
		OldValue:      from,
		NewValue:      to,
		EffectiveFrom: effective,
		RecordedAt:    effective,
	}
}

func TestCalculate_LatestChangeAnchorsWindow(t *testing.T) {
	// GIVEN hours raised from 24 to 36 on October 1
	policy := holiday.DefaultPolicy()
	year := taxYear2025()
	cut := generic.NewTimePoint(2025, time.October, 1)
	change := hoursChange("24", "36", cut.Time)

	// WHEN
	calc := policy.Calculate(holiday.CalculationInput{
		Staff:        longServing("36"),
		Year:         year,
		HoursChanges: []holiday.ChangeEntry{change},
	})

	// THEN only October onwards counts, at 36 hours
	want := holiday.FixedHoursAccrual{HoursPerWeek: dec("36"), Policy: policy}.
		Accrue(year, generic.Period{Start: cut, End: year.End})
	assertDays(t, want.Value, calc.Days)
}

func TestCalculate_SegmentedSumsEachStretch(t *testing.T) {
	// GIVEN the same change under segmented pro-rata
	policy := holiday.DefaultPolicy()
	policy.ProRataMode = holiday.ProRataSegmented
	year := taxYear2025()
	cut := generic.NewTimePoint(2025, time.October, 1)
	change := hoursChange("24", "36", cut.Time)

	// WHEN
	calc := policy.Calculate(holiday.CalculationInput{
		Staff:        longServing("36"),
		Year:         year,
		HoursChanges: []holiday.ChangeEntry{change},
	})

	// THEN 24h before the cut plus 36h after it
	before := holiday.FixedHoursAccrual{HoursPerWeek: dec("24"), Policy: policy}.
		Accrue(year, generic.Period{Start: year.Start, End: cut.AddDays(-1)})
	after := holiday.FixedHoursAccrual{HoursPerWeek: dec("36"), Policy: policy}.
		Accrue(year, generic.Period{Start: cut, End: year.End})
	assertDays(t, before.Add(after).Value, calc.Days)
	assert.True(t, calc.Days.GreaterThan(generic.NewAmount(11.2, generic.UnitDays)))
	assert.True(t, calc.Days.LessThan(generic.NewAmount(16.8, generic.UnitDays)))
}

func TestCalculate_ChangesOutsideYearIgnored(t *testing.T) {
	policy := holiday.DefaultPolicy()
	change := hoursChange("24", "36", time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC))

	calc := policy.Calculate(holiday.CalculationInput{
		Staff:        longServing("36"),
		Year:         taxYear2025(),
		HoursChanges: []holiday.ChangeEntry{change},
	})

	assertDays(t, dec("16.8"), calc.Days)
}

// =============================================================================
// ZERO HOURS
// =============================================================================

func TestCalculate_ZeroHours1950Hours(t *testing.T) {
	// GIVEN a zero-hours worker with 130 x 15h shifts in the year, plus a
	// holiday and a shift from last year that must not count
	policy := holiday.DefaultPolicy()
	staff := longServing("0")
	first := time.Date(2025, time.April, 7, 7, 0, 0, 0, time.UTC)

	var shifts []holiday.ShiftRecord
	for i := 0; i < 130; i++ {
		shifts = append(shifts, shiftAt(fmt.Sprintf("w%d", i), staff.ID, first.AddDate(0, 0, i), 15, holiday.ShiftLongDay))
	}
	shifts = append(shifts,
		shiftAt("h", staff.ID, first.AddDate(0, 0, 200), 12, holiday.ShiftHoliday),
		shiftAt("old", staff.ID, first.AddDate(-1, 0, 0), 12, holiday.ShiftDay),
	)

	// WHEN
	calc := policy.Calculate(holiday.CalculationInput{Staff: staff, Year: taxYear2025(), Shifts: shifts})

	// THEN 1950 x 5.6/46.4 / 12
	assert.True(t, calc.ZeroHours)
	assert.True(t, calc.HoursWorked.Equal(decimal.NewFromInt(1950)), "worked %s", calc.HoursWorked)
	want := decimal.NewFromInt(1950).Mul(policy.ZeroHoursRatio()).Div(policy.HoursPerDay)
	assertDays(t, want, calc.Days)
	assert.InDelta(t, 19.6, calc.Days.Float64(), 0.05)
}

func TestZeroHoursRatio(t *testing.T) {
	r := holiday.DefaultPolicy().ZeroHoursRatio()
	assert.InDelta(t, 0.1207, r.InexactFloat64(), 0.0001)
}

func TestCalculate_ZeroHoursOnlyCountsEmploymentWindow(t *testing.T) {
	// GIVEN shifts before the employment start
	policy := holiday.DefaultPolicy()
	start := generic.NewTimePoint(2025, time.June, 1)
	staff := fixedStaff("0", start)
	shifts := []holiday.ShiftRecord{
		shiftAt("before", staff.ID, time.Date(2025, time.May, 20, 8, 0, 0, 0, time.UTC), 12, holiday.ShiftDay),
		shiftAt("after", staff.ID, time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC), 12, holiday.ShiftDay),
	}

	// WHEN
	calc := policy.Calculate(holiday.CalculationInput{Staff: staff, Year: taxYear2025(), Shifts: shifts})

	// THEN only the shift after the start counts, with no extra window factor
	assert.True(t, calc.HoursWorked.Equal(decimal.NewFromInt(12)))
	want := decimal.NewFromInt(12).Mul(policy.ZeroHoursRatio()).Div(policy.HoursPerDay)
	assertDays(t, want, calc.Days)
}

func TestCalculate_ZeroHoursLegacyWindowFactor(t *testing.T) {
	policy := holiday.DefaultPolicy()
	policy.LegacyZeroHoursWindowFactor = true
	start := generic.NewTimePoint(2025, time.June, 1)
	staff := fixedStaff("0", start)
	shifts := []holiday.ShiftRecord{
		shiftAt("after", staff.ID, time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC), 12, holiday.ShiftDay),
	}

	calc := policy.Calculate(holiday.CalculationInput{Staff: staff, Year: taxYear2025(), Shifts: shifts})

	plain := decimal.NewFromInt(12).Mul(policy.ZeroHoursRatio()).Div(policy.HoursPerDay)
	assert.True(t, calc.Days.Value.LessThan(plain))
}
