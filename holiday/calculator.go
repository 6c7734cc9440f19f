/*
calculator.go - Statutory entitlement from contracted hours or hours worked

PURPOSE:
  Pure functions that turn a staff member, a holiday year and the rows that
  feed them (shifts, contracted-hours changes) into an entitlement figure.
  Nothing here reads or writes a store.

MODES:
  Fixed hours (ContractedHours > 0):
    base days = (hours per week / 12) x 5.6
    pro-rata  = months of employment in the year / 12, months of 30.44 days
    overtime  = overtime shift hours in the year / 12, added on top
    24h/week, full year -> 11.2 days, 134.4 hours

  Zero hours (ContractedHours == 0):
    hours worked (non-HOLIDAY shifts in the employment window) x 5.6/(52-5.6)
    1950h worked -> 1950 x 0.1207 / 12 ~ 19.6 days

MID-YEAR HOURS CHANGES:
  ProRataLatestChange: the most recent contracted-hours change inside the
    year becomes the start of the pro-rata window.
  ProRataSegmented: each stretch between changes earns at its own hours.

NO ROUNDING:
  Fractional days are valid results. Rounding is left to whoever displays them.

SEE ALSO:
  - generic/accrual.go: ProRataFactor and the AccrualSchedule interface
  - dispatcher.go:      Loads inputs and persists the result
*/
package holiday

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
)

// =============================================================================
// ACCRUAL SCHEDULES
// =============================================================================

// FixedHoursAccrual earns (hours/12) x 5.6 days per full year.
type FixedHoursAccrual struct {
	HoursPerWeek decimal.Decimal
	Policy       Policy
}

func (a FixedHoursAccrual) Accrue(year, window generic.Period) generic.Amount {
	base := a.HoursPerWeek.Div(a.Policy.HoursPerDay).Mul(a.Policy.StatutoryWeeks)
	factor := generic.ProRataFactor(generic.ProrateMonths, year, window, a.Policy.DaysPerMonth)
	return generic.NewAmountFromDecimal(base.Mul(factor), generic.UnitDays)
}

// IsDeterministic returns true - the year's figure is known from the contract.
func (a FixedHoursAccrual) IsDeterministic() bool { return true }

// ZeroHoursAccrual earns a fixed share of the hours actually worked.
type ZeroHoursAccrual struct {
	Shifts []ShiftRecord
	Policy Policy
}

func (a ZeroHoursAccrual) Accrue(year, window generic.Period) generic.Amount {
	scope := window.Intersect(year)
	worked := HoursWorked(a.Shifts, scope)
	days := worked.Mul(a.Policy.ZeroHoursRatio()).Div(a.Policy.HoursPerDay)
	if a.Policy.LegacyZeroHoursWindowFactor && !scope.Covers(year) {
		days = days.Mul(generic.ProRataFactor(generic.ProrateDays, year, scope, a.Policy.DaysPerMonth))
	}
	return generic.NewAmountFromDecimal(days, generic.UnitDays)
}

// IsDeterministic returns false - future hours worked are unknown.
func (a ZeroHoursAccrual) IsDeterministic() bool { return false }

var (
	_ generic.AccrualSchedule = FixedHoursAccrual{}
	_ generic.AccrualSchedule = ZeroHoursAccrual{}
)

// =============================================================================
// CALCULATION
// =============================================================================

// CalculationInput is everything the calculator needs for one staff/year.
type CalculationInput struct {
	Staff StaffMember
	Year  generic.Period

	// EmploymentEnd replaces Staff.EmploymentEnd when set.
	EmploymentEnd *generic.TimePoint

	// Shifts are the staff member's shifts starting inside Year.
	Shifts []ShiftRecord

	// HoursChanges are applied contracted_hours ledger entries, any order.
	HoursChanges []ChangeEntry
}

// Calculation is the calculator's output with its working.
type Calculation struct {
	Year          generic.Period
	Window        generic.Period // employment window clipped to the year
	ZeroHours     bool
	ProRata       decimal.Decimal
	HoursWorked   decimal.Decimal // zero-hours only
	OvertimeHours decimal.Decimal // fixed-hours only
	BaseDays      generic.Amount
	OvertimeDays  generic.Amount
	Days          generic.Amount
	Hours         generic.Amount
}

// Calculate computes the statutory entitlement. It never fails: an empty
// employment window simply earns nothing.
func (p Policy) Calculate(in CalculationInput) Calculation {
	window := in.Staff.Employment(in.EmploymentEnd).Intersect(in.Year)
	calc := Calculation{
		Year:          in.Year,
		Window:        window,
		ZeroHours:     in.Staff.IsZeroHours(),
		ProRata:       decimal.Zero,
		HoursWorked:   decimal.Zero,
		OvertimeHours: decimal.Zero,
		BaseDays:      generic.ZeroAmount(generic.UnitDays),
		OvertimeDays:  generic.ZeroAmount(generic.UnitDays),
	}

	if !window.IsEmpty() {
		if calc.ZeroHours {
			p.zeroHours(in, &calc)
		} else {
			p.fixedHours(in, &calc)
		}
	}

	calc.Days = calc.BaseDays.Add(calc.OvertimeDays)
	calc.Hours = calc.Days.Convert(generic.UnitHours, p.HoursPerDay)
	return calc
}

func (p Policy) zeroHours(in CalculationInput, calc *Calculation) {
	accrual := ZeroHoursAccrual{Shifts: in.Shifts, Policy: p}
	calc.HoursWorked = HoursWorked(in.Shifts, calc.Window)
	calc.BaseDays = accrual.Accrue(in.Year, calc.Window)
	calc.ProRata = generic.ProRataFactor(generic.ProrateDays, in.Year, calc.Window, p.DaysPerMonth)
}

func (p Policy) fixedHours(in CalculationInput, calc *Calculation) {
	changes := changesInYear(in.HoursChanges, in.Year)

	switch {
	case len(changes) == 0:
		accrual := FixedHoursAccrual{HoursPerWeek: in.Staff.ContractedHours, Policy: p}
		calc.BaseDays = accrual.Accrue(in.Year, calc.Window)
		calc.ProRata = generic.ProRataFactor(generic.ProrateMonths, in.Year, calc.Window, p.DaysPerMonth)

	case p.ProRataMode == ProRataSegmented:
		calc.BaseDays = p.segmented(in, changes, calc.Window)
		calc.ProRata = generic.ProRataFactor(generic.ProrateMonths, in.Year, calc.Window, p.DaysPerMonth)

	default:
		latest := changes[len(changes)-1]
		anchored := calc.Window
		anchored.Start = generic.MaxTimePoint(anchored.Start, generic.DateOf(latest.EffectiveFrom))
		accrual := FixedHoursAccrual{HoursPerWeek: in.Staff.ContractedHours, Policy: p}
		calc.BaseDays = accrual.Accrue(in.Year, anchored)
		calc.ProRata = generic.ProRataFactor(generic.ProrateMonths, in.Year, anchored, p.DaysPerMonth)
	}

	calc.OvertimeHours = OvertimeHours(in.Shifts, calc.Window)
	calc.OvertimeDays = generic.NewAmountFromDecimal(calc.OvertimeHours.Div(p.HoursPerDay), generic.UnitDays)
}

// segmented sums one accrual per stretch of constant contracted hours.
// The hours before the first change are that change's old value.
func (p Policy) segmented(in CalculationInput, changes []ChangeEntry, window generic.Period) generic.Amount {
	total := generic.ZeroAmount(generic.UnitDays)

	hours := parseHours(changes[0].OldValue, in.Staff.ContractedHours)
	start := in.Year.Start
	for _, c := range changes {
		cut := generic.DateOf(c.EffectiveFrom)
		seg := generic.Period{Start: start, End: cut.AddDays(-1)}.Intersect(window)
		if !seg.IsEmpty() {
			total = total.Add(FixedHoursAccrual{HoursPerWeek: hours, Policy: p}.Accrue(in.Year, seg))
		}
		hours = parseHours(c.NewValue, hours)
		start = cut
	}

	last := generic.Period{Start: start, End: in.Year.End}.Intersect(window)
	if !last.IsEmpty() {
		total = total.Add(FixedHoursAccrual{HoursPerWeek: in.Staff.ContractedHours, Policy: p}.Accrue(in.Year, last))
	}
	return total
}

// changesInYear keeps changes effective inside year, oldest first.
func changesInYear(changes []ChangeEntry, year generic.Period) []ChangeEntry {
	var out []ChangeEntry
	for _, c := range changes {
		if c.Category == ChangeContractedHours && year.ContainsInstant(c.EffectiveFrom) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveFrom.Before(out[j].EffectiveFrom)
	})
	return out
}

func parseHours(v string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return fallback
	}
	return d
}

// =============================================================================
// SHIFT SUMS
// =============================================================================

// HoursWorked sums non-HOLIDAY shifts starting inside window.
func HoursWorked(shifts []ShiftRecord, window generic.Period) decimal.Decimal {
	return sumHours(shifts, window, func(s ShiftRecord) bool { return !s.IsHoliday() })
}

// OvertimeHours sums overtime-flagged, non-HOLIDAY shifts starting inside window.
func OvertimeHours(shifts []ShiftRecord, window generic.Period) decimal.Decimal {
	return sumHours(shifts, window, func(s ShiftRecord) bool { return s.Overtime && !s.IsHoliday() })
}

func sumHours(shifts []ShiftRecord, window generic.Period, keep func(ShiftRecord) bool) decimal.Decimal {
	total := decimal.Zero
	if window.IsEmpty() {
		return total
	}
	for _, s := range shifts {
		if keep(s) && window.ContainsInstant(s.Start) {
			total = total.Add(s.Hours())
		}
	}
	return total
}

// yearBounds are the instants a year's shifts are loaded between.
func yearBounds(year generic.Period) (time.Time, time.Time) {
	return year.Start.StartOfDay(), year.End.EndOfDay()
}
