package generic

import "github.com/shopspring/decimal"

// =============================================================================
// ACCRUAL SCHEDULE - Interface for how entitlement accumulates
// =============================================================================

// AccrualSchedule computes what is earned for the part of a year covered by
// window. Implementations define the business logic (contracted hours,
// hours worked, ...).
type AccrualSchedule interface {
	// Accrue returns the entitlement earned inside window, a sub-range of year.
	Accrue(year, window Period) Amount

	// IsDeterministic returns true if the full-year figure is known up front.
	// - Deterministic: contracted hours (the year's entitlement is fixed)
	// - Non-deterministic: zero-hours (depends on hours actually worked)
	IsDeterministic() bool
}

// =============================================================================
// PRORATION
// =============================================================================

type ProrateMethod string

const (
	ProrateNone   ProrateMethod = "none"
	ProrateMonths ProrateMethod = "months" // overlap in fixed-length months / 12
	ProrateDays   ProrateMethod = "days"   // overlap days / days in year
)

// DefaultDaysPerMonth is the average Gregorian month used for pro-rata months.
var DefaultDaysPerMonth = decimal.RequireFromString("30.44")

var twelve = decimal.NewFromInt(12)

// ProRataFactor returns the fraction of year earned by window, clamped to [0, 1].
// A window that covers the whole year always yields exactly 1.
func ProRataFactor(method ProrateMethod, year, window Period, daysPerMonth decimal.Decimal) decimal.Decimal {
	overlap := window.Intersect(year)
	if overlap.IsEmpty() {
		return decimal.Zero
	}
	if method == ProrateNone || overlap.Covers(year) {
		return decimal.NewFromInt(1)
	}

	days := decimal.NewFromInt(int64(overlap.Days()))
	var factor decimal.Decimal
	switch method {
	case ProrateDays:
		factor = days.Div(decimal.NewFromInt(int64(year.Days())))
	default:
		if !daysPerMonth.IsPositive() {
			daysPerMonth = DefaultDaysPerMonth
		}
		factor = days.Div(daysPerMonth).Div(twelve)
	}
	return Clamp01(factor)
}

// Clamp01 limits d to [0, 1].
func Clamp01(d decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}
