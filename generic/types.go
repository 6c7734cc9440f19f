/*
Package generic provides the domain-agnostic building blocks of the engine.

PURPOSE:
  Quantities, calendar dates, annual periods, accrual modes and the error
  taxonomy. Nothing in here knows about staff, shifts or holiday rules;
  the holiday package composes these pieces into the entitlement engine.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 11.2 days, 134.4 hours)
  - Unit:   Days or hours

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so (H/12) x 5.6 is exact for every H
  2. No implicit rounding: rounding is a presentation concern
  3. Value semantics: every operation returns a new Amount

USAGE:
  days := generic.NewAmount(11.2, generic.UnitDays)
  left := days.Sub(generic.NewAmount(3, generic.UnitDays))

SEE ALSO:
  - time.go:   TimePoint (calendar dates)
  - period.go: Period and anniversary-year configuration
  - errors.go: NotFound / Validation / DataIntegrity errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit (always time-based for this system)
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func ZeroAmount(unit Unit) Amount { return Amount{Value: decimal.Zero, Unit: unit} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) Equal(b Amount) bool       { return a.Unit == b.Unit && a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) String() string            { return a.Value.String() }

// Float64 is for display and logging only.
func (a Amount) Float64() float64 {
	f, _ := a.Value.Float64()
	return f
}

// Convert changes unit using a fixed hours-per-day ratio.
func (a Amount) Convert(to Unit, hoursPerDay decimal.Decimal) Amount {
	switch {
	case a.Unit == to:
		return a
	case a.Unit == UnitDays && to == UnitHours:
		return Amount{Value: a.Value.Mul(hoursPerDay), Unit: UnitHours}
	default:
		return Amount{Value: a.Value.Div(hoursPerDay), Unit: UnitDays}
	}
}
