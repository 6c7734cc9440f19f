// Package holiday implements statutory holiday entitlement for shift staff.
// It uses the generic primitives with UK pro-rata rules, a change ledger for
// staff attributes, and a dispatcher that keeps derived entitlement rows in
// step with the shift and staff writes that feed them.
package holiday

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
)

// =============================================================================
// STAFF
// =============================================================================

type StaffID string

type Role string

const (
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)

func (r Role) Valid() bool { return r == RoleLeader || r == RoleMember }

// StaffMember is the live state of an employee. Field edits go through the
// change ledger so every value has an effective date.
type StaffMember struct {
	ID              StaffID
	Name            string // unique display name (natural key)
	Role            Role
	Active          bool
	ContractedHours decimal.Decimal // per week, 0 = zero-hours contract
	PayRate         decimal.Decimal
	EmploymentStart generic.TimePoint
	EmploymentEnd   *generic.TimePoint
	Color           string
}

// IsZeroHours reports whether entitlement accrues from hours worked.
func (s StaffMember) IsZeroHours() bool {
	return s.ContractedHours.IsZero()
}

// Employment is the employment window, open-ended when there is no end date.
func (s StaffMember) Employment(endOverride *generic.TimePoint) generic.Period {
	end := s.EmploymentEnd
	if endOverride != nil {
		end = endOverride
	}
	p := generic.Period{Start: s.EmploymentStart, End: generic.NewTimePoint(9999, time.December, 31)}
	if p.Start.IsZero() {
		p.Start = generic.NewTimePoint(1, time.January, 1)
	}
	if end != nil && !end.IsZero() {
		p.End = *end
	}
	return p
}

// =============================================================================
// SHIFTS
// =============================================================================

type ShiftID string

type ShiftType string

const (
	ShiftDay     ShiftType = "DAY"
	ShiftNight   ShiftType = "NIGHT"
	ShiftLongDay ShiftType = "LONG_DAY"
	ShiftSleepIn ShiftType = "SLEEP_IN"
	ShiftHoliday ShiftType = "HOLIDAY"
	ShiftSSP     ShiftType = "SSP" // statutory sick pay
	ShiftCSP     ShiftType = "CSP" // company sick pay
)

// ShiftRecord is one assignment of a staff member on the rota.
type ShiftRecord struct {
	ID               ShiftID
	StaffID          StaffID
	Period           int // rota period number
	Week             int
	Start            time.Time
	End              time.Time
	Type             ShiftType
	Overtime         bool
	CallOut          bool
	Solo             bool
	Training         bool
	ShortNotice      bool
	PaymentPeriodEnd bool
	YearEnd          bool // marks the last day of the holiday year
	Notes            string
}

func (s ShiftRecord) IsHoliday() bool { return s.Type == ShiftHoliday }

// Hours is the shift length. Inverted times count as zero.
func (s ShiftRecord) Hours() decimal.Decimal {
	d := s.End.Sub(s.Start)
	if d <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(d / time.Second)).Div(decimal.NewFromInt(3600))
}

// Date is the calendar day the shift starts on.
func (s ShiftRecord) Date() generic.TimePoint { return generic.DateOf(s.Start) }

// =============================================================================
// CHANGE LEDGER
// =============================================================================

type ChangeID string

type ChangeCategory string

const (
	ChangeRole            ChangeCategory = "role"
	ChangePayRate         ChangeCategory = "pay_rate"
	ChangeContractedHours ChangeCategory = "contracted_hours"
	ChangeEmploymentStart ChangeCategory = "employment_start"
	ChangeEmploymentEnd   ChangeCategory = "employment_end"
	ChangeColor           ChangeCategory = "color"
	ChangeActiveStatus    ChangeCategory = "active_status"
)

// Categories lists every ledger category in a stable order.
var Categories = []ChangeCategory{
	ChangeRole, ChangePayRate, ChangeContractedHours, ChangeEmploymentStart,
	ChangeEmploymentEnd, ChangeColor, ChangeActiveStatus,
}

func (c ChangeCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// AffectsEntitlement is true for categories that feed the calculator.
func (c ChangeCategory) AffectsEntitlement() bool {
	switch c {
	case ChangeContractedHours, ChangeEmploymentStart, ChangeEmploymentEnd, ChangeActiveStatus:
		return true
	}
	return false
}

// ChangeEntry is an immutable, effective-dated edit of one staff attribute.
// Values are text so one table holds every attribute type.
type ChangeEntry struct {
	ID            ChangeID
	StaffID       StaffID
	Category      ChangeCategory
	OldValue      string
	NewValue      string
	EffectiveFrom time.Time
	RecordedAt    time.Time
	Author        string
	Reason        string
}

// IsPending reports whether the change takes effect after now.
func (c ChangeEntry) IsPending(now time.Time) bool { return c.EffectiveFrom.After(now) }

// ChangeRequest is the input to RecordChange.
type ChangeRequest struct {
	StaffID       StaffID        `validate:"required"`
	Category      ChangeCategory `validate:"required"`
	OldValue      string         // defaults to the live value
	NewValue      string
	EffectiveFrom time.Time // zero means now
	Author        string    `validate:"required"`
	Reason        string
}

// History splits a staff member's ledger at "now".
type History struct {
	Applied []ChangeEntry
	Pending []ChangeEntry
}

// RevertResult reports what an undo restored.
type RevertResult struct {
	Entry         ChangeEntry
	RevertedValue string // live value after the revert
	Applied       bool   // false when the reverted entry was still pending
}

// =============================================================================
// ENTITLEMENT
// =============================================================================

// Entitlement is the derived holiday allowance for one staff member and year.
// Remaining figures are always computed, never stored.
type Entitlement struct {
	StaffID          StaffID
	YearStart        generic.TimePoint
	YearEnd          generic.TimePoint
	ContractedHours  decimal.Decimal
	EntitlementDays  generic.Amount
	EntitlementHours generic.Amount
	DaysTaken        generic.Amount
	HoursTaken       generic.Amount
	ZeroHours        bool
}

// Year is the holiday year the row covers.
func (e Entitlement) Year() generic.Period {
	return generic.Period{Start: e.YearStart, End: e.YearEnd}
}

// RemainingDays may be negative when more holiday was booked than earned.
func (e Entitlement) RemainingDays() generic.Amount { return e.EntitlementDays.Sub(e.DaysTaken) }

// RemainingHours may be negative when more holiday was booked than earned.
func (e Entitlement) RemainingHours() generic.Amount { return e.EntitlementHours.Sub(e.HoursTaken) }

// EntitlementFilter selects rows for readers. Zero values match everything.
type EntitlementFilter struct {
	StaffID   StaffID
	YearStart *generic.TimePoint
}

// RolloverResult reports a year-end rollover.
type RolloverResult struct {
	Year    generic.Period
	Created int
	Skipped int
}
