/*
dispatcher.go - Recalculation dispatcher

PURPOSE:
  Keeps entitlement rows consistent with the writes that feed them. Every
  engine mutation describes itself as an Event; the dispatcher decides which
  staff members need a full recalculation or only a usage refresh and runs
  them inside the mutation's transaction.

DECISION TABLE:
  Event                                     Recalculate  Refresh usage
  employment start/end changed              yes          (included)
  contracted hours changed                  yes          (included)
  active status changed, now active         yes          (included)
  active status changed, now inactive       current-year row deleted
  shift write, zero-hours staff             yes          (included)
  shift write, fixed-hours staff, overtime  yes          (included)
  shift write, HOLIDAY before or after      -            yes

  "Overtime" for a fixed-hours shift write means: the inserted or deleted
  shift is overtime, the overtime flag changed, or an overtime shift's
  times changed.

  Any other event for an inactive staff member is skipped.

RE-ENTRANCY:
  Recalculation reads shifts and the ledger and writes only entitlement
  rows, so it never produces another Event.

SEE ALSO:
  - calculator.go: The pure entitlement formula
  - usage.go:      Holiday taken
  - rollover.go:   Bulk creation of next year's rows
*/
package holiday

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/holiday-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// EVENTS
// =============================================================================

type EventKind string

const (
	EventEmploymentChanged EventKind = "employment_changed"
	EventHoursChanged      EventKind = "hours_changed"
	EventStatusChanged     EventKind = "status_changed"
	EventShiftWritten      EventKind = "shift_written"
)

// Event is one domain mutation. For shift writes Before is nil on insert and
// After is nil on delete.
type Event struct {
	Kind    EventKind
	StaffID StaffID
	Before  *ShiftRecord
	After   *ShiftRecord

	// EmploymentEnd overrides the stored end date for this recalculation.
	EmploymentEnd *generic.TimePoint
}

// EventForCategory maps an applied ledger category to its event, if any.
func EventForCategory(c ChangeCategory) (EventKind, bool) {
	switch c {
	case ChangeEmploymentStart, ChangeEmploymentEnd:
		return EventEmploymentChanged, true
	case ChangeContractedHours:
		return EventHoursChanged, true
	case ChangeActiveStatus:
		return EventStatusChanged, true
	}
	return "", false
}

// Action is what the dispatcher decided for one staff member.
type Action struct {
	StaffID      StaffID
	Recalculate  bool
	RefreshUsage bool
}

func (a Action) None() bool { return !a.Recalculate && !a.RefreshUsage }

// Plan applies the decision table to one staff member. zeroHours is the
// staff member's contract type at dispatch time.
func Plan(ev Event, staffID StaffID, zeroHours bool) Action {
	a := Action{StaffID: staffID}

	if ev.Kind != EventShiftWritten {
		a.Recalculate = true
		return a
	}

	before, after := shiftsFor(ev, staffID)
	if before == nil && after == nil {
		return a
	}

	if zeroHours {
		a.Recalculate = true
	} else {
		a.Recalculate = overtimeRelevant(before, after)
	}
	a.RefreshUsage = (before != nil && before.IsHoliday()) || (after != nil && after.IsHoliday())
	return a
}

// shiftsFor narrows a shift write to the rows owned by staffID. A shift
// moved between staff is a delete for the old owner and an insert for the
// new one.
func shiftsFor(ev Event, staffID StaffID) (before, after *ShiftRecord) {
	if ev.Before != nil && ev.Before.StaffID == staffID {
		before = ev.Before
	}
	if ev.After != nil && ev.After.StaffID == staffID {
		after = ev.After
	}
	return before, after
}

func overtimeRelevant(before, after *ShiftRecord) bool {
	switch {
	case before == nil:
		return after.Overtime
	case after == nil:
		return before.Overtime
	case before.Overtime != after.Overtime:
		return true
	default:
		return after.Overtime && (!before.Start.Equal(after.Start) || !before.End.Equal(after.End) || before.Type != after.Type)
	}
}

// staffIDs lists the staff an event touches, without duplicates.
func (ev Event) staffIDs() []StaffID {
	var ids []StaffID
	add := func(id StaffID) {
		if id == "" {
			return
		}
		for _, seen := range ids {
			if seen == id {
				return
			}
		}
		ids = append(ids, id)
	}
	add(ev.StaffID)
	if ev.Before != nil {
		add(ev.Before.StaffID)
	}
	if ev.After != nil {
		add(ev.After.StaffID)
	}
	return ids
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher runs recalculations against the Store of the current transaction.
type Dispatcher struct {
	policy Policy
	clock  generic.Clock
	logger *zap.Logger
}

func NewDispatcher(policy Policy, clock generic.Clock, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{policy: policy, clock: clock, logger: logger}
}

// Dispatch plans and runs the work for ev. Inactive staff are skipped,
// except that a status change to inactive releases their current-year row.
// A missing staff member aborts the dispatch, and with it the mutation.
func (d *Dispatcher) Dispatch(ctx context.Context, s Store, ev Event) ([]Action, error) {
	var done []Action

	for _, id := range ev.staffIDs() {
		staff, err := s.GetStaff(ctx, id)
		if err != nil {
			return nil, err
		}
		if !staff.Active {
			if ev.Kind == EventStatusChanged {
				if err := d.releaseRow(ctx, s, id); err != nil {
					return nil, fmt.Errorf("dispatch %s for %s: %w", ev.Kind, id, err)
				}
			}
			d.logger.Debug("skipping inactive staff", zap.String("staff", string(id)), zap.String("event", string(ev.Kind)))
			continue
		}

		action := Plan(ev, id, staff.IsZeroHours())
		if action.None() {
			continue
		}

		switch {
		case action.Recalculate:
			_, err = d.Recalculate(ctx, s, id, ev.EmploymentEnd)
		case action.RefreshUsage:
			_, err = d.RefreshUsage(ctx, s, id)
		}
		if err != nil {
			return nil, fmt.Errorf("dispatch %s for %s: %w", ev.Kind, id, err)
		}

		d.logger.Debug("dispatched",
			zap.String("staff", string(id)),
			zap.String("event", string(ev.Kind)),
			zap.Bool("recalculate", action.Recalculate),
			zap.Bool("usage", action.RefreshUsage),
		)
		done = append(done, action)
	}
	return done, nil
}

// CurrentYear resolves the holiday year for the dispatcher's clock.
func (d *Dispatcher) CurrentYear(ctx context.Context, s ShiftStore) (generic.Period, error) {
	return resolveYear(ctx, s, d.policy.Year, generic.DateOf(d.clock()))
}

// Recalculate computes the current year's entitlement for one staff member,
// upserts the row and refreshes its usage.
func (d *Dispatcher) Recalculate(ctx context.Context, s Store, staffID StaffID, endOverride *generic.TimePoint) (*Entitlement, error) {
	if err := s.LockStaff(ctx, staffID); err != nil {
		return nil, err
	}
	staff, err := s.GetStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	year, err := d.CurrentYear(ctx, s)
	if err != nil {
		return nil, err
	}

	shifts, err := d.yearShifts(ctx, s, staffID, year)
	if err != nil {
		return nil, err
	}
	row, err := d.entitlementFor(ctx, s, *staff, year, endOverride, shifts)
	if err != nil {
		return nil, err
	}
	if err := d.upsert(ctx, s, row); err != nil {
		return nil, err
	}
	if err := d.writeUsage(ctx, s, staffID, year, shifts); err != nil {
		return nil, err
	}
	return s.GetEntitlement(ctx, staffID, year.Start)
}

// releaseRow deletes a deactivated staff member's current-year row so the
// year never holds more rows than there are active staff. Reactivation
// rebuilds it from the shifts.
func (d *Dispatcher) releaseRow(ctx context.Context, s Store, staffID StaffID) error {
	if err := s.LockStaff(ctx, staffID); err != nil {
		return err
	}
	year, err := d.CurrentYear(ctx, s)
	if err != nil {
		return err
	}

	err = s.DeleteEntitlement(ctx, staffID, year.Start)
	switch {
	case err == nil:
		d.logger.Info("entitlement released",
			zap.String("staff", string(staffID)),
			zap.Stringer("yearStart", year.Start),
		)
		return nil
	case generic.IsNotFound(err):
		return nil
	default:
		return fmt.Errorf("failed to release entitlement for %s: %w", staffID, err)
	}
}

// RefreshUsage rewrites only the taken figures of the current year's row.
// A missing row is created by a full recalculation.
func (d *Dispatcher) RefreshUsage(ctx context.Context, s Store, staffID StaffID) (*Entitlement, error) {
	if err := s.LockStaff(ctx, staffID); err != nil {
		return nil, err
	}
	if _, err := s.GetStaff(ctx, staffID); err != nil {
		return nil, err
	}
	year, err := d.CurrentYear(ctx, s)
	if err != nil {
		return nil, err
	}

	if _, err := s.GetEntitlement(ctx, staffID, year.Start); err != nil {
		if generic.IsNotFound(err) {
			return d.Recalculate(ctx, s, staffID, nil)
		}
		return nil, err
	}

	shifts, err := d.yearShifts(ctx, s, staffID, year)
	if err != nil {
		return nil, err
	}
	if err := d.writeUsage(ctx, s, staffID, year, shifts); err != nil {
		return nil, err
	}
	return s.GetEntitlement(ctx, staffID, year.Start)
}

// entitlementFor runs the calculator. Taken figures are left at zero.
func (d *Dispatcher) entitlementFor(ctx context.Context, s ChangeStore, staff StaffMember, year generic.Period, endOverride *generic.TimePoint, shifts []ShiftRecord) (Entitlement, error) {
	now := d.clock()
	changes, err := s.ListChanges(ctx, ChangeFilter{
		StaffID:     staff.ID,
		Category:    ChangeContractedHours,
		EffectiveBy: &now,
	})
	if err != nil {
		return Entitlement{}, fmt.Errorf("failed to load hours changes: %w", err)
	}

	calc := d.policy.Calculate(CalculationInput{
		Staff:         staff,
		Year:          year,
		EmploymentEnd: endOverride,
		Shifts:        shifts,
		HoursChanges:  changes,
	})

	return Entitlement{
		StaffID:          staff.ID,
		YearStart:        year.Start,
		YearEnd:          year.End,
		ContractedHours:  staff.ContractedHours,
		EntitlementDays:  calc.Days,
		EntitlementHours: calc.Hours,
		DaysTaken:        generic.ZeroAmount(generic.UnitDays),
		HoursTaken:       generic.ZeroAmount(generic.UnitHours),
		ZeroHours:        calc.ZeroHours,
	}, nil
}

// upsert writes row, checking the row-count ceiling before an insert.
func (d *Dispatcher) upsert(ctx context.Context, s Store, row Entitlement) error {
	_, err := s.GetEntitlement(ctx, row.StaffID, row.YearStart)
	switch {
	case err == nil:
	case generic.IsNotFound(err):
		if err := checkCapacity(ctx, s, row.YearStart); err != nil {
			return err
		}
	default:
		return err
	}

	created, err := s.UpsertEntitlement(ctx, row)
	if err != nil {
		return fmt.Errorf("failed to save entitlement for %s: %w", row.StaffID, err)
	}
	if created {
		d.logger.Info("entitlement created",
			zap.String("staff", string(row.StaffID)),
			zap.Stringer("yearStart", row.YearStart),
			zap.Stringer("days", row.EntitlementDays),
		)
	}
	return nil
}

// checkCapacity rejects a new row when the year already holds one row per
// active staff member.
func checkCapacity(ctx context.Context, s Store, yearStart generic.TimePoint) error {
	rows, err := s.CountEntitlements(ctx, yearStart)
	if err != nil {
		return fmt.Errorf("failed to count entitlements: %w", err)
	}
	active, err := s.CountActiveStaff(ctx)
	if err != nil {
		return fmt.Errorf("failed to count active staff: %w", err)
	}
	if rows+1 > active {
		return generic.NewValidation("entitlement_count", "yearStart",
			"year %s already has %d rows for %d active staff", yearStart, rows, active)
	}
	return nil
}

func (d *Dispatcher) writeUsage(ctx context.Context, s EntitlementStore, staffID StaffID, year generic.Period, shifts []ShiftRecord) error {
	u := AggregateUsage(year, shifts)
	if err := s.SetUsage(ctx, staffID, year.Start, u.Days.Value, u.Hours.Value); err != nil {
		return fmt.Errorf("failed to write usage for %s: %w", staffID, err)
	}
	return nil
}

func (d *Dispatcher) yearShifts(ctx context.Context, s ShiftStore, staffID StaffID, year generic.Period) ([]ShiftRecord, error) {
	from, to := yearBounds(year)
	shifts, err := s.ShiftsInRange(ctx, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load shifts for %s: %w", staffID, err)
	}
	return shifts, nil
}

// isValidation reports whether err is a rejected input rather than a fault.
func isValidation(err error) bool {
	return errors.Is(err, generic.ErrValidation)
}
