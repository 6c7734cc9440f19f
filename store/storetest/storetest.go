/*
Package storetest holds the behaviour every holiday.TxStore must share.

PURPOSE:
  The engine is written against holiday.TxStore and never checks which
  backend it runs on. Each store package runs Run from its own tests, so the
  memory, SQLite and PostgreSQL stores agree on ordering, upsert semantics,
  cascades and error kinds.

USAGE:
  func TestContract(t *testing.T) {
      storetest.Run(t, func(t *testing.T) holiday.TxStore {
          return newStore(t)
      })
  }

  Open must return an empty store. It is called once per subtest.

SEE ALSO:
  - holiday/store.go: Interface definitions
*/
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

// Open returns an empty store for one subtest.
type Open func(t *testing.T) holiday.TxStore

// Run executes the shared store tests against the stores returned by open.
func Run(t *testing.T, open Open) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s holiday.TxStore)
	}{
		{"StaffRoundTrip", testStaffRoundTrip},
		{"StaffDuplicateName", testStaffDuplicateName},
		{"StaffNotFound", testStaffNotFound},
		{"ListStaffOrderedByName", testListStaff},
		{"DeleteStaffCascades", testDeleteStaffCascades},
		{"ShiftsInRange", testShiftsInRange},
		{"SaveShiftReplaces", testSaveShiftReplaces},
		{"LatestYearEndMarker", testLatestYearEndMarker},
		{"ChangeFilters", testChangeFilters},
		{"AnnotateAndDeleteChange", testAnnotateAndDeleteChange},
		{"UpsertKeepsTaken", testUpsertKeepsTaken},
		{"SetUsageMissingRow", testSetUsageMissingRow},
		{"ListAndCountEntitlements", testListAndCountEntitlements},
		{"WithTxRollsBack", testWithTxRollsBack},
		{"WithTxCommits", testWithTxCommits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

// =============================================================================
// FIXTURES
// =============================================================================

var (
	yearStart = generic.NewTimePoint(2025, time.April, 6)
	yearEnd   = generic.NewTimePoint(2026, time.April, 5)
)

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2025, month, day, hour, 0, 0, 0, time.UTC)
}

func member(id, name string, active bool) holiday.StaffMember {
	return holiday.StaffMember{
		ID:              holiday.StaffID(id),
		Name:            name,
		Role:            holiday.RoleMember,
		Active:          active,
		ContractedHours: decimal.RequireFromString("24"),
		PayRate:         decimal.RequireFromString("11.5"),
		EmploymentStart: generic.NewTimePoint(2020, time.January, 1),
		Color:           "#336699",
	}
}

func insertStaff(t *testing.T, s holiday.Store, members ...holiday.StaffMember) {
	t.Helper()
	for _, m := range members {
		require.NoError(t, s.InsertStaff(context.Background(), m))
	}
}

func shift(id, staff string, start time.Time, typ holiday.ShiftType) holiday.ShiftRecord {
	return holiday.ShiftRecord{
		ID:      holiday.ShiftID(id),
		StaffID: holiday.StaffID(staff),
		Period:  1,
		Week:    2,
		Start:   start,
		End:     start.Add(8 * time.Hour),
		Type:    typ,
	}
}

func change(id, staff string, c holiday.ChangeCategory, effective, recorded time.Time) holiday.ChangeEntry {
	return holiday.ChangeEntry{
		ID:            holiday.ChangeID(id),
		StaffID:       holiday.StaffID(staff),
		Category:      c,
		OldValue:      "24",
		NewValue:      "30",
		EffectiveFrom: effective,
		RecordedAt:    recorded,
		Author:        "hr",
	}
}

func row(staff string, start generic.TimePoint) holiday.Entitlement {
	year := generic.YearFrom(start)
	return holiday.Entitlement{
		StaffID:          holiday.StaffID(staff),
		YearStart:        year.Start,
		YearEnd:          year.End,
		ContractedHours:  decimal.RequireFromString("24"),
		EntitlementDays:  generic.NewAmountFromDecimal(decimal.RequireFromString("11.2"), generic.UnitDays),
		EntitlementHours: generic.NewAmountFromDecimal(decimal.RequireFromString("134.4"), generic.UnitHours),
		DaysTaken:        generic.ZeroAmount(generic.UnitDays),
		HoursTaken:       generic.ZeroAmount(generic.UnitHours),
	}
}

func decEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// =============================================================================
// STAFF
// =============================================================================

func testStaffRoundTrip(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()

	// GIVEN a leader with an end date
	m := member("a", "Alex", true)
	m.Role = holiday.RoleLeader
	end := generic.NewTimePoint(2026, time.January, 31)
	m.EmploymentEnd = &end
	insertStaff(t, s, m)

	// WHEN
	got, err := s.GetStaff(ctx, "a")

	// THEN every field survives
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.Name)
	assert.Equal(t, holiday.RoleLeader, got.Role)
	assert.True(t, got.Active)
	decEqual(t, "24", got.ContractedHours)
	decEqual(t, "11.5", got.PayRate)
	assert.Equal(t, "2020-01-01", got.EmploymentStart.String())
	require.NotNil(t, got.EmploymentEnd)
	assert.Equal(t, "2026-01-31", got.EmploymentEnd.String())
	assert.Equal(t, "#336699", got.Color)

	// WHEN the end date is cleared and hours change
	got.EmploymentEnd = nil
	got.ContractedHours = decimal.RequireFromString("37.5")
	require.NoError(t, s.UpdateStaff(ctx, *got))

	// THEN
	again, err := s.GetStaff(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, again.EmploymentEnd)
	decEqual(t, "37.5", again.ContractedHours)
}

func testStaffDuplicateName(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true), member("b", "Bea", true))

	err := s.InsertStaff(ctx, member("c", "Alex", true))
	assert.ErrorIs(t, err, generic.ErrDuplicateName)

	renamed := member("b", "Alex", true)
	err = s.UpdateStaff(ctx, renamed)
	assert.ErrorIs(t, err, generic.ErrDuplicateName)
}

func testStaffNotFound(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()

	_, err := s.GetStaff(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	err = s.UpdateStaff(ctx, member("ghost", "Ghost", true))
	assert.ErrorIs(t, err, generic.ErrNotFound)

	err = s.DeleteStaff(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = s.GetShift(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = s.GetChange(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = s.GetEntitlement(ctx, "ghost", yearStart)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func testListStaff(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s,
		member("c", "Cal", true),
		member("a", "Alex", true),
		member("b", "Bea", false),
	)

	all, err := s.ListStaff(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Alex", "Bea", "Cal"}, []string{all[0].Name, all[1].Name, all[2].Name})

	active, err := s.ListStaff(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	n, err := s.CountActiveStaff(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testDeleteStaffCascades(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()

	// GIVEN a staff member with a shift, a ledger entry and a row
	insertStaff(t, s, member("a", "Alex", true), member("b", "Bea", true))
	require.NoError(t, s.SaveShift(ctx, shift("s1", "a", at(time.May, 1, 9), holiday.ShiftHoliday)))
	require.NoError(t, s.SaveShift(ctx, shift("s2", "b", at(time.May, 1, 9), holiday.ShiftDay)))
	require.NoError(t, s.InsertChange(ctx, change("c1", "a", holiday.ChangeContractedHours, at(time.May, 1, 0), at(time.May, 1, 0))))
	_, err := s.UpsertEntitlement(ctx, row("a", yearStart))
	require.NoError(t, err)

	// WHEN
	require.NoError(t, s.DeleteStaff(ctx, "a"))

	// THEN everything of theirs is gone and the other member is untouched
	_, err = s.GetShift(ctx, "s1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = s.GetChange(ctx, "c1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = s.GetEntitlement(ctx, "a", yearStart)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = s.GetShift(ctx, "s2")
	assert.NoError(t, err)

	orphans, err := s.OrphanedEntitlements(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

// =============================================================================
// SHIFTS
// =============================================================================

func testShiftsInRange(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true), member("b", "Bea", true))

	for _, sh := range []holiday.ShiftRecord{
		shift("late", "a", at(time.June, 30, 9), holiday.ShiftDay),
		shift("early", "a", at(time.June, 1, 9), holiday.ShiftHoliday),
		shift("before", "a", at(time.May, 31, 9), holiday.ShiftDay),
		shift("other", "b", at(time.June, 10, 9), holiday.ShiftDay),
	} {
		require.NoError(t, s.SaveShift(ctx, sh))
	}

	// WHEN the range is [June 1 09:00, June 30 09:00]
	got, err := s.ShiftsInRange(ctx, "a", at(time.June, 1, 9), at(time.June, 30, 9))

	// THEN both bounds are inclusive and order is by start
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, holiday.ShiftID("early"), got[0].ID)
	assert.Equal(t, holiday.ShiftID("late"), got[1].ID)
	assert.True(t, got[0].Start.Equal(at(time.June, 1, 9)))
	assert.True(t, got[0].End.Equal(at(time.June, 1, 17)))
	assert.Equal(t, holiday.ShiftHoliday, got[0].Type)
	assert.Equal(t, 1, got[0].Period)
	assert.Equal(t, 2, got[0].Week)
}

func testSaveShiftReplaces(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true))

	sh := shift("s1", "a", at(time.June, 1, 9), holiday.ShiftDay)
	require.NoError(t, s.SaveShift(ctx, sh))

	sh.Type = holiday.ShiftHoliday
	sh.Overtime = true
	sh.Notes = "swapped"
	require.NoError(t, s.SaveShift(ctx, sh))

	got, err := s.GetShift(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, holiday.ShiftHoliday, got.Type)
	assert.True(t, got.Overtime)
	assert.Equal(t, "swapped", got.Notes)

	require.NoError(t, s.DeleteShift(ctx, "s1"))
	assert.ErrorIs(t, s.DeleteShift(ctx, "s1"), generic.ErrNotFound)
}

func testLatestYearEndMarker(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true))

	// GIVEN no markers
	got, err := s.LatestYearEndMarker(ctx, at(time.December, 31, 0))
	require.NoError(t, err)
	assert.Nil(t, got)

	// GIVEN two markers and an unflagged shift
	for _, sh := range []holiday.ShiftRecord{
		shift("m1", "a", at(time.March, 31, 9), holiday.ShiftDay),
		shift("m2", "a", at(time.September, 30, 9), holiday.ShiftDay),
		shift("plain", "a", at(time.June, 30, 9), holiday.ShiftDay),
	} {
		sh.YearEnd = sh.ID != "plain"
		require.NoError(t, s.SaveShift(ctx, sh))
	}

	// WHEN the cut-off sits between the markers
	got, err = s.LatestYearEndMarker(ctx, at(time.July, 1, 0))

	// THEN the earlier marker is returned
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(at(time.March, 31, 9)))

	// WHEN the cut-off is the marker's own start THEN it counts
	got, err = s.LatestYearEndMarker(ctx, at(time.September, 30, 9))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(at(time.September, 30, 9)))
}

// =============================================================================
// CHANGE LEDGER
// =============================================================================

func testChangeFilters(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true), member("b", "Bea", true))

	recorded := at(time.June, 1, 12)
	for _, c := range []holiday.ChangeEntry{
		change("c3", "a", holiday.ChangeContractedHours, at(time.July, 1, 0), recorded),
		change("c1", "a", holiday.ChangeContractedHours, at(time.May, 1, 0), recorded),
		change("c2", "a", holiday.ChangePayRate, at(time.May, 1, 0), at(time.June, 2, 0)),
		change("c4", "b", holiday.ChangeContractedHours, at(time.May, 2, 0), recorded),
	} {
		require.NoError(t, s.InsertChange(ctx, c))
	}

	ids := func(f holiday.ChangeFilter) []holiday.ChangeID {
		t.Helper()
		got, err := s.ListChanges(ctx, f)
		require.NoError(t, err)
		out := make([]holiday.ChangeID, 0, len(got))
		for _, c := range got {
			out = append(out, c.ID)
		}
		return out
	}

	// Effective date first, then recorded time
	assert.Equal(t, []holiday.ChangeID{"c1", "c2", "c4", "c3"}, ids(holiday.ChangeFilter{}))
	assert.Equal(t, []holiday.ChangeID{"c1", "c2", "c3"}, ids(holiday.ChangeFilter{StaffID: "a"}))
	assert.Equal(t, []holiday.ChangeID{"c1", "c3"},
		ids(holiday.ChangeFilter{StaffID: "a", Category: holiday.ChangeContractedHours}))

	cut := at(time.June, 1, 12)
	assert.Equal(t, []holiday.ChangeID{"c1", "c2", "c4"}, ids(holiday.ChangeFilter{EffectiveBy: &cut}))
	assert.Equal(t, []holiday.ChangeID{"c3"}, ids(holiday.ChangeFilter{FutureDated: true}))

	got, err := s.GetChange(ctx, "c3")
	require.NoError(t, err)
	assert.Equal(t, "24", got.OldValue)
	assert.Equal(t, "30", got.NewValue)
	assert.True(t, got.EffectiveFrom.Equal(at(time.July, 1, 0)))
	assert.True(t, got.RecordedAt.Equal(recorded))
}

func testAnnotateAndDeleteChange(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true))
	require.NoError(t, s.InsertChange(ctx, change("c1", "a", holiday.ChangeRole, at(time.May, 1, 0), at(time.May, 1, 0))))

	require.NoError(t, s.AnnotateChange(ctx, "c1", "payroll", "typo in contract"))
	got, err := s.GetChange(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "payroll", got.Author)
	assert.Equal(t, "typo in contract", got.Reason)
	assert.Equal(t, "30", got.NewValue)

	assert.ErrorIs(t, s.AnnotateChange(ctx, "nope", "x", "y"), generic.ErrNotFound)

	require.NoError(t, s.DeleteChange(ctx, "c1"))
	assert.ErrorIs(t, s.DeleteChange(ctx, "c1"), generic.ErrNotFound)
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

func testUpsertKeepsTaken(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true))

	// GIVEN a row with some holiday taken
	created, err := s.UpsertEntitlement(ctx, row("a", yearStart))
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, s.SetUsage(ctx, "a", yearStart,
		decimal.RequireFromString("2"), decimal.RequireFromString("16")))

	// WHEN the entitlement is recalculated with zeroed taken figures
	next := row("a", yearStart)
	next.ContractedHours = decimal.RequireFromString("30")
	next.EntitlementDays = generic.NewAmountFromDecimal(decimal.RequireFromString("14"), generic.UnitDays)
	next.EntitlementHours = generic.NewAmountFromDecimal(decimal.RequireFromString("168"), generic.UnitHours)
	created, err = s.UpsertEntitlement(ctx, next)

	// THEN the entitlement moves and usage stays
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetEntitlement(ctx, "a", yearStart)
	require.NoError(t, err)
	decEqual(t, "30", got.ContractedHours)
	decEqual(t, "14", got.EntitlementDays.Value)
	decEqual(t, "168", got.EntitlementHours.Value)
	decEqual(t, "2", got.DaysTaken.Value)
	decEqual(t, "16", got.HoursTaken.Value)
	assert.Equal(t, generic.UnitDays, got.DaysTaken.Unit)
	assert.Equal(t, generic.UnitHours, got.HoursTaken.Unit)
	assert.Equal(t, yearEnd.String(), got.YearEnd.String())
	decEqual(t, "12", got.RemainingDays().Value)
}

func testSetUsageMissingRow(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true))

	err := s.SetUsage(ctx, "a", yearStart, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	err = s.DeleteEntitlement(ctx, "a", yearStart)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func testListAndCountEntitlements(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true), member("b", "Bea", true))

	next := yearStart.AddYears(1)
	for _, e := range []holiday.Entitlement{
		row("b", yearStart),
		row("a", next),
		row("a", yearStart),
	} {
		_, err := s.UpsertEntitlement(ctx, e)
		require.NoError(t, err)
	}

	all, err := s.ListEntitlements(ctx, holiday.EntitlementFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, holiday.StaffID("a"), all[0].StaffID)
	assert.Equal(t, holiday.StaffID("b"), all[1].StaffID)
	assert.Equal(t, next.String(), all[2].YearStart.String())

	mine, err := s.ListEntitlements(ctx, holiday.EntitlementFilter{StaffID: "a"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	start := yearStart
	thisYear, err := s.ListEntitlements(ctx, holiday.EntitlementFilter{YearStart: &start})
	require.NoError(t, err)
	assert.Len(t, thisYear, 2)

	n, err := s.CountEntitlements(ctx, yearStart)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.DeleteEntitlement(ctx, "b", yearStart))
	n, err = s.CountEntitlements(ctx, yearStart)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

var errAbort = errors.New("abort")

func testWithTxRollsBack(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true))

	// WHEN a transaction writes and then fails
	err := s.WithTx(ctx, func(tx holiday.Store) error {
		if err := tx.InsertStaff(ctx, member("b", "Bea", true)); err != nil {
			return err
		}
		if _, err := tx.UpsertEntitlement(ctx, row("a", yearStart)); err != nil {
			return err
		}
		return errAbort
	})

	// THEN the error is returned unchanged and no write survives
	assert.ErrorIs(t, err, errAbort)

	_, err = s.GetStaff(ctx, "b")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = s.GetEntitlement(ctx, "a", yearStart)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func testWithTxCommits(t *testing.T, s holiday.TxStore) {
	ctx := context.Background()
	insertStaff(t, s, member("a", "Alex", true))

	err := s.WithTx(ctx, func(tx holiday.Store) error {
		if err := tx.LockStaff(ctx, "a"); err != nil {
			return err
		}
		_, err := tx.UpsertEntitlement(ctx, row("a", yearStart))
		return err
	})
	require.NoError(t, err)

	got, err := s.GetEntitlement(ctx, "a", yearStart)
	require.NoError(t, err)
	decEqual(t, "11.2", got.EntitlementDays.Value)
}
