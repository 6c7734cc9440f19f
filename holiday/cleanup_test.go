package holiday_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

func staleRow(staff string, yearStart generic.TimePoint) holiday.Entitlement {
	year := generic.YearFrom(yearStart)
	return holiday.Entitlement{
		StaffID:          holiday.StaffID(staff),
		YearStart:        year.Start,
		YearEnd:          year.End,
		ContractedHours:  dec("24"),
		EntitlementDays:  generic.NewAmountFromDecimal(dec("11.2"), generic.UnitDays),
		EntitlementHours: generic.NewAmountFromDecimal(dec("134.4"), generic.UnitHours),
		DaysTaken:        generic.ZeroAmount(generic.UnitDays),
		HoursTaken:       generic.ZeroAmount(generic.UnitHours),
	}
}

func TestCleanup_RemovesOrphans(t *testing.T) {
	// GIVEN a row whose staff member does not exist
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	f.store.PutOrphan(staleRow("ghost", taxYear2025().Start))

	// WHEN
	report, err := f.engine.Cleanup(f.ctx, holiday.CleanupOptions{})

	// THEN the orphan is gone and the live row kept
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphansRemoved)
	assert.Equal(t, 1, report.Rows)
	assert.Equal(t, 0, report.SurplusRemoved)

	rows, err := f.engine.CurrentEntitlements(f.ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, holiday.StaffID("a"), rows[0].StaffID)
}

func TestCleanup_TrimsRowsOfInactiveStaff(t *testing.T) {
	// GIVEN a row for an inactive staff member written straight to the store
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	f.addStaff("b", "Bea", "24", false)
	_, err := f.store.UpsertEntitlement(f.ctx, staleRow("b", taxYear2025().Start))
	require.NoError(t, err)

	// WHEN
	report, err := f.engine.Cleanup(f.ctx, holiday.CleanupOptions{})

	// THEN the year holds no more rows than active staff
	require.NoError(t, err)
	assert.Equal(t, 1, report.ActiveStaff)
	assert.Equal(t, 1, report.SurplusRemoved)
	assert.Equal(t, 1, report.Rows)

	rows, err := f.engine.CurrentEntitlements(f.ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Len(t, f.entitlementsFor("a"), 1)
}

func TestCleanup_PruneOldYearsKeepsFuture(t *testing.T) {
	// GIVEN a row for last year and next year's rolled-over row
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	_, err := f.store.UpsertEntitlement(f.ctx, staleRow("a", generic.NewTimePoint(2024, time.April, 6)))
	require.NoError(t, err)
	_, err = f.engine.Rollover(f.ctx, generic.NewTimePoint(2026, time.April, 5))
	require.NoError(t, err)

	// WHEN pruning is off THEN nothing old is removed
	report, err := f.engine.Cleanup(f.ctx, holiday.CleanupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.OldRowsPruned)
	assert.Len(t, f.entitlementsFor("a"), 3)

	// WHEN pruning is on
	report, err = f.engine.Cleanup(f.ctx, holiday.CleanupOptions{PruneOldYears: true})

	// THEN only last year's row goes
	require.NoError(t, err)
	assert.Equal(t, 1, report.OldRowsPruned)
	rows := f.entitlementsFor("a")
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-04-06", rows[0].YearStart.String())
	assert.Equal(t, "2026-04-06", rows[1].YearStart.String())
}

func (f *fixture) entitlementsFor(id string) []holiday.Entitlement {
	f.t.Helper()
	rows, err := f.engine.Entitlements(f.ctx, holiday.EntitlementFilter{StaffID: holiday.StaffID(id)})
	require.NoError(f.t, err)
	return rows
}
