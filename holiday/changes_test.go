package holiday_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

func hoursRequest(staff, value string, effective time.Time) holiday.ChangeRequest {
	return holiday.ChangeRequest{
		StaffID:       holiday.StaffID(staff),
		Category:      holiday.ChangeContractedHours,
		NewValue:      value,
		EffectiveFrom: effective,
		Author:        "hr",
		Reason:        "contract review",
	}
}

func (f *fixture) liveHours(id string) string {
	f.t.Helper()
	s, err := f.store.GetStaff(f.ctx, holiday.StaffID(id))
	require.NoError(f.t, err)
	return s.ContractedHours.String()
}

// =============================================================================
// RECORD
// =============================================================================

func TestRecordChange_NoOpRejected(t *testing.T) {
	// GIVEN a 24h staff member
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)

	// WHEN "24.0" is recorded
	_, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "24.0", time.Time{}))

	// THEN it is rejected and no entry is written
	assert.Equal(t, "no_op_change", validationCode(err))
	h, err := f.engine.ChangeHistory(f.ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, h.Applied)
	assert.Empty(t, h.Pending)
}

func TestRecordChange_InvalidInput(t *testing.T) {
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)

	_, err := f.engine.RecordChange(f.ctx, holiday.ChangeRequest{StaffID: "a", Category: holiday.ChangeRole, NewValue: "leader"})
	assert.Equal(t, "invalid_input", validationCode(err), "missing author")

	_, err = f.engine.RecordChange(f.ctx, holiday.ChangeRequest{StaffID: "a", Category: "shoe_size", NewValue: "9", Author: "hr"})
	assert.Equal(t, "invalid_category", validationCode(err))

	_, err = f.engine.RecordChange(f.ctx, hoursRequest("a", "-1", time.Time{}))
	assert.Equal(t, "invalid_value", validationCode(err))

	_, err = f.engine.RecordChange(f.ctx, hoursRequest("ghost", "30", time.Time{}))
	assert.True(t, generic.IsNotFound(err))
}

func TestRecordChange_AppliedHoursRecalculate(t *testing.T) {
	// GIVEN a full-year 24h staff member
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)

	// WHEN hours go to 36 from today
	entry, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "36", time.Time{}))

	// THEN the entry holds both values and the row is anchored on today
	require.NoError(t, err)
	assert.Equal(t, "24", entry.OldValue)
	assert.Equal(t, "36", entry.NewValue)
	assert.True(t, entry.EffectiveFrom.Equal(f.now))
	assert.Equal(t, "36", f.liveHours("a"))

	year := taxYear2025()
	want := holiday.FixedHoursAccrual{HoursPerWeek: dec("36"), Policy: f.engine.Policy()}.
		Accrue(year, generic.Period{Start: generic.DateOf(f.now), End: year.End})
	row := f.entitlement("a")
	assertDays(t, want.Value, row.EntitlementDays)
	assert.True(t, row.ContractedHours.Equal(dec("36")))
}

func TestRecordChange_NonEntitlementCategoryDoesNotTouchRow(t *testing.T) {
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	before := f.entitlement("a")

	_, err := f.engine.RecordChange(f.ctx, holiday.ChangeRequest{
		StaffID: "a", Category: holiday.ChangePayRate, NewValue: "12.60", Author: "payroll",
	})

	require.NoError(t, err)
	assert.True(t, f.entitlement("a").EntitlementDays.Equal(before.EntitlementDays))
	s, err := f.store.GetStaff(f.ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "12.6", s.PayRate.String())
}

// =============================================================================
// REVERT
// =============================================================================

func TestRevertChange_RestoresPreviousValue(t *testing.T) {
	// GIVEN hours raised from 24 to 36
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	entry, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "36", time.Time{}))
	require.NoError(t, err)

	// WHEN reverted
	res, err := f.engine.RevertChange(f.ctx, entry.ID)

	// THEN hours and entitlement are back and the entry is gone
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "24", res.RevertedValue)
	assert.Equal(t, "24", f.liveHours("a"))
	assertDays(t, dec("11.2"), f.entitlement("a").EntitlementDays)

	h, err := f.engine.ChangeHistory(f.ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, h.Applied)
}

func TestRevertChange_SupersededKeepsLiveValue(t *testing.T) {
	// GIVEN 24 -> 30, then an hour later 30 -> 36
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	first, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "30", time.Time{}))
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)
	_, err = f.engine.RecordChange(f.ctx, hoursRequest("a", "36", time.Time{}))
	require.NoError(t, err)

	// WHEN the first is reverted
	res, err := f.engine.RevertChange(f.ctx, first.ID)

	// THEN the later value stands
	require.NoError(t, err)
	assert.Equal(t, "36", res.RevertedValue)
	assert.Equal(t, "36", f.liveHours("a"))
}

func TestRecordChange_BackdatedEntryKeepsLaterValue(t *testing.T) {
	// GIVEN 24 -> 30 effective yesterday
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	later, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "30", f.now.Add(-24*time.Hour)))
	require.NoError(t, err)
	require.Equal(t, "30", f.liveHours("a"))

	// WHEN a change to 36 is recorded effective twenty days ago
	backdated, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "36", f.now.AddDate(0, 0, -20)))

	// THEN it is kept as history and the later entry still sets the live value
	require.NoError(t, err)
	assert.Equal(t, "24", backdated.OldValue)
	assert.Equal(t, "30", f.liveHours("a"))
	assert.True(t, f.entitlement("a").ContractedHours.Equal(dec("30")))

	h, err := f.engine.ChangeHistory(f.ctx, "a")
	require.NoError(t, err)
	require.Len(t, h.Applied, 2)
	assert.Equal(t, backdated.ID, h.Applied[0].ID)
	assert.Equal(t, later.ID, h.Applied[1].ID)
}

func TestRecordChange_BackdatedBetweenEntriesTakesPriorValue(t *testing.T) {
	// GIVEN 24 -> 30 a month ago and 30 -> 36 yesterday
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	_, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "30", f.now.AddDate(0, -1, 0)))
	require.NoError(t, err)
	_, err = f.engine.RecordChange(f.ctx, hoursRequest("a", "36", f.now.Add(-24*time.Hour)))
	require.NoError(t, err)

	// WHEN an entry lands between them
	entry, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "32", f.now.AddDate(0, 0, -10)))

	// THEN its old value is what held on its date, and live stays at 36
	require.NoError(t, err)
	assert.Equal(t, "30", entry.OldValue)
	assert.Equal(t, "36", f.liveHours("a"))
}

func TestRevertChange_PendingOnlyDeletes(t *testing.T) {
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	entry, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "36", f.now.AddDate(0, 1, 0)))
	require.NoError(t, err)

	res, err := f.engine.RevertChange(f.ctx, entry.ID)

	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "24", res.RevertedValue)
	h, err := f.engine.ChangeHistory(f.ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, h.Pending)
}

func TestRevertChange_UnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.RevertChange(f.ctx, "nope")

	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// PENDING CHANGES
// =============================================================================

func TestRecordChange_FutureDatedStaysPending(t *testing.T) {
	// GIVEN a raise effective July 1
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	effective := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	// WHEN recorded on June 1
	entry, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "36", effective))

	// THEN the live record and the row are untouched
	require.NoError(t, err)
	assert.True(t, entry.IsPending(f.now))
	assert.Equal(t, "24", f.liveHours("a"))
	assertDays(t, dec("11.2"), f.entitlement("a").EntitlementDays)

	h, err := f.engine.ChangeHistory(f.ctx, "a")
	require.NoError(t, err)
	assert.Len(t, h.Pending, 1)
	assert.Empty(t, h.Applied)

	// AND the same change cannot be queued twice
	_, err = f.engine.RecordChange(f.ctx, hoursRequest("a", "36", effective))
	assert.Equal(t, "duplicate_change", validationCode(err))
}

func TestApplyPendingChanges_AppliesWhenDue(t *testing.T) {
	// GIVEN a raise effective July 1, recorded on June 1
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	effective := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "36", effective))
	require.NoError(t, err)

	// WHEN swept before the date THEN nothing is due
	report, err := f.engine.ApplyPendingChanges(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Due)

	// WHEN swept on July 2
	f.now = time.Date(2025, time.July, 2, 9, 0, 0, 0, time.UTC)
	report, err = f.engine.ApplyPendingChanges(f.ctx)

	// THEN it is applied and the row recalculated from July 1
	require.NoError(t, err)
	assert.Equal(t, holiday.ApplyReport{Due: 1, Applied: 1}, *report)
	assert.Equal(t, "36", f.liveHours("a"))

	year := taxYear2025()
	want := holiday.FixedHoursAccrual{HoursPerWeek: dec("36"), Policy: f.engine.Policy()}.
		Accrue(year, generic.Period{Start: generic.DateOf(effective), End: year.End})
	assertDays(t, want.Value, f.entitlement("a").EntitlementDays)

	// WHEN swept again THEN the entry is skipped
	report, err = f.engine.ApplyPendingChanges(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, holiday.ApplyReport{Due: 1, Skipped: 1}, *report)
}

func TestApplyPendingChanges_InvalidEntryFailsAlone(t *testing.T) {
	// GIVEN a pending end date before the start date and a valid raise
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	f.addStaff("b", "Bea", "24", true)
	effective := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.engine.RecordChange(f.ctx, holiday.ChangeRequest{
		StaffID: "a", Category: holiday.ChangeEmploymentEnd, NewValue: "2019-12-31",
		EffectiveFrom: effective, Author: "hr",
	})
	require.NoError(t, err)
	_, err = f.engine.RecordChange(f.ctx, hoursRequest("b", "36", effective))
	require.NoError(t, err)

	// WHEN swept after the date
	f.now = effective.Add(time.Hour)
	report, err := f.engine.ApplyPendingChanges(f.ctx)

	// THEN the bad entry fails and the good one still applies
	require.NoError(t, err)
	assert.Equal(t, 2, report.Due)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "36", f.liveHours("b"))

	s, err := f.store.GetStaff(f.ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, s.EmploymentEnd)
}

// =============================================================================
// HISTORY AND ANNOTATION
// =============================================================================

func TestChangeHistory_SplitsAtNow(t *testing.T) {
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	_, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "30", time.Time{}))
	require.NoError(t, err)
	_, err = f.engine.RecordChange(f.ctx, hoursRequest("a", "36", f.now.AddDate(0, 2, 0)))
	require.NoError(t, err)

	h, err := f.engine.ChangeHistory(f.ctx, "a")

	require.NoError(t, err)
	require.Len(t, h.Applied, 1)
	require.Len(t, h.Pending, 1)
	assert.Equal(t, "30", h.Applied[0].NewValue)
	assert.Equal(t, "36", h.Pending[0].NewValue)
	assert.Equal(t, "30", h.Pending[0].OldValue)
}

func TestAnnotateChange(t *testing.T) {
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	entry, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "30", time.Time{}))
	require.NoError(t, err)

	err = f.engine.AnnotateChange(f.ctx, entry.ID, "", "typo")
	assert.ErrorIs(t, err, generic.ErrValidation)

	require.NoError(t, f.engine.AnnotateChange(f.ctx, entry.ID, "manager", "agreed at review"))
	h, err := f.engine.ChangeHistory(f.ctx, "a")
	require.NoError(t, err)
	require.Len(t, h.Applied, 1)
	assert.Equal(t, "manager", h.Applied[0].Author)
	assert.Equal(t, "agreed at review", h.Applied[0].Reason)
	assert.Equal(t, "30", h.Applied[0].NewValue)

	err = f.engine.AnnotateChange(f.ctx, "nope", "x", "y")
	assert.True(t, generic.IsNotFound(err))
}
