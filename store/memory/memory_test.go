package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
	"github.com/warp/holiday-engine/store/memory"
	"github.com/warp/holiday-engine/store/storetest"
)

func TestMemory_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) holiday.TxStore {
		return memory.NewMemory()
	})
}

func TestMemory_OrphanedEntitlements(t *testing.T) {
	ctx := context.Background()

	// GIVEN a row for a staff member who was never stored
	m := memory.NewMemory()
	year := generic.YearFrom(generic.NewTimePoint(2025, time.April, 6))
	m.PutOrphan(holiday.Entitlement{
		StaffID:   "ghost",
		YearStart: year.Start,
		YearEnd:   year.End,
		DaysTaken: generic.ZeroAmount(generic.UnitDays),
	})

	// WHEN
	orphans, err := m.OrphanedEntitlements(ctx)

	// THEN
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, holiday.StaffID("ghost"), orphans[0].StaffID)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := memory.NewMemory()

	end := generic.NewTimePoint(2026, time.January, 31)
	require.NoError(t, m.InsertStaff(ctx, holiday.StaffMember{
		ID:              "a",
		Name:            "Alex",
		Role:            holiday.RoleMember,
		Active:          true,
		ContractedHours: decimal.RequireFromString("24"),
		EmploymentStart: generic.NewTimePoint(2020, time.January, 1),
		EmploymentEnd:   &end,
	}))

	// WHEN the caller mutates what it was given
	got, err := m.GetStaff(ctx, "a")
	require.NoError(t, err)
	*got.EmploymentEnd = generic.NewTimePoint(2030, time.January, 1)
	end = generic.NewTimePoint(2031, time.January, 1)

	// THEN the stored record is unchanged
	again, err := m.GetStaff(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-31", again.EmploymentEnd.String())
}

func TestMemory_InsertChangeNeedsStaff(t *testing.T) {
	m := memory.NewMemory()

	err := m.InsertChange(context.Background(), holiday.ChangeEntry{ID: "c1", StaffID: "ghost"})

	assert.ErrorIs(t, err, generic.ErrNotFound)
}
