package holiday_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		category holiday.ChangeCategory
		in       string
		want     string
	}{
		{holiday.ChangeContractedHours, " 24.0 ", "24"},
		{holiday.ChangePayRate, "11.50", "11.5"},
		{holiday.ChangeRole, "Leader", "leader"},
		{holiday.ChangeEmploymentStart, "2025-04-06T00:00:00Z", "2025-04-06"},
		{holiday.ChangeEmploymentEnd, "null", ""},
		{holiday.ChangeActiveStatus, "inactive", "false"},
		{holiday.ChangeActiveStatus, "1", "true"},
		{holiday.ChangeColor, " #FFAA00", "#ffaa00"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category)+"/"+tt.in, func(t *testing.T) {
			got, err := holiday.NormalizeValue(tt.category, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeValue_Rejects(t *testing.T) {
	bad := map[holiday.ChangeCategory]string{
		holiday.ChangeContractedHours: "-3",
		holiday.ChangePayRate:         "lots",
		holiday.ChangeRole:            "owner",
		holiday.ChangeEmploymentStart: "",
		holiday.ChangeActiveStatus:    "maybe",
		"shoe_size":                   "9",
	}

	for c, v := range bad {
		_, err := holiday.NormalizeValue(c, v)
		assert.ErrorIs(t, err, generic.ErrValidation, "%s=%q", c, v)
	}
}

func TestApplyValue_RoundTripsLiveValue(t *testing.T) {
	staff := longServing("24")

	for c, v := range map[holiday.ChangeCategory]string{
		holiday.ChangeContractedHours: "37.5",
		holiday.ChangeEmploymentEnd:   "2026-01-31",
		holiday.ChangeRole:            "leader",
		holiday.ChangeActiveStatus:    "false",
	} {
		require.NoError(t, holiday.ApplyValue(&staff, c, v))
		assert.Equal(t, v, holiday.LiveValue(staff, c))
	}

	require.NoError(t, holiday.ApplyValue(&staff, holiday.ChangeEmploymentEnd, ""))
	assert.Nil(t, staff.EmploymentEnd)
}

func TestStaffIdentity_StableAcrossCaseAndSpace(t *testing.T) {
	a := holiday.StaffIdentity("Sam Jones")
	b := holiday.StaffIdentity("  sam jones ")
	c := holiday.StaffIdentity("Sam Jonas")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, holiday.RandomIdentity("x"), holiday.RandomIdentity("x"))
}
