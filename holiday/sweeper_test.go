package holiday_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/holiday-engine/holiday"
	"go.uber.org/zap/zaptest"
)

func TestSweeper_RunNowAppliesDueChanges(t *testing.T) {
	// GIVEN a change that became due yesterday
	f := newFixture(t)
	f.addStaff("a", "Alex", "24", true)
	_, err := f.engine.RecordChange(f.ctx, hoursRequest("a", "36", f.now.Add(24*time.Hour)))
	require.NoError(t, err)
	f.now = f.now.Add(48 * time.Hour)

	sw := holiday.NewSweeper(f.engine, "@every 1h", 5*time.Second, zaptest.NewLogger(t))

	// WHEN
	report, err := sw.RunNow(f.ctx)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, "36", f.liveHours("a"))
}

func TestSweeper_StartStop(t *testing.T) {
	f := newFixture(t)
	sw := holiday.NewSweeper(f.engine, "@every 1h", time.Second, nil)

	assert.True(t, sw.NextRun().IsZero())

	require.NoError(t, sw.Start())
	require.NoError(t, sw.Start(), "second start is a no-op")
	assert.False(t, sw.NextRun().IsZero())

	sw.Stop()
	sw.Stop()
	assert.True(t, sw.NextRun().IsZero())
}

func TestSweeper_InvalidSchedule(t *testing.T) {
	f := newFixture(t)
	sw := holiday.NewSweeper(f.engine, "every now and then", time.Second, nil)

	err := sw.Start()

	assert.Error(t, err)
	assert.True(t, sw.NextRun().IsZero())
}
