package holiday

import (
	"context"
	"fmt"

	"github.com/warp/holiday-engine/generic"
	"go.uber.org/zap"
)

// RolloverYear is the year that starts the day after a year-end marker.
func RolloverYear(marker generic.TimePoint) generic.Period {
	return generic.YearFrom(marker.AddDays(1))
}

// Rollover creates next year's entitlement rows after a year-end marker.
//
// Each active staff member without a row for the new year gets one, computed
// for the new window with nothing taken. Staff who already have a row are
// counted as skipped and their row is left untouched, so a second call with
// the same marker creates nothing.
func (d *Dispatcher) Rollover(ctx context.Context, s Store, marker generic.TimePoint) (*RolloverResult, error) {
	year := RolloverYear(marker)
	result := &RolloverResult{Year: year}

	staff, err := s.ListStaff(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list active staff: %w", err)
	}

	for _, member := range staff {
		if err := s.LockStaff(ctx, member.ID); err != nil {
			return nil, err
		}

		_, err := s.GetEntitlement(ctx, member.ID, year.Start)
		if err == nil {
			result.Skipped++
			continue
		}
		if !generic.IsNotFound(err) {
			return nil, err
		}

		shifts, err := d.yearShifts(ctx, s, member.ID, year)
		if err != nil {
			return nil, err
		}
		row, err := d.entitlementFor(ctx, s, member, year, nil, shifts)
		if err != nil {
			return nil, err
		}
		if err := d.upsert(ctx, s, row); err != nil {
			return nil, err
		}
		result.Created++
	}

	d.logger.Info("rollover complete",
		zap.Stringer("year", year),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
