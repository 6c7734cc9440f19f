package holiday

import (
	"context"
	"fmt"

	"github.com/warp/holiday-engine/generic"
)

// ResolveYear returns the holiday year that "today" falls in.
//
// By default the year runs from the configured anniversary (April 6) to the
// day before the next one. A year-end marker dated on or before yesterday
// overrides that: the year starts the day after the latest marker. A marker
// more than a year old keeps its anniversary and is advanced whole years
// until the window contains today.
func ResolveYear(cfg generic.PeriodConfig, today generic.TimePoint, marker *generic.TimePoint) (generic.Period, error) {
	if marker == nil || marker.After(today.AddDays(-1)) {
		return cfg.PeriodFor(today)
	}

	year := generic.YearFrom(marker.AddDays(1))
	for year.End.Before(today) {
		year = year.NextYear()
	}
	return year, nil
}

// resolveYear scans the store for the latest marker every call; the current
// year is never cached because concurrent writers may flag different dates.
func resolveYear(ctx context.Context, s ShiftStore, cfg generic.PeriodConfig, today generic.TimePoint) (generic.Period, error) {
	at, err := s.LatestYearEndMarker(ctx, today.AddDays(-1).EndOfDay())
	if err != nil {
		return generic.Period{}, fmt.Errorf("failed to scan year-end markers: %w", err)
	}

	var marker *generic.TimePoint
	if at != nil {
		d := generic.DateOf(*at)
		marker = &d
	}
	return ResolveYear(cfg, today, marker)
}
