package holiday

import (
	"context"
	"fmt"

	"github.com/warp/holiday-engine/generic"
	"go.uber.org/zap"
)

// CleanupOptions selects the optional parts of a maintenance pass.
type CleanupOptions struct {
	// PruneOldYears deletes rows for years that ended before the active one.
	PruneOldYears bool
}

// CleanupReport describes what a maintenance pass changed.
type CleanupReport struct {
	Year           generic.Period
	ActiveStaff    int
	Rows           int // active year's rows after cleanup
	OrphansRemoved int
	OldRowsPruned  int
	SurplusRemoved int
}

// Cleanup heals derived state in one transaction:
//   - rows whose staff member is gone are logged as data integrity errors
//     and deleted
//   - with PruneOldYears, rows of past years are deleted
//   - if the active year holds more rows than there are active staff, rows
//     of inactive staff are deleted until it does not
func (e *Engine) Cleanup(ctx context.Context, opts CleanupOptions) (*CleanupReport, error) {
	report := &CleanupReport{}

	err := e.store.WithTx(ctx, func(s Store) error {
		*report = CleanupReport{}

		if err := e.removeOrphans(ctx, s, report); err != nil {
			return err
		}

		year, err := e.dispatcher.CurrentYear(ctx, s)
		if err != nil {
			return err
		}
		report.Year = year

		if opts.PruneOldYears {
			if err := e.pruneOldYears(ctx, s, year, report); err != nil {
				return err
			}
		}
		return e.trimSurplus(ctx, s, year, report)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("cleanup complete",
		zap.Stringer("year", report.Year),
		zap.Int("rows", report.Rows),
		zap.Int("activeStaff", report.ActiveStaff),
		zap.Int("orphans", report.OrphansRemoved),
		zap.Int("pruned", report.OldRowsPruned),
		zap.Int("surplus", report.SurplusRemoved),
	)
	return report, nil
}

func (e *Engine) removeOrphans(ctx context.Context, s Store, report *CleanupReport) error {
	orphans, err := s.OrphanedEntitlements(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan orphaned entitlements: %w", err)
	}
	for _, row := range orphans {
		finding := &generic.DataIntegrityError{
			Table:  "holiday_entitlements",
			Key:    string(row.StaffID) + "/" + row.YearStart.String(),
			Reason: "staff member no longer exists",
		}
		e.logger.Warn("removing orphaned entitlement", zap.Error(finding))

		if err := s.DeleteEntitlement(ctx, row.StaffID, row.YearStart); err != nil {
			return fmt.Errorf("failed to delete orphaned entitlement: %w", err)
		}
		report.OrphansRemoved++
	}
	return nil
}

func (e *Engine) pruneOldYears(ctx context.Context, s Store, year generic.Period, report *CleanupReport) error {
	rows, err := s.ListEntitlements(ctx, EntitlementFilter{})
	if err != nil {
		return fmt.Errorf("failed to list entitlements: %w", err)
	}
	for _, row := range rows {
		if !row.YearStart.Before(year.Start) {
			continue
		}
		if err := s.DeleteEntitlement(ctx, row.StaffID, row.YearStart); err != nil {
			return fmt.Errorf("failed to prune entitlement: %w", err)
		}
		report.OldRowsPruned++
	}
	return nil
}

func (e *Engine) trimSurplus(ctx context.Context, s Store, year generic.Period, report *CleanupReport) error {
	active, err := s.CountActiveStaff(ctx)
	if err != nil {
		return fmt.Errorf("failed to count active staff: %w", err)
	}
	report.ActiveStaff = active

	rows, err := s.ListEntitlements(ctx, EntitlementFilter{YearStart: &year.Start})
	if err != nil {
		return fmt.Errorf("failed to list entitlements: %w", err)
	}
	report.Rows = len(rows)
	if len(rows) <= active {
		return nil
	}

	staff, err := s.ListStaff(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list staff: %w", err)
	}
	isActive := make(map[StaffID]bool, len(staff))
	for _, m := range staff {
		isActive[m.ID] = m.Active
	}

	for _, row := range rows {
		if report.Rows <= active {
			break
		}
		if isActive[row.StaffID] {
			continue
		}
		finding := &generic.DataIntegrityError{
			Table:  "holiday_entitlements",
			Key:    string(row.StaffID) + "/" + row.YearStart.String(),
			Reason: fmt.Sprintf("year has %d rows for %d active staff", report.Rows, active),
		}
		e.logger.Warn("removing surplus entitlement", zap.Error(finding))

		if err := s.DeleteEntitlement(ctx, row.StaffID, row.YearStart); err != nil {
			return fmt.Errorf("failed to delete surplus entitlement: %w", err)
		}
		report.Rows--
		report.SurplusRemoved++
	}
	return nil
}
