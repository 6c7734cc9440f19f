package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.postgres == nil {
				fmt.Printf("%s schema is applied when the store opens; nothing to do\n", app.cfg.Database.Driver)
				return nil
			}
			ran, err := app.postgres.RunMigrations(app.ctx)
			if err != nil {
				return err
			}
			if len(ran) == 0 {
				fmt.Println("Database is up to date")
				return nil
			}
			for _, name := range ran {
				fmt.Printf("applied %s\n", name)
			}
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply future-dated changes as their effective date arrives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sw := holiday.NewSweeper(app.engine, app.cfg.Sweep.Schedule, app.cfg.Sweep.Timeout, app.logger)
			if once {
				report, err := sw.RunNow(app.ctx)
				if err != nil {
					return err
				}
				printApplyReport(report)
				return nil
			}

			if err := sw.Start(); err != nil {
				return err
			}
			app.logger.Info("sweeper started",
				zap.String("schedule", app.cfg.Sweep.Schedule),
				zap.Time("next_run", sw.NextRun()),
			)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			app.logger.Info("shutting down sweeper")
			sw.Stop()
			app.logger.Info("sweeper stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single sweep and exit")
	return cmd
}

func yearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "year",
		Short: "Print the active holiday year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := app.engine.ResolveCurrentYear(app.ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s to %s\n", year.Start, year.End)
			return nil
		},
	}
}

func recalculateCmd() *cobra.Command {
	var endDate string
	cmd := &cobra.Command{
		Use:   "recalculate <staff-id>",
		Short: "Recompute a staff member's current-year entitlement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var override *generic.TimePoint
			if endDate != "" {
				d, err := generic.ParseDate(endDate)
				if err != nil {
					return err
				}
				override = &d
			}
			ent, err := app.engine.Recalculate(app.ctx, holiday.StaffID(args[0]), override)
			if err != nil {
				return err
			}
			printEntitlements([]holiday.Entitlement{*ent})
			return nil
		},
	}
	cmd.Flags().StringVar(&endDate, "end", "", "Calculate as if employment ended on this date (YYYY-MM-DD)")
	return cmd
}

func usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage <staff-id>",
		Short: "Refresh days and hours taken for the current year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ent, err := app.engine.UpdateUsage(app.ctx, holiday.StaffID(args[0]))
			if err != nil {
				return err
			}
			printEntitlements([]holiday.Entitlement{*ent})
			return nil
		},
	}
}

func rolloverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollover <year-end-date>",
		Short: "Create next year's rows after a year-end marker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			marker, err := generic.ParseDate(args[0])
			if err != nil {
				return err
			}
			res, err := app.engine.Rollover(app.ctx, marker)
			if err != nil {
				return err
			}
			fmt.Printf("Year %s: %d created, %d already present\n", res.Year, res.Created, res.Skipped)
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned rows and rows beyond the active staff count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.engine.Cleanup(app.ctx, holiday.CleanupOptions{PruneOldYears: prune})
			if err != nil {
				return err
			}
			fmt.Printf("Year %s: %d active staff, %d rows\n", report.Year, report.ActiveStaff, report.Rows)
			fmt.Printf("  orphans removed: %d\n", report.OrphansRemoved)
			fmt.Printf("  old rows pruned: %d\n", report.OldRowsPruned)
			fmt.Printf("  surplus removed: %d\n", report.SurplusRemoved)
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Also delete rows for years before the active one")
	return cmd
}

func entitlementsCmd() *cobra.Command {
	var year string
	cmd := &cobra.Command{
		Use:   "entitlements [staff-id]",
		Short: "List entitlement rows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var staffID holiday.StaffID
			if len(args) == 1 {
				staffID = holiday.StaffID(args[0])
			}

			var rows []holiday.Entitlement
			var err error
			if year == "" {
				rows, err = app.engine.CurrentEntitlements(app.ctx, staffID)
			} else {
				var start generic.TimePoint
				if start, err = generic.ParseDate(year); err != nil {
					return err
				}
				rows, err = app.engine.Entitlements(app.ctx, holiday.EntitlementFilter{StaffID: staffID, YearStart: &start})
			}
			if err != nil {
				return err
			}
			printEntitlements(rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&year, "year", "", "Year start date (YYYY-MM-DD); defaults to the active year")
	return cmd
}

// =============================================================================
// STAFF
// =============================================================================

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "staff", Short: "Staff records"}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List staff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			staff, err := app.engine.Staff(app.ctx, !all)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tHOURS\tSTART\tEND\tACTIVE")
			for _, s := range staff {
				end := "-"
				if s.EmploymentEnd != nil {
					end = s.EmploymentEnd.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
					s.ID, s.Name, s.Role, s.ContractedHours, s.EmploymentStart, end, s.Active)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&all, "all", false, "Include inactive staff")

	var role, hours, start string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a staff member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := decimal.NewFromString(hours)
			if err != nil {
				return fmt.Errorf("hours must be a number: %w", err)
			}
			startDate := generic.DateOf(time.Now())
			if start != "" {
				if startDate, err = generic.ParseDate(start); err != nil {
					return err
				}
			}
			m, err := app.engine.CreateStaff(app.ctx, holiday.StaffMember{
				Name:            args[0],
				Role:            holiday.Role(role),
				Active:          true,
				ContractedHours: h,
				EmploymentStart: startDate,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created %s (%s)\n", m.Name, m.ID)
			return nil
		},
	}
	add.Flags().StringVar(&role, "role", string(holiday.RoleMember), "leader or member")
	add.Flags().StringVar(&hours, "hours", "0", "Contracted hours per week (0 for zero-hours)")
	add.Flags().StringVar(&start, "start", "", "Employment start (YYYY-MM-DD); defaults to today")

	cmd.AddCommand(list, add)
	return cmd
}

// =============================================================================
// CHANGE LEDGER
// =============================================================================

func changeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "change", Short: "Staff change ledger"}

	var category, value, effective, author, reason string
	record := &cobra.Command{
		Use:   "record <staff-id>",
		Short: "Record an effective-dated change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := holiday.ChangeRequest{
				StaffID:  holiday.StaffID(args[0]),
				Category: holiday.ChangeCategory(category),
				NewValue: value,
				Author:   author,
				Reason:   reason,
			}
			if effective != "" {
				d, err := generic.ParseDate(effective)
				if err != nil {
					return err
				}
				req.EffectiveFrom = d.Time
			}
			entry, err := app.engine.RecordChange(app.ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("Recorded %s: %s %q -> %q from %s\n",
				entry.ID, entry.Category, entry.OldValue, entry.NewValue, entry.EffectiveFrom.Format(generic.DateLayout))
			return nil
		},
	}
	record.Flags().StringVar(&category, "category", "", "Attribute to change")
	record.Flags().StringVar(&value, "value", "", "New value")
	record.Flags().StringVar(&effective, "effective", "", "Effective date (YYYY-MM-DD); defaults to now")
	record.Flags().StringVar(&author, "author", os.Getenv("USER"), "Who made the change")
	record.Flags().StringVar(&reason, "reason", "", "Why")
	_ = record.MarkFlagRequired("category")

	history := &cobra.Command{
		Use:   "history <staff-id>",
		Short: "Show applied and pending changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.engine.ChangeHistory(app.ctx, holiday.StaffID(args[0]))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STATE\tID\tCATEGORY\tOLD\tNEW\tEFFECTIVE\tAUTHOR\tREASON")
			printChanges(w, "pending", h.Pending)
			printChanges(w, "applied", h.Applied)
			return w.Flush()
		},
	}

	revert := &cobra.Command{
		Use:   "revert <change-id>",
		Short: "Undo a change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.engine.RevertChange(app.ctx, holiday.ChangeID(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("Reverted %s; %s is now %q\n", res.Entry.ID, res.Entry.Category, res.RevertedValue)
			return nil
		},
	}

	var annAuthor, annReason string
	annotate := &cobra.Command{
		Use:   "annotate <change-id>",
		Short: "Correct the author or reason of a change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.engine.AnnotateChange(app.ctx, holiday.ChangeID(args[0]), annAuthor, annReason)
		},
	}
	annotate.Flags().StringVar(&annAuthor, "author", "", "Author")
	annotate.Flags().StringVar(&annReason, "reason", "", "Reason")

	cmd.AddCommand(record, history, revert, annotate)
	return cmd
}

// =============================================================================
// OUTPUT
// =============================================================================

func printEntitlements(rows []holiday.Entitlement) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAFF\tYEAR\tDAYS\tHOURS\tTAKEN D\tTAKEN H\tLEFT D\tLEFT H\tZERO-HOURS")
	for _, e := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			e.StaffID, e.YearStart,
			e.EntitlementDays.Value.StringFixed(2), e.EntitlementHours.Value.StringFixed(2),
			e.DaysTaken.Value.StringFixed(2), e.HoursTaken.Value.StringFixed(2),
			e.RemainingDays().Value.StringFixed(2), e.RemainingHours().Value.StringFixed(2),
			e.ZeroHours)
	}
	_ = w.Flush()
}

func printChanges(w *tabwriter.Writer, state string, entries []holiday.ChangeEntry) {
	for _, c := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			state, c.ID, c.Category, c.OldValue, c.NewValue,
			c.EffectiveFrom.Format(generic.DateLayout), c.Author, c.Reason)
	}
}

func printApplyReport(r *holiday.ApplyReport) {
	fmt.Printf("Due: %d  applied: %d  skipped: %d  failed: %d\n", r.Due, r.Applied, r.Skipped, r.Failed)
}
