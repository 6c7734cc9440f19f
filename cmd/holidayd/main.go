/*
main.go - holidayd entry point

PURPOSE:
  Command-line front end of the holiday engine. Loads configuration, opens
  the configured store and runs one engine operation per subcommand, or the
  long-running pending-change sweeper.

STARTUP SEQUENCE:
  1. Load config (YAML file, .env, HOLIDAY_* variables)
  2. Initialize zap logger
  3. Open store (sqlite, postgres or memory)
  4. Build engine from the configured policy
  5. Run subcommand

COMMANDS:
  migrate                  Apply pending PostgreSQL migrations
  sweep                    Run the pending-change sweeper until SIGINT/SIGTERM
  year                     Print the active holiday year
  recalculate <staff-id>   Recompute one staff member's current row
  usage <staff-id>         Refresh taken figures only
  rollover <date>          Create next year's rows after a year-end marker
  cleanup [--prune]        Remove orphaned and surplus rows
  entitlements [staff-id]  Print current-year rows
  staff list|add           Staff records
  change record|history|revert|annotate  Change ledger

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM the sweeper stops scheduling, waits for a running sweep
  to finish and the store is closed.

EXAMPLES:
  holidayd --config holiday.yaml sweep
  HOLIDAY_DATABASE_DRIVER=postgres HOLIDAY_DATABASE_URL=postgres://... holidayd migrate
  holidayd rollover 2025-04-05

SEE ALSO:
  - config/config.go: Settings and defaults
  - holiday/engine.go: Operations
  - holiday/sweeper.go: Scheduled sweep
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/holiday-engine/config"
	"github.com/warp/holiday-engine/holiday"
	"github.com/warp/holiday-engine/logging"
	"github.com/warp/holiday-engine/store/memory"
	"github.com/warp/holiday-engine/store/postgres"
	"github.com/warp/holiday-engine/store/sqlite"
)

// App holds the application dependencies
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    holiday.TxStore
	postgres *postgres.Store // set only for the postgres driver
	engine   *holiday.Engine
	closeFn  func() error
	ctx      context.Context
}

var (
	configPath string
	app        *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "holidayd",
		Short:         "Holiday entitlement engine for shift staff",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeApp()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(yearCmd())
	rootCmd.AddCommand(recalculateCmd())
	rootCmd.AddCommand(usageCmd())
	rootCmd.AddCommand(rolloverCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(entitlementsCmd())
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(changeCmd())

	if err := rootCmd.Execute(); err != nil {
		closeApp()
		os.Exit(1)
	}
}

// initApp loads config and wires logger, store and engine.
func initApp() error {
	var err error
	app = &App{ctx: context.Background()}

	app.cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.logger, err = logging.New(app.cfg.Log.Level, app.cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := openStore(app); err != nil {
		return err
	}
	app.logger.Debug("store opened", zap.String("driver", app.cfg.Database.Driver))

	policy, err := app.cfg.Policy()
	if err != nil {
		return err
	}
	app.engine, err = holiday.NewEngine(app.store, policy, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	return nil
}

func openStore(a *App) error {
	switch a.cfg.Database.Driver {
	case "postgres":
		pg, err := postgres.New(a.ctx, a.cfg.Database.URL)
		if err != nil {
			return err
		}
		a.store, a.postgres, a.closeFn = pg, pg, pg.Close
	case "memory":
		a.logger.Warn("memory store selected; nothing will be persisted")
		a.store, a.closeFn = memory.NewMemory(), func() error { return nil }
	default:
		s, err := sqlite.New(a.cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.store, a.closeFn = s, s.Close
	}
	return nil
}

func closeApp() {
	if app == nil {
		return
	}
	if app.closeFn != nil {
		if err := app.closeFn(); err != nil && app.logger != nil {
			app.logger.Warn("failed to close store", zap.Error(err))
		}
		app.closeFn = nil
	}
	if app.logger != nil {
		_ = app.logger.Sync()
	}
}
