/*
sweeper.go - Scheduled application of pending ledger entries

PURPOSE:
  Future-dated changes (a pay rise from next month, a leaving date) are
  recorded as pending ledger entries. The sweeper applies them once their
  effective date arrives and dispatches the recalculation they cause.

DESIGN:
  - robfig/cron drives the schedule (default "@every 1m")
  - SkipIfStillRunning drops a tick while the previous sweep is still busy
  - Each sweep runs under its own timeout
  - Applying an entry is idempotent (see ChangeLedger.ApplyDue), so a sweep
    racing a live mutation or another replica's sweep is harmless

USAGE:
  sweeper := NewSweeper(engine, "@every 1m", 30*time.Second, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - engine.go:  ApplyPendingChanges
  - changes.go: ApplyDue
*/
package holiday

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically applies due ledger entries.
type Sweeper struct {
	Engine   *Engine
	Schedule string
	Timeout  time.Duration

	logger *zap.Logger
	cron   *cron.Cron
	entry  cron.EntryID
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a stopped sweeper.
func NewSweeper(engine *Engine, schedule string, timeout time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		Engine:   engine,
		Schedule: schedule,
		Timeout:  timeout,
		logger:   logger.Named("sweeper"),
	}
}

// Start schedules the sweep and runs it once immediately.
func (sw *Sweeper) Start() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cron != nil {
		return nil
	}

	logger := cronLogger{sugar: sw.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	id, err := c.AddFunc(sw.Schedule, sw.tick)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", sw.Schedule, err)
	}

	sw.cron = c
	sw.entry = id
	c.Start()

	// The wrapped job shares the SkipIfStillRunning guard with scheduled ticks.
	job := c.Entry(id).WrappedJob
	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()
		job.Run()
	}()

	sw.logger.Info("started", zap.String("schedule", sw.Schedule), zap.Duration("timeout", sw.Timeout))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cron == nil {
		return
	}
	<-sw.cron.Stop().Done()
	sw.wg.Wait()
	sw.cron = nil
	sw.logger.Info("stopped")
}

// RunNow sweeps synchronously, outside the schedule.
func (sw *Sweeper) RunNow(ctx context.Context) (*ApplyReport, error) {
	if sw.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sw.Timeout)
		defer cancel()
	}
	return sw.Engine.ApplyPendingChanges(ctx)
}

// NextRun returns when the next scheduled sweep will start, or the zero time
// if the sweeper is stopped.
func (sw *Sweeper) NextRun() time.Time {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cron == nil {
		return time.Time{}
	}
	return sw.cron.Entry(sw.entry).Next
}

func (sw *Sweeper) tick() {
	report, err := sw.RunNow(context.Background())
	if err != nil {
		sw.logger.Error("sweep failed", zap.Error(err))
		return
	}
	if report.Applied > 0 || report.Failed > 0 {
		sw.logger.Info("sweep complete",
			zap.Int("due", report.Due),
			zap.Int("applied", report.Applied),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	}
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}
