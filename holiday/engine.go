/*
engine.go - Public entry point of the holiday engine

PURPOSE:
  Engine is what the CRUD layer calls. Each operation opens one store
  transaction, performs its write, dispatches the recalculation and commits.
  A failure anywhere rolls the whole operation back, so an entitlement row
  never disagrees with the writes that produced it.

OPERATIONS:
  Recalculate          Full recompute of the current year's row
  UpdateUsage          Taken figures only
  ResolveCurrentYear   Year boundaries, resolved from markers on every call
  Rollover             Next year's rows after a year-end marker
  RecordChange         Ledger entry, applied and dispatched when due
  RevertChange         Undo a ledger entry
  AnnotateChange       Fix author/reason of an entry
  ChangeHistory        Applied and pending entries
  Entitlements         Read rows by staff and year
  ApplyPendingChanges  Sweep due future-dated entries (see sweeper.go)

SEE ALSO:
  - mutations.go: Staff and shift writes
  - cleanup.go:   Orphan and surplus row maintenance
*/
package holiday

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/holiday-engine/generic"
	"go.uber.org/zap"
)

// Engine runs holiday operations against a transactional store.
type Engine struct {
	store    TxStore
	policy   Policy
	clock    generic.Clock
	identity IdentityFunc
	logger   *zap.Logger

	ledger     *ChangeLedger
	dispatcher *Dispatcher
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(c generic.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIdentity sets how new staff IDs are derived from display names.
func WithIdentity(f IdentityFunc) Option {
	return func(e *Engine) { e.identity = f }
}

// NewEngine validates the policy and wires the ledger and dispatcher.
func NewEngine(store TxStore, policy Policy, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		store:    store,
		policy:   policy,
		clock:    time.Now,
		identity: StaffIdentity,
		logger:   logger.Named("holiday"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ledger = NewChangeLedger(e.clock)
	e.dispatcher = NewDispatcher(policy, e.clock, e.logger)
	return e, nil
}

func (e *Engine) Policy() Policy { return e.policy }

// =============================================================================
// RECALCULATION
// =============================================================================

// Recalculate recomputes the current year's row for staffID. Running it twice
// with no change in between leaves an identical row. endOverride, when set,
// replaces the stored employment end for this calculation only.
func (e *Engine) Recalculate(ctx context.Context, staffID StaffID, endOverride *generic.TimePoint) (*Entitlement, error) {
	var out *Entitlement
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		out, err = e.dispatcher.Recalculate(ctx, s, staffID, endOverride)
		return err
	})
	return out, err
}

// UpdateUsage refreshes days and hours taken for the current year.
func (e *Engine) UpdateUsage(ctx context.Context, staffID StaffID) (*Entitlement, error) {
	var out *Entitlement
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		out, err = e.dispatcher.RefreshUsage(ctx, s, staffID)
		return err
	})
	return out, err
}

// ResolveCurrentYear returns the active holiday year.
func (e *Engine) ResolveCurrentYear(ctx context.Context) (generic.Period, error) {
	return e.dispatcher.CurrentYear(ctx, e.store)
}

// Rollover creates rows for the year starting the day after marker.
func (e *Engine) Rollover(ctx context.Context, marker generic.TimePoint) (*RolloverResult, error) {
	var out *RolloverResult
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		out, err = e.dispatcher.Rollover(ctx, s, marker)
		return err
	})
	return out, err
}

// =============================================================================
// CHANGE LEDGER
// =============================================================================

// RecordChange writes a ledger entry. A change that is already effective is
// applied to the staff record, when no later entry supersedes it, and
// dispatched in the same transaction. A superseded backdated entry is still
// dispatched since segmented pro-rata reads the whole ledger.
func (e *Engine) RecordChange(ctx context.Context, req ChangeRequest) (*ChangeEntry, error) {
	var (
		out     *ChangeEntry
		applied bool
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		entry, ok, err := e.ledger.Record(ctx, s, req)
		if err != nil {
			return err
		}
		if !entry.IsPending(e.clock()) {
			if err := e.dispatchCategory(ctx, s, entry.StaffID, entry.Category); err != nil {
				return err
			}
		}
		out, applied = entry, ok
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("change recorded",
		zap.String("id", string(out.ID)),
		zap.String("staff", string(out.StaffID)),
		zap.String("category", string(out.Category)),
		zap.Time("effectiveFrom", out.EffectiveFrom),
		zap.Bool("pending", out.IsPending(e.clock())),
		zap.Bool("applied", applied),
	)
	return out, nil
}

// RevertChange undoes a ledger entry and recalculates when the live value
// moved.
func (e *Engine) RevertChange(ctx context.Context, id ChangeID) (*RevertResult, error) {
	var out *RevertResult
	err := e.store.WithTx(ctx, func(s Store) error {
		res, err := e.ledger.Revert(ctx, s, id)
		if err != nil {
			return err
		}
		if res.Applied {
			if err := e.dispatchCategory(ctx, s, res.Entry.StaffID, res.Entry.Category); err != nil {
				return err
			}
		}
		out = res
		return nil
	})
	return out, err
}

func (e *Engine) AnnotateChange(ctx context.Context, id ChangeID, author, reason string) error {
	return e.store.WithTx(ctx, func(s Store) error {
		return e.ledger.Annotate(ctx, s, id, author, reason)
	})
}

// ChangeHistory returns a staff member's ledger split into applied and
// pending entries, each ordered by effective date.
func (e *Engine) ChangeHistory(ctx context.Context, staffID StaffID) (*History, error) {
	return e.ledger.History(ctx, e.store, staffID)
}

func (e *Engine) dispatchCategory(ctx context.Context, s Store, staffID StaffID, c ChangeCategory) error {
	kind, ok := EventForCategory(c)
	if !ok {
		return nil
	}
	_, err := e.dispatcher.Dispatch(ctx, s, Event{Kind: kind, StaffID: staffID})
	return err
}

// =============================================================================
// READS
// =============================================================================

// Staff lists staff members by name.
func (e *Engine) Staff(ctx context.Context, activeOnly bool) ([]StaffMember, error) {
	return e.store.ListStaff(ctx, activeOnly)
}

// Entitlements lists rows matching filter.
func (e *Engine) Entitlements(ctx context.Context, filter EntitlementFilter) ([]Entitlement, error) {
	return e.store.ListEntitlements(ctx, filter)
}

// CurrentEntitlements lists the active year's rows, for one staff member when
// staffID is set.
func (e *Engine) CurrentEntitlements(ctx context.Context, staffID StaffID) ([]Entitlement, error) {
	year, err := e.ResolveCurrentYear(ctx)
	if err != nil {
		return nil, err
	}
	return e.store.ListEntitlements(ctx, EntitlementFilter{StaffID: staffID, YearStart: &year.Start})
}

// =============================================================================
// PENDING CHANGES
// =============================================================================

// ApplyReport summarizes one pending-change sweep.
type ApplyReport struct {
	Due     int
	Applied int
	Skipped int
	Failed  int
}

// ApplyPendingChanges applies future-dated entries whose date has arrived.
// Each entry gets its own transaction so one bad entry does not hold back
// the rest. Entries already reflected in the live record are skipped, which
// makes concurrent or repeated sweeps harmless.
func (e *Engine) ApplyPendingChanges(ctx context.Context) (*ApplyReport, error) {
	due, err := e.ledger.DueEntries(ctx, e.store)
	if err != nil {
		return nil, fmt.Errorf("failed to list due changes: %w", err)
	}

	report := &ApplyReport{Due: len(due)}
	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var applied bool
		err := e.store.WithTx(ctx, func(s Store) error {
			var err error
			applied, err = e.ledger.ApplyDue(ctx, s, entry)
			if err != nil || !applied {
				return err
			}
			return e.dispatchCategory(ctx, s, entry.StaffID, entry.Category)
		})

		switch {
		case err != nil:
			report.Failed++
			e.logger.Warn("pending change not applied",
				zap.String("id", string(entry.ID)),
				zap.String("staff", string(entry.StaffID)),
				zap.Bool("rejected", isValidation(err)),
				zap.Error(err),
			)
		case applied:
			report.Applied++
			e.logger.Info("pending change applied",
				zap.String("id", string(entry.ID)),
				zap.String("staff", string(entry.StaffID)),
				zap.String("category", string(entry.Category)),
				zap.String("value", entry.NewValue),
			)
		default:
			report.Skipped++
		}
	}
	return report, nil
}
