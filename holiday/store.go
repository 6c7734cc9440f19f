/*
store.go - Persistence interface for staff, shifts, the change ledger and
entitlement rows

PURPOSE:
  Defines the interface between the holiday engine and the database.
  Different implementations use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  StaffStore:       Live staff records (unique display name)
  ShiftStore:       Rota rows; the only source of usage and year-end markers
  ChangeStore:      Effective-dated ledger of staff attribute edits
  EntitlementStore: Derived rows, unique per (staff, year start)
  TxStore:          Runs a mutation and its recalculation atomically

ATOMICITY:
  Every engine mutation runs inside WithTx. If the dispatcher fails after the
  shift or staff write, the write is rolled back with it. Recalculation never
  writes shifts or ledger rows, so it cannot trigger itself.

SINGLE WRITER PER ROW:
  LockStaff is called before any entitlement write for that staff member.
  PostgreSQL takes a row lock; SQLite and memory stores already serialize
  writers.

IMPLEMENTATIONS:
  - store/sqlite:   database/sql + go-sqlite3
  - store/postgres: pgx connection pool
  - store/memory:   In-memory for testing

SEE ALSO:
  - engine.go:     Uses TxStore.WithTx for every mutation
  - dispatcher.go: Reads shifts and ledger, writes entitlement rows
*/
package holiday

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

type StaffStore interface {
	// GetStaff returns a *generic.NotFoundError wrapped ErrNotFound if absent.
	GetStaff(ctx context.Context, id StaffID) (*StaffMember, error)

	// ListStaff returns staff ordered by name.
	ListStaff(ctx context.Context, activeOnly bool) ([]StaffMember, error)

	// CountActiveStaff is the ceiling for entitlement rows per year.
	CountActiveStaff(ctx context.Context) (int, error)

	// InsertStaff fails with generic.ErrDuplicateName on a name clash.
	InsertStaff(ctx context.Context, s StaffMember) error

	UpdateStaff(ctx context.Context, s StaffMember) error

	// DeleteStaff removes the staff row and cascades to shifts, ledger
	// entries and entitlement rows.
	DeleteStaff(ctx context.Context, id StaffID) error

	// LockStaff serializes entitlement writers for one staff member.
	LockStaff(ctx context.Context, id StaffID) error
}

type ShiftStore interface {
	GetShift(ctx context.Context, id ShiftID) (*ShiftRecord, error)

	// SaveShift inserts or replaces by ID.
	SaveShift(ctx context.Context, s ShiftRecord) error

	DeleteShift(ctx context.Context, id ShiftID) error

	// ShiftsInRange returns the staff member's shifts starting in [from, to].
	ShiftsInRange(ctx context.Context, staffID StaffID, from, to time.Time) ([]ShiftRecord, error)

	// LatestYearEndMarker returns the start of the latest YearEnd shift that
	// starts on or before the given instant, or nil.
	LatestYearEndMarker(ctx context.Context, onOrBefore time.Time) (*time.Time, error)
}

// ChangeFilter narrows ledger queries. Zero values match everything.
type ChangeFilter struct {
	StaffID  StaffID
	Category ChangeCategory

	// EffectiveBy keeps entries effective on or before this instant.
	EffectiveBy *time.Time

	// FutureDated keeps entries that were recorded before they took effect.
	FutureDated bool
}

type ChangeStore interface {
	InsertChange(ctx context.Context, c ChangeEntry) error
	GetChange(ctx context.Context, id ChangeID) (*ChangeEntry, error)

	// ListChanges returns entries ordered by effective date, then recorded time.
	ListChanges(ctx context.Context, filter ChangeFilter) ([]ChangeEntry, error)

	// AnnotateChange is the only in-place update a ledger entry allows.
	AnnotateChange(ctx context.Context, id ChangeID, author, reason string) error

	DeleteChange(ctx context.Context, id ChangeID) error
}

type EntitlementStore interface {
	GetEntitlement(ctx context.Context, staffID StaffID, yearStart generic.TimePoint) (*Entitlement, error)

	// UpsertEntitlement writes the entitlement fields. Taken fields are only
	// written on insert; an existing row keeps its taken figures.
	UpsertEntitlement(ctx context.Context, e Entitlement) (created bool, err error)

	// SetUsage writes the taken fields of an existing row.
	SetUsage(ctx context.Context, staffID StaffID, yearStart generic.TimePoint, daysTaken, hoursTaken decimal.Decimal) error

	ListEntitlements(ctx context.Context, filter EntitlementFilter) ([]Entitlement, error)
	CountEntitlements(ctx context.Context, yearStart generic.TimePoint) (int, error)
	DeleteEntitlement(ctx context.Context, staffID StaffID, yearStart generic.TimePoint) error

	// OrphanedEntitlements returns rows whose staff member no longer exists.
	OrphanedEntitlements(ctx context.Context) ([]Entitlement, error)
}

// Store is everything the engine reads and writes.
type Store interface {
	StaffStore
	ShiftStore
	ChangeStore
	EntitlementStore
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic mutation + recalculation
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
