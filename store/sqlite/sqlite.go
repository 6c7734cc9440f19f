/*
Package sqlite provides a SQLite-backed implementation of holiday.TxStore.

PURPOSE:
  Persists staff, shifts, the change ledger and derived entitlement rows in a
  single SQLite file. The PostgreSQL store implements the same interface with
  the same table layout; only dialect details differ.

KEY TABLES:
  staff:                Live staff records, unique display name
  shifts:               Rota rows (HOLIDAY usage, overtime, year-end markers)
  staff_changes:        Effective-dated ledger of staff attribute edits
  holiday_entitlements: Derived rows, unique per (staff_id, year_start)

  Every child table references staff(id) ON DELETE CASCADE, so a hard delete
  of a staff member removes their shifts, ledger and entitlement rows.

ENCODING:
  Decimals are TEXT (exact, no float drift). Calendar dates are YYYY-MM-DD.
  Instants are fixed-width UTC timestamps, so text order is time order.

CONCURRENCY:
  One connection, one writer. WithTx holds the store mutex for the whole
  transaction, which serializes entitlement writers; LockStaff is therefore
  a no-op here.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/holiday.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine, err := holiday.NewEngine(store, holiday.DefaultPolicy(), logger)

SEE ALSO:
  - holiday/store.go:      Interface definitions
  - store/postgres:        Same layout on PostgreSQL
  - store/memory:          In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/holiday-engine/holiday"
)

// Store implements holiday.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
	mu sync.Mutex
}

var _ holiday.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see a different database.
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL CHECK (role IN ('leader', 'member')),
		active INTEGER NOT NULL DEFAULT 1,
		contracted_hours TEXT NOT NULL DEFAULT '0',
		pay_rate TEXT NOT NULL DEFAULT '0',
		employment_start TEXT NOT NULL,
		employment_end TEXT,
		color TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
		period INTEGER NOT NULL DEFAULT 0,
		week INTEGER NOT NULL DEFAULT 0,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		shift_type TEXT NOT NULL,
		overtime INTEGER NOT NULL DEFAULT 0,
		call_out INTEGER NOT NULL DEFAULT 0,
		solo INTEGER NOT NULL DEFAULT 0,
		training INTEGER NOT NULL DEFAULT 0,
		short_notice INTEGER NOT NULL DEFAULT 0,
		payment_period_end INTEGER NOT NULL DEFAULT 0,
		year_end INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	);

	-- Hot path: a staff member's shifts inside one holiday year
	CREATE INDEX IF NOT EXISTS idx_shifts_staff_start
		ON shifts(staff_id, start_at);

	-- Year resolver scans only flagged rows
	CREATE INDEX IF NOT EXISTS idx_shifts_year_end
		ON shifts(start_at) WHERE year_end = 1;

	CREATE TABLE IF NOT EXISTS staff_changes (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		old_value TEXT NOT NULL DEFAULT '',
		new_value TEXT NOT NULL DEFAULT '',
		effective_from TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		author TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_staff_changes_staff_category
		ON staff_changes(staff_id, category, effective_from);
	CREATE INDEX IF NOT EXISTS idx_staff_changes_effective
		ON staff_changes(effective_from);

	CREATE TABLE IF NOT EXISTS holiday_entitlements (
		staff_id TEXT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
		year_start TEXT NOT NULL,
		year_end TEXT NOT NULL,
		contracted_hours TEXT NOT NULL,
		entitlement_days TEXT NOT NULL,
		entitlement_hours TEXT NOT NULL,
		days_taken TEXT NOT NULL DEFAULT '0',
		hours_taken TEXT NOT NULL DEFAULT '0',
		zero_hours INTEGER NOT NULL DEFAULT 0,
		UNIQUE(staff_id, year_start)
	);

	CREATE INDEX IF NOT EXISTS idx_holiday_entitlements_year
		ON holiday_entitlements(year_start);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (holiday.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store holiday.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}
