// Package memory provides an in-memory holiday.TxStore for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps behind one mutex. It has no foreign keys:
// an entitlement row may outlive its staff member, which is how tests
// produce orphans for the cleanup pass.
type Memory struct {
	mu sync.RWMutex
	*tables
}

type entKey struct {
	StaffID   holiday.StaffID
	YearStart string
}

func keyOf(id holiday.StaffID, yearStart generic.TimePoint) entKey {
	return entKey{StaffID: id, YearStart: yearStart.String()}
}

type tables struct {
	staff        map[holiday.StaffID]holiday.StaffMember
	shifts       map[holiday.ShiftID]holiday.ShiftRecord
	changes      map[holiday.ChangeID]holiday.ChangeEntry
	entitlements map[entKey]holiday.Entitlement
}

func newTables() *tables {
	return &tables{
		staff:        make(map[holiday.StaffID]holiday.StaffMember),
		shifts:       make(map[holiday.ShiftID]holiday.ShiftRecord),
		changes:      make(map[holiday.ChangeID]holiday.ChangeEntry),
		entitlements: make(map[entKey]holiday.Entitlement),
	}
}

func NewMemory() *Memory {
	return &Memory{tables: newTables()}
}

var _ holiday.TxStore = (*Memory)(nil)

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(holiday.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.tables.clone()
	if err := fn(m.tables); err != nil {
		m.tables = snapshot
		return err
	}
	return nil
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.staff {
		c.staff[k] = copyStaff(v)
	}
	for k, v := range t.shifts {
		c.shifts[k] = v
	}
	for k, v := range t.changes {
		c.changes[k] = v
	}
	for k, v := range t.entitlements {
		c.entitlements[k] = v
	}
	return c
}

func copyStaff(s holiday.StaffMember) holiday.StaffMember {
	if s.EmploymentEnd != nil {
		end := *s.EmploymentEnd
		s.EmploymentEnd = &end
	}
	return s
}

// =============================================================================
// LOCKED ENTRY POINTS - Outside a transaction every call takes the mutex
// =============================================================================

func (m *Memory) GetStaff(ctx context.Context, id holiday.StaffID) (*holiday.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.GetStaff(ctx, id)
}

func (m *Memory) ListStaff(ctx context.Context, activeOnly bool) ([]holiday.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.ListStaff(ctx, activeOnly)
}

func (m *Memory) CountActiveStaff(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.CountActiveStaff(ctx)
}

func (m *Memory) InsertStaff(ctx context.Context, s holiday.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.InsertStaff(ctx, s)
}

func (m *Memory) UpdateStaff(ctx context.Context, s holiday.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.UpdateStaff(ctx, s)
}

func (m *Memory) DeleteStaff(ctx context.Context, id holiday.StaffID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.DeleteStaff(ctx, id)
}

func (m *Memory) LockStaff(ctx context.Context, id holiday.StaffID) error {
	return nil
}

func (m *Memory) GetShift(ctx context.Context, id holiday.ShiftID) (*holiday.ShiftRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.GetShift(ctx, id)
}

func (m *Memory) SaveShift(ctx context.Context, s holiday.ShiftRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.SaveShift(ctx, s)
}

func (m *Memory) DeleteShift(ctx context.Context, id holiday.ShiftID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.DeleteShift(ctx, id)
}

func (m *Memory) ShiftsInRange(ctx context.Context, staffID holiday.StaffID, from, to time.Time) ([]holiday.ShiftRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.ShiftsInRange(ctx, staffID, from, to)
}

func (m *Memory) LatestYearEndMarker(ctx context.Context, onOrBefore time.Time) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.LatestYearEndMarker(ctx, onOrBefore)
}

func (m *Memory) InsertChange(ctx context.Context, c holiday.ChangeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.InsertChange(ctx, c)
}

func (m *Memory) GetChange(ctx context.Context, id holiday.ChangeID) (*holiday.ChangeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.GetChange(ctx, id)
}

func (m *Memory) ListChanges(ctx context.Context, filter holiday.ChangeFilter) ([]holiday.ChangeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.ListChanges(ctx, filter)
}

func (m *Memory) AnnotateChange(ctx context.Context, id holiday.ChangeID, author, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.AnnotateChange(ctx, id, author, reason)
}

func (m *Memory) DeleteChange(ctx context.Context, id holiday.ChangeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.DeleteChange(ctx, id)
}

func (m *Memory) GetEntitlement(ctx context.Context, staffID holiday.StaffID, yearStart generic.TimePoint) (*holiday.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.GetEntitlement(ctx, staffID, yearStart)
}

func (m *Memory) UpsertEntitlement(ctx context.Context, e holiday.Entitlement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.UpsertEntitlement(ctx, e)
}

func (m *Memory) SetUsage(ctx context.Context, staffID holiday.StaffID, yearStart generic.TimePoint, daysTaken, hoursTaken decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.SetUsage(ctx, staffID, yearStart, daysTaken, hoursTaken)
}

func (m *Memory) ListEntitlements(ctx context.Context, filter holiday.EntitlementFilter) ([]holiday.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.ListEntitlements(ctx, filter)
}

func (m *Memory) CountEntitlements(ctx context.Context, yearStart generic.TimePoint) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.CountEntitlements(ctx, yearStart)
}

func (m *Memory) DeleteEntitlement(ctx context.Context, staffID holiday.StaffID, yearStart generic.TimePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.DeleteEntitlement(ctx, staffID, yearStart)
}

func (m *Memory) OrphanedEntitlements(ctx context.Context) ([]holiday.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables.OrphanedEntitlements(ctx)
}

// =============================================================================
// STAFF
// =============================================================================

func (t *tables) GetStaff(_ context.Context, id holiday.StaffID) (*holiday.StaffMember, error) {
	s, ok := t.staff[id]
	if !ok {
		return nil, generic.NewNotFound("staff", string(id))
	}
	s = copyStaff(s)
	return &s, nil
}

func (t *tables) ListStaff(_ context.Context, activeOnly bool) ([]holiday.StaffMember, error) {
	var out []holiday.StaffMember
	for _, s := range t.staff {
		if activeOnly && !s.Active {
			continue
		}
		out = append(out, copyStaff(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *tables) CountActiveStaff(_ context.Context) (int, error) {
	n := 0
	for _, s := range t.staff {
		if s.Active {
			n++
		}
	}
	return n, nil
}

func (t *tables) InsertStaff(_ context.Context, s holiday.StaffMember) error {
	if _, ok := t.staff[s.ID]; ok {
		return generic.NewValidation("duplicate_id", "id", "staff %s already exists", s.ID)
	}
	for _, existing := range t.staff {
		if existing.Name == s.Name {
			return generic.ErrDuplicateName
		}
	}
	t.staff[s.ID] = copyStaff(s)
	return nil
}

func (t *tables) UpdateStaff(_ context.Context, s holiday.StaffMember) error {
	if _, ok := t.staff[s.ID]; !ok {
		return generic.NewNotFound("staff", string(s.ID))
	}
	for id, existing := range t.staff {
		if id != s.ID && existing.Name == s.Name {
			return generic.ErrDuplicateName
		}
	}
	t.staff[s.ID] = copyStaff(s)
	return nil
}

func (t *tables) DeleteStaff(_ context.Context, id holiday.StaffID) error {
	if _, ok := t.staff[id]; !ok {
		return generic.NewNotFound("staff", string(id))
	}
	delete(t.staff, id)
	for k, s := range t.shifts {
		if s.StaffID == id {
			delete(t.shifts, k)
		}
	}
	for k, c := range t.changes {
		if c.StaffID == id {
			delete(t.changes, k)
		}
	}
	for k := range t.entitlements {
		if k.StaffID == id {
			delete(t.entitlements, k)
		}
	}
	return nil
}

func (t *tables) LockStaff(_ context.Context, _ holiday.StaffID) error {
	return nil
}

// =============================================================================
// SHIFTS
// =============================================================================

func (t *tables) GetShift(_ context.Context, id holiday.ShiftID) (*holiday.ShiftRecord, error) {
	s, ok := t.shifts[id]
	if !ok {
		return nil, generic.NewNotFound("shift", string(id))
	}
	return &s, nil
}

func (t *tables) SaveShift(_ context.Context, s holiday.ShiftRecord) error {
	t.shifts[s.ID] = s
	return nil
}

func (t *tables) DeleteShift(_ context.Context, id holiday.ShiftID) error {
	if _, ok := t.shifts[id]; !ok {
		return generic.NewNotFound("shift", string(id))
	}
	delete(t.shifts, id)
	return nil
}

func (t *tables) ShiftsInRange(_ context.Context, staffID holiday.StaffID, from, to time.Time) ([]holiday.ShiftRecord, error) {
	var out []holiday.ShiftRecord
	for _, s := range t.shifts {
		if s.StaffID != staffID || s.Start.Before(from) || s.Start.After(to) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tables) LatestYearEndMarker(_ context.Context, onOrBefore time.Time) (*time.Time, error) {
	var latest *time.Time
	for _, s := range t.shifts {
		if !s.YearEnd || s.Start.After(onOrBefore) {
			continue
		}
		if latest == nil || s.Start.After(*latest) {
			at := s.Start
			latest = &at
		}
	}
	return latest, nil
}

// =============================================================================
// CHANGE LEDGER
// =============================================================================

func (t *tables) InsertChange(_ context.Context, c holiday.ChangeEntry) error {
	if _, ok := t.changes[c.ID]; ok {
		return generic.NewValidation("duplicate_id", "id", "change %s already exists", c.ID)
	}
	if _, ok := t.staff[c.StaffID]; !ok {
		return generic.NewNotFound("staff", string(c.StaffID))
	}
	t.changes[c.ID] = c
	return nil
}

func (t *tables) GetChange(_ context.Context, id holiday.ChangeID) (*holiday.ChangeEntry, error) {
	c, ok := t.changes[id]
	if !ok {
		return nil, generic.NewNotFound("change", string(id))
	}
	return &c, nil
}

func (t *tables) ListChanges(_ context.Context, f holiday.ChangeFilter) ([]holiday.ChangeEntry, error) {
	var out []holiday.ChangeEntry
	for _, c := range t.changes {
		if f.StaffID != "" && c.StaffID != f.StaffID {
			continue
		}
		if f.Category != "" && c.Category != f.Category {
			continue
		}
		if f.EffectiveBy != nil && c.EffectiveFrom.After(*f.EffectiveBy) {
			continue
		}
		if f.FutureDated && !c.RecordedAt.Before(c.EffectiveFrom) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
			return a.EffectiveFrom.Before(b.EffectiveFrom)
		}
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.Before(b.RecordedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (t *tables) AnnotateChange(_ context.Context, id holiday.ChangeID, author, reason string) error {
	c, ok := t.changes[id]
	if !ok {
		return generic.NewNotFound("change", string(id))
	}
	c.Author = author
	c.Reason = reason
	t.changes[id] = c
	return nil
}

func (t *tables) DeleteChange(_ context.Context, id holiday.ChangeID) error {
	if _, ok := t.changes[id]; !ok {
		return generic.NewNotFound("change", string(id))
	}
	delete(t.changes, id)
	return nil
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

func (t *tables) GetEntitlement(_ context.Context, staffID holiday.StaffID, yearStart generic.TimePoint) (*holiday.Entitlement, error) {
	e, ok := t.entitlements[keyOf(staffID, yearStart)]
	if !ok {
		return nil, generic.NewNotFound("entitlement", string(staffID)+"/"+yearStart.String())
	}
	return &e, nil
}

func (t *tables) UpsertEntitlement(_ context.Context, e holiday.Entitlement) (bool, error) {
	k := keyOf(e.StaffID, e.YearStart)
	existing, ok := t.entitlements[k]
	if !ok {
		t.entitlements[k] = e
		return true, nil
	}
	e.DaysTaken = existing.DaysTaken
	e.HoursTaken = existing.HoursTaken
	t.entitlements[k] = e
	return false, nil
}

func (t *tables) SetUsage(_ context.Context, staffID holiday.StaffID, yearStart generic.TimePoint, daysTaken, hoursTaken decimal.Decimal) error {
	k := keyOf(staffID, yearStart)
	e, ok := t.entitlements[k]
	if !ok {
		return generic.NewNotFound("entitlement", string(staffID)+"/"+yearStart.String())
	}
	e.DaysTaken = generic.NewAmountFromDecimal(daysTaken, generic.UnitDays)
	e.HoursTaken = generic.NewAmountFromDecimal(hoursTaken, generic.UnitHours)
	t.entitlements[k] = e
	return nil
}

func (t *tables) ListEntitlements(_ context.Context, f holiday.EntitlementFilter) ([]holiday.Entitlement, error) {
	var out []holiday.Entitlement
	for _, e := range t.entitlements {
		if f.StaffID != "" && e.StaffID != f.StaffID {
			continue
		}
		if f.YearStart != nil && !e.YearStart.Equal(*f.YearStart) {
			continue
		}
		out = append(out, e)
	}
	sortEntitlements(out)
	return out, nil
}

func (t *tables) CountEntitlements(_ context.Context, yearStart generic.TimePoint) (int, error) {
	n := 0
	for _, e := range t.entitlements {
		if e.YearStart.Equal(yearStart) {
			n++
		}
	}
	return n, nil
}

func (t *tables) DeleteEntitlement(_ context.Context, staffID holiday.StaffID, yearStart generic.TimePoint) error {
	k := keyOf(staffID, yearStart)
	if _, ok := t.entitlements[k]; !ok {
		return generic.NewNotFound("entitlement", string(staffID)+"/"+yearStart.String())
	}
	delete(t.entitlements, k)
	return nil
}

func (t *tables) OrphanedEntitlements(_ context.Context) ([]holiday.Entitlement, error) {
	var out []holiday.Entitlement
	for _, e := range t.entitlements {
		if _, ok := t.staff[e.StaffID]; !ok {
			out = append(out, e)
		}
	}
	sortEntitlements(out)
	return out, nil
}

func sortEntitlements(rows []holiday.Entitlement) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].YearStart.Equal(rows[j].YearStart) {
			return rows[i].YearStart.Before(rows[j].YearStart)
		}
		return rows[i].StaffID < rows[j].StaffID
	})
}

// PutOrphan stores an entitlement row without checking its staff member.
// Tests use it to seed rows for the cleanup pass.
func (m *Memory) PutOrphan(e holiday.Entitlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entitlements[keyOf(e.StaffID, e.YearStart)] = e
}
