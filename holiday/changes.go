/*
changes.go - Effective-dated ledger of staff attribute edits

PURPOSE:
  The change ledger is the source of truth for "what changed and when".
  Every edit of a staff attribute is written as an entry with an effective
  date; entries dated in the future stay pending until the sweeper applies
  them.

INVARIANTS:
  1. A new entry's value must differ from the live value after
     normalization. No-op edits are rejected, not recorded.
  2. Entries are never edited except for author/reason annotation.
  3. Undo deletes the entry and, if it had been applied, restores the value
     of the previous entry of the same category (or the entry's old value).
  4. The live value is the value of the latest effective entry. A backdated
     entry recorded after a later one is kept as history only.

EXAMPLE FLOW:
  1. Hours 24 -> 30 effective today:   applied now, entitlement recalculated
  2. Hours 30 -> 36 effective June 1:  pending, applied by the sweeper on June 1
  3. Undo step 1:                      hours restored to 24, entry deleted

SEE ALSO:
  - normalize.go: Canonical text values per category
  - sweeper.go:   Applies pending entries once due
*/
package holiday

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/holiday-engine/generic"
)

// =============================================================================
// CHANGE LEDGER
// =============================================================================

// ChangeLedger records, applies and reverts staff attribute changes. Every
// method takes the Store of the caller's transaction.
type ChangeLedger struct {
	clock generic.Clock
	newID func() string
}

func NewChangeLedger(clock generic.Clock) *ChangeLedger {
	return &ChangeLedger{clock: clock, newID: uuid.NewString}
}

// Record validates and inserts a change. An entry effective now or earlier
// is applied to the live staff record straight away, unless an applied entry
// of the same category takes effect after it: the backdated entry is then
// history only and the live value stays with the later one. applied reports
// whether the live record changed.
func (l *ChangeLedger) Record(ctx context.Context, s Store, req ChangeRequest) (entry *ChangeEntry, applied bool, err error) {
	if err := checkStruct(req); err != nil {
		return nil, false, err
	}
	if !req.Category.Valid() {
		return nil, false, generic.NewValidation("invalid_category", "category", "unknown change category %q", req.Category)
	}

	staff, err := s.GetStaff(ctx, req.StaffID)
	if err != nil {
		return nil, false, err
	}

	newValue, err := NormalizeValue(req.Category, req.NewValue)
	if err != nil {
		return nil, false, err
	}
	live := LiveValue(*staff, req.Category)
	if newValue == live {
		return nil, false, generic.NewValidation("no_op_change", string(req.Category),
			"new value %q matches the current value", newValue)
	}

	now := l.clock()
	effective := req.EffectiveFrom
	if effective.IsZero() {
		effective = now
	}

	prev, next, err := l.neighbours(ctx, s, req.StaffID, req.Category, effective, now)
	if err != nil {
		return nil, false, err
	}

	oldValue := live
	switch {
	case req.OldValue != "":
		if oldValue, err = NormalizeValue(req.Category, req.OldValue); err != nil {
			return nil, false, err
		}
	case next != nil && prev != nil:
		oldValue = prev.NewValue
	case next != nil:
		oldValue = next.OldValue
	}

	if err := l.rejectDuplicatePending(ctx, s, req.StaffID, req.Category, newValue, effective, now); err != nil {
		return nil, false, err
	}

	e := ChangeEntry{
		ID:            ChangeID(l.newID()),
		StaffID:       req.StaffID,
		Category:      req.Category,
		OldValue:      oldValue,
		NewValue:      newValue,
		EffectiveFrom: effective.UTC(),
		RecordedAt:    now.UTC(),
		Author:        req.Author,
		Reason:        req.Reason,
	}
	if err := s.InsertChange(ctx, e); err != nil {
		return nil, false, fmt.Errorf("failed to record change: %w", err)
	}

	if e.IsPending(now) || next != nil {
		return &e, false, nil
	}
	if err := l.apply(ctx, s, staff, e.Category, e.NewValue); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

// neighbours finds the applied entries of a category either side of
// effective: prev is the last one effective at or before it, next the first
// one effective after it. Either may be nil.
func (l *ChangeLedger) neighbours(ctx context.Context, s ChangeStore, staffID StaffID, c ChangeCategory, effective, now time.Time) (prev, next *ChangeEntry, err error) {
	applied, err := s.ListChanges(ctx, ChangeFilter{StaffID: staffID, Category: c, EffectiveBy: &now})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load changes: %w", err)
	}
	for i := range applied {
		if applied[i].EffectiveFrom.After(effective) {
			return prev, &applied[i], nil
		}
		prev = &applied[i]
	}
	return prev, nil, nil
}

// rejectDuplicatePending stops the same future change being queued twice.
func (l *ChangeLedger) rejectDuplicatePending(ctx context.Context, s ChangeStore, staffID StaffID, c ChangeCategory, value string, effective, now time.Time) error {
	if !effective.After(now) {
		return nil
	}
	existing, err := s.ListChanges(ctx, ChangeFilter{StaffID: staffID, Category: c})
	if err != nil {
		return fmt.Errorf("failed to load changes: %w", err)
	}
	for _, e := range existing {
		if e.IsPending(now) && e.NewValue == value && e.EffectiveFrom.Equal(effective.UTC()) {
			return generic.NewValidation("duplicate_change", string(c),
				"change to %q effective %s is already pending (%s)", value, effective.Format(time.RFC3339), e.ID)
		}
	}
	return nil
}

// Revert undoes an entry. A pending entry is only deleted. An applied entry
// restores the previous value of its category, unless a later entry of the
// same category has already superseded it.
func (l *ChangeLedger) Revert(ctx context.Context, s Store, id ChangeID) (*RevertResult, error) {
	entry, err := s.GetChange(ctx, id)
	if err != nil {
		return nil, err
	}
	staff, err := s.GetStaff(ctx, entry.StaffID)
	if err != nil {
		return nil, err
	}

	now := l.clock()
	result := &RevertResult{Entry: *entry, Applied: !entry.IsPending(now)}

	if result.Applied {
		restore, superseded, err := l.restoreValue(ctx, s, *entry, now)
		if err != nil {
			return nil, err
		}
		if !superseded && restore != LiveValue(*staff, entry.Category) {
			if err := l.apply(ctx, s, staff, entry.Category, restore); err != nil {
				return nil, err
			}
		}
	}

	if err := s.DeleteChange(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete change %s: %w", id, err)
	}
	result.RevertedValue = LiveValue(*staff, entry.Category)
	return result, nil
}

// restoreValue finds what the field held before entry took effect.
func (l *ChangeLedger) restoreValue(ctx context.Context, s ChangeStore, entry ChangeEntry, now time.Time) (value string, superseded bool, err error) {
	applied, err := s.ListChanges(ctx, ChangeFilter{StaffID: entry.StaffID, Category: entry.Category, EffectiveBy: &now})
	if err != nil {
		return "", false, fmt.Errorf("failed to load changes: %w", err)
	}

	idx := -1
	for i, e := range applied {
		if e.ID == entry.ID {
			idx = i
		}
	}
	if idx >= 0 && idx < len(applied)-1 {
		return "", true, nil
	}

	value = entry.OldValue
	for i := len(applied) - 1; i >= 0; i-- {
		e := applied[i]
		if e.ID != entry.ID && e.EffectiveFrom.Before(entry.EffectiveFrom) {
			value = e.NewValue
			break
		}
	}
	return value, false, nil
}

// History returns a staff member's changes split at now.
func (l *ChangeLedger) History(ctx context.Context, s Store, staffID StaffID) (*History, error) {
	if _, err := s.GetStaff(ctx, staffID); err != nil {
		return nil, err
	}
	entries, err := s.ListChanges(ctx, ChangeFilter{StaffID: staffID})
	if err != nil {
		return nil, fmt.Errorf("failed to load changes: %w", err)
	}

	now := l.clock()
	h := &History{Applied: []ChangeEntry{}, Pending: []ChangeEntry{}}
	for _, e := range entries {
		if e.IsPending(now) {
			h.Pending = append(h.Pending, e)
		} else {
			h.Applied = append(h.Applied, e)
		}
	}
	return h, nil
}

// Annotate replaces author and reason. Values and dates are immutable.
func (l *ChangeLedger) Annotate(ctx context.Context, s ChangeStore, id ChangeID, author, reason string) error {
	if _, err := s.GetChange(ctx, id); err != nil {
		return err
	}
	if author == "" {
		return generic.NewValidation("invalid_input", "author", "required")
	}
	return s.AnnotateChange(ctx, id, author, reason)
}

// =============================================================================
// PENDING ENTRIES
// =============================================================================

// DueEntries lists future-dated entries whose effective date has passed.
func (l *ChangeLedger) DueEntries(ctx context.Context, s ChangeStore) ([]ChangeEntry, error) {
	now := l.clock()
	return s.ListChanges(ctx, ChangeFilter{EffectiveBy: &now, FutureDated: true})
}

// ApplyDue applies one due entry if it is still the latest effective entry of
// its category and the live value differs. Running it twice is harmless.
func (l *ChangeLedger) ApplyDue(ctx context.Context, s Store, entry ChangeEntry) (bool, error) {
	now := l.clock()
	if entry.IsPending(now) {
		return false, nil
	}

	applied, err := s.ListChanges(ctx, ChangeFilter{StaffID: entry.StaffID, Category: entry.Category, EffectiveBy: &now})
	if err != nil {
		return false, fmt.Errorf("failed to load changes: %w", err)
	}
	if len(applied) == 0 || applied[len(applied)-1].ID != entry.ID {
		return false, nil
	}

	staff, err := s.GetStaff(ctx, entry.StaffID)
	if err != nil {
		return false, err
	}
	if LiveValue(*staff, entry.Category) == entry.NewValue {
		return false, nil
	}
	if err := l.apply(ctx, s, staff, entry.Category, entry.NewValue); err != nil {
		return false, err
	}
	return true, nil
}

func (l *ChangeLedger) apply(ctx context.Context, s StaffStore, staff *StaffMember, c ChangeCategory, value string) error {
	if err := ApplyValue(staff, c, value); err != nil {
		return err
	}
	if err := validateStaff(*staff); err != nil {
		return err
	}
	if err := s.UpdateStaff(ctx, *staff); err != nil {
		return fmt.Errorf("failed to update staff %s: %w", staff.ID, err)
	}
	return nil
}
