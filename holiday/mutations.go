package holiday

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/holiday-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// STAFF
// =============================================================================

// CreateStaff inserts a staff member and, if active, creates their current
// year row. An empty ID is derived from the display name.
func (e *Engine) CreateStaff(ctx context.Context, m StaffMember) (*StaffMember, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Role = Role(strings.ToLower(string(m.Role)))
	if err := validateStaff(m); err != nil {
		return nil, err
	}
	if m.ID == "" {
		m.ID = StaffID(e.identity(m.Name))
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		if err := s.InsertStaff(ctx, m); err != nil {
			return err
		}
		_, err := e.dispatcher.Dispatch(ctx, s, Event{Kind: EventEmploymentChanged, StaffID: m.ID})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("staff created", zap.String("staff", string(m.ID)), zap.String("name", m.Name))
	return &m, nil
}

// DeleteStaff hard-deletes a staff member with their shifts, ledger entries
// and entitlement rows.
func (e *Engine) DeleteStaff(ctx context.Context, id StaffID) error {
	err := e.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetStaff(ctx, id); err != nil {
			return err
		}
		return s.DeleteStaff(ctx, id)
	})
	if err != nil {
		return err
	}
	e.logger.Info("staff deleted", zap.String("staff", string(id)))
	return nil
}

// EmploymentUpdate changes employment dates through the ledger. Nil fields
// are left alone; ClearEnd removes the end date.
type EmploymentUpdate struct {
	Start    *generic.TimePoint
	End      *generic.TimePoint
	ClearEnd bool
	Author   string
	Reason   string
}

// SetEmployment records the date changes effective now and recalculates
// once for both.
func (e *Engine) SetEmployment(ctx context.Context, staffID StaffID, u EmploymentUpdate) ([]ChangeEntry, error) {
	var out []ChangeEntry
	err := e.store.WithTx(ctx, func(s Store) error {
		staff, err := s.GetStaff(ctx, staffID)
		if err != nil {
			return err
		}

		reqs := employmentRequests(*staff, staffID, u)
		if len(reqs) == 0 {
			return generic.NewValidation("no_op_change", "employment", "no employment date changes")
		}
		for _, req := range reqs {
			entry, _, err := e.ledger.Record(ctx, s, req)
			if err != nil {
				return err
			}
			out = append(out, *entry)
		}

		_, err = e.dispatcher.Dispatch(ctx, s, Event{Kind: EventEmploymentChanged, StaffID: staffID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// employmentRequests orders the edits so the record is valid after each one:
// when the new start lies after the current end, the end moves first.
func employmentRequests(staff StaffMember, staffID StaffID, u EmploymentUpdate) []ChangeRequest {
	base := ChangeRequest{StaffID: staffID, Author: u.Author, Reason: u.Reason}

	var start, end *ChangeRequest
	if u.Start != nil && u.Start.String() != LiveValue(staff, ChangeEmploymentStart) {
		r := base
		r.Category, r.NewValue = ChangeEmploymentStart, u.Start.String()
		start = &r
	}
	switch {
	case u.ClearEnd && staff.EmploymentEnd != nil:
		r := base
		r.Category, r.NewValue = ChangeEmploymentEnd, ""
		end = &r
	case u.End != nil && u.End.String() != LiveValue(staff, ChangeEmploymentEnd):
		r := base
		r.Category, r.NewValue = ChangeEmploymentEnd, u.End.String()
		end = &r
	}

	var reqs []ChangeRequest
	endFirst := start != nil && end != nil && staff.EmploymentEnd != nil && u.Start.After(*staff.EmploymentEnd)
	if end != nil && endFirst {
		reqs = append(reqs, *end)
	}
	if start != nil {
		reqs = append(reqs, *start)
	}
	if end != nil && !endFirst {
		reqs = append(reqs, *end)
	}
	return reqs
}

// =============================================================================
// SHIFTS
// =============================================================================

// SaveShift inserts or updates a shift and dispatches the recalculation. A
// shift whose year-end flag turns on rolls the following year over first, so
// the recalculation that follows finds the new rows already in place.
func (e *Engine) SaveShift(ctx context.Context, shift ShiftRecord) (*ShiftRecord, error) {
	if err := validateShift(shift); err != nil {
		return nil, err
	}
	if shift.ID == "" {
		shift.ID = ShiftID(uuid.NewString())
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetStaff(ctx, shift.StaffID); err != nil {
			return err
		}

		before, err := s.GetShift(ctx, shift.ID)
		switch {
		case err == nil:
		case generic.IsNotFound(err):
			before = nil
		default:
			return err
		}

		if err := s.SaveShift(ctx, shift); err != nil {
			return fmt.Errorf("failed to save shift %s: %w", shift.ID, err)
		}

		if shift.YearEnd && (before == nil || !before.YearEnd) {
			if _, err := e.dispatcher.Rollover(ctx, s, shift.Date()); err != nil {
				return fmt.Errorf("rollover after year-end marker: %w", err)
			}
		}

		_, err = e.dispatcher.Dispatch(ctx, s, Event{Kind: EventShiftWritten, Before: before, After: &shift})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// DeleteShift removes a shift and dispatches for its owner.
func (e *Engine) DeleteShift(ctx context.Context, id ShiftID) error {
	return e.store.WithTx(ctx, func(s Store) error {
		before, err := s.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if err := s.DeleteShift(ctx, id); err != nil {
			return fmt.Errorf("failed to delete shift %s: %w", id, err)
		}
		_, err = e.dispatcher.Dispatch(ctx, s, Event{Kind: EventShiftWritten, Before: before})
		return err
	})
}
