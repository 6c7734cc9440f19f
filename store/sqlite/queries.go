package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

// instantLayout is fixed width so TEXT comparison orders by time.
const instantLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatInstant(t time.Time) string { return t.UTC().Format(instantLayout) }

func parseInstant(s string) (time.Time, error) {
	t, err := time.Parse(instantLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// queries holds every table operation. The Store runs them on the database
// handle; WithTx runs them on a *sql.Tx.
type queries struct {
	q queryer
}

// =============================================================================
// STAFF STORE
// =============================================================================

const staffColumns = `id, name, role, active, contracted_hours, pay_rate,
	employment_start, employment_end, color`

func scanStaff(row scanner) (holiday.StaffMember, error) {
	var (
		m              holiday.StaffMember
		active         int
		hours, payRate string
		start          string
		end            sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Role, &active, &hours, &payRate, &start, &end, &m.Color); err != nil {
		return m, err
	}

	m.Active = active != 0
	m.ContractedHours = generic.MustParseDecimal(hours)
	m.PayRate = generic.MustParseDecimal(payRate)

	d, err := generic.ParseDate(start)
	if err != nil {
		return m, fmt.Errorf("staff %s: bad employment_start: %w", m.ID, err)
	}
	m.EmploymentStart = d
	if end.Valid && end.String != "" {
		e, err := generic.ParseDate(end.String)
		if err != nil {
			return m, fmt.Errorf("staff %s: bad employment_end: %w", m.ID, err)
		}
		m.EmploymentEnd = &e
	}
	return m, nil
}

func endValue(m holiday.StaffMember) sql.NullString {
	if m.EmploymentEnd == nil {
		return sql.NullString{}
	}
	return nullString(m.EmploymentEnd.String())
}

func (q *queries) GetStaff(ctx context.Context, id holiday.StaffID) (*holiday.StaffMember, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+staffColumns+" FROM staff WHERE id = ?", id)
	m, err := scanStaff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.NewNotFound("staff", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	return &m, nil
}

func (q *queries) ListStaff(ctx context.Context, activeOnly bool) ([]holiday.StaffMember, error) {
	query := "SELECT " + staffColumns + " FROM staff"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY name"

	rows, err := q.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var staff []holiday.StaffMember
	for rows.Next() {
		m, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		staff = append(staff, m)
	}
	return staff, rows.Err()
}

func (q *queries) CountActiveStaff(ctx context.Context) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM staff WHERE active = 1").Scan(&n)
	return n, err
}

func (q *queries) InsertStaff(ctx context.Context, m holiday.StaffMember) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO staff (`+staffColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Role, boolInt(m.Active),
		m.ContractedHours.String(), m.PayRate.String(),
		m.EmploymentStart.String(), endValue(m), m.Color,
	)
	if isUniqueConstraintError(err) {
		if strings.Contains(err.Error(), "staff.name") {
			return generic.ErrDuplicateName
		}
		return generic.NewValidation("duplicate_id", "id", "staff %s already exists", m.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert staff: %w", err)
	}
	return nil
}

func (q *queries) UpdateStaff(ctx context.Context, m holiday.StaffMember) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE staff SET
			name = ?, role = ?, active = ?, contracted_hours = ?, pay_rate = ?,
			employment_start = ?, employment_end = ?, color = ?
		WHERE id = ?`,
		m.Name, m.Role, boolInt(m.Active), m.ContractedHours.String(), m.PayRate.String(),
		m.EmploymentStart.String(), endValue(m), m.Color, m.ID,
	)
	if isUniqueConstraintError(err) {
		return generic.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
	}
	return requireRow(res, "staff", string(m.ID))
}

func (q *queries) DeleteStaff(ctx context.Context, id holiday.StaffID) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM staff WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete staff: %w", err)
	}
	return requireRow(res, "staff", string(id))
}

func (q *queries) LockStaff(ctx context.Context, id holiday.StaffID) error {
	return nil
}

// =============================================================================
// SHIFT STORE
// =============================================================================

const shiftColumns = `id, staff_id, period, week, start_at, end_at, shift_type,
	overtime, call_out, solo, training, short_notice, payment_period_end, year_end, notes`

func scanShift(row scanner) (holiday.ShiftRecord, error) {
	var (
		s                                        holiday.ShiftRecord
		start, end                               string
		overtime, callOut, solo, training, short int
		paymentEnd, yearEnd                      int
	)
	err := row.Scan(&s.ID, &s.StaffID, &s.Period, &s.Week, &start, &end, &s.Type,
		&overtime, &callOut, &solo, &training, &short, &paymentEnd, &yearEnd, &s.Notes)
	if err != nil {
		return s, err
	}

	if s.Start, err = parseInstant(start); err != nil {
		return s, fmt.Errorf("shift %s: bad start_at: %w", s.ID, err)
	}
	if s.End, err = parseInstant(end); err != nil {
		return s, fmt.Errorf("shift %s: bad end_at: %w", s.ID, err)
	}
	s.Overtime = overtime != 0
	s.CallOut = callOut != 0
	s.Solo = solo != 0
	s.Training = training != 0
	s.ShortNotice = short != 0
	s.PaymentPeriodEnd = paymentEnd != 0
	s.YearEnd = yearEnd != 0
	return s, nil
}

func (q *queries) GetShift(ctx context.Context, id holiday.ShiftID) (*holiday.ShiftRecord, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+shiftColumns+" FROM shifts WHERE id = ?", id)
	s, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.NewNotFound("shift", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return &s, nil
}

func (q *queries) SaveShift(ctx context.Context, s holiday.ShiftRecord) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			staff_id = excluded.staff_id,
			period = excluded.period,
			week = excluded.week,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			shift_type = excluded.shift_type,
			overtime = excluded.overtime,
			call_out = excluded.call_out,
			solo = excluded.solo,
			training = excluded.training,
			short_notice = excluded.short_notice,
			payment_period_end = excluded.payment_period_end,
			year_end = excluded.year_end,
			notes = excluded.notes`,
		s.ID, s.StaffID, s.Period, s.Week, formatInstant(s.Start), formatInstant(s.End), s.Type,
		boolInt(s.Overtime), boolInt(s.CallOut), boolInt(s.Solo), boolInt(s.Training),
		boolInt(s.ShortNotice), boolInt(s.PaymentPeriodEnd), boolInt(s.YearEnd), s.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

func (q *queries) DeleteShift(ctx context.Context, id holiday.ShiftID) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM shifts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	return requireRow(res, "shift", string(id))
}

func (q *queries) ShiftsInRange(ctx context.Context, staffID holiday.StaffID, from, to time.Time) ([]holiday.ShiftRecord, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE staff_id = ? AND start_at >= ? AND start_at <= ?
		ORDER BY start_at ASC, id ASC`,
		staffID, formatInstant(from), formatInstant(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []holiday.ShiftRecord
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

func (q *queries) LatestYearEndMarker(ctx context.Context, onOrBefore time.Time) (*time.Time, error) {
	var at sql.NullString
	err := q.q.QueryRowContext(ctx,
		"SELECT MAX(start_at) FROM shifts WHERE year_end = 1 AND start_at <= ?",
		formatInstant(onOrBefore),
	).Scan(&at)
	if err != nil {
		return nil, fmt.Errorf("failed to scan year-end markers: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	t, err := parseInstant(at.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// =============================================================================
// CHANGE STORE
// =============================================================================

const changeColumns = `id, staff_id, category, old_value, new_value,
	effective_from, recorded_at, author, reason`

func scanChange(row scanner) (holiday.ChangeEntry, error) {
	var (
		c                   holiday.ChangeEntry
		effective, recorded string
	)
	err := row.Scan(&c.ID, &c.StaffID, &c.Category, &c.OldValue, &c.NewValue,
		&effective, &recorded, &c.Author, &c.Reason)
	if err != nil {
		return c, err
	}
	if c.EffectiveFrom, err = parseInstant(effective); err != nil {
		return c, fmt.Errorf("change %s: bad effective_from: %w", c.ID, err)
	}
	if c.RecordedAt, err = parseInstant(recorded); err != nil {
		return c, fmt.Errorf("change %s: bad recorded_at: %w", c.ID, err)
	}
	return c, nil
}

func (q *queries) InsertChange(ctx context.Context, c holiday.ChangeEntry) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO staff_changes (`+changeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StaffID, c.Category, c.OldValue, c.NewValue,
		formatInstant(c.EffectiveFrom), formatInstant(c.RecordedAt), c.Author, c.Reason,
	)
	if isUniqueConstraintError(err) {
		return generic.NewValidation("duplicate_id", "id", "change %s already exists", c.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert change: %w", err)
	}
	return nil
}

func (q *queries) GetChange(ctx context.Context, id holiday.ChangeID) (*holiday.ChangeEntry, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+changeColumns+" FROM staff_changes WHERE id = ?", id)
	c, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.NewNotFound("change", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get change: %w", err)
	}
	return &c, nil
}

func (q *queries) ListChanges(ctx context.Context, f holiday.ChangeFilter) ([]holiday.ChangeEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.StaffID != "" {
		where = append(where, "staff_id = ?")
		args = append(args, f.StaffID)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.EffectiveBy != nil {
		where = append(where, "effective_from <= ?")
		args = append(args, formatInstant(*f.EffectiveBy))
	}
	if f.FutureDated {
		where = append(where, "recorded_at < effective_from")
	}

	query := "SELECT " + changeColumns + " FROM staff_changes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY effective_from ASC, recorded_at ASC, id ASC"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	var changes []holiday.ChangeEntry
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (q *queries) AnnotateChange(ctx context.Context, id holiday.ChangeID, author, reason string) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE staff_changes SET author = ?, reason = ? WHERE id = ?", author, reason, id)
	if err != nil {
		return fmt.Errorf("failed to annotate change: %w", err)
	}
	return requireRow(res, "change", string(id))
}

func (q *queries) DeleteChange(ctx context.Context, id holiday.ChangeID) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM staff_changes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete change: %w", err)
	}
	return requireRow(res, "change", string(id))
}

// =============================================================================
// ENTITLEMENT STORE
// =============================================================================

const entitlementColumns = `staff_id, year_start, year_end, contracted_hours,
	entitlement_days, entitlement_hours, days_taken, hours_taken, zero_hours`

func scanEntitlement(row scanner) (holiday.Entitlement, error) {
	var (
		e                                   holiday.Entitlement
		start, end                          string
		hours, days, entHours, taken, hTook string
		zero                                int
	)
	err := row.Scan(&e.StaffID, &start, &end, &hours, &days, &entHours, &taken, &hTook, &zero)
	if err != nil {
		return e, err
	}
	if e.YearStart, err = generic.ParseDate(start); err != nil {
		return e, err
	}
	if e.YearEnd, err = generic.ParseDate(end); err != nil {
		return e, err
	}
	e.ContractedHours = generic.MustParseDecimal(hours)
	e.EntitlementDays = generic.NewAmountFromDecimal(generic.MustParseDecimal(days), generic.UnitDays)
	e.EntitlementHours = generic.NewAmountFromDecimal(generic.MustParseDecimal(entHours), generic.UnitHours)
	e.DaysTaken = generic.NewAmountFromDecimal(generic.MustParseDecimal(taken), generic.UnitDays)
	e.HoursTaken = generic.NewAmountFromDecimal(generic.MustParseDecimal(hTook), generic.UnitHours)
	e.ZeroHours = zero != 0
	return e, nil
}

func (q *queries) GetEntitlement(ctx context.Context, staffID holiday.StaffID, yearStart generic.TimePoint) (*holiday.Entitlement, error) {
	row := q.q.QueryRowContext(ctx,
		"SELECT "+entitlementColumns+" FROM holiday_entitlements WHERE staff_id = ? AND year_start = ?",
		staffID, yearStart.String())
	e, err := scanEntitlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.NewNotFound("entitlement", string(staffID)+"/"+yearStart.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	return &e, nil
}

func (q *queries) UpsertEntitlement(ctx context.Context, e holiday.Entitlement) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE holiday_entitlements SET
			year_end = ?, contracted_hours = ?, entitlement_days = ?,
			entitlement_hours = ?, zero_hours = ?
		WHERE staff_id = ? AND year_start = ?`,
		e.YearEnd.String(), e.ContractedHours.String(), e.EntitlementDays.Value.String(),
		e.EntitlementHours.Value.String(), boolInt(e.ZeroHours),
		e.StaffID, e.YearStart.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update entitlement: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n > 0 {
		return false, nil
	}

	_, err = q.q.ExecContext(ctx, `
		INSERT INTO holiday_entitlements (`+entitlementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.StaffID, e.YearStart.String(), e.YearEnd.String(), e.ContractedHours.String(),
		e.EntitlementDays.Value.String(), e.EntitlementHours.Value.String(),
		e.DaysTaken.Value.String(), e.HoursTaken.Value.String(), boolInt(e.ZeroHours),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert entitlement: %w", err)
	}
	return true, nil
}

func (q *queries) SetUsage(ctx context.Context, staffID holiday.StaffID, yearStart generic.TimePoint, daysTaken, hoursTaken decimal.Decimal) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE holiday_entitlements SET days_taken = ?, hours_taken = ?
		WHERE staff_id = ? AND year_start = ?`,
		daysTaken.String(), hoursTaken.String(), staffID, yearStart.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to set usage: %w", err)
	}
	return requireRow(res, "entitlement", string(staffID)+"/"+yearStart.String())
}

func (q *queries) ListEntitlements(ctx context.Context, f holiday.EntitlementFilter) ([]holiday.Entitlement, error) {
	var (
		where []string
		args  []any
	)
	if f.StaffID != "" {
		where = append(where, "staff_id = ?")
		args = append(args, f.StaffID)
	}
	if f.YearStart != nil {
		where = append(where, "year_start = ?")
		args = append(args, f.YearStart.String())
	}

	query := "SELECT " + entitlementColumns + " FROM holiday_entitlements"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY year_start ASC, staff_id ASC"

	return q.queryEntitlements(ctx, query, args...)
}

func (q *queries) CountEntitlements(ctx context.Context, yearStart generic.TimePoint) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM holiday_entitlements WHERE year_start = ?", yearStart.String(),
	).Scan(&n)
	return n, err
}

func (q *queries) DeleteEntitlement(ctx context.Context, staffID holiday.StaffID, yearStart generic.TimePoint) error {
	res, err := q.q.ExecContext(ctx,
		"DELETE FROM holiday_entitlements WHERE staff_id = ? AND year_start = ?",
		staffID, yearStart.String())
	if err != nil {
		return fmt.Errorf("failed to delete entitlement: %w", err)
	}
	return requireRow(res, "entitlement", string(staffID)+"/"+yearStart.String())
}

func (q *queries) OrphanedEntitlements(ctx context.Context) ([]holiday.Entitlement, error) {
	return q.queryEntitlements(ctx, `
		SELECT e.staff_id, e.year_start, e.year_end, e.contracted_hours,
		       e.entitlement_days, e.entitlement_hours, e.days_taken, e.hours_taken, e.zero_hours
		FROM holiday_entitlements e
		LEFT JOIN staff s ON s.id = e.staff_id
		WHERE s.id IS NULL
		ORDER BY e.year_start ASC, e.staff_id ASC`)
}

func (q *queries) queryEntitlements(ctx context.Context, query string, args ...any) ([]holiday.Entitlement, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entitlements: %w", err)
	}
	defer rows.Close()

	var out []holiday.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// requireRow turns "0 rows affected" into a NotFoundError.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NewNotFound(kind, id)
	}
	return nil
}
