package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
)

type queries struct {
	q queryer
}

func dateArg(tp generic.TimePoint) time.Time { return tp.StartOfDay() }

func requireRow(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return generic.NewNotFound(kind, id)
	}
	return nil
}

// =============================================================================
// STAFF
// =============================================================================

const staffColumns = `id, name, role, active, contracted_hours::text, pay_rate::text,
	employment_start, employment_end, color`

func scanStaff(row pgx.Row) (holiday.StaffMember, error) {
	var (
		m              holiday.StaffMember
		id, name, role string
		hours, payRate string
		start          time.Time
		end            *time.Time
	)
	if err := row.Scan(&id, &name, &role, &m.Active, &hours, &payRate, &start, &end, &m.Color); err != nil {
		return m, err
	}
	m.ID = holiday.StaffID(id)
	m.Name = name
	m.Role = holiday.Role(role)
	m.ContractedHours = generic.MustParseDecimal(hours)
	m.PayRate = generic.MustParseDecimal(payRate)
	m.EmploymentStart = generic.DateOf(start)
	if end != nil {
		e := generic.DateOf(*end)
		m.EmploymentEnd = &e
	}
	return m, nil
}

func endArg(m holiday.StaffMember) *time.Time {
	if m.EmploymentEnd == nil {
		return nil
	}
	t := dateArg(*m.EmploymentEnd)
	return &t
}

func (q *queries) GetStaff(ctx context.Context, id holiday.StaffID) (*holiday.StaffMember, error) {
	m, err := scanStaff(q.q.QueryRow(ctx, "SELECT "+staffColumns+" FROM staff WHERE id = $1", string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
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
		query += " WHERE active"
	}
	query += " ORDER BY name"

	rows, err := q.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	var staff []holiday.StaffMember
	for rows.Next() {
		m, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		staff = append(staff, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating staff: %w", err)
	}
	return staff, nil
}

func (q *queries) CountActiveStaff(ctx context.Context) (int, error) {
	var n int
	err := q.q.QueryRow(ctx, "SELECT COUNT(*) FROM staff WHERE active").Scan(&n)
	return n, err
}

func (q *queries) InsertStaff(ctx context.Context, m holiday.StaffMember) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO staff (id, name, role, active, contracted_hours, pay_rate,
			employment_start, employment_end, color)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9)`,
		string(m.ID), m.Name, string(m.Role), m.Active,
		m.ContractedHours.String(), m.PayRate.String(),
		dateArg(m.EmploymentStart), endArg(m), m.Color,
	)
	switch uniqueViolation(err) {
	case "":
	case "staff_name_key":
		return generic.ErrDuplicateName
	default:
		return generic.NewValidation("duplicate_id", "id", "staff %s already exists", m.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert staff: %w", err)
	}
	return nil
}

func (q *queries) UpdateStaff(ctx context.Context, m holiday.StaffMember) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE staff SET
			name = $2, role = $3, active = $4, contracted_hours = $5::numeric,
			pay_rate = $6::numeric, employment_start = $7, employment_end = $8, color = $9
		WHERE id = $1`,
		string(m.ID), m.Name, string(m.Role), m.Active,
		m.ContractedHours.String(), m.PayRate.String(),
		dateArg(m.EmploymentStart), endArg(m), m.Color,
	)
	if uniqueViolation(err) != "" {
		return generic.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
	}
	return requireRow(tag, "staff", string(m.ID))
}

func (q *queries) DeleteStaff(ctx context.Context, id holiday.StaffID) error {
	tag, err := q.q.Exec(ctx, "DELETE FROM staff WHERE id = $1", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete staff: %w", err)
	}
	return requireRow(tag, "staff", string(id))
}

// LockStaff takes a row lock held until the transaction ends.
func (q *queries) LockStaff(ctx context.Context, id holiday.StaffID) error {
	var got string
	err := q.q.QueryRow(ctx, "SELECT id FROM staff WHERE id = $1 FOR UPDATE", string(id)).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return generic.NewNotFound("staff", string(id))
	}
	if err != nil {
		return fmt.Errorf("failed to lock staff: %w", err)
	}
	return nil
}

// =============================================================================
// SHIFTS
// =============================================================================

const shiftColumns = `id, staff_id, period, week, start_at, end_at, shift_type,
	overtime, call_out, solo, training, short_notice, payment_period_end, year_end, notes`

func scanShift(row pgx.Row) (holiday.ShiftRecord, error) {
	var (
		s                 holiday.ShiftRecord
		id, staffID, kind string
	)
	err := row.Scan(&id, &staffID, &s.Period, &s.Week, &s.Start, &s.End, &kind,
		&s.Overtime, &s.CallOut, &s.Solo, &s.Training, &s.ShortNotice,
		&s.PaymentPeriodEnd, &s.YearEnd, &s.Notes)
	if err != nil {
		return s, err
	}
	s.ID = holiday.ShiftID(id)
	s.StaffID = holiday.StaffID(staffID)
	s.Type = holiday.ShiftType(kind)
	s.Start = s.Start.UTC()
	s.End = s.End.UTC()
	return s, nil
}

func (q *queries) GetShift(ctx context.Context, id holiday.ShiftID) (*holiday.ShiftRecord, error) {
	s, err := scanShift(q.q.QueryRow(ctx, "SELECT "+shiftColumns+" FROM shifts WHERE id = $1", string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.NewNotFound("shift", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return &s, nil
}

func (q *queries) SaveShift(ctx context.Context, s holiday.ShiftRecord) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			staff_id = EXCLUDED.staff_id,
			period = EXCLUDED.period,
			week = EXCLUDED.week,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			shift_type = EXCLUDED.shift_type,
			overtime = EXCLUDED.overtime,
			call_out = EXCLUDED.call_out,
			solo = EXCLUDED.solo,
			training = EXCLUDED.training,
			short_notice = EXCLUDED.short_notice,
			payment_period_end = EXCLUDED.payment_period_end,
			year_end = EXCLUDED.year_end,
			notes = EXCLUDED.notes`,
		string(s.ID), string(s.StaffID), s.Period, s.Week, s.Start.UTC(), s.End.UTC(), string(s.Type),
		s.Overtime, s.CallOut, s.Solo, s.Training, s.ShortNotice, s.PaymentPeriodEnd, s.YearEnd, s.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

func (q *queries) DeleteShift(ctx context.Context, id holiday.ShiftID) error {
	tag, err := q.q.Exec(ctx, "DELETE FROM shifts WHERE id = $1", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	return requireRow(tag, "shift", string(id))
}

func (q *queries) ShiftsInRange(ctx context.Context, staffID holiday.StaffID, from, to time.Time) ([]holiday.ShiftRecord, error) {
	rows, err := q.q.Query(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE staff_id = $1 AND start_at >= $2 AND start_at <= $3
		ORDER BY start_at, id`,
		string(staffID), from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []holiday.ShiftRecord
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}
	return shifts, nil
}

func (q *queries) LatestYearEndMarker(ctx context.Context, onOrBefore time.Time) (*time.Time, error) {
	var at *time.Time
	err := q.q.QueryRow(ctx,
		"SELECT MAX(start_at) FROM shifts WHERE year_end AND start_at <= $1", onOrBefore.UTC(),
	).Scan(&at)
	if err != nil {
		return nil, fmt.Errorf("failed to scan year-end markers: %w", err)
	}
	if at != nil {
		t := at.UTC()
		at = &t
	}
	return at, nil
}

// =============================================================================
// CHANGE LEDGER
// =============================================================================

const changeColumns = `id, staff_id, category, old_value, new_value,
	effective_from, recorded_at, author, reason`

func scanChange(row pgx.Row) (holiday.ChangeEntry, error) {
	var (
		c                     holiday.ChangeEntry
		id, staffID, category string
	)
	err := row.Scan(&id, &staffID, &category, &c.OldValue, &c.NewValue,
		&c.EffectiveFrom, &c.RecordedAt, &c.Author, &c.Reason)
	if err != nil {
		return c, err
	}
	c.ID = holiday.ChangeID(id)
	c.StaffID = holiday.StaffID(staffID)
	c.Category = holiday.ChangeCategory(category)
	c.EffectiveFrom = c.EffectiveFrom.UTC()
	c.RecordedAt = c.RecordedAt.UTC()
	return c, nil
}

func (q *queries) InsertChange(ctx context.Context, c holiday.ChangeEntry) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO staff_changes (`+changeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(c.ID), string(c.StaffID), string(c.Category), c.OldValue, c.NewValue,
		c.EffectiveFrom.UTC(), c.RecordedAt.UTC(), c.Author, c.Reason,
	)
	if uniqueViolation(err) != "" {
		return generic.NewValidation("duplicate_id", "id", "change %s already exists", c.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert change: %w", err)
	}
	return nil
}

func (q *queries) GetChange(ctx context.Context, id holiday.ChangeID) (*holiday.ChangeEntry, error) {
	c, err := scanChange(q.q.QueryRow(ctx, "SELECT "+changeColumns+" FROM staff_changes WHERE id = $1", string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
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
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.StaffID != "" {
		add("staff_id = $%d", string(f.StaffID))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.EffectiveBy != nil {
		add("effective_from <= $%d", f.EffectiveBy.UTC())
	}
	if f.FutureDated {
		where = append(where, "recorded_at < effective_from")
	}

	query := "SELECT " + changeColumns + " FROM staff_changes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY effective_from, recorded_at, id"

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	var changes []holiday.ChangeEntry
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}
	return changes, nil
}

func (q *queries) AnnotateChange(ctx context.Context, id holiday.ChangeID, author, reason string) error {
	tag, err := q.q.Exec(ctx,
		"UPDATE staff_changes SET author = $2, reason = $3 WHERE id = $1", string(id), author, reason)
	if err != nil {
		return fmt.Errorf("failed to annotate change: %w", err)
	}
	return requireRow(tag, "change", string(id))
}

func (q *queries) DeleteChange(ctx context.Context, id holiday.ChangeID) error {
	tag, err := q.q.Exec(ctx, "DELETE FROM staff_changes WHERE id = $1", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete change: %w", err)
	}
	return requireRow(tag, "change", string(id))
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

const entitlementColumns = `e.staff_id, e.year_start, e.year_end, e.contracted_hours::text,
	e.entitlement_days::text, e.entitlement_hours::text, e.days_taken::text,
	e.hours_taken::text, e.zero_hours`

func scanEntitlement(row pgx.Row) (holiday.Entitlement, error) {
	var (
		e                                   holiday.Entitlement
		staffID                             string
		start, end                          time.Time
		hours, days, entHours, taken, hTook string
	)
	err := row.Scan(&staffID, &start, &end, &hours, &days, &entHours, &taken, &hTook, &e.ZeroHours)
	if err != nil {
		return e, err
	}
	e.StaffID = holiday.StaffID(staffID)
	e.YearStart = generic.DateOf(start)
	e.YearEnd = generic.DateOf(end)
	e.ContractedHours = generic.MustParseDecimal(hours)
	e.EntitlementDays = generic.NewAmountFromDecimal(generic.MustParseDecimal(days), generic.UnitDays)
	e.EntitlementHours = generic.NewAmountFromDecimal(generic.MustParseDecimal(entHours), generic.UnitHours)
	e.DaysTaken = generic.NewAmountFromDecimal(generic.MustParseDecimal(taken), generic.UnitDays)
	e.HoursTaken = generic.NewAmountFromDecimal(generic.MustParseDecimal(hTook), generic.UnitHours)
	return e, nil
}

func (q *queries) GetEntitlement(ctx context.Context, staffID holiday.StaffID, yearStart generic.TimePoint) (*holiday.Entitlement, error) {
	e, err := scanEntitlement(q.q.QueryRow(ctx,
		"SELECT "+entitlementColumns+" FROM holiday_entitlements e WHERE e.staff_id = $1 AND e.year_start = $2",
		string(staffID), dateArg(yearStart)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.NewNotFound("entitlement", string(staffID)+"/"+yearStart.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	return &e, nil
}

// UpsertEntitlement leaves days_taken and hours_taken alone on conflict.
func (q *queries) UpsertEntitlement(ctx context.Context, e holiday.Entitlement) (bool, error) {
	var inserted bool
	err := q.q.QueryRow(ctx, `
		INSERT INTO holiday_entitlements (staff_id, year_start, year_end, contracted_hours,
			entitlement_days, entitlement_hours, days_taken, hours_taken, zero_hours)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9)
		ON CONFLICT (staff_id, year_start) DO UPDATE SET
			year_end = EXCLUDED.year_end,
			contracted_hours = EXCLUDED.contracted_hours,
			entitlement_days = EXCLUDED.entitlement_days,
			entitlement_hours = EXCLUDED.entitlement_hours,
			zero_hours = EXCLUDED.zero_hours
		RETURNING (xmax = 0)`,
		string(e.StaffID), dateArg(e.YearStart), dateArg(e.YearEnd), e.ContractedHours.String(),
		e.EntitlementDays.Value.String(), e.EntitlementHours.Value.String(),
		e.DaysTaken.Value.String(), e.HoursTaken.Value.String(), e.ZeroHours,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return inserted, nil
}

func (q *queries) SetUsage(ctx context.Context, staffID holiday.StaffID, yearStart generic.TimePoint, daysTaken, hoursTaken decimal.Decimal) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE holiday_entitlements SET days_taken = $3::numeric, hours_taken = $4::numeric
		WHERE staff_id = $1 AND year_start = $2`,
		string(staffID), dateArg(yearStart), daysTaken.String(), hoursTaken.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to set usage: %w", err)
	}
	return requireRow(tag, "entitlement", string(staffID)+"/"+yearStart.String())
}

func (q *queries) ListEntitlements(ctx context.Context, f holiday.EntitlementFilter) ([]holiday.Entitlement, error) {
	var (
		where []string
		args  []any
	)
	if f.StaffID != "" {
		args = append(args, string(f.StaffID))
		where = append(where, fmt.Sprintf("e.staff_id = $%d", len(args)))
	}
	if f.YearStart != nil {
		args = append(args, dateArg(*f.YearStart))
		where = append(where, fmt.Sprintf("e.year_start = $%d", len(args)))
	}

	query := "SELECT " + entitlementColumns + " FROM holiday_entitlements e"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.year_start, e.staff_id"
	return q.queryEntitlements(ctx, query, args...)
}

func (q *queries) CountEntitlements(ctx context.Context, yearStart generic.TimePoint) (int, error) {
	var n int
	err := q.q.QueryRow(ctx,
		"SELECT COUNT(*) FROM holiday_entitlements WHERE year_start = $1", dateArg(yearStart),
	).Scan(&n)
	return n, err
}

func (q *queries) DeleteEntitlement(ctx context.Context, staffID holiday.StaffID, yearStart generic.TimePoint) error {
	tag, err := q.q.Exec(ctx,
		"DELETE FROM holiday_entitlements WHERE staff_id = $1 AND year_start = $2",
		string(staffID), dateArg(yearStart))
	if err != nil {
		return fmt.Errorf("failed to delete entitlement: %w", err)
	}
	return requireRow(tag, "entitlement", string(staffID)+"/"+yearStart.String())
}

func (q *queries) OrphanedEntitlements(ctx context.Context) ([]holiday.Entitlement, error) {
	return q.queryEntitlements(ctx, `
		SELECT `+entitlementColumns+`
		FROM holiday_entitlements e
		LEFT JOIN staff s ON s.id = e.staff_id
		WHERE s.id IS NULL
		ORDER BY e.year_start, e.staff_id`)
}

func (q *queries) queryEntitlements(ctx context.Context, query string, args ...any) ([]holiday.Entitlement, error) {
	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entitlements: %w", err)
	}
	defer rows.Close()

	var out []holiday.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entitlement: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entitlements: %w", err)
	}
	return out, nil
}
