package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/jackc/pgx/v5"
)

const shiftNameConstraint = "shifts_name_key"

// Weekday columns follow time.Weekday order.
const shiftColumns = `
	id, name, start_time, end_time, crosses_midnight, work_duration_hours, break_minutes,
	sunday, monday, tuesday, wednesday, thursday, friday, saturday,
	grace_late_minutes, grace_early_leave_minutes, is_default, is_active,
	created_at, updated_at`

type shiftRepository struct {
	db *database.DB
}

func scanShift(row pgx.Row) (shift.Shift, error) {
	var s shift.Shift
	err := row.Scan(
		&s.ID, &s.Name, &s.StartTime, &s.EndTime, &s.CrossesMidnight, &s.WorkDurationHours, &s.BreakMinutes,
		&s.Weekdays[0], &s.Weekdays[1], &s.Weekdays[2], &s.Weekdays[3], &s.Weekdays[4], &s.Weekdays[5], &s.Weekdays[6],
		&s.GraceLateMinutes, &s.GraceEarlyLeaveMinutes, &s.IsDefault, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

// Create implements shift.ShiftRepository.
func (r *shiftRepository) Create(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO shifts (
			name, start_time, end_time, crosses_midnight, work_duration_hours, break_minutes,
			sunday, monday, tuesday, wednesday, thursday, friday, saturday,
			grace_late_minutes, grace_early_leave_minutes, is_default, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		s.Name, s.StartTime, s.EndTime, s.CrossesMidnight, s.WorkDurationHours, s.BreakMinutes,
		s.Weekdays[0], s.Weekdays[1], s.Weekdays[2], s.Weekdays[3], s.Weekdays[4], s.Weekdays[5], s.Weekdays[6],
		s.GraceLateMinutes, s.GraceEarlyLeaveMinutes, s.IsDefault, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, shiftNameConstraint) {
			return shift.Shift{}, shift.ErrShiftNameExists
		}
		return shift.Shift{}, fmt.Errorf("failed to create shift: %w", err)
	}

	return s, nil
}

// Update implements shift.ShiftRepository.
func (r *shiftRepository) Update(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE shifts SET
			name = $2, start_time = $3, end_time = $4, crosses_midnight = $5,
			work_duration_hours = $6, break_minutes = $7,
			sunday = $8, monday = $9, tuesday = $10, wednesday = $11,
			thursday = $12, friday = $13, saturday = $14,
			grace_late_minutes = $15, grace_early_leave_minutes = $16,
			is_default = $17, is_active = $18,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		s.ID, s.Name, s.StartTime, s.EndTime, s.CrossesMidnight,
		s.WorkDurationHours, s.BreakMinutes,
		s.Weekdays[0], s.Weekdays[1], s.Weekdays[2], s.Weekdays[3],
		s.Weekdays[4], s.Weekdays[5], s.Weekdays[6],
		s.GraceLateMinutes, s.GraceEarlyLeaveMinutes,
		s.IsDefault, s.IsActive,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrShiftNotFound
		}
		if isUniqueViolation(err, shiftNameConstraint) {
			return shift.Shift{}, shift.ErrShiftNameExists
		}
		return shift.Shift{}, fmt.Errorf("failed to update shift: %w", err)
	}

	return s, nil
}

// GetByID implements shift.ShiftRepository.
func (r *shiftRepository) GetByID(ctx context.Context, id string) (shift.Shift, error) {
	if !validator.IsValidUUID(id) {
		return shift.Shift{}, shift.ErrShiftNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := "SELECT " + shiftColumns + " FROM shifts WHERE id = $1"

	s, err := scanShift(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrShiftNotFound
		}
		return shift.Shift{}, fmt.Errorf("failed to get shift by ID: %w", err)
	}

	return s, nil
}

// GetDefault implements shift.ShiftRepository.
func (r *shiftRepository) GetDefault(ctx context.Context) (*shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := "SELECT " + shiftColumns + `
		FROM shifts
		WHERE is_default = TRUE AND is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`

	s, err := scanShift(q.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get default shift: %w", err)
	}

	return &s, nil
}

// List implements shift.ShiftRepository.
func (r *shiftRepository) List(ctx context.Context, filter shift.ShiftFilter) ([]shift.Shift, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseWhere := "1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.IsActive != nil {
		baseWhere += fmt.Sprintf(" AND is_active = $%d", argIdx)
		args = append(args, *filter.IsActive)
		argIdx++
	}

	countQuery := "SELECT COUNT(*) FROM shifts WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count shifts: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM shifts
		WHERE %s
		ORDER BY name ASC
		LIMIT $%d OFFSET $%d
	`, shiftColumns, baseWhere, argIdx, argIdx+1)

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	offset := (max(filter.Page, 1) - 1) * limit
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []shift.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate shifts: %w", err)
	}

	return shifts, total, nil
}

// ClearDefault implements shift.ShiftRepository.
func (r *shiftRepository) ClearDefault(ctx context.Context, exceptID string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE shifts
		SET is_default = FALSE, updated_at = NOW()
		WHERE is_default = TRUE AND id::text <> $1
	`

	if _, err := q.Exec(ctx, query, exceptID); err != nil {
		return fmt.Errorf("failed to clear default shift: %w", err)
	}
	return nil
}

func NewShiftRepository(db *database.DB) shift.ShiftRepository {
	return &shiftRepository{db: db}
}

type assignmentRepository struct {
	db  *database.DB
	loc *time.Location
}

const assignmentColumns = `
	id, person_id, shift_id, effective_start_date, effective_end_date,
	assigned_by, notes, created_at, updated_at`

func (r *assignmentRepository) scan(row pgx.Row) (shift.Assignment, error) {
	var a shift.Assignment
	err := row.Scan(
		&a.ID, &a.PersonID, &a.ShiftID, &a.EffectiveStartDate, &a.EffectiveEndDate,
		&a.AssignedBy, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return shift.Assignment{}, err
	}
	a.EffectiveStartDate = dbtime.NormalizeDate(a.EffectiveStartDate, r.loc)
	if a.EffectiveEndDate != nil {
		end := dbtime.NormalizeDate(*a.EffectiveEndDate, r.loc)
		a.EffectiveEndDate = &end
	}
	return a, nil
}

// Create implements shift.AssignmentRepository.
func (r *assignmentRepository) Create(ctx context.Context, a shift.Assignment) (shift.Assignment, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO shift_assignments (
			person_id, shift_id, effective_start_date, effective_end_date, assigned_by, notes
		) VALUES ($1, $2, $3::date, $4::date, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		a.PersonID, a.ShiftID, dbtime.FormatDate(a.EffectiveStartDate), formatOptionalDate(a.EffectiveEndDate),
		a.AssignedBy, a.Notes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return shift.Assignment{}, fmt.Errorf("failed to create shift assignment: %w", err)
	}

	return a, nil
}

// FindCovering implements shift.AssignmentRepository.
func (r *assignmentRepository) FindCovering(ctx context.Context, personID string, date time.Time) (*shift.Assignment, error) {
	q := GetQuerier(ctx, r.db)

	query := "SELECT " + assignmentColumns + `
		FROM shift_assignments
		WHERE person_id = $1
		  AND effective_start_date <= $2::date
		  AND (effective_end_date IS NULL OR effective_end_date >= $2::date)
		ORDER BY effective_start_date DESC, created_at DESC
		LIMIT 1`

	a, err := r.scan(q.QueryRow(ctx, query, personID, dbtime.FormatDate(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find covering assignment: %w", err)
	}

	return &a, nil
}

// CloseOverlapping implements shift.AssignmentRepository.
func (r *assignmentRepository) CloseOverlapping(ctx context.Context, personID string, startDate time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE shift_assignments
		SET effective_end_date = $2::date - 1, updated_at = NOW()
		WHERE person_id = $1
		  AND effective_start_date < $2::date
		  AND (effective_end_date IS NULL OR effective_end_date >= $2::date)
	`

	tag, err := q.Exec(ctx, query, personID, dbtime.FormatDate(startDate))
	if err != nil {
		return 0, fmt.Errorf("failed to close overlapping assignments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByPerson implements shift.AssignmentRepository.
func (r *assignmentRepository) ListByPerson(ctx context.Context, personID string) ([]shift.Assignment, error) {
	q := GetQuerier(ctx, r.db)

	query := "SELECT " + assignmentColumns + `
		FROM shift_assignments
		WHERE person_id = $1
		ORDER BY effective_start_date DESC`

	rows, err := q.Query(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift assignments: %w", err)
	}
	defer rows.Close()

	var assignments []shift.Assignment
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shift assignments: %w", err)
	}

	return assignments, nil
}

func NewAssignmentRepository(db *database.DB, loc *time.Location) shift.AssignmentRepository {
	return &assignmentRepository{db: db, loc: loc}
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := dbtime.FormatDate(*t)
	return &s
}
