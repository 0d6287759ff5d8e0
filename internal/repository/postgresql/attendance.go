package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const attendanceKeyConstraint = "attendances_person_work_date_key"

const attendanceColumns = `
	id, person_id, work_date, shift_id,
	clock_in_at, clock_in_status, clock_in_notes, clock_in_latitude, clock_in_longitude,
	clock_in_device_id, clock_in_qr_code_id, clock_in_method,
	clock_out_at, clock_out_status, clock_out_notes, clock_out_latitude, clock_out_longitude,
	clock_out_device_id, clock_out_qr_code_id, clock_out_method,
	scheduled_start_time, scheduled_end_time, scheduled_work_minutes,
	work_duration_minutes, effective_work_minutes, overtime_minutes, lateness_minutes, early_leave_minutes,
	is_manually_corrected, last_corrected_by, last_correction_at, correction_summary_notes,
	created_at, updated_at`

type attendanceRepository struct {
	db  *database.DB
	loc *time.Location
}

func (r *attendanceRepository) scan(row pgx.Row) (attendance.Attendance, error) {
	var a attendance.Attendance
	err := row.Scan(
		&a.ID, &a.PersonID, &a.WorkDate, &a.ShiftID,
		&a.ClockInAt, &a.ClockInStatus, &a.ClockInNotes, &a.ClockInLatitude, &a.ClockInLongitude,
		&a.ClockInDeviceID, &a.ClockInTokenID, &a.ClockInMethod,
		&a.ClockOutAt, &a.ClockOutStatus, &a.ClockOutNotes, &a.ClockOutLatitude, &a.ClockOutLongitude,
		&a.ClockOutDeviceID, &a.ClockOutTokenID, &a.ClockOutMethod,
		&a.ScheduledStartTime, &a.ScheduledEndTime, &a.ScheduledWorkMinutes,
		&a.WorkDurationMinutes, &a.EffectiveWorkMinutes, &a.OvertimeMinutes, &a.LatenessMinutes, &a.EarlyLeaveMinutes,
		&a.IsManuallyCorrected, &a.LastCorrectedBy, &a.LastCorrectionAt, &a.CorrectionSummaryNotes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return attendance.Attendance{}, err
	}
	a.WorkDate = dbtime.NormalizeDate(a.WorkDate, r.loc)
	return a, nil
}

// Create implements attendance.AttendanceRepository.
func (r *attendanceRepository) Create(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO attendances (
			person_id, work_date, shift_id,
			clock_in_at, clock_in_status, clock_in_notes, clock_in_latitude, clock_in_longitude,
			clock_in_device_id, clock_in_qr_code_id, clock_in_method,
			clock_out_at, clock_out_status, clock_out_notes, clock_out_latitude, clock_out_longitude,
			clock_out_device_id, clock_out_qr_code_id, clock_out_method,
			scheduled_start_time, scheduled_end_time, scheduled_work_minutes,
			work_duration_minutes, effective_work_minutes, overtime_minutes, lateness_minutes, early_leave_minutes,
			is_manually_corrected, last_corrected_by, last_correction_at, correction_summary_notes
		) VALUES (
			$1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
		) RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		a.PersonID, dbtime.FormatDate(a.WorkDate), a.ShiftID,
		a.ClockInAt, a.ClockInStatus, a.ClockInNotes, a.ClockInLatitude, a.ClockInLongitude,
		a.ClockInDeviceID, a.ClockInTokenID, a.ClockInMethod,
		a.ClockOutAt, a.ClockOutStatus, a.ClockOutNotes, a.ClockOutLatitude, a.ClockOutLongitude,
		a.ClockOutDeviceID, a.ClockOutTokenID, a.ClockOutMethod,
		a.ScheduledStartTime, a.ScheduledEndTime, a.ScheduledWorkMinutes,
		a.WorkDurationMinutes, a.EffectiveWorkMinutes, a.OvertimeMinutes, a.LatenessMinutes, a.EarlyLeaveMinutes,
		a.IsManuallyCorrected, a.LastCorrectedBy, a.LastCorrectionAt, a.CorrectionSummaryNotes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, attendanceKeyConstraint) {
			return attendance.Attendance{}, attendance.ErrConcurrentScan
		}
		return attendance.Attendance{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	return a, nil
}

// Update implements attendance.AttendanceRepository.
func (r *attendanceRepository) Update(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE attendances SET
			work_date = $2::date, shift_id = $3,
			clock_in_at = $4, clock_in_status = $5, clock_in_notes = $6,
			clock_in_latitude = $7, clock_in_longitude = $8,
			clock_in_device_id = $9, clock_in_qr_code_id = $10, clock_in_method = $11,
			clock_out_at = $12, clock_out_status = $13, clock_out_notes = $14,
			clock_out_latitude = $15, clock_out_longitude = $16,
			clock_out_device_id = $17, clock_out_qr_code_id = $18, clock_out_method = $19,
			scheduled_start_time = $20, scheduled_end_time = $21, scheduled_work_minutes = $22,
			work_duration_minutes = $23, effective_work_minutes = $24,
			overtime_minutes = $25, lateness_minutes = $26, early_leave_minutes = $27,
			is_manually_corrected = $28, last_corrected_by = $29, last_correction_at = $30,
			correction_summary_notes = $31,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		a.ID, dbtime.FormatDate(a.WorkDate), a.ShiftID,
		a.ClockInAt, a.ClockInStatus, a.ClockInNotes,
		a.ClockInLatitude, a.ClockInLongitude,
		a.ClockInDeviceID, a.ClockInTokenID, a.ClockInMethod,
		a.ClockOutAt, a.ClockOutStatus, a.ClockOutNotes,
		a.ClockOutLatitude, a.ClockOutLongitude,
		a.ClockOutDeviceID, a.ClockOutTokenID, a.ClockOutMethod,
		a.ScheduledStartTime, a.ScheduledEndTime, a.ScheduledWorkMinutes,
		a.WorkDurationMinutes, a.EffectiveWorkMinutes,
		a.OvertimeMinutes, a.LatenessMinutes, a.EarlyLeaveMinutes,
		a.IsManuallyCorrected, a.LastCorrectedBy, a.LastCorrectionAt,
		a.CorrectionSummaryNotes,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrAttendanceNotFound
		}
		if isUniqueViolation(err, attendanceKeyConstraint) {
			return attendance.Attendance{}, attendance.ErrWorkDateTaken
		}
		return attendance.Attendance{}, fmt.Errorf("failed to update attendance: %w", err)
	}

	return a, nil
}

// GetByID implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByID(ctx context.Context, id string) (attendance.Attendance, error) {
	return r.getByID(ctx, id, "")
}

// GetByIDForUpdate implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByIDForUpdate(ctx context.Context, id string) (attendance.Attendance, error) {
	return r.getByID(ctx, id, "FOR UPDATE")
}

func (r *attendanceRepository) getByID(ctx context.Context, id, lock string) (attendance.Attendance, error) {
	if !validator.IsValidUUID(id) {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := "SELECT " + attendanceColumns + " FROM attendances WHERE id = $1 " + lock

	a, err := r.scan(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrAttendanceNotFound
		}
		return attendance.Attendance{}, fmt.Errorf("failed to get attendance by ID: %w", err)
	}

	return a, nil
}

// GetByPersonAndDateForUpdate implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByPersonAndDateForUpdate(ctx context.Context, personID string, workDate time.Time) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	query := "SELECT " + attendanceColumns + `
		FROM attendances
		WHERE person_id = $1 AND work_date = $2::date
		FOR UPDATE`

	a, err := r.scan(q.QueryRow(ctx, query, personID, dbtime.FormatDate(workDate)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance by person and date: %w", err)
	}

	return &a, nil
}

// GetOpenByPersonAndDate implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetOpenByPersonAndDate(ctx context.Context, personID string, workDate time.Time) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	query := "SELECT " + attendanceColumns + `
		FROM attendances
		WHERE person_id = $1
		  AND work_date = $2::date
		  AND clock_in_at IS NOT NULL
		  AND clock_out_at IS NULL`

	a, err := r.scan(q.QueryRow(ctx, query, personID, dbtime.FormatDate(workDate)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open attendance: %w", err)
	}

	return &a, nil
}

// List implements attendance.AttendanceRepository.
func (r *attendanceRepository) List(ctx context.Context, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseWhere := "1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.PersonID != nil && *filter.PersonID != "" {
		baseWhere += fmt.Sprintf(" AND person_id = $%d", argIdx)
		args = append(args, *filter.PersonID)
		argIdx++
	}

	if filter.StartDate != nil && *filter.StartDate != "" {
		baseWhere += fmt.Sprintf(" AND work_date >= $%d::date", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		baseWhere += fmt.Sprintf(" AND work_date <= $%d::date", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}

	if filter.ClockInStatus != nil && *filter.ClockInStatus != "" {
		baseWhere += fmt.Sprintf(" AND clock_in_status = $%d", argIdx)
		args = append(args, *filter.ClockInStatus)
		argIdx++
	}
	if filter.ClockOutStatus != nil && *filter.ClockOutStatus != "" {
		baseWhere += fmt.Sprintf(" AND clock_out_status = $%d", argIdx)
		args = append(args, *filter.ClockOutStatus)
		argIdx++
	}

	countQuery := "SELECT COUNT(*) FROM attendances WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendances: %w", err)
	}

	sortOrder := "DESC"
	if strings.ToLower(filter.SortOrder) == "asc" {
		sortOrder = "ASC"
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM attendances
		WHERE %s
		ORDER BY work_date %s, clock_in_at %s
		LIMIT $%d OFFSET $%d
	`, attendanceColumns, baseWhere, sortOrder, sortOrder, argIdx, argIdx+1)

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	page := max(filter.Page, 1)
	offset := (page - 1) * limit
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	var attendances []attendance.Attendance
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate attendances: %w", err)
	}

	return attendances, total, nil
}

func NewAttendanceRepository(db *database.DB, loc *time.Location) attendance.AttendanceRepository {
	return &attendanceRepository{db: db, loc: loc}
}

type correctionLogRepository struct {
	db *database.DB
}

// CreateBatch implements attendance.CorrectionLogRepository. Ids are UUIDv7
// so entries of one correction list back in insertion order.
func (r *correctionLogRepository) CreateBatch(ctx context.Context, logs []attendance.CorrectionLog) error {
	if len(logs) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO attendance_correction_logs (
			id, attendance_id, corrector_id, changed_field, old_value, new_value,
			reason, corrector_ip, corrected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, l := range logs {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate correction log id: %w", err)
		}
		batch.Queue(query,
			id.String(), l.AttendanceID, l.CorrectorID, l.ChangedField, l.OldValue, l.NewValue,
			l.Reason, l.CorrectorIP, l.CorrectedAt,
		)
	}

	sender, ok := q.(batchSender)
	if !ok {
		return fmt.Errorf("querier %T cannot send batches", q)
	}

	br := sender.SendBatch(ctx, batch)
	defer br.Close()
	for range logs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert correction log: %w", err)
		}
	}
	return br.Close()
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ListByAttendance implements attendance.CorrectionLogRepository.
func (r *correctionLogRepository) ListByAttendance(ctx context.Context, attendanceID string) ([]attendance.CorrectionLog, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, attendance_id, corrector_id, changed_field, old_value, new_value,
			   reason, corrector_ip, corrected_at
		FROM attendance_correction_logs
		WHERE attendance_id = $1
		ORDER BY corrected_at ASC, id ASC
	`

	rows, err := q.Query(ctx, query, attendanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query correction logs: %w", err)
	}
	defer rows.Close()

	var logs []attendance.CorrectionLog
	for rows.Next() {
		var l attendance.CorrectionLog
		if err := rows.Scan(
			&l.ID, &l.AttendanceID, &l.CorrectorID, &l.ChangedField, &l.OldValue, &l.NewValue,
			&l.Reason, &l.CorrectorIP, &l.CorrectedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan correction log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate correction logs: %w", err)
	}

	return logs, nil
}

func NewCorrectionLogRepository(db *database.DB) attendance.CorrectionLogRepository {
	return &correctionLogRepository{db: db}
}
