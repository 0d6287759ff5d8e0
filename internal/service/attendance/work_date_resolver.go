package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
)

type workDateResolver struct {
	attendanceRepo attendance.AttendanceRepository
	shiftRepo      shift.ShiftRepository
	loc            *time.Location
}

// Resolve files a scan under yesterday only while a crossing-midnight shift
// opened yesterday is still within its clock-out window. It never looks
// forward.
func (r *workDateResolver) Resolve(ctx context.Context, personID string, scannedAt time.Time, nightShiftBuffer time.Duration) (time.Time, error) {
	today := dbtime.DateOf(scannedAt, r.loc)
	yesterday := dbtime.AddDays(today, -1)

	open, err := r.attendanceRepo.GetOpenByPersonAndDate(ctx, personID, yesterday)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load open attendance for previous day: %w", err)
	}
	if open == nil || open.ShiftID == nil {
		return today, nil
	}

	sh, err := r.shiftRepo.GetByID(ctx, *open.ShiftID)
	if err != nil {
		if errors.Is(err, shift.ErrShiftNotFound) {
			slog.Warn("open attendance references a missing shift", "attendance_id", open.ID, "shift_id", *open.ShiftID)
			return today, nil
		}
		return time.Time{}, fmt.Errorf("failed to load shift of open attendance: %w", err)
	}
	if !sh.CrossesMidnight {
		return today, nil
	}

	window := sh.ScheduledEnd(yesterday).Add(nightShiftBuffer)
	if !scannedAt.After(window) {
		return yesterday, nil
	}
	return today, nil
}

func NewWorkDateResolver(attendanceRepo attendance.AttendanceRepository, shiftRepo shift.ShiftRepository, loc *time.Location) attendance.WorkDateResolver {
	return &workDateResolver{
		attendanceRepo: attendanceRepo,
		shiftRepo:      shiftRepo,
		loc:            loc,
	}
}
