package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines data access methods for attendance records.
// Methods taking part in a scan or correction must be called with the ctx of
// a database.Transactor unit of work.
type AttendanceRepository interface {
	// Create returns ErrConcurrentScan when (person, work date) already exists.
	Create(ctx context.Context, a Attendance) (Attendance, error)

	// Update returns ErrWorkDateTaken on a key collision and
	// ErrAttendanceNotFound for unknown ids.
	Update(ctx context.Context, a Attendance) (Attendance, error)

	GetByID(ctx context.Context, id string) (Attendance, error)

	// GetByIDForUpdate locks the row until the surrounding unit of work ends.
	GetByIDForUpdate(ctx context.Context, id string) (Attendance, error)

	// GetByPersonAndDateForUpdate returns nil when no record exists, and locks
	// the row otherwise.
	GetByPersonAndDateForUpdate(ctx context.Context, personID string, workDate time.Time) (*Attendance, error)

	// GetOpenByPersonAndDate returns the record only if it has a clock-in and
	// no clock-out.
	GetOpenByPersonAndDate(ctx context.Context, personID string, workDate time.Time) (*Attendance, error)

	List(ctx context.Context, filter AttendanceFilter) ([]Attendance, int64, error)
}

type CorrectionLogRepository interface {
	CreateBatch(ctx context.Context, logs []CorrectionLog) error
	ListByAttendance(ctx context.Context, attendanceID string) ([]CorrectionLog, error)
}
