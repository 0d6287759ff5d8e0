package attendance

import (
	"context"
	"time"
)

// AttendanceService defines business logic for attendance operations
type AttendanceService interface {
	// ProcessScan runs one scan through the clock-in/clock-out state machine.
	ProcessScan(ctx context.Context, req ScanRequest) (ScanResult, error)

	// CorrectAttendance applies an authorized override and records an audit
	// entry per changed field.
	CorrectAttendance(ctx context.Context, req CorrectionRequest) (Attendance, error)

	GetAttendance(ctx context.Context, id string) (AttendanceResponse, error)
	GetHistory(ctx context.Context, personID string, filter HistoryFilter) (ListAttendanceResponse, error)
	ListAttendance(ctx context.Context, filter AttendanceFilter) (ListAttendanceResponse, error)
	ListCorrections(ctx context.Context, attendanceID string) ([]CorrectionLogResponse, error)
}

// WorkDateResolver maps a scan instant to the work date it is filed under.
type WorkDateResolver interface {
	Resolve(ctx context.Context, personID string, scannedAt time.Time, nightShiftBuffer time.Duration) (time.Time, error)
}
