package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
)

type ClockInStatus string

const (
	ClockInOnTime ClockInStatus = "On Time"
	ClockInLate   ClockInStatus = "Late"
)

var ClockInStatusValues = []string{string(ClockInOnTime), string(ClockInLate)}

func (s ClockInStatus) Valid() bool {
	return s == ClockInOnTime || s == ClockInLate
}

type ClockOutStatus string

const (
	ClockOutFinishedOnTime ClockOutStatus = "Finished On Time"
	ClockOutLeftEarly      ClockOutStatus = "Left Early"
	ClockOutOvertime       ClockOutStatus = "Overtime"
)

var ClockOutStatusValues = []string{string(ClockOutFinishedOnTime), string(ClockOutLeftEarly), string(ClockOutOvertime)}

func (s ClockOutStatus) Valid() bool {
	switch s {
	case ClockOutFinishedOnTime, ClockOutLeftEarly, ClockOutOvertime:
		return true
	}
	return false
}

type Method string

const (
	MethodQRScan      Method = "qr_scan"
	MethodManualAdmin Method = "manual_admin"
)

// State of a (person, work date) record.
type State int

const (
	StateNoRecord State = iota
	StateClockedIn
	StateClockedOut
)

func (s State) String() string {
	switch s {
	case StateClockedIn:
		return "clocked_in"
	case StateClockedOut:
		return "clocked_out"
	}
	return "no_record"
}

// Attendance is the daily record keyed by (PersonID, WorkDate).
type Attendance struct {
	ID       string
	PersonID string
	WorkDate time.Time
	ShiftID  *string

	ClockInAt        *time.Time
	ClockInStatus    *ClockInStatus
	ClockInNotes     *string
	ClockInLatitude  *float64
	ClockInLongitude *float64
	ClockInDeviceID  *string
	ClockInTokenID   *string
	ClockInMethod    *Method

	ClockOutAt        *time.Time
	ClockOutStatus    *ClockOutStatus
	ClockOutNotes     *string
	ClockOutLatitude  *float64
	ClockOutLongitude *float64
	ClockOutDeviceID  *string
	ClockOutTokenID   *string
	ClockOutMethod    *Method

	// Copied from the shift at clock-in so later shift edits leave history alone.
	ScheduledStartTime   *dbtime.TimeOfDay
	ScheduledEndTime     *dbtime.TimeOfDay
	ScheduledWorkMinutes *int

	WorkDurationMinutes  *int
	EffectiveWorkMinutes *int
	OvertimeMinutes      int
	LatenessMinutes      int
	EarlyLeaveMinutes    int

	IsManuallyCorrected    bool
	LastCorrectedBy        *string
	LastCorrectionAt       *time.Time
	CorrectionSummaryNotes *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StateOf treats a nil record as StateNoRecord.
func StateOf(a *Attendance) State {
	switch {
	case a == nil || a.ClockInAt == nil:
		return StateNoRecord
	case a.ClockOutAt == nil:
		return StateClockedIn
	default:
		return StateClockedOut
	}
}

// CorrectionLog is one changed field of one correction. Append-only.
type CorrectionLog struct {
	ID           string
	AttendanceID string
	CorrectorID  string
	ChangedField string
	OldValue     *string
	NewValue     *string
	Reason       string
	CorrectorIP  *string
	CorrectedAt  time.Time
}

// Location is a GPS fix sent with a scan.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
