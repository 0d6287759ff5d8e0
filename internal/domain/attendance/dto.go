package attendance

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/optional"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// MinReasonLength is the shortest accepted correction reason.
const MinReasonLength = 5

// ========================================
// SCAN DTOs
// ========================================

type ScanRequest struct {
	PersonID         string    `json:"-"`
	ScannedAt        time.Time `json:"-"`
	QRPayload        string    `json:"qr_payload"`
	Location         *Location `json:"location"`
	DeviceIdentifier *string   `json:"device_identifier"`
	Notes            *string   `json:"notes"`
}

func (r *ScanRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.PersonID) {
		errs = append(errs, validator.ValidationError{
			Field:   "person_id",
			Message: "person_id is required",
		})
	}

	if r.ScannedAt.IsZero() {
		errs = append(errs, validator.ValidationError{
			Field:   "scanned_at",
			Message: "scanned_at is required",
		})
	}

	if validator.IsEmpty(r.QRPayload) {
		errs = append(errs, validator.ValidationError{
			Field:   "qr_payload",
			Message: "qr_payload is required",
		})
	}

	if r.Location != nil {
		if !validator.IsValidLatitude(r.Location.Latitude) {
			errs = append(errs, validator.ValidationError{
				Field:   "location.latitude",
				Message: "latitude must be between -90 and 90",
			})
		}
		if !validator.IsValidLongitude(r.Location.Longitude) {
			errs = append(errs, validator.ValidationError{
				Field:   "location.longitude",
				Message: "longitude must be between -180 and 180",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ScanResult is the record after the transition plus the message shown to
// the person who scanned.
type ScanResult struct {
	Attendance Attendance
	Transition State
	Message    string
}

// ========================================
// CORRECTION DTOs
// ========================================

// FieldChanges lists the overrides of one correction. Absent fields keep
// their current value.
type FieldChanges struct {
	WorkDate   *string    `json:"work_date"`
	ClockInAt  *time.Time `json:"clock_in_at"`
	ClockOutAt *time.Time `json:"clock_out_at"`
	// A null shift_id re-resolves the shift for the work date.
	ShiftID        optional.Field[string] `json:"shift_id"`
	ClockInNotes   optional.Field[string] `json:"clock_in_notes"`
	ClockOutNotes  optional.Field[string] `json:"clock_out_notes"`
	ClockInStatus  *ClockInStatus         `json:"clock_in_status"`
	ClockOutStatus *ClockOutStatus        `json:"clock_out_status"`
}

type CorrectionRequest struct {
	AttendanceID string `json:"-"`
	FieldChanges
	Reason        string  `json:"reason"`
	CorrectorID   string  `json:"-"`
	CorrectorName string  `json:"-"`
	CorrectorIP   *string `json:"-"`
}

func (r *CorrectionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.AttendanceID) {
		errs = append(errs, validator.ValidationError{
			Field:   "id",
			Message: "attendance id is required",
		})
	}

	if validator.IsEmpty(r.CorrectorID) {
		errs = append(errs, validator.ValidationError{
			Field:   "corrector_id",
			Message: "corrector_id is required",
		})
	}

	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "reason is required",
		})
	} else if !validator.MinLength(r.Reason, MinReasonLength) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "reason must be at least 5 characters",
		})
	}

	if r.WorkDate != nil {
		if _, ok := validator.IsValidDate(*r.WorkDate); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "work_date",
				Message: "work_date must be in YYYY-MM-DD format",
			})
		}
	}

	if r.ClockInStatus != nil && !r.ClockInStatus.Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "clock_in_status",
			Message: "clock_in_status must be one of: " + strings.Join(ClockInStatusValues, ", "),
		})
	}

	if r.ClockOutStatus != nil && !r.ClockOutStatus.Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "clock_out_status",
			Message: "clock_out_status must be one of: " + strings.Join(ClockOutStatusValues, ", "),
		})
	}

	if r.ShiftID.Set && r.ShiftID.Value != nil && validator.IsEmpty(*r.ShiftID.Value) {
		errs = append(errs, validator.ValidationError{
			Field:   "shift_id",
			Message: "shift_id cannot be empty, send null to re-resolve",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ========================================
// QUERY DTOs
// ========================================

type AttendanceFilter struct {
	PersonID       *string `json:"person_id,omitempty"`
	StartDate      *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate        *string `json:"end_date,omitempty"`   // YYYY-MM-DD
	ClockInStatus  *string `json:"clock_in_status,omitempty"`
	ClockOutStatus *string `json:"clock_out_status,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`

	SortOrder string `json:"sort_order"` // asc, desc
}

func (f *AttendanceFilter) Validate() error {
	errs := validatePagination(&f.Page, &f.Limit)
	errs = append(errs, validateDateRange(f.StartDate, f.EndDate)...)

	if f.ClockInStatus != nil && *f.ClockInStatus != "" && !ClockInStatus(*f.ClockInStatus).Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "clock_in_status",
			Message: "clock_in_status must be one of: " + strings.Join(ClockInStatusValues, ", "),
		})
	}
	if f.ClockOutStatus != nil && *f.ClockOutStatus != "" && !ClockOutStatus(*f.ClockOutStatus).Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "clock_out_status",
			Message: "clock_out_status must be one of: " + strings.Join(ClockOutStatusValues, ", "),
		})
	}

	if f.SortOrder != "" {
		if !validator.IsInSlice(strings.ToLower(f.SortOrder), []string{"asc", "desc"}) {
			errs = append(errs, validator.ValidationError{
				Field:   "sort_order",
				Message: "sort_order must be one of: asc, desc",
			})
		}
	} else {
		f.SortOrder = "desc" // newest first
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// DateRange parses the validated bounds as dates in loc.
func (f AttendanceFilter) DateRange(loc *time.Location) (start, end *time.Time) {
	if f.StartDate != nil && *f.StartDate != "" {
		if d, err := dbtime.ParseDate(*f.StartDate, loc); err == nil {
			start = &d
		}
	}
	if f.EndDate != nil && *f.EndDate != "" {
		if d, err := dbtime.ParseDate(*f.EndDate, loc); err == nil {
			end = &d
		}
	}
	return start, end
}

type HistoryFilter struct {
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
	Page      int     `json:"page"`
	Limit     int     `json:"limit"`
}

func (f *HistoryFilter) Validate() error {
	errs := validatePagination(&f.Page, &f.Limit)
	errs = append(errs, validateDateRange(f.StartDate, f.EndDate)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ForPerson narrows the history to one person, newest first.
func (f HistoryFilter) ForPerson(personID string) AttendanceFilter {
	return AttendanceFilter{
		PersonID:  &personID,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		Page:      f.Page,
		Limit:     f.Limit,
		SortOrder: "desc",
	}
}

func validatePagination(page, limit *int) validator.ValidationErrors {
	var errs validator.ValidationErrors

	if *page < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "page",
			Message: "page must be a positive number",
		})
	}
	if *page == 0 {
		*page = 1
	}

	if *limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if *limit == 0 {
		*limit = 20
	}
	if *limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	return errs
}

func validateDateRange(startDate, endDate *string) validator.ValidationErrors {
	var errs validator.ValidationErrors
	var start, end time.Time
	var startOK, endOK bool

	if startDate != nil && *startDate != "" {
		if start, startOK = validator.IsValidDate(*startDate); !startOK {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
	}
	if endDate != nil && *endDate != "" {
		if end, endOK = validator.IsValidDate(*endDate); !endOK {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
	}
	if startOK && endOK && end.Before(start) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must not be before start_date",
		})
	}

	return errs
}

// ========================================
// RESPONSE DTOs
// ========================================

type AttendanceResponse struct {
	ID       string  `json:"id"`
	PersonID string  `json:"person_id"`
	WorkDate string  `json:"work_date"`
	ShiftID  *string `json:"shift_id"`

	ClockInAt        *string  `json:"clock_in_at"`
	ClockInStatus    *string  `json:"clock_in_status"`
	ClockInNotes     *string  `json:"clock_in_notes,omitempty"`
	ClockInLatitude  *float64 `json:"clock_in_latitude,omitempty"`
	ClockInLongitude *float64 `json:"clock_in_longitude,omitempty"`
	ClockInDeviceID  *string  `json:"clock_in_device_id,omitempty"`
	ClockInMethod    *string  `json:"clock_in_method,omitempty"`

	ClockOutAt        *string  `json:"clock_out_at"`
	ClockOutStatus    *string  `json:"clock_out_status"`
	ClockOutNotes     *string  `json:"clock_out_notes,omitempty"`
	ClockOutLatitude  *float64 `json:"clock_out_latitude,omitempty"`
	ClockOutLongitude *float64 `json:"clock_out_longitude,omitempty"`
	ClockOutDeviceID  *string  `json:"clock_out_device_id,omitempty"`
	ClockOutMethod    *string  `json:"clock_out_method,omitempty"`

	ScheduledStartTime   *string `json:"scheduled_start_time"`
	ScheduledEndTime     *string `json:"scheduled_end_time"`
	ScheduledWorkMinutes *int    `json:"scheduled_work_minutes"`

	WorkDurationMinutes  *int `json:"work_duration_minutes"`
	EffectiveWorkMinutes *int `json:"effective_work_minutes"`
	LatenessMinutes      int  `json:"lateness_minutes"`
	EarlyLeaveMinutes    int  `json:"early_leave_minutes"`
	OvertimeMinutes      int  `json:"overtime_minutes"`

	IsManuallyCorrected    bool    `json:"is_manually_corrected"`
	LastCorrectedBy        *string `json:"last_corrected_by,omitempty"`
	LastCorrectionAt       *string `json:"last_correction_at,omitempty"`
	CorrectionSummaryNotes *string `json:"correction_summary_notes,omitempty"`
}

func NewAttendanceResponse(a Attendance, loc *time.Location) AttendanceResponse {
	return AttendanceResponse{
		ID:       a.ID,
		PersonID: a.PersonID,
		WorkDate: dbtime.FormatDate(a.WorkDate),
		ShiftID:  a.ShiftID,

		ClockInAt:        formatInstant(a.ClockInAt, loc),
		ClockInStatus:    stringOrNil(a.ClockInStatus),
		ClockInNotes:     a.ClockInNotes,
		ClockInLatitude:  a.ClockInLatitude,
		ClockInLongitude: a.ClockInLongitude,
		ClockInDeviceID:  a.ClockInDeviceID,
		ClockInMethod:    stringOrNil(a.ClockInMethod),

		ClockOutAt:        formatInstant(a.ClockOutAt, loc),
		ClockOutStatus:    stringOrNil(a.ClockOutStatus),
		ClockOutNotes:     a.ClockOutNotes,
		ClockOutLatitude:  a.ClockOutLatitude,
		ClockOutLongitude: a.ClockOutLongitude,
		ClockOutDeviceID:  a.ClockOutDeviceID,
		ClockOutMethod:    stringOrNil(a.ClockOutMethod),

		ScheduledStartTime:   formatTimeOfDay(a.ScheduledStartTime),
		ScheduledEndTime:     formatTimeOfDay(a.ScheduledEndTime),
		ScheduledWorkMinutes: a.ScheduledWorkMinutes,

		WorkDurationMinutes:  a.WorkDurationMinutes,
		EffectiveWorkMinutes: a.EffectiveWorkMinutes,
		LatenessMinutes:      a.LatenessMinutes,
		EarlyLeaveMinutes:    a.EarlyLeaveMinutes,
		OvertimeMinutes:      a.OvertimeMinutes,

		IsManuallyCorrected:    a.IsManuallyCorrected,
		LastCorrectedBy:        a.LastCorrectedBy,
		LastCorrectionAt:       formatInstant(a.LastCorrectionAt, loc),
		CorrectionSummaryNotes: a.CorrectionSummaryNotes,
	}
}

type ScanResponse struct {
	Action     string             `json:"action"`
	Message    string             `json:"message"`
	Attendance AttendanceResponse `json:"attendance"`
}

type ListAttendanceResponse struct {
	TotalCount  int64                `json:"total_count"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	TotalPages  int                  `json:"total_pages"`
	Attendances []AttendanceResponse `json:"attendances"`
}

type CorrectionLogResponse struct {
	ID           string  `json:"id"`
	AttendanceID string  `json:"attendance_id"`
	CorrectorID  string  `json:"corrector_id"`
	ChangedField string  `json:"changed_field"`
	OldValue     *string `json:"old_value"`
	NewValue     *string `json:"new_value"`
	Reason       string  `json:"reason"`
	CorrectorIP  *string `json:"corrector_ip,omitempty"`
	CorrectedAt  string  `json:"corrected_at"`
}

func NewCorrectionLogResponse(l CorrectionLog, loc *time.Location) CorrectionLogResponse {
	return CorrectionLogResponse{
		ID:           l.ID,
		AttendanceID: l.AttendanceID,
		CorrectorID:  l.CorrectorID,
		ChangedField: l.ChangedField,
		OldValue:     l.OldValue,
		NewValue:     l.NewValue,
		Reason:       l.Reason,
		CorrectorIP:  l.CorrectorIP,
		CorrectedAt:  l.CorrectedAt.In(loc).Format(time.RFC3339),
	}
}

func formatInstant(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := t.In(loc).Format(time.RFC3339)
	return &s
}

func formatTimeOfDay(t *dbtime.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

type stringish interface {
	~string
}

func stringOrNil[T stringish](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
