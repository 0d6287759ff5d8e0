package shift

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/optional"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========================================
// SHIFT DTOs
// ========================================

type CreateShiftRequest struct {
	Name                   string           `json:"name"`
	StartTime              string           `json:"start_time"`
	EndTime                string           `json:"end_time"`
	CrossesMidnight        bool             `json:"crosses_midnight"`
	WorkDurationHours      *decimal.Decimal `json:"work_duration_hours"`
	BreakMinutes           int              `json:"break_minutes"`
	Weekdays               []string         `json:"weekdays"`
	GraceLateMinutes       *int             `json:"grace_late_minutes"`
	GraceEarlyLeaveMinutes *int             `json:"grace_early_leave_minutes"`
	IsDefault              bool             `json:"is_default"`
	IsActive               *bool            `json:"is_active"`
}

func (r *CreateShiftRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{
			Field:   "name",
			Message: "name is required",
		})
	}

	errs = append(errs, validateWindow(r.StartTime, r.EndTime, r.CrossesMidnight)...)
	errs = append(errs, validateDuration(r.WorkDurationHours, r.BreakMinutes)...)
	errs = append(errs, validateGrace("grace_late_minutes", r.GraceLateMinutes)...)
	errs = append(errs, validateGrace("grace_early_leave_minutes", r.GraceEarlyLeaveMinutes)...)

	if len(r.Weekdays) > 0 {
		if _, unknown := ParseWeekdays(r.Weekdays); len(unknown) > 0 {
			errs = append(errs, validator.ValidationError{
				Field:   "weekdays",
				Message: "unknown weekday: " + strings.Join(unknown, ", "),
			})
		}
	}

	if r.IsDefault && r.IsActive != nil && !*r.IsActive {
		errs = append(errs, validator.ValidationError{
			Field:   "is_default",
			Message: "an inactive shift cannot be the default",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ToShift assumes Validate passed.
func (r *CreateShiftRequest) ToShift() Shift {
	s := Shift{
		Name:                   strings.TrimSpace(r.Name),
		StartTime:              dbtime.MustParse(r.StartTime),
		EndTime:                dbtime.MustParse(r.EndTime),
		CrossesMidnight:        r.CrossesMidnight,
		BreakMinutes:           r.BreakMinutes,
		Weekdays:               AllWeekdays,
		GraceLateMinutes:       r.GraceLateMinutes,
		GraceEarlyLeaveMinutes: r.GraceEarlyLeaveMinutes,
		IsDefault:              r.IsDefault,
		IsActive:               r.IsActive == nil || *r.IsActive,
	}
	if r.WorkDurationHours != nil {
		s.WorkDurationHours = *r.WorkDurationHours
	}
	if len(r.Weekdays) > 0 {
		s.Weekdays, _ = ParseWeekdays(r.Weekdays)
	}
	return s
}

type UpdateShiftRequest struct {
	ID                     string                `json:"-"`
	Name                   *string               `json:"name"`
	StartTime              *string               `json:"start_time"`
	EndTime                *string               `json:"end_time"`
	CrossesMidnight        *bool                 `json:"crosses_midnight"`
	WorkDurationHours      *decimal.Decimal      `json:"work_duration_hours"`
	BreakMinutes           *int                  `json:"break_minutes"`
	Weekdays               []string              `json:"weekdays"`
	GraceLateMinutes       optional.Field[int]   `json:"grace_late_minutes"`
	GraceEarlyLeaveMinutes optional.Field[int]   `json:"grace_early_leave_minutes"`
	IsDefault              *bool                 `json:"is_default"`
	IsActive               *bool                 `json:"is_active"`
}

func (r *UpdateShiftRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "id is required"})
	}
	if r.Name != nil && validator.IsEmpty(*r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "name cannot be empty"})
	}
	if r.StartTime != nil && !validator.IsValidTimeOfDay(*r.StartTime) {
		errs = append(errs, validator.ValidationError{Field: "start_time", Message: "start_time must be in HH:MM or HH:MM:SS format"})
	}
	if r.EndTime != nil && !validator.IsValidTimeOfDay(*r.EndTime) {
		errs = append(errs, validator.ValidationError{Field: "end_time", Message: "end_time must be in HH:MM or HH:MM:SS format"})
	}
	if r.BreakMinutes != nil && *r.BreakMinutes < 0 {
		errs = append(errs, validator.ValidationError{Field: "break_minutes", Message: "break_minutes must be a non-negative number"})
	}
	if r.WorkDurationHours != nil {
		errs = append(errs, validateDuration(r.WorkDurationHours, 0)...)
	}
	errs = append(errs, validateGrace("grace_late_minutes", r.GraceLateMinutes.Value)...)
	errs = append(errs, validateGrace("grace_early_leave_minutes", r.GraceEarlyLeaveMinutes.Value)...)
	if r.Weekdays != nil {
		if _, unknown := ParseWeekdays(r.Weekdays); len(unknown) > 0 {
			errs = append(errs, validator.ValidationError{Field: "weekdays", Message: "unknown weekday: " + strings.Join(unknown, ", ")})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// Apply merges the request into s and re-validates the resulting window.
func (r *UpdateShiftRequest) Apply(s Shift) (Shift, error) {
	if r.Name != nil {
		s.Name = strings.TrimSpace(*r.Name)
	}
	if r.StartTime != nil {
		s.StartTime = dbtime.MustParse(*r.StartTime)
	}
	if r.EndTime != nil {
		s.EndTime = dbtime.MustParse(*r.EndTime)
	}
	if r.CrossesMidnight != nil {
		s.CrossesMidnight = *r.CrossesMidnight
	}
	if r.WorkDurationHours != nil {
		s.WorkDurationHours = *r.WorkDurationHours
	}
	if r.BreakMinutes != nil {
		s.BreakMinutes = *r.BreakMinutes
	}
	if r.Weekdays != nil {
		s.Weekdays, _ = ParseWeekdays(r.Weekdays)
	}
	if r.GraceLateMinutes.Set {
		s.GraceLateMinutes = r.GraceLateMinutes.Value
	}
	if r.GraceEarlyLeaveMinutes.Set {
		s.GraceEarlyLeaveMinutes = r.GraceEarlyLeaveMinutes.Value
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
	if r.IsDefault != nil {
		s.IsDefault = *r.IsDefault
	}

	var errs validator.ValidationErrors
	errs = append(errs, validateWindow(s.StartTime.String(), s.EndTime.String(), s.CrossesMidnight)...)
	if s.IsDefault && !s.IsActive {
		errs = append(errs, validator.ValidationError{Field: "is_default", Message: "an inactive shift cannot be the default"})
	}
	if len(errs) > 0 {
		return Shift{}, errs
	}
	return s, nil
}

func validateWindow(start, end string, crossesMidnight bool) validator.ValidationErrors {
	var errs validator.ValidationErrors

	if !validator.IsValidTimeOfDay(start) {
		errs = append(errs, validator.ValidationError{Field: "start_time", Message: "start_time must be in HH:MM or HH:MM:SS format"})
	}
	if !validator.IsValidTimeOfDay(end) {
		errs = append(errs, validator.ValidationError{Field: "end_time", Message: "end_time must be in HH:MM or HH:MM:SS format"})
	}
	if len(errs) > 0 {
		return errs
	}

	s, e := dbtime.MustParse(start), dbtime.MustParse(end)
	if !crossesMidnight && !e.After(s) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_time",
			Message: "end_time must be after start_time unless the shift crosses midnight",
		})
	}
	if crossesMidnight && !e.Before(s) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_time",
			Message: "end_time must be before start_time for a shift crossing midnight",
		})
	}
	return errs
}

func validateDuration(hours *decimal.Decimal, breakMinutes int) validator.ValidationErrors {
	var errs validator.ValidationErrors
	if hours != nil && (!hours.IsPositive() || hours.GreaterThan(decimal.NewFromInt(24))) {
		errs = append(errs, validator.ValidationError{
			Field:   "work_duration_hours",
			Message: "work_duration_hours must be greater than 0 and at most 24",
		})
	}
	if breakMinutes < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "break_minutes",
			Message: "break_minutes must be a non-negative number",
		})
	}
	return errs
}

func validateGrace(field string, v *int) validator.ValidationErrors {
	if v != nil && *v < 0 {
		return validator.NewFieldError(field, field+" must be a non-negative number")
	}
	return nil
}

type ShiftFilter struct {
	IsActive *bool `json:"is_active,omitempty"`
	Page     int   `json:"page"`
	Limit    int   `json:"limit"`
}

func (f *ShiftFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{Field: "page", Message: "page must be a positive number"})
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must be a positive number"})
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must not exceed 100"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ShiftResponse struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	StartTime              string   `json:"start_time"`
	EndTime                string   `json:"end_time"`
	CrossesMidnight        bool     `json:"crosses_midnight"`
	WorkDurationHours      string   `json:"work_duration_hours"`
	BreakMinutes           int      `json:"break_minutes"`
	ScheduledNetMinutes    int      `json:"scheduled_net_minutes"`
	Weekdays               []string `json:"weekdays"`
	GraceLateMinutes       *int     `json:"grace_late_minutes"`
	GraceEarlyLeaveMinutes *int     `json:"grace_early_leave_minutes"`
	IsDefault              bool     `json:"is_default"`
	IsActive               bool     `json:"is_active"`
	CreatedAt              string   `json:"created_at"`
	UpdatedAt              string   `json:"updated_at"`
}

func NewShiftResponse(s Shift) ShiftResponse {
	return ShiftResponse{
		ID:                     s.ID,
		Name:                   s.Name,
		StartTime:              s.StartTime.String(),
		EndTime:                s.EndTime.String(),
		CrossesMidnight:        s.CrossesMidnight,
		WorkDurationHours:      s.WorkDurationHours.StringFixed(2),
		BreakMinutes:           s.BreakMinutes,
		ScheduledNetMinutes:    s.ScheduledNetMinutes(),
		Weekdays:               s.Weekdays.Names(),
		GraceLateMinutes:       s.GraceLateMinutes,
		GraceEarlyLeaveMinutes: s.GraceEarlyLeaveMinutes,
		IsDefault:              s.IsDefault,
		IsActive:               s.IsActive,
		CreatedAt:              s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              s.UpdatedAt.Format(time.RFC3339),
	}
}

type ListShiftResponse struct {
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
	Shifts     []ShiftResponse `json:"shifts"`
}

// ========================================
// ASSIGNMENT DTOs
// ========================================

type AssignShiftRequest struct {
	PersonID           string  `json:"person_id"`
	ShiftID            string  `json:"shift_id"`
	EffectiveStartDate string  `json:"effective_start_date"`
	EffectiveEndDate   *string `json:"effective_end_date"`
	Notes              *string `json:"notes"`
	AssignedBy         string  `json:"-"`
}

func (r *AssignShiftRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.PersonID) {
		errs = append(errs, validator.ValidationError{Field: "person_id", Message: "person_id is required"})
	}
	if validator.IsEmpty(r.ShiftID) {
		errs = append(errs, validator.ValidationError{Field: "shift_id", Message: "shift_id is required"})
	}

	start, startOK := validator.IsValidDate(r.EffectiveStartDate)
	if !startOK {
		errs = append(errs, validator.ValidationError{Field: "effective_start_date", Message: "effective_start_date must be in YYYY-MM-DD format"})
	}
	if r.EffectiveEndDate != nil && *r.EffectiveEndDate != "" {
		end, endOK := validator.IsValidDate(*r.EffectiveEndDate)
		if !endOK {
			errs = append(errs, validator.ValidationError{Field: "effective_end_date", Message: "effective_end_date must be in YYYY-MM-DD format"})
		} else if startOK && end.Before(start) {
			errs = append(errs, validator.ValidationError{Field: "effective_end_date", Message: "effective_end_date must not be before effective_start_date"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type AssignmentResponse struct {
	ID                 string  `json:"id"`
	PersonID           string  `json:"person_id"`
	ShiftID            string  `json:"shift_id"`
	EffectiveStartDate string  `json:"effective_start_date"`
	EffectiveEndDate   *string `json:"effective_end_date"`
	AssignedBy         *string `json:"assigned_by"`
	Notes              *string `json:"notes"`
	ClosedPrevious     int64   `json:"closed_previous,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

func NewAssignmentResponse(a Assignment) AssignmentResponse {
	resp := AssignmentResponse{
		ID:                 a.ID,
		PersonID:           a.PersonID,
		ShiftID:            a.ShiftID,
		EffectiveStartDate: dbtime.FormatDate(a.EffectiveStartDate),
		AssignedBy:         a.AssignedBy,
		Notes:              a.Notes,
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
	}
	if a.EffectiveEndDate != nil {
		end := dbtime.FormatDate(*a.EffectiveEndDate)
		resp.EffectiveEndDate = &end
	}
	return resp
}

type ActiveShiftRequest struct {
	PersonID string `json:"person_id"`
	Date     string `json:"date"`
}

func (r *ActiveShiftRequest) Validate() error {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.PersonID) {
		errs = append(errs, validator.ValidationError{Field: "person_id", Message: "person_id is required"})
	}
	if _, ok := validator.IsValidDate(r.Date); !ok {
		errs = append(errs, validator.ValidationError{Field: "date", Message: "date must be in YYYY-MM-DD format"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ActiveShiftResponse struct {
	PersonID string         `json:"person_id"`
	Date     string         `json:"date"`
	Source   *Source        `json:"source"`
	Shift    *ShiftResponse `json:"shift"`
}
