package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// Correction is a corrected record plus the audit entries to persist with it.
// Logs is empty when nothing changed.
type Correction struct {
	Attendance attendance.Attendance
	Logs       []attendance.CorrectionLog
}

func (c Correction) Changed() bool {
	return len(c.Logs) > 0
}

// CorrectionAuditor applies overrides in memory, re-derives metrics and
// builds the field-level audit trail. Persisting the result is the caller's
// job.
type CorrectionAuditor struct {
	calculator *MetricsCalculator
	shiftRepo  shift.ShiftRepository
	resolver   shift.Resolver
	loc        *time.Location
}

func NewCorrectionAuditor(calculator *MetricsCalculator, shiftRepo shift.ShiftRepository, resolver shift.Resolver, loc *time.Location) *CorrectionAuditor {
	return &CorrectionAuditor{
		calculator: calculator,
		shiftRepo:  shiftRepo,
		resolver:   resolver,
		loc:        loc,
	}
}

func (a *CorrectionAuditor) Apply(ctx context.Context, current attendance.Attendance, req attendance.CorrectionRequest, cfg setting.Configuration, now time.Time) (Correction, error) {
	before := takeSnapshot(current, a.loc)
	rec := current

	workDateChanged := false
	if req.WorkDate != nil {
		d, err := dbtime.ParseDate(*req.WorkDate, a.loc)
		if err != nil {
			return Correction{}, validator.NewFieldError("work_date", "work_date must be in YYYY-MM-DD format")
		}
		if !dbtime.SameDate(d, rec.WorkDate) {
			rec.WorkDate = d
			workDateChanged = true
		}
	}

	if req.ClockInAt != nil {
		t := req.ClockInAt.UTC()
		if rec.ClockInAt == nil {
			rec.ClockInMethod = methodPtr(attendance.MethodManualAdmin)
		}
		rec.ClockInAt = &t
	}
	if req.ClockOutAt != nil {
		t := req.ClockOutAt.UTC()
		if rec.ClockOutAt == nil {
			rec.ClockOutMethod = methodPtr(attendance.MethodManualAdmin)
		}
		rec.ClockOutAt = &t
	}

	res, resolved, err := a.applicableShift(ctx, rec, req.FieldChanges, workDateChanged)
	if err != nil {
		return Correction{}, err
	}
	if resolved {
		applyShiftSnapshot(&rec, res)
	}

	if req.ClockInNotes.Set {
		rec.ClockInNotes = req.ClockInNotes.Value
	}
	if req.ClockOutNotes.Set {
		rec.ClockOutNotes = req.ClockOutNotes.Value
	}

	if err := a.recalculate(&rec, req.FieldChanges, res, cfg); err != nil {
		return Correction{}, err
	}

	changes := diffSnapshots(before, takeSnapshot(rec, a.loc))
	if len(changes) == 0 {
		return Correction{Attendance: current}, nil
	}

	reason := strings.TrimSpace(req.Reason)
	correctedAt := now.UTC()
	logs := make([]attendance.CorrectionLog, 0, len(changes))
	for _, ch := range changes {
		logs = append(logs, attendance.CorrectionLog{
			AttendanceID: rec.ID,
			CorrectorID:  req.CorrectorID,
			ChangedField: ch.Field,
			OldValue:     ch.Old,
			NewValue:     ch.New,
			Reason:       reason,
			CorrectorIP:  req.CorrectorIP,
			CorrectedAt:  correctedAt,
		})
	}

	rec.IsManuallyCorrected = true
	rec.LastCorrectedBy = &req.CorrectorID
	rec.LastCorrectionAt = &correctedAt
	rec.CorrectionSummaryNotes = appendSummary(rec.CorrectionSummaryNotes, summaryLine(correctedAt.In(a.loc), req.CorrectorName, req.CorrectorID, reason))

	return Correction{Attendance: rec, Logs: logs}, nil
}

// applicableShift picks the shift metrics are computed against. An explicit
// shift_id wins; a null shift_id or a moved work date re-resolves. Both report
// resolved so the caller re-snapshots. Otherwise the record keeps the
// schedule it was stamped with.
func (a *CorrectionAuditor) applicableShift(ctx context.Context, rec attendance.Attendance, changes attendance.FieldChanges, workDateChanged bool) (shift.Resolution, bool, error) {
	switch {
	case changes.ShiftID.Set && changes.ShiftID.Value != nil:
		sh, err := a.shiftRepo.GetByID(ctx, *changes.ShiftID.Value)
		if err != nil {
			if errors.Is(err, shift.ErrShiftNotFound) {
				return shift.Resolution{}, false, err
			}
			return shift.Resolution{}, false, fmt.Errorf("failed to get shift: %w", err)
		}
		return shift.Resolved(sh, shift.SourceManual), true, nil

	case changes.ShiftID.Set || workDateChanged:
		res, err := a.resolver.ResolveActiveShift(ctx, rec.PersonID, rec.WorkDate)
		if err != nil {
			return shift.Resolution{}, false, fmt.Errorf("failed to resolve shift: %w", err)
		}
		return res, true, nil
	}

	res, err := a.recordedShift(ctx, rec)
	return res, false, err
}

// recordedShift rebuilds the schedule stored on the record. Window and net
// minutes come from the snapshot so later edits to the shift leave the
// record's metrics alone.
func (a *CorrectionAuditor) recordedShift(ctx context.Context, rec attendance.Attendance) (shift.Resolution, error) {
	if rec.ShiftID == nil {
		return shift.Unresolved(), nil
	}

	sh, err := a.shiftRepo.GetByID(ctx, *rec.ShiftID)
	if err != nil {
		if errors.Is(err, shift.ErrShiftNotFound) {
			slog.Warn("attendance references a missing shift, recalculating without one", "attendance_id", rec.ID, "shift_id", *rec.ShiftID)
			return shift.Unresolved(), nil
		}
		return shift.Resolution{}, fmt.Errorf("failed to get shift: %w", err)
	}

	if rec.ScheduledStartTime != nil && rec.ScheduledEndTime != nil && rec.ScheduledWorkMinutes != nil {
		sh = sh.Pinned(*rec.ScheduledStartTime, *rec.ScheduledEndTime, *rec.ScheduledWorkMinutes)
	}
	return shift.Resolved(sh, shift.SourceManual), nil
}

func (a *CorrectionAuditor) recalculate(rec *attendance.Attendance, changes attendance.FieldChanges, res shift.Resolution, cfg setting.Configuration) error {
	var errs validator.ValidationErrors

	if rec.ClockInAt == nil && (rec.ClockOutAt != nil || changes.ClockInStatus != nil) {
		errs = append(errs, validator.ValidationError{Field: "clock_in_at", Message: "clock_in_at is required"})
	}
	if rec.ClockOutAt == nil && changes.ClockOutStatus != nil {
		errs = append(errs, validator.ValidationError{Field: "clock_out_status", Message: "clock_out_status requires a clock-out"})
	}
	if rec.ClockInAt != nil && rec.ClockOutAt != nil && !rec.ClockOutAt.After(*rec.ClockInAt) {
		errs = append(errs, validator.ValidationError{Field: "clock_out_at", Message: "clock_out_at must be after clock_in_at"})
	}
	if len(errs) > 0 {
		return errs
	}

	if rec.ClockInAt != nil {
		var m ClockInMetrics
		if changes.ClockInStatus != nil {
			m = a.calculator.ClockInFor(*changes.ClockInStatus, rec.WorkDate, *rec.ClockInAt, res, cfg)
		} else {
			m = a.calculator.ComputeClockIn(rec.WorkDate, *rec.ClockInAt, res, cfg)
		}
		applyClockIn(rec, m)
	}

	if rec.ClockOutAt != nil {
		var m ClockOutMetrics
		if changes.ClockOutStatus != nil {
			m = a.calculator.ClockOutFor(*changes.ClockOutStatus, rec.WorkDate, *rec.ClockInAt, *rec.ClockOutAt, res, cfg)
		} else {
			m = a.calculator.ComputeClockOut(rec.WorkDate, *rec.ClockInAt, *rec.ClockOutAt, res, cfg)
		}
		applyClockOut(rec, m)
	}

	return nil
}

// applyShiftSnapshot copies the shift's schedule onto the record, or clears
// it when no shift applies.
func applyShiftSnapshot(rec *attendance.Attendance, res shift.Resolution) {
	sh, ok := res.Get()
	if !ok {
		rec.ShiftID = nil
		rec.ScheduledStartTime = nil
		rec.ScheduledEndTime = nil
		rec.ScheduledWorkMinutes = nil
		return
	}
	id := sh.ID
	start, end := sh.StartTime, sh.EndTime
	net := sh.ScheduledNetMinutes()
	rec.ShiftID = &id
	rec.ScheduledStartTime = &start
	rec.ScheduledEndTime = &end
	rec.ScheduledWorkMinutes = &net
}

func applyClockIn(rec *attendance.Attendance, m ClockInMetrics) {
	status := m.Status
	rec.ClockInStatus = &status
	rec.LatenessMinutes = m.LatenessMinutes
}

func applyClockOut(rec *attendance.Attendance, m ClockOutMetrics) {
	status := m.Status
	worked, effective := m.WorkDurationMinutes, m.EffectiveWorkMinutes
	rec.ClockOutStatus = &status
	rec.WorkDurationMinutes = &worked
	rec.EffectiveWorkMinutes = &effective
	rec.OvertimeMinutes = m.OvertimeMinutes
	rec.EarlyLeaveMinutes = m.EarlyLeaveMinutes
}

func summaryLine(at time.Time, correctorName, correctorID, reason string) string {
	who := "ID:" + correctorID
	if correctorName != "" {
		who = correctorName + " - " + who
	}
	return fmt.Sprintf("[%s] Admin (%s): %s", at.Format(dbtime.DateTimeLayout), who, reason)
}

// appendSummary never rewrites earlier lines.
func appendSummary(existing *string, line string) *string {
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return &line
	}
	joined := strings.TrimRight(*existing, "\n") + "\n" + line
	return &joined
}

func methodPtr(m attendance.Method) *attendance.Method {
	return &m
}
