package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/qrcode"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/keylock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// maxAttempts bounds how often a unit of work is replayed after losing a
// race on the (person, work date) key.
const maxAttempts = 3

const (
	defaultClockInNotes  = "Clocked in via QR Code."
	defaultClockOutNotes = "Clocked out via QR Code."
)

// errRecordMoved means the record's work date changed between the unlocked
// read and the locked one.
var errRecordMoved = errors.New("attendance work date changed while waiting for lock")

type AttendanceServiceImpl struct {
	tx             database.Transactor
	attendanceRepo attendance.AttendanceRepository
	correctionRepo attendance.CorrectionLogRepository
	settings       setting.Resolver
	shifts         shift.Resolver
	workDates      attendance.WorkDateResolver
	qrCodes        qrcode.Validator
	devices        device.Gate
	calculator     *MetricsCalculator
	auditor        *CorrectionAuditor
	locks          *keylock.Locker
	loc            *time.Location
	now            func() time.Time
}

// ProcessScan implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ProcessScan(ctx context.Context, req attendance.ScanRequest) (attendance.ScanResult, error) {
	if err := req.Validate(); err != nil {
		return attendance.ScanResult{}, err
	}

	cfg, err := s.settings.Resolve(ctx)
	if err != nil {
		return attendance.ScanResult{}, fmt.Errorf("failed to resolve attendance settings: %w", err)
	}

	workDate, err := s.workDates.Resolve(ctx, req.PersonID, req.ScannedAt, cfg.NightShiftClockOutBuffer)
	if err != nil {
		return attendance.ScanResult{}, fmt.Errorf("failed to resolve work date: %w", err)
	}

	tokenID, err := s.qrCodes.Validate(ctx, req.QRPayload, workDate)
	if err != nil {
		return attendance.ScanResult{}, err
	}

	if err := s.checkLocation(req.PersonID, req.Location, cfg); err != nil {
		return attendance.ScanResult{}, err
	}

	res, err := s.shifts.ResolveActiveShift(ctx, req.PersonID, workDate)
	if err != nil {
		return attendance.ScanResult{}, fmt.Errorf("failed to resolve active shift: %w", err)
	}
	if !res.Found() {
		slog.Warn("no active or default shift for scan", "person_id", req.PersonID, "work_date", dbtime.FormatDate(workDate))
		return attendance.ScanResult{}, validator.NewFieldError("shift", "No active work schedule found for this date")
	}

	deviceID, err := s.checkDevice(ctx, req.PersonID, req.DeviceIdentifier, cfg)
	if err != nil {
		return attendance.ScanResult{}, err
	}

	unlock := s.locks.Lock(lockKey(req.PersonID, workDate))
	defer unlock()

	scan := scanInput{
		req:      req,
		workDate: workDate,
		tokenID:  tokenID,
		deviceID: deviceID,
		shift:    res,
		cfg:      cfg,
	}

	var result attendance.ScanResult
	for attempt := 1; ; attempt++ {
		result, err = s.scanOnce(ctx, scan)
		if errors.Is(err, attendance.ErrConcurrentScan) && attempt < maxAttempts {
			slog.Info("scan lost race on attendance key, retrying", "person_id", req.PersonID, "work_date", dbtime.FormatDate(workDate), "attempt", attempt)
			continue
		}
		break
	}
	if err != nil {
		return attendance.ScanResult{}, err
	}

	return result, nil
}

type scanInput struct {
	req      attendance.ScanRequest
	workDate time.Time
	tokenID  string
	deviceID *string
	shift    shift.Resolution
	cfg      setting.Configuration
}

func (s *AttendanceServiceImpl) scanOnce(ctx context.Context, in scanInput) (attendance.ScanResult, error) {
	var result attendance.ScanResult

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.attendanceRepo.GetByPersonAndDateForUpdate(ctx, in.req.PersonID, in.workDate)
		if err != nil {
			return fmt.Errorf("failed to load attendance: %w", err)
		}

		switch attendance.StateOf(current) {
		case attendance.StateNoRecord:
			result, err = s.clockIn(ctx, current, in)
		case attendance.StateClockedIn:
			result, err = s.clockOut(ctx, *current, in)
		default:
			slog.Info("extra scan after clock-out",
				"person_id", in.req.PersonID,
				"work_date", dbtime.FormatDate(in.workDate),
				"attendance_id", current.ID,
			)
			return validator.NewFieldError("attendance", "You have already clocked in and out for this work date")
		}
		return err
	})
	if err != nil {
		return attendance.ScanResult{}, err
	}

	return result, nil
}

func (s *AttendanceServiceImpl) clockIn(ctx context.Context, existing *attendance.Attendance, in scanInput) (attendance.ScanResult, error) {
	rec := attendance.Attendance{
		PersonID: in.req.PersonID,
		WorkDate: in.workDate,
	}
	if existing != nil {
		rec = *existing
	}

	at := in.req.ScannedAt.UTC()
	applyShiftSnapshot(&rec, in.shift)
	rec.ClockInAt = &at
	rec.ClockInNotes = notesOrDefault(in.req.Notes, defaultClockInNotes)
	if in.req.Location != nil {
		lat, lng := in.req.Location.Latitude, in.req.Location.Longitude
		rec.ClockInLatitude = &lat
		rec.ClockInLongitude = &lng
	}
	rec.ClockInDeviceID = in.deviceID
	tokenID := in.tokenID
	rec.ClockInTokenID = &tokenID
	rec.ClockInMethod = methodPtr(attendance.MethodQRScan)

	m := s.calculator.ComputeClockIn(rec.WorkDate, at, in.shift, in.cfg)
	applyClockIn(&rec, m)

	var saved attendance.Attendance
	var err error
	if existing != nil {
		saved, err = s.attendanceRepo.Update(ctx, rec)
	} else {
		saved, err = s.attendanceRepo.Create(ctx, rec)
	}
	if err != nil {
		if errors.Is(err, attendance.ErrConcurrentScan) {
			return attendance.ScanResult{}, err
		}
		return attendance.ScanResult{}, fmt.Errorf("failed to save clock-in: %w", err)
	}

	msg := fmt.Sprintf("Clocked in successfully at %s. Status: %s.", at.In(s.loc).Format("15:04:05"), m.Status)
	if m.LatenessMinutes > 0 {
		msg += fmt.Sprintf(" Late by: %d minutes.", m.LatenessMinutes)
	}

	slog.Info("clock-in recorded", "attendance_id", saved.ID, "person_id", saved.PersonID, "status", m.Status)
	return attendance.ScanResult{
		Attendance: saved,
		Transition: attendance.StateClockedIn,
		Message:    msg,
	}, nil
}

func (s *AttendanceServiceImpl) clockOut(ctx context.Context, rec attendance.Attendance, in scanInput) (attendance.ScanResult, error) {
	at := in.req.ScannedAt.UTC()

	if dbtime.WholeMinutes(*rec.ClockInAt, at) < in.cfg.MinDurationBeforeClockOutMinutes {
		return attendance.ScanResult{}, validator.NewFieldError("clock_out_scan",
			fmt.Sprintf("You cannot clock out yet. Minimum work duration: %d minutes.", in.cfg.MinDurationBeforeClockOutMinutes))
	}

	rec.ClockOutAt = &at
	rec.ClockOutNotes = notesOrDefault(in.req.Notes, defaultClockOutNotes)
	if in.req.Location != nil {
		lat, lng := in.req.Location.Latitude, in.req.Location.Longitude
		rec.ClockOutLatitude = &lat
		rec.ClockOutLongitude = &lng
	}
	rec.ClockOutDeviceID = in.deviceID
	tokenID := in.tokenID
	rec.ClockOutTokenID = &tokenID
	rec.ClockOutMethod = methodPtr(attendance.MethodQRScan)

	// Clock-out is measured against the schedule stamped at clock-in.
	res, err := s.auditor.recordedShift(ctx, rec)
	if err != nil {
		return attendance.ScanResult{}, err
	}
	m := s.calculator.ComputeClockOut(rec.WorkDate, *rec.ClockInAt, at, res, in.cfg)
	applyClockOut(&rec, m)

	saved, err := s.attendanceRepo.Update(ctx, rec)
	if err != nil {
		return attendance.ScanResult{}, fmt.Errorf("failed to save clock-out: %w", err)
	}

	msg := fmt.Sprintf("Clocked out successfully at %s. Status: %s. Work duration: %s.",
		at.In(s.loc).Format("15:04:05"), m.Status, formatDuration(m.WorkDurationMinutes))
	if m.OvertimeMinutes > 0 {
		msg += fmt.Sprintf(" Overtime: %d minutes.", m.OvertimeMinutes)
	}
	if m.EarlyLeaveMinutes > 0 {
		msg += fmt.Sprintf(" Left early by: %d minutes.", m.EarlyLeaveMinutes)
	}

	slog.Info("clock-out recorded", "attendance_id", saved.ID, "person_id", saved.PersonID, "status", m.Status)
	return attendance.ScanResult{
		Attendance: saved,
		Transition: attendance.StateClockedOut,
		Message:    msg,
	}, nil
}

// checkLocation only applies when GPS validation is on and the scan carries
// a fix.
func (s *AttendanceServiceImpl) checkLocation(personID string, loc *attendance.Location, cfg setting.Configuration) error {
	if !cfg.EnableGPSValidation || loc == nil {
		return nil
	}

	officeLat, officeLng, ok := cfg.OfficeLocation()
	if !ok {
		slog.Warn("office GPS settings are incomplete, GPS validation skipped")
		return nil
	}

	within, distance := utils.WithinRadius(loc.Latitude, loc.Longitude, officeLat, officeLng, cfg.GPSRadiusMeters)
	if !within {
		slog.Warn("scan rejected outside GPS radius", "person_id", personID, "distance_meters", distance)
		return validator.NewFieldError("location",
			fmt.Sprintf("You are outside the allowed area for attendance (Distance: %dm).", int(math.Round(distance))))
	}
	return nil
}

func (s *AttendanceServiceImpl) checkDevice(ctx context.Context, personID string, identifier *string, cfg setting.Configuration) (*string, error) {
	if identifier == nil || validator.IsEmpty(*identifier) {
		if cfg.EnforceApprovedDevice {
			return nil, validator.NewFieldError("device_identifier", "Device identifier is required for attendance")
		}
		return nil, nil
	}

	id, err := s.devices.ApprovedDeviceID(ctx, personID, *identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to check device: %w", err)
	}
	if id == nil {
		if cfg.EnforceApprovedDevice {
			return nil, validator.NewFieldError("device_identifier", "Attendance from this device is not permitted")
		}
		slog.Warn("scan from unapproved or unknown device", "person_id", personID, "device_identifier", *identifier)
	}
	return id, nil
}

// CorrectAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CorrectAttendance(ctx context.Context, req attendance.CorrectionRequest) (attendance.Attendance, error) {
	if err := req.Validate(); err != nil {
		return attendance.Attendance{}, err
	}

	cfg, err := s.settings.Resolve(ctx)
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to resolve attendance settings: %w", err)
	}

	for attempt := 1; ; attempt++ {
		corrected, err := s.correctOnce(ctx, req, cfg)
		if errors.Is(err, errRecordMoved) && attempt < maxAttempts {
			continue
		}
		if errors.Is(err, errRecordMoved) {
			return attendance.Attendance{}, attendance.ErrConcurrentScan
		}
		return corrected, err
	}
}

func (s *AttendanceServiceImpl) correctOnce(ctx context.Context, req attendance.CorrectionRequest, cfg setting.Configuration) (attendance.Attendance, error) {
	if !validator.IsValidUUID(req.AttendanceID) {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}

	current, err := s.attendanceRepo.GetByID(ctx, req.AttendanceID)
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.Attendance{}, err
		}
		return attendance.Attendance{}, fmt.Errorf("failed to get attendance: %w", err)
	}

	// Both the current key and the target key are held so a scan for either
	// date waits for the correction.
	keys := []string{lockKey(current.PersonID, current.WorkDate)}
	if req.WorkDate != nil {
		if d, err := dbtime.ParseDate(*req.WorkDate, s.loc); err == nil {
			keys = append(keys, lockKey(current.PersonID, d))
		}
	}
	unlock := s.locks.Lock(keys...)
	defer unlock()

	var corrected attendance.Attendance
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.attendanceRepo.GetByIDForUpdate(ctx, req.AttendanceID)
		if err != nil {
			if errors.Is(err, attendance.ErrAttendanceNotFound) {
				return err
			}
			return fmt.Errorf("failed to lock attendance: %w", err)
		}
		if !dbtime.SameDate(rec.WorkDate, current.WorkDate) {
			return errRecordMoved
		}

		c, err := s.auditor.Apply(ctx, rec, req, cfg, s.now())
		if err != nil {
			return err
		}
		if !c.Changed() {
			corrected = c.Attendance
			return nil
		}

		updated, err := s.attendanceRepo.Update(ctx, c.Attendance)
		if err != nil {
			if errors.Is(err, attendance.ErrWorkDateTaken) {
				return validator.NewFieldError("work_date", "Another attendance record already exists for this person on that work date")
			}
			return fmt.Errorf("failed to update attendance: %w", err)
		}

		if err := s.correctionRepo.CreateBatch(ctx, c.Logs); err != nil {
			return fmt.Errorf("failed to write correction logs: %w", err)
		}

		slog.Info("attendance corrected",
			"attendance_id", updated.ID,
			"corrector_id", req.CorrectorID,
			"changed_fields", len(c.Logs),
		)
		corrected = updated
		return nil
	})
	if err != nil {
		return attendance.Attendance{}, err
	}

	return corrected, nil
}

// GetAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetAttendance(ctx context.Context, id string) (attendance.AttendanceResponse, error) {
	if !validator.IsValidUUID(id) {
		return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
	}

	a, err := s.attendanceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.AttendanceResponse{}, err
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get attendance: %w", err)
	}

	return attendance.NewAttendanceResponse(a, s.loc), nil
}

// GetHistory implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetHistory(ctx context.Context, personID string, filter attendance.HistoryFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}
	return s.list(ctx, filter.ForPerson(personID))
}

// ListAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ListAttendance(ctx context.Context, filter attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}
	return s.list(ctx, filter)
}

func (s *AttendanceServiceImpl) list(ctx context.Context, filter attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	records, total, err := s.attendanceRepo.List(ctx, filter)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list attendance: %w", err)
	}

	responses := make([]attendance.AttendanceResponse, 0, len(records))
	for _, a := range records {
		responses = append(responses, attendance.NewAttendanceResponse(a, s.loc))
	}

	totalPages := 0
	if filter.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(filter.Limit)))
	}

	return attendance.ListAttendanceResponse{
		TotalCount:  total,
		Page:        filter.Page,
		Limit:       filter.Limit,
		TotalPages:  totalPages,
		Attendances: responses,
	}, nil
}

// ListCorrections implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ListCorrections(ctx context.Context, attendanceID string) ([]attendance.CorrectionLogResponse, error) {
	if !validator.IsValidUUID(attendanceID) {
		return nil, attendance.ErrAttendanceNotFound
	}
	if _, err := s.attendanceRepo.GetByID(ctx, attendanceID); err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}

	logs, err := s.correctionRepo.ListByAttendance(ctx, attendanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list correction logs: %w", err)
	}

	responses := make([]attendance.CorrectionLogResponse, 0, len(logs))
	for _, l := range logs {
		responses = append(responses, attendance.NewCorrectionLogResponse(l, s.loc))
	}
	return responses, nil
}

func lockKey(personID string, workDate time.Time) string {
	return personID + "|" + dbtime.FormatDate(workDate)
}

func notesOrDefault(notes *string, fallback string) *string {
	if notes != nil && strings.TrimSpace(*notes) != "" {
		n := strings.TrimSpace(*notes)
		return &n
	}
	return &fallback
}

// formatDuration renders minutes as "08h 30m".
func formatDuration(minutes int) string {
	return fmt.Sprintf("%02dh %02dm", minutes/60, minutes%60)
}

func NewAttendanceService(
	tx database.Transactor,
	attendanceRepo attendance.AttendanceRepository,
	correctionRepo attendance.CorrectionLogRepository,
	settings setting.Resolver,
	shifts shift.Resolver,
	workDates attendance.WorkDateResolver,
	qrCodes qrcode.Validator,
	devices device.Gate,
	calculator *MetricsCalculator,
	auditor *CorrectionAuditor,
	locks *keylock.Locker,
	loc *time.Location,
) attendance.AttendanceService {
	return &AttendanceServiceImpl{
		tx:             tx,
		attendanceRepo: attendanceRepo,
		correctionRepo: correctionRepo,
		settings:       settings,
		shifts:         shifts,
		workDates:      workDates,
		qrCodes:        qrCodes,
		devices:        devices,
		calculator:     calculator,
		auditor:        auditor,
		locks:          locks,
		loc:            loc,
		now:            time.Now,
	}
}
