package postgresql_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/keylock"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	deviceService "github.com/cmlabs-hris/attendance-engine/internal/service/device"
	qrcodeService "github.com/cmlabs-hris/attendance-engine/internal/service/qrcode"
	settingService "github.com/cmlabs-hris/attendance-engine/internal/service/setting"
	shiftService "github.com/cmlabs-hris/attendance-engine/internal/service/shift"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	personID = "0195b1c2-0000-7000-8000-000000000001"
	payload  = `{"type":"attendance_scan","token":"pg-daily","date":"2025-03-10","location_name":"HQ"}`
)

var loc = time.UTC

func newServices(setup *TestDatabaseSetup) (attendance.AttendanceService, shift.Service) {
	db := setup.DB
	tx := postgresql.NewTransactor(db)
	shiftRepo := postgresql.NewShiftRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db, loc)
	shiftSvc := shiftService.NewShiftService(tx, shiftRepo, postgresql.NewAssignmentRepository(db, loc), loc)
	calculator := attendanceService.NewMetricsCalculator()

	svc := attendanceService.NewAttendanceService(
		tx,
		attendanceRepo,
		postgresql.NewCorrectionLogRepository(db),
		settingService.NewSettingService(postgresql.NewSettingRepository(db)),
		shiftSvc,
		attendanceService.NewWorkDateResolver(attendanceRepo, shiftRepo, loc),
		qrcodeService.NewValidator(postgresql.NewQRCodeRepository(db, loc), loc),
		deviceService.NewGate(postgresql.NewDeviceRepository(db)),
		calculator,
		attendanceService.NewCorrectionAuditor(calculator, shiftRepo, shiftSvc, loc),
		keylock.New(),
		loc,
	)
	return svc, shiftSvc
}

func createDefaultShift(t *testing.T, svc shift.Service) shift.ShiftResponse {
	t.Helper()
	hours := decimal.NewFromInt(9)
	grace := 15
	resp, err := svc.CreateShift(context.Background(), shift.CreateShiftRequest{
		Name:              "Day",
		StartTime:         "08:00",
		EndTime:           "17:00",
		WorkDurationHours: &hours,
		BreakMinutes:      60,
		GraceLateMinutes:  &grace,
		IsDefault:         true,
	})
	require.NoError(t, err)
	return resp
}

func scan(at time.Time) attendance.ScanRequest {
	return attendance.ScanRequest{PersonID: personID, ScannedAt: at, QRPayload: payload}
}

func TestAttendanceFlow_Postgres(t *testing.T) {
	ctx := context.Background()
	setup := NewTestDatabase(t)
	svc, shifts := newServices(setup)
	sh := createDefaultShift(t, shifts)
	tokenID := setup.InsertDailyQRCode(t, "pg-daily", "HQ", "2025-03-10")

	in, err := svc.ProcessScan(ctx, scan(time.Date(2025, 3, 10, 8, 40, 0, 0, loc)))
	require.NoError(t, err)
	assert.Equal(t, attendance.StateClockedIn, in.Transition)
	require.NotNil(t, in.Attendance.ClockInStatus)
	assert.Equal(t, attendance.ClockInLate, *in.Attendance.ClockInStatus)
	assert.Equal(t, 25, in.Attendance.LatenessMinutes)
	assert.Equal(t, sh.ID, *in.Attendance.ShiftID)
	assert.Equal(t, tokenID, *in.Attendance.ClockInTokenID)
	assert.Equal(t, "08:00:00", in.Attendance.ScheduledStartTime.String())

	out, err := svc.ProcessScan(ctx, scan(time.Date(2025, 3, 10, 17, 0, 0, 0, loc)))
	require.NoError(t, err)
	assert.Equal(t, attendance.StateClockedOut, out.Transition)
	assert.Equal(t, 500, *out.Attendance.WorkDurationMinutes)
	assert.Equal(t, 440, *out.Attendance.EffectiveWorkMinutes)

	onTime := attendance.ClockInOnTime
	ip := "10.0.0.1"
	corrected, err := svc.CorrectAttendance(ctx, attendance.CorrectionRequest{
		AttendanceID:  in.Attendance.ID,
		FieldChanges:  attendance.FieldChanges{ClockInStatus: &onTime},
		Reason:        "Approved late arrival",
		CorrectorID:   "admin-1",
		CorrectorName: "Admin",
		CorrectorIP:   &ip,
	})
	require.NoError(t, err)
	assert.True(t, corrected.IsManuallyCorrected)
	assert.Equal(t, 0, corrected.LatenessMinutes)

	logs, err := svc.ListCorrections(ctx, in.Attendance.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "clock_in_status", logs[0].ChangedField)
	assert.Equal(t, "Late", *logs[0].OldValue)
	assert.Equal(t, "On Time", *logs[0].NewValue)
	assert.Equal(t, &ip, logs[0].CorrectorIP)

	history, err := svc.GetHistory(ctx, personID, attendance.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, history.Attendances, 1)
	assert.Equal(t, "2025-03-10", history.Attendances[0].WorkDate)
}

func TestAttendanceConcurrentClockIn_Postgres(t *testing.T) {
	ctx := context.Background()
	setup := NewTestDatabase(t)
	_, shifts := newServices(setup)
	createDefaultShift(t, shifts)
	setup.InsertDailyQRCode(t, "pg-daily", "HQ", "2025-03-10")

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		clockIns int
	)
	for i := 0; i < n; i++ {
		// Each service has its own key locker, so only the database
		// constraint keeps them apart.
		svc, _ := newServices(setup)
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ProcessScan(ctx, scan(time.Date(2025, 3, 10, 8, 0, 0, 0, loc)))
			if err == nil && res.Transition == attendance.StateClockedIn {
				mu.Lock()
				clockIns++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, clockIns)

	var count int
	require.NoError(t, setup.DB.QueryRow(ctx, `SELECT COUNT(*) FROM attendances WHERE person_id = $1`, personID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTransactor_RollsBack_Postgres(t *testing.T) {
	ctx := context.Background()
	setup := NewTestDatabase(t)
	tx := postgresql.NewTransactor(setup.DB)
	repo := postgresql.NewAttendanceRepository(setup.DB, loc)
	boom := errors.New("boom")

	workDate := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	in := workDate.Add(8 * time.Hour)
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		_, err := repo.Create(ctx, attendance.Attendance{PersonID: personID, WorkDate: workDate, ClockInAt: &in})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.GetByPersonAndDateForUpdate(ctx, personID, workDate)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQRCodeDeactivateExpired_Postgres(t *testing.T) {
	ctx := context.Background()
	setup := NewTestDatabase(t)
	repo := postgresql.NewQRCodeRepository(setup.DB, loc)
	setup.InsertDailyQRCode(t, "yesterday", "HQ", "2025-03-09")
	setup.InsertDailyQRCode(t, "today", "HQ", "2025-03-10")

	n, err := repo.DeactivateExpired(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, loc), time.Date(2025, 3, 10, 12, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	today, err := repo.FindByCode(ctx, "today")
	require.NoError(t, err)
	require.NotNil(t, today)
	assert.True(t, today.IsActive)
}

func TestDeviceGate_Postgres(t *testing.T) {
	ctx := context.Background()
	setup := NewTestDatabase(t)
	approved := setup.InsertDevice(t, personID, "phone-1", "approved")
	setup.InsertDevice(t, personID, "phone-2", "pending")
	gate := deviceService.NewGate(postgresql.NewDeviceRepository(setup.DB))

	id, err := gate.ApprovedDeviceID(ctx, personID, "phone-1")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, approved, *id)

	var lastUsed *time.Time
	require.NoError(t, setup.DB.QueryRow(ctx, `SELECT last_used_at FROM user_devices WHERE id = $1`, approved).Scan(&lastUsed))
	assert.NotNil(t, lastUsed)

	id, err = gate.ApprovedDeviceID(ctx, personID, "phone-2")
	require.NoError(t, err)
	assert.Nil(t, id)
}
