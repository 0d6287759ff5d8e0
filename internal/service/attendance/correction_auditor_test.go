package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/optional"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	shiftService "github.com/cmlabs-hris/attendance-engine/internal/service/shift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditorFixture struct {
	auditor   *CorrectionAuditor
	shiftRepo shift.ShiftRepository
	day       shift.Shift
	night     shift.Shift
	record    attendance.Attendance
}

// newAuditorFixture returns a completed day-shift record for 2025-03-10,
// 08:00 to 17:00.
func newAuditorFixture(t *testing.T) auditorFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore(testLoc)
	shiftRepo := memory.NewShiftRepository(store)
	resolver := shiftService.NewShiftService(store.Transactor(), shiftRepo, memory.NewAssignmentRepository(store), testLoc)

	daySh := dayShift()
	daySh.IsDefault = true
	day, err := shiftRepo.Create(ctx, daySh)
	require.NoError(t, err)
	night, err := shiftRepo.Create(ctx, nightShift())
	require.NoError(t, err)

	calc := NewMetricsCalculator()
	cfg := setting.DefaultConfiguration()
	workDate := time.Date(2025, 3, 10, 0, 0, 0, 0, testLoc)
	in, out := at(workDate, 8, 0), at(workDate, 17, 0)

	rec := attendance.Attendance{
		ID:         "0195b1c2-0000-7000-8000-00000000a001",
		PersonID:   testPerson,
		WorkDate:   workDate,
		ClockInAt:  &in,
		ClockOutAt: &out,
	}
	res := shift.Resolved(day, shift.SourceDefault)
	applyShiftSnapshot(&rec, res)
	applyClockIn(&rec, calc.ComputeClockIn(workDate, in, res, cfg))
	applyClockOut(&rec, calc.ComputeClockOut(workDate, in, out, res, cfg))

	return auditorFixture{
		auditor:   NewCorrectionAuditor(calc, shiftRepo, resolver, testLoc),
		shiftRepo: shiftRepo,
		day:       day,
		night:     night,
		record:    rec,
	}
}

func changedFields(logs []attendance.CorrectionLog) []string {
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.ChangedField)
	}
	return out
}

func TestCorrectionAuditor_SameValuesProduceNoLogs(t *testing.T) {
	f := newAuditorFixture(t)
	in := *f.record.ClockInAt
	out := *f.record.ClockOutAt
	date := dbtime.FormatDate(f.record.WorkDate)
	status := *f.record.ClockOutStatus

	c, err := f.auditor.Apply(context.Background(), f.record, attendance.CorrectionRequest{
		FieldChanges: attendance.FieldChanges{
			WorkDate:       &date,
			ClockInAt:      &in,
			ClockOutAt:     &out,
			ShiftID:        optional.Of(f.day.ID),
			ClockOutStatus: &status,
		},
		Reason:      "No real change",
		CorrectorID: "admin-1",
	}, setting.DefaultConfiguration(), time.Now())
	require.NoError(t, err)

	assert.False(t, c.Changed())
	assert.False(t, c.Attendance.IsManuallyCorrected)
	assert.Nil(t, c.Attendance.CorrectionSummaryNotes)
}

func TestCorrectionAuditor_ClockOutChangeRecomputesMetrics(t *testing.T) {
	f := newAuditorFixture(t)
	out := at(f.record.WorkDate, 16, 0)
	now := at(f.record.WorkDate, 20, 0)
	ip := "10.0.0.7"

	c, err := f.auditor.Apply(context.Background(), f.record, attendance.CorrectionRequest{
		FieldChanges: attendance.FieldChanges{ClockOutAt: &out},
		Reason:       "Left for a doctor appointment",
		CorrectorID:  "admin-1",
		CorrectorIP:  &ip,
	}, setting.DefaultConfiguration(), now)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"clock_out_at",
		"clock_out_status",
		"work_duration_minutes",
		"effective_work_minutes",
		"early_leave_minutes",
	}, changedFields(c.Logs))

	assert.Equal(t, attendance.ClockOutLeftEarly, *c.Attendance.ClockOutStatus)
	assert.Equal(t, 60, c.Attendance.EarlyLeaveMinutes)
	assert.True(t, c.Attendance.IsManuallyCorrected)
	assert.Equal(t, "admin-1", *c.Attendance.LastCorrectedBy)
	assert.True(t, now.Equal(*c.Attendance.LastCorrectionAt))

	for _, l := range c.Logs {
		assert.Equal(t, "Left for a doctor appointment", l.Reason)
		assert.Equal(t, &ip, l.CorrectorIP)
		if l.ChangedField == "early_leave_minutes" {
			assert.Equal(t, "0", *l.OldValue)
			assert.Equal(t, "60", *l.NewValue)
		}
	}
}

func TestCorrectionAuditor_ExplicitShiftResnapshots(t *testing.T) {
	f := newAuditorFixture(t)

	c, err := f.auditor.Apply(context.Background(), f.record, attendance.CorrectionRequest{
		FieldChanges: attendance.FieldChanges{ShiftID: optional.Of(f.night.ID)},
		Reason:       "Was on the night roster",
		CorrectorID:  "admin-1",
	}, setting.DefaultConfiguration(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, f.night.ID, *c.Attendance.ShiftID)
	assert.Equal(t, "22:00:00", c.Attendance.ScheduledStartTime.String())
	assert.Equal(t, 360, *c.Attendance.ScheduledWorkMinutes)
	assert.Subset(t, changedFields(c.Logs), []string{"shift_id", "scheduled_start_time", "scheduled_end_time", "scheduled_work_minutes"})
}

func TestCorrectionAuditor_SummaryIsAppended(t *testing.T) {
	f := newAuditorFixture(t)
	earlier := "[2025-03-09 10:00:00] Admin (ID:admin-0): Earlier fix"
	f.record.CorrectionSummaryNotes = &earlier
	notes := "Working from the branch office"

	c, err := f.auditor.Apply(context.Background(), f.record, attendance.CorrectionRequest{
		FieldChanges: attendance.FieldChanges{ClockInNotes: optional.Of(notes)},
		Reason:       "Add context",
		CorrectorID:  "admin-1",
	}, setting.DefaultConfiguration(), at(f.record.WorkDate, 18, 30))
	require.NoError(t, err)

	assert.Equal(t, []string{"clock_in_notes"}, changedFields(c.Logs))
	assert.Equal(t, earlier+"\n[2025-03-10 18:30:00] Admin (ID:admin-1): Add context", *c.Attendance.CorrectionSummaryNotes)
}

func TestCorrectionAuditor_RejectsInconsistentOverrides(t *testing.T) {
	f := newAuditorFixture(t)

	open := f.record
	open.ClockOutAt = nil
	open.ClockOutStatus = nil
	overtime := attendance.ClockOutOvertime
	_, err := f.auditor.Apply(context.Background(), open, attendance.CorrectionRequest{
		FieldChanges: attendance.FieldChanges{ClockOutStatus: &overtime},
		Reason:       "Mark overtime",
		CorrectorID:  "admin-1",
	}, setting.DefaultConfiguration(), time.Now())
	requireFieldError(t, err, "clock_out_status")

	before := at(f.record.WorkDate, 7, 0)
	_, err = f.auditor.Apply(context.Background(), f.record, attendance.CorrectionRequest{
		FieldChanges: attendance.FieldChanges{ClockOutAt: &before},
		Reason:       "Typo in time",
		CorrectorID:  "admin-1",
	}, setting.DefaultConfiguration(), time.Now())
	requireFieldError(t, err, "clock_out_at")
}

func TestCorrectionAuditor_UnknownShift(t *testing.T) {
	f := newAuditorFixture(t)

	_, err := f.auditor.Apply(context.Background(), f.record, attendance.CorrectionRequest{
		FieldChanges: attendance.FieldChanges{ShiftID: optional.Of("0195b1c2-0000-7000-8000-00000000dead")},
		Reason:       "Wrong shift",
		CorrectorID:  "admin-1",
	}, setting.DefaultConfiguration(), time.Now())
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)
}

func TestCorrectionAuditor_SubSecondClockChangeIsLogged(t *testing.T) {
	f := newAuditorFixture(t)
	in := f.record.ClockInAt.Add(500 * time.Millisecond)

	c, err := f.auditor.Apply(context.Background(), f.record, attendance.CorrectionRequest{
		FieldChanges: attendance.FieldChanges{ClockInAt: &in},
		Reason:       "Sync with the badge reader log",
		CorrectorID:  "admin-1",
	}, setting.DefaultConfiguration(), time.Now())
	require.NoError(t, err)

	require.Contains(t, changedFields(c.Logs), "clock_in_at")
	for _, l := range c.Logs {
		if l.ChangedField == "clock_in_at" {
			assert.Equal(t, "2025-03-10 08:00:00", *l.OldValue)
			assert.Equal(t, "2025-03-10 08:00:00.5", *l.NewValue)
		}
	}
}

func TestCorrectionAuditor_NotesOnlyUsesStampedSchedule(t *testing.T) {
	ctx := context.Background()
	f := newAuditorFixture(t)

	// The fixture's record was stamped with 08:00 to 17:00. Move the shift
	// itself later; the record must not follow.
	moved := f.day
	moved.StartTime = dbtime.NewTimeOfDay(10, 0, 0)
	moved.EndTime = dbtime.NewTimeOfDay(19, 0, 0)
	_, err := f.shiftRepo.Update(ctx, moved)
	require.NoError(t, err)

	c, err := f.auditor.Apply(ctx, f.record, attendance.CorrectionRequest{
		FieldChanges: attendance.FieldChanges{ClockOutNotes: optional.Of("Left via the side gate")},
		Reason:       "Add context",
		CorrectorID:  "admin-1",
	}, setting.DefaultConfiguration(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"clock_out_notes"}, changedFields(c.Logs))
	assert.Equal(t, attendance.ClockOutFinishedOnTime, *c.Attendance.ClockOutStatus)
	assert.Equal(t, 0, c.Attendance.EarlyLeaveMinutes)
	assert.Equal(t, "08:00:00", c.Attendance.ScheduledStartTime.String())
}
