package attendance

import (
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
)

// trackedField serializes one audited column of an attendance record.
// A nil result means NULL.
type trackedField struct {
	name  string
	value func(a attendance.Attendance, loc *time.Location) *string
}

// Order is the order audit entries are written in.
var trackedFields = []trackedField{
	{"work_date", func(a attendance.Attendance, _ *time.Location) *string { return text(dbtime.FormatDate(a.WorkDate)) }},
	{"clock_in_at", func(a attendance.Attendance, loc *time.Location) *string { return instant(a.ClockInAt, loc) }},
	{"clock_out_at", func(a attendance.Attendance, loc *time.Location) *string { return instant(a.ClockOutAt, loc) }},
	{"shift_id", func(a attendance.Attendance, _ *time.Location) *string { return a.ShiftID }},
	{"scheduled_start_time", func(a attendance.Attendance, _ *time.Location) *string { return timeOfDay(a.ScheduledStartTime) }},
	{"scheduled_end_time", func(a attendance.Attendance, _ *time.Location) *string { return timeOfDay(a.ScheduledEndTime) }},
	{"scheduled_work_minutes", func(a attendance.Attendance, _ *time.Location) *string { return integer(a.ScheduledWorkMinutes) }},
	{"clock_in_notes", func(a attendance.Attendance, _ *time.Location) *string { return a.ClockInNotes }},
	{"clock_out_notes", func(a attendance.Attendance, _ *time.Location) *string { return a.ClockOutNotes }},
	{"clock_in_status", func(a attendance.Attendance, _ *time.Location) *string { return enum(a.ClockInStatus) }},
	{"clock_out_status", func(a attendance.Attendance, _ *time.Location) *string { return enum(a.ClockOutStatus) }},
	{"lateness_minutes", func(a attendance.Attendance, _ *time.Location) *string { return integer(&a.LatenessMinutes) }},
	{"work_duration_minutes", func(a attendance.Attendance, _ *time.Location) *string { return integer(a.WorkDurationMinutes) }},
	{"effective_work_minutes", func(a attendance.Attendance, _ *time.Location) *string { return integer(a.EffectiveWorkMinutes) }},
	{"overtime_minutes", func(a attendance.Attendance, _ *time.Location) *string { return integer(&a.OvertimeMinutes) }},
	{"early_leave_minutes", func(a attendance.Attendance, _ *time.Location) *string { return integer(&a.EarlyLeaveMinutes) }},
}

type fieldValue struct {
	field string
	value *string
}

// snapshot is the canonical text form of every tracked field.
type snapshot []fieldValue

func takeSnapshot(a attendance.Attendance, loc *time.Location) snapshot {
	s := make(snapshot, len(trackedFields))
	for i, f := range trackedFields {
		s[i] = fieldValue{field: f.name, value: f.value(a, loc)}
	}
	return s
}

type fieldChange struct {
	Field string
	Old   *string
	New   *string
}

// diffSnapshots compares two snapshots of the same shape field by field.
func diffSnapshots(before, after snapshot) []fieldChange {
	var changes []fieldChange
	for i := range before {
		if !sameValue(before[i].value, after[i].value) {
			changes = append(changes, fieldChange{
				Field: before[i].field,
				Old:   before[i].value,
				New:   after[i].value,
			})
		}
	}
	return changes
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func text(s string) *string {
	return &s
}

// instantLayout drops the fraction for whole seconds.
const instantLayout = dbtime.DateTimeLayout + ".999999999"

func instant(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	return text(t.In(loc).Format(instantLayout))
}

func timeOfDay(t *dbtime.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	return text(t.String())
}

func integer(v *int) *string {
	if v == nil {
		return nil
	}
	return text(strconv.Itoa(*v))
}

func enum[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	return text(string(*v))
}
