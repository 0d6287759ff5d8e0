package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
)

// ClockInMetrics is the outcome of the clock-in phase.
type ClockInMetrics struct {
	Status          attendance.ClockInStatus
	LatenessMinutes int
}

// ClockOutMetrics is the outcome of the clock-out phase.
type ClockOutMetrics struct {
	Status               attendance.ClockOutStatus
	WorkDurationMinutes  int
	EffectiveWorkMinutes int
	OvertimeMinutes      int
	EarlyLeaveMinutes    int
}

// MetricsCalculator derives punctuality and duration figures. It holds no
// state and never touches storage.
type MetricsCalculator struct{}

func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{}
}

// ComputeClockIn decides On Time or Late against the shift start plus grace.
func (c *MetricsCalculator) ComputeClockIn(workDate, clockInAt time.Time, res shift.Resolution, cfg setting.Configuration) ClockInMetrics {
	sh, ok := res.Get()
	if !ok {
		return ClockInMetrics{Status: attendance.ClockInOnTime}
	}

	effectiveStart := c.effectiveStart(workDate, sh, cfg)
	if clockInAt.After(effectiveStart) {
		return ClockInMetrics{
			Status:          attendance.ClockInLate,
			LatenessMinutes: dbtime.WholeMinutes(effectiveStart, clockInAt),
		}
	}
	return ClockInMetrics{Status: attendance.ClockInOnTime}
}

// ClockInFor keeps lateness consistent with an explicitly chosen status.
func (c *MetricsCalculator) ClockInFor(status attendance.ClockInStatus, workDate, clockInAt time.Time, res shift.Resolution, cfg setting.Configuration) ClockInMetrics {
	m := ClockInMetrics{Status: status}
	if status != attendance.ClockInLate {
		return m
	}
	if sh, ok := res.Get(); ok {
		m.LatenessMinutes = dbtime.WholeMinutes(c.effectiveStart(workDate, sh, cfg), clockInAt)
	}
	return m
}

// ComputeClockOut derives durations and picks Left Early, Overtime or
// Finished On Time.
func (c *MetricsCalculator) ComputeClockOut(workDate, clockInAt, clockOutAt time.Time, res shift.Resolution, cfg setting.Configuration) ClockOutMetrics {
	m := c.durations(clockInAt, clockOutAt, res)

	sh, ok := res.Get()
	if !ok {
		m.Status = attendance.ClockOutFinishedOnTime
		return m
	}

	effectiveEnd := c.effectiveEnd(workDate, sh, cfg)
	if clockOutAt.Before(effectiveEnd) {
		m.Status = attendance.ClockOutLeftEarly
		m.EarlyLeaveMinutes = dbtime.WholeMinutes(clockOutAt, effectiveEnd)
		return m
	}

	rawOvertime := max(0, m.EffectiveWorkMinutes-sh.ScheduledNetMinutes())
	if rawOvertime > 0 && rawOvertime >= cfg.MinOvertimeThresholdMinutes {
		m.Status = attendance.ClockOutOvertime
		m.OvertimeMinutes = rawOvertime
		return m
	}

	m.Status = attendance.ClockOutFinishedOnTime
	return m
}

// ClockOutFor keeps overtime and early leave consistent with an explicitly
// chosen status.
func (c *MetricsCalculator) ClockOutFor(status attendance.ClockOutStatus, workDate, clockInAt, clockOutAt time.Time, res shift.Resolution, cfg setting.Configuration) ClockOutMetrics {
	m := c.durations(clockInAt, clockOutAt, res)
	m.Status = status

	sh, ok := res.Get()
	if !ok {
		return m
	}

	switch status {
	case attendance.ClockOutLeftEarly:
		m.EarlyLeaveMinutes = dbtime.WholeMinutes(clockOutAt, c.effectiveEnd(workDate, sh, cfg))
	case attendance.ClockOutOvertime:
		m.OvertimeMinutes = max(0, m.EffectiveWorkMinutes-sh.ScheduledNetMinutes())
	}
	return m
}

func (c *MetricsCalculator) durations(clockInAt, clockOutAt time.Time, res shift.Resolution) ClockOutMetrics {
	worked := dbtime.WholeMinutes(clockInAt, clockOutAt)
	breakMinutes := 0
	if sh, ok := res.Get(); ok {
		breakMinutes = sh.BreakMinutes
	}
	return ClockOutMetrics{
		WorkDurationMinutes:  worked,
		EffectiveWorkMinutes: max(0, worked-breakMinutes),
	}
}

func (c *MetricsCalculator) effectiveStart(workDate time.Time, sh shift.Shift, cfg setting.Configuration) time.Time {
	grace := sh.LateGrace(cfg.LateToleranceMinutes)
	return sh.ScheduledStart(workDate).Add(time.Duration(grace) * time.Minute)
}

func (c *MetricsCalculator) effectiveEnd(workDate time.Time, sh shift.Shift, cfg setting.Configuration) time.Time {
	grace := sh.EarlyLeaveGrace(cfg.EarlyLeaveToleranceMinutes)
	return sh.ScheduledEnd(workDate).Add(-time.Duration(grace) * time.Minute)
}
