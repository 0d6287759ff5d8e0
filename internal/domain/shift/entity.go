package shift

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/shopspring/decimal"
)

type Shift struct {
	ID              string
	Name            string
	StartTime       dbtime.TimeOfDay
	EndTime         dbtime.TimeOfDay
	CrossesMidnight bool
	// Gross scheduled hours, break included.
	WorkDurationHours      decimal.Decimal
	BreakMinutes           int
	Weekdays               Weekdays
	GraceLateMinutes       *int
	GraceEarlyLeaveMinutes *int
	IsDefault              bool
	IsActive               bool
	CreatedAt              time.Time
	UpdatedAt              time.Time

	pinnedNetMinutes *int
}

// GrossMinutes is the configured duration in whole minutes. A shift stored
// without a duration falls back to the wall-clock span between start and end.
func (s Shift) GrossMinutes() int {
	if s.WorkDurationHours.IsPositive() {
		return int(s.WorkDurationHours.Mul(decimal.NewFromInt(60)).IntPart())
	}
	span := s.EndTime.SinceMidnight() - s.StartTime.SinceMidnight()
	if span < 0 {
		span += 24 * time.Hour
	}
	return int(span / time.Minute)
}

// ScheduledNetMinutes is the expected working time with the break removed.
func (s Shift) ScheduledNetMinutes() int {
	if s.pinnedNetMinutes != nil {
		return *s.pinnedNetMinutes
	}
	return max(0, s.GrossMinutes()-s.BreakMinutes)
}

// Pinned returns s with its window and net minutes replaced by a schedule
// captured earlier. Break and grace periods still come from s.
func (s Shift) Pinned(start, end dbtime.TimeOfDay, netMinutes int) Shift {
	s.StartTime = start
	s.EndTime = end
	s.CrossesMidnight = end.Before(start)
	s.pinnedNetMinutes = &netMinutes
	return s
}

// ScheduledStart anchors the start time to workDate.
func (s Shift) ScheduledStart(workDate time.Time) time.Time {
	return s.StartTime.On(workDate)
}

// ScheduledEnd anchors the end time to workDate, rolling to the next day when
// the shift crosses midnight and the end is earlier than the start.
func (s Shift) ScheduledEnd(workDate time.Time) time.Time {
	end := s.EndTime.On(workDate)
	if s.CrossesMidnight && s.EndTime.Before(s.StartTime) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

// LateGrace falls back to the given tolerance when the shift has none.
func (s Shift) LateGrace(fallback int) int {
	if s.GraceLateMinutes != nil {
		return *s.GraceLateMinutes
	}
	return fallback
}

func (s Shift) EarlyLeaveGrace(fallback int) int {
	if s.GraceEarlyLeaveMinutes != nil {
		return *s.GraceEarlyLeaveMinutes
	}
	return fallback
}

// Weekdays holds one active flag per time.Weekday.
type Weekdays [7]bool

// AllWeekdays marks every day active.
var AllWeekdays = Weekdays{true, true, true, true, true, true, true}

var weekdayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func (w Weekdays) On(d time.Weekday) bool {
	return w[d]
}

// Names lists active days, Sunday first.
func (w Weekdays) Names() []string {
	names := make([]string, 0, 7)
	for i, active := range w {
		if active {
			names = append(names, weekdayNames[i])
		}
	}
	return names
}

// ParseWeekdays builds flags from day names. Unknown names are returned.
func ParseWeekdays(names []string) (Weekdays, []string) {
	var w Weekdays
	var unknown []string
	for _, n := range names {
		found := false
		for i, wn := range weekdayNames {
			if strings.EqualFold(strings.TrimSpace(n), wn) {
				w[i] = true
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, n)
		}
	}
	return w, unknown
}

type Assignment struct {
	ID                 string
	PersonID           string
	ShiftID            string
	EffectiveStartDate time.Time
	EffectiveEndDate   *time.Time
	AssignedBy         *string
	Notes              *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Covers reports whether date falls inside the assignment's range.
func (a Assignment) Covers(date time.Time) bool {
	if date.Before(a.EffectiveStartDate) {
		return false
	}
	return a.EffectiveEndDate == nil || !date.After(*a.EffectiveEndDate)
}

type Source string

const (
	SourceAssignment Source = "assignment"
	SourceDefault    Source = "default"
	SourceManual     Source = "manual"
)

// Resolution is the outcome of resolving a person's shift for a date.
// The zero value means no shift applies.
type Resolution struct {
	shift  Shift
	found  bool
	Source Source
}

func Resolved(s Shift, source Source) Resolution {
	return Resolution{shift: s, found: true, Source: source}
}

func Unresolved() Resolution {
	return Resolution{}
}

func (r Resolution) Get() (Shift, bool) {
	return r.shift, r.found
}

func (r Resolution) Found() bool {
	return r.found
}
