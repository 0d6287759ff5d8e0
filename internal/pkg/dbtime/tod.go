package dbtime

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without date or zone, stored as a Postgres TIME.
type TimeOfDay struct {
	sec int
}

const secondsPerDay = 24 * 60 * 60

// NewTimeOfDay panics on out-of-range components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		panic(fmt.Sprintf("dbtime: invalid time of day %02d:%02d:%02d", hour, minute, second))
	}
	return TimeOfDay{sec: hour*3600 + minute*60 + second}
}

// From takes the wall clock of t, dropping date and zone.
func From(t time.Time) TimeOfDay {
	return TimeOfDay{sec: t.Hour()*3600 + t.Minute()*60 + t.Second()}
}

// Parse accepts "HH:MM" or "HH:MM:SS" (fractional seconds are dropped).
func Parse(s string) (TimeOfDay, error) {
	var t TimeOfDay
	return t, t.parse(s)
}

func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *TimeOfDay) parse(s string) error {
	s = strings.TrimSpace(s)
	if len(s) == 5 {
		s += ":00"
	}
	tt, err := time.Parse("15:04:05", s)
	if err != nil {
		return fmt.Errorf("dbtime: invalid time of day %q: %w", s, err)
	}
	*t = From(tt)
	return nil
}

func (t TimeOfDay) Hour() int   { return t.sec / 3600 }
func (t TimeOfDay) Minute() int { return t.sec % 3600 / 60 }
func (t TimeOfDay) Second() int { return t.sec % 60 }

// SinceMidnight returns the offset from 00:00:00.
func (t TimeOfDay) SinceMidnight() time.Duration {
	return time.Duration(t.sec) * time.Second
}

func (t TimeOfDay) Before(u TimeOfDay) bool { return t.sec < u.sec }
func (t TimeOfDay) After(u TimeOfDay) bool  { return t.sec > u.sec }
func (t TimeOfDay) Equal(u TimeOfDay) bool  { return t.sec == u.sec }

// On anchors t to the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, date.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Scan accepts time.Time or a "HH:MM[:SS[.ffffff]]" string.
func (t *TimeOfDay) Scan(v any) error {
	switch x := v.(type) {
	case time.Time:
		*t = From(x)
		return nil
	case []byte:
		return t.parse(string(x))
	case string:
		return t.parse(x)
	case nil:
		*t = TimeOfDay{}
		return nil
	default:
		return fmt.Errorf("dbtime: unsupported Scan type %T", v)
	}
}

// Value sends "HH:MM:SS" so Postgres TIME accepts it.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return t.parse(s)
}
