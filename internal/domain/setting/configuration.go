package setting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Setting keys read by the attendance engine.
const (
	KeyLateToleranceMinutes             = "late_tolerance_minutes"
	KeyEarlyLeaveToleranceMinutes       = "early_leave_tolerance_minutes"
	KeyMinDurationBeforeClockOutMinutes = "min_duration_before_clock_out_minutes"
	KeyMinOvertimeThresholdMinutes      = "min_overtime_threshold_minutes"
	KeyNightShiftClockOutBufferHours    = "night_shift_clock_out_buffer_hours"
	KeyEnableGPSValidation              = "enable_gps_validation"
	KeyOfficeLatitude                   = "office_latitude"
	KeyOfficeLongitude                  = "office_longitude"
	KeyGPSRadiusMeters                  = "gps_radius_meters"
	KeyEnforceApprovedDevice            = "enforce_approved_device_for_attendance"
)

const (
	GroupAttendance = "attendance"
	GroupLocation   = "location"
	GroupSecurity   = "security"
)

// Definition describes a known key and its default.
type Definition struct {
	Key         string
	DataType    DataType
	Default     string
	Group       string
	Description string
}

var Definitions = []Definition{
	{KeyLateToleranceMinutes, DataTypeInteger, "0", GroupAttendance, "Minutes after shift start before a clock-in counts as late, when the shift has no grace period"},
	{KeyEarlyLeaveToleranceMinutes, DataTypeInteger, "0", GroupAttendance, "Minutes before shift end a clock-out may happen without counting as early leave, when the shift has no grace period"},
	{KeyMinDurationBeforeClockOutMinutes, DataTypeInteger, "60", GroupAttendance, "Minimum minutes between clock-in and clock-out"},
	{KeyMinOvertimeThresholdMinutes, DataTypeInteger, "0", GroupAttendance, "Minimum extra minutes before overtime is recorded"},
	{KeyNightShiftClockOutBufferHours, DataTypeDecimal, "3", GroupAttendance, "Hours after a night shift ends during which a clock-out still belongs to the previous work date"},
	{KeyEnableGPSValidation, DataTypeBoolean, "false", GroupLocation, "Reject scans outside the office radius"},
	{KeyOfficeLatitude, DataTypeDecimal, "", GroupLocation, "Office latitude"},
	{KeyOfficeLongitude, DataTypeDecimal, "", GroupLocation, "Office longitude"},
	{KeyGPSRadiusMeters, DataTypeInteger, "100", GroupLocation, "Allowed distance from the office in meters"},
	{KeyEnforceApprovedDevice, DataTypeBoolean, "false", GroupSecurity, "Only accept scans from approved devices"},
}

func LookupDefinition(key string) (Definition, bool) {
	for _, d := range Definitions {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// Configuration is the typed view of the settings, resolved once per operation.
type Configuration struct {
	LateToleranceMinutes             int
	EarlyLeaveToleranceMinutes       int
	MinDurationBeforeClockOutMinutes int
	MinOvertimeThresholdMinutes      int
	NightShiftClockOutBuffer         time.Duration
	EnableGPSValidation              bool
	OfficeLatitude                   *float64
	OfficeLongitude                  *float64
	GPSRadiusMeters                  float64
	EnforceApprovedDevice            bool
}

func DefaultConfiguration() Configuration {
	return Configuration{
		MinDurationBeforeClockOutMinutes: 60,
		NightShiftClockOutBuffer:         3 * time.Hour,
		GPSRadiusMeters:                  100,
	}
}

// OfficeLocation reports the configured office coordinates, if both are set.
func (c Configuration) OfficeLocation() (lat, lng float64, ok bool) {
	if c.OfficeLatitude == nil || c.OfficeLongitude == nil {
		return 0, 0, false
	}
	return *c.OfficeLatitude, *c.OfficeLongitude, true
}

// FieldError reports a stored value that could not be used.
type FieldError struct {
	Key   string
	Value string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("setting %s=%q: %v", e.Key, e.Value, e.Err)
}

// FromSettings overlays stored values on the defaults. Malformed values keep
// the default and are reported back.
func FromSettings(settings []Setting) (Configuration, []FieldError) {
	cfg := DefaultConfiguration()
	var problems []FieldError

	for _, s := range settings {
		if s.Value == nil || strings.TrimSpace(*s.Value) == "" {
			continue
		}
		raw := strings.TrimSpace(*s.Value)
		if err := cfg.set(s.Key, raw); err != nil {
			problems = append(problems, FieldError{Key: s.Key, Value: raw, Err: err})
		}
	}

	return cfg, problems
}

func (c *Configuration) set(key, raw string) error {
	switch key {
	case KeyLateToleranceMinutes:
		return setMinutes(&c.LateToleranceMinutes, raw)
	case KeyEarlyLeaveToleranceMinutes:
		return setMinutes(&c.EarlyLeaveToleranceMinutes, raw)
	case KeyMinDurationBeforeClockOutMinutes:
		return setMinutes(&c.MinDurationBeforeClockOutMinutes, raw)
	case KeyMinOvertimeThresholdMinutes:
		return setMinutes(&c.MinOvertimeThresholdMinutes, raw)
	case KeyNightShiftClockOutBufferHours:
		hours, err := decimal.NewFromString(raw)
		if err != nil || hours.IsNegative() {
			return fmt.Errorf("want non-negative hours")
		}
		c.NightShiftClockOutBuffer = time.Duration(hours.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart())
	case KeyEnableGPSValidation:
		v, err := parseBool(raw)
		if err != nil {
			return err
		}
		c.EnableGPSValidation = v
	case KeyEnforceApprovedDevice:
		v, err := parseBool(raw)
		if err != nil {
			return err
		}
		c.EnforceApprovedDevice = v
	case KeyOfficeLatitude:
		return setCoordinate(&c.OfficeLatitude, raw, 90)
	case KeyOfficeLongitude:
		return setCoordinate(&c.OfficeLongitude, raw, 180)
	case KeyGPSRadiusMeters:
		d, err := decimal.NewFromString(raw)
		if err != nil || !d.IsPositive() {
			return fmt.Errorf("want a positive radius")
		}
		c.GPSRadiusMeters = d.InexactFloat64()
	}
	return nil
}

func setMinutes(dst *int, raw string) error {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fmt.Errorf("want a non-negative integer")
	}
	*dst = v
	return nil
}

func setCoordinate(dst **float64, raw string, limit int64) error {
	d, err := decimal.NewFromString(raw)
	if err != nil || d.Abs().GreaterThan(decimal.NewFromInt(limit)) {
		return fmt.Errorf("want a coordinate within ±%d", limit)
	}
	v := d.InexactFloat64()
	*dst = &v
	return nil
}
