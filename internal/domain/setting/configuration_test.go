package setting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestFromSettingsDefaults(t *testing.T) {
	cfg, problems := FromSettings(nil)
	assert.Empty(t, problems)
	assert.Equal(t, DefaultConfiguration(), cfg)
	assert.Equal(t, 60, cfg.MinDurationBeforeClockOutMinutes)
	assert.Equal(t, 3*time.Hour, cfg.NightShiftClockOutBuffer)
	assert.Equal(t, float64(100), cfg.GPSRadiusMeters)

	_, _, ok := cfg.OfficeLocation()
	assert.False(t, ok)
}

func TestFromSettingsOverlay(t *testing.T) {
	cfg, problems := FromSettings([]Setting{
		{Key: KeyLateToleranceMinutes, Value: ptr("5")},
		{Key: KeyMinOvertimeThresholdMinutes, Value: ptr("30")},
		{Key: KeyNightShiftClockOutBufferHours, Value: ptr("2.5")},
		{Key: KeyEnableGPSValidation, Value: ptr("1")},
		{Key: KeyOfficeLatitude, Value: ptr("-6.2")},
		{Key: KeyOfficeLongitude, Value: ptr("106.816666")},
		{Key: KeyGPSRadiusMeters, Value: ptr("250")},
		{Key: KeyEnforceApprovedDevice, Value: ptr("true")},
		{Key: "unrelated_key", Value: ptr("whatever")},
	})
	require.Empty(t, problems)

	assert.Equal(t, 5, cfg.LateToleranceMinutes)
	assert.Equal(t, 30, cfg.MinOvertimeThresholdMinutes)
	assert.Equal(t, 150*time.Minute, cfg.NightShiftClockOutBuffer)
	assert.True(t, cfg.EnableGPSValidation)
	assert.True(t, cfg.EnforceApprovedDevice)
	assert.Equal(t, float64(250), cfg.GPSRadiusMeters)

	lat, lng, ok := cfg.OfficeLocation()
	require.True(t, ok)
	assert.InDelta(t, -6.2, lat, 1e-9)
	assert.InDelta(t, 106.816666, lng, 1e-9)
}

func TestFromSettingsMalformedKeepsDefault(t *testing.T) {
	cfg, problems := FromSettings([]Setting{
		{Key: KeyMinDurationBeforeClockOutMinutes, Value: ptr("soon")},
		{Key: KeyOfficeLatitude, Value: ptr("123")},
		{Key: KeyLateToleranceMinutes, Value: nil},
	})

	assert.Len(t, problems, 2)
	assert.Equal(t, 60, cfg.MinDurationBeforeClockOutMinutes)
	assert.Nil(t, cfg.OfficeLatitude)
	assert.Equal(t, 0, cfg.LateToleranceMinutes)
}

func TestDataTypeCheck(t *testing.T) {
	assert.NoError(t, DataTypeInteger.Check("15"))
	assert.Error(t, DataTypeInteger.Check("1.5"))
	assert.NoError(t, DataTypeBoolean.Check("off"))
	assert.Error(t, DataTypeBoolean.Check("maybe"))
	assert.NoError(t, DataTypeDecimal.Check("-6.2"))
	assert.NoError(t, DataTypeTime.Check("08:00"))
	assert.NoError(t, DataTypeJSON.Check(`{"a":1}`))
	assert.Error(t, DataTypeJSON.Check(`{"a":`))
	assert.NoError(t, DataTypeString.Check("anything"))
}

func TestUpdateSettingsRequestValidate(t *testing.T) {
	req := UpdateSettingsRequest{Settings: map[string]*string{
		KeyLateToleranceMinutes: ptr("-1"),
		"no_such_key":           ptr("1"),
		KeyEnableGPSValidation:  ptr("true"),
	}}

	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings.no_such_key")
	assert.Contains(t, err.Error(), "settings."+KeyLateToleranceMinutes)
	assert.NotContains(t, err.Error(), "settings."+KeyEnableGPSValidation)
}

func TestNewSettingResponses(t *testing.T) {
	out := NewSettingResponses([]Setting{{Key: KeyGPSRadiusMeters, Value: ptr("300")}})
	require.Len(t, out, len(Definitions))

	for _, r := range out {
		switch r.Key {
		case KeyGPSRadiusMeters:
			assert.False(t, r.IsDefault)
			assert.Equal(t, "300", *r.Value)
		case KeyMinDurationBeforeClockOutMinutes:
			assert.True(t, r.IsDefault)
			assert.Equal(t, "60", *r.Value)
		case KeyOfficeLatitude:
			assert.Nil(t, r.Value)
		}
	}
}
