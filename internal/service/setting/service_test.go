package setting

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func newTestService() (setting.Service, setting.Repository) {
	repo := memory.NewSettingRepository(memory.NewStore(time.UTC))
	return NewSettingService(repo), repo
}

func findSetting(t *testing.T, list []setting.SettingResponse, key string) setting.SettingResponse {
	t.Helper()
	for _, s := range list {
		if s.Key == key {
			return s
		}
	}
	t.Fatalf("setting %s not listed", key)
	return setting.SettingResponse{}
}

func TestSettingService_Resolve_Defaults(t *testing.T) {
	svc, _ := newTestService()

	cfg, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, setting.DefaultConfiguration(), cfg)
}

func TestSettingService_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	list, err := svc.UpdateSettings(ctx, setting.UpdateSettingsRequest{Settings: map[string]*string{
		setting.KeyMinOvertimeThresholdMinutes:   ptr(" 30 "),
		setting.KeyNightShiftClockOutBufferHours: ptr("4.5"),
		setting.KeyEnforceApprovedDevice:         ptr("true"),
	}})
	require.NoError(t, err)

	overtime := findSetting(t, list, setting.KeyMinOvertimeThresholdMinutes)
	assert.False(t, overtime.IsDefault)
	assert.Equal(t, "30", *overtime.Value)
	assert.NotNil(t, overtime.UpdatedAt)

	cfg, err := svc.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.MinOvertimeThresholdMinutes)
	assert.Equal(t, 4*time.Hour+30*time.Minute, cfg.NightShiftClockOutBuffer)
	assert.True(t, cfg.EnforceApprovedDevice)

	// A null value resets the key.
	list, err = svc.UpdateSettings(ctx, setting.UpdateSettingsRequest{Settings: map[string]*string{
		setting.KeyMinOvertimeThresholdMinutes: nil,
	}})
	require.NoError(t, err)
	assert.True(t, findSetting(t, list, setting.KeyMinOvertimeThresholdMinutes).IsDefault)

	cfg, err = svc.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MinOvertimeThresholdMinutes)
	assert.True(t, cfg.EnforceApprovedDevice)
}

func TestSettingService_UpdateSettings_Invalid(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.UpdateSettings(context.Background(), setting.UpdateSettingsRequest{Settings: map[string]*string{
		"no_such_key":                   ptr("1"),
		setting.KeyGPSRadiusMeters:      ptr("far"),
		setting.KeyLateToleranceMinutes: ptr("5"),
	}})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.HasField("settings.no_such_key"))
	assert.True(t, verrs.HasField("settings."+setting.KeyGPSRadiusMeters))
	assert.False(t, verrs.HasField("settings."+setting.KeyLateToleranceMinutes))

	_, err = svc.UpdateSettings(context.Background(), setting.UpdateSettingsRequest{})
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.HasField("settings"))
}

func TestSettingService_Resolve_IgnoresMalformedStoredValue(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	// Written behind the service's back, as a manual database edit would be.
	require.NoError(t, repo.Upsert(ctx, []setting.Setting{
		{Key: setting.KeyMinDurationBeforeClockOutMinutes, Value: ptr("soon"), DataType: setting.DataTypeInteger},
		{Key: setting.KeyLateToleranceMinutes, Value: ptr("10"), DataType: setting.DataTypeInteger},
	}))

	cfg, err := svc.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.MinDurationBeforeClockOutMinutes)
	assert.Equal(t, 10, cfg.LateToleranceMinutes)
}
