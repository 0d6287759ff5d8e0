package setting

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
)

type SettingServiceImpl struct {
	repo setting.Repository
}

// Resolve implements setting.Resolver. Stored values that fail to parse keep
// their default and are logged.
func (s *SettingServiceImpl) Resolve(ctx context.Context) (setting.Configuration, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return setting.Configuration{}, fmt.Errorf("failed to list settings: %w", err)
	}

	cfg, problems := setting.FromSettings(stored)
	for _, p := range problems {
		slog.Warn("ignoring malformed attendance setting", "key", p.Key, "value", p.Value, "error", p.Err)
	}
	return cfg, nil
}

// ListSettings implements setting.Service.
func (s *SettingServiceImpl) ListSettings(ctx context.Context) ([]setting.SettingResponse, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return setting.NewSettingResponses(stored), nil
}

// UpdateSettings implements setting.Service. A null value resets the key to
// its default.
func (s *SettingServiceImpl) UpdateSettings(ctx context.Context, req setting.UpdateSettingsRequest) ([]setting.SettingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(req.Settings))
	for k := range req.Settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	updates := make([]setting.Setting, 0, len(keys))
	for _, k := range keys {
		def, _ := setting.LookupDefinition(k)
		desc := def.Description
		var value *string
		if v := req.Settings[k]; v != nil && strings.TrimSpace(*v) != "" {
			trimmed := strings.TrimSpace(*v)
			value = &trimmed
		}
		updates = append(updates, setting.Setting{
			Key:         k,
			Value:       value,
			DataType:    def.DataType,
			Description: &desc,
			Group:       def.Group,
		})
	}

	if err := s.repo.Upsert(ctx, updates); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	slog.Info("attendance settings updated", "keys", keys)

	return s.ListSettings(ctx)
}

func NewSettingService(repo setting.Repository) setting.Service {
	return &SettingServiceImpl{repo: repo}
}
