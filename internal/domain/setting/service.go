package setting

import "context"

// Resolver supplies the attendance configuration for one operation.
type Resolver interface {
	Resolve(ctx context.Context) (Configuration, error)
}

type Service interface {
	Resolver

	ListSettings(ctx context.Context) ([]SettingResponse, error)
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) ([]SettingResponse, error)
}
