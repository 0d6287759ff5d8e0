package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
)

type settingRepository struct {
	db *database.DB
}

// List implements setting.Repository.
func (r *settingRepository) List(ctx context.Context) ([]setting.Setting, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT key, value, data_type, description, setting_group, updated_at
		FROM attendance_settings
		ORDER BY setting_group, key
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var settings []setting.Setting
	for rows.Next() {
		var s setting.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.DataType, &s.Description, &s.Group, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}

	return settings, nil
}

// Upsert implements setting.Repository.
func (r *settingRepository) Upsert(ctx context.Context, settings []setting.Setting) error {
	query := `
		INSERT INTO attendance_settings (key, value, data_type, description, setting_group)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			data_type = EXCLUDED.data_type,
			description = COALESCE(EXCLUDED.description, attendance_settings.description),
			setting_group = EXCLUDED.setting_group,
			updated_at = NOW()
	`

	return NewTransactor(r.db).WithinTransaction(ctx, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)
		for _, s := range settings {
			if _, err := q.Exec(ctx, query, s.Key, s.Value, s.DataType, s.Description, s.Group); err != nil {
				return fmt.Errorf("failed to upsert setting %s: %w", s.Key, err)
			}
		}
		return nil
	})
}

func NewSettingRepository(db *database.DB) setting.Repository {
	return &settingRepository{db: db}
}
