package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type deviceRepository struct {
	db *database.DB
}

// FindApproved implements device.Repository.
func (r *deviceRepository) FindApproved(ctx context.Context, personID, identifier string) (*device.UserDevice, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, person_id, device_identifier, device_name, status,
			   approved_at, last_used_at, created_at, updated_at
		FROM user_devices
		WHERE person_id = $1 AND device_identifier = $2 AND status = $3
	`

	var d device.UserDevice
	err := q.QueryRow(ctx, query, personID, identifier, device.StatusApproved).Scan(
		&d.ID, &d.PersonID, &d.Identifier, &d.Name, &d.Status,
		&d.ApprovedAt, &d.LastUsedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find approved device: %w", err)
	}

	return &d, nil
}

// MarkUsed implements device.Repository.
func (r *deviceRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE user_devices SET last_used_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark device used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return device.ErrDeviceNotFound
	}
	return nil
}

func NewDeviceRepository(db *database.DB) device.Repository {
	return &deviceRepository{db: db}
}
