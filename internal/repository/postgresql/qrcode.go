package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/qrcode"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/jackc/pgx/v5"
)

type qrCodeRepository struct {
	db  *database.DB
	loc *time.Location
}

// FindByCode implements qrcode.Repository.
func (r *qrCodeRepository) FindByCode(ctx context.Context, code string) (*qrcode.QRCode, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, unique_code, type, related_location_name, valid_on_date,
			   expires_at, is_active, shift_id, created_at
		FROM qr_codes
		WHERE unique_code = $1
	`

	var c qrcode.QRCode
	err := q.QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Type, &c.RelatedLocationName, &c.ValidOnDate,
		&c.ExpiresAt, &c.IsActive, &c.ShiftID, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find QR code: %w", err)
	}
	if c.ValidOnDate != nil {
		d := dbtime.NormalizeDate(*c.ValidOnDate, r.loc)
		c.ValidOnDate = &d
	}

	return &c, nil
}

// DeactivateExpired implements qrcode.Repository.
func (r *qrCodeRepository) DeactivateExpired(ctx context.Context, validBefore time.Time, now time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE qr_codes
		SET is_active = FALSE, updated_at = NOW()
		WHERE is_active = TRUE
		  AND (
			(valid_on_date IS NOT NULL AND valid_on_date < $1::date)
			OR (expires_at IS NOT NULL AND expires_at <= $2)
		  )
	`

	tag, err := q.Exec(ctx, query, dbtime.FormatDate(validBefore), now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired QR codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func NewQRCodeRepository(db *database.DB, loc *time.Location) qrcode.Repository {
	return &qrCodeRepository{db: db, loc: loc}
}
