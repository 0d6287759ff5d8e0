package qrcode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/qrcode"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

const invalidMessage = "QR Code is invalid or not applicable for the current work date"

type dailyValidator struct {
	repo qrcode.Repository
	loc  *time.Location
	now  func() time.Time
}

// Validate implements qrcode.Validator. Only daily codes issued for the work
// date are accepted.
func (v *dailyValidator) Validate(ctx context.Context, raw string, workDate time.Time) (string, error) {
	p, err := qrcode.ParsePayload(raw)
	if err != nil {
		return "", reject("malformed payload")
	}
	if p.Type != qrcode.PayloadTypeAttendanceScan {
		return "", reject("unexpected payload type", "type", p.Type)
	}
	if p.Token == "" || p.Date == "" {
		return "", reject("missing token or date")
	}

	payloadDate, err := dbtime.ParseDate(p.Date, v.loc)
	if err != nil {
		return "", reject("invalid payload date", "date", p.Date)
	}
	if !dbtime.SameDate(payloadDate, workDate) {
		return "", reject("payload date does not match work date",
			"payload_date", p.Date, "work_date", dbtime.FormatDate(workDate))
	}

	code, err := v.repo.FindByCode(ctx, p.Token)
	if err != nil {
		return "", fmt.Errorf("failed to find QR code: %w", err)
	}
	if code == nil {
		return "", reject("unknown token")
	}

	switch {
	case code.Type != qrcode.TypeDaily:
		return "", reject("not a daily code", "qr_code_id", code.ID)
	case !code.IsActive:
		return "", reject("inactive code", "qr_code_id", code.ID)
	case code.ValidOnDate == nil || !dbtime.SameDate(dbtime.NormalizeDate(*code.ValidOnDate, v.loc), workDate):
		return "", reject("code not valid on work date", "qr_code_id", code.ID)
	case code.ExpiresAt != nil && !code.ExpiresAt.After(v.now()):
		return "", reject("expired code", "qr_code_id", code.ID)
	case deref(code.RelatedLocationName) != p.LocationName:
		return "", reject("location mismatch", "qr_code_id", code.ID)
	case p.ShiftID != nil && *p.ShiftID != "" && deref(code.ShiftID) != *p.ShiftID:
		return "", reject("shift mismatch", "qr_code_id", code.ID)
	}

	return code.ID, nil
}

func reject(reason string, args ...any) error {
	slog.Debug("QR validation failed: "+reason, args...)
	return validator.NewFieldError("qr_payload", invalidMessage)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func NewValidator(repo qrcode.Repository, loc *time.Location) qrcode.Validator {
	return &dailyValidator{repo: repo, loc: loc, now: time.Now}
}
