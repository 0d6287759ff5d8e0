package qrcode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	PayloadTypeAttendanceScan = "attendance_scan"
	TypeDaily                 = "daily"
)

// Payload is the JSON document encoded in an attendance QR code.
type Payload struct {
	Type         string  `json:"type"`
	Token        string  `json:"token"`
	Date         string  `json:"date"`
	LocationName string  `json:"location_name"`
	ShiftID      *string `json:"shift_id,omitempty"`
}

var ErrMalformedPayload = errors.New("QR payload is not a valid attendance code")

// ParsePayload decodes the raw scanned text.
func ParsePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return Payload{}, ErrMalformedPayload
	}
	return p, nil
}

// QRCode is an issued token. Issuance and rendering live outside the engine.
type QRCode struct {
	ID                  string
	Code                string
	Type                string
	RelatedLocationName *string
	ValidOnDate         *time.Time
	ExpiresAt           *time.Time
	IsActive            bool
	ShiftID             *string
	CreatedAt           time.Time
}

type Repository interface {
	// FindByCode returns nil when no code matches.
	FindByCode(ctx context.Context, code string) (*QRCode, error)
	// DeactivateExpired switches off active codes valid before validBefore or
	// whose expiry has passed, returning how many changed.
	DeactivateExpired(ctx context.Context, validBefore time.Time, now time.Time) (int64, error)
}

// Validator checks a scanned payload against the work date and returns the
// token id to record.
type Validator interface {
	Validate(ctx context.Context, raw string, workDate time.Time) (tokenID string, err error)
}
