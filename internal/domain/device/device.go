package device

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
)

// UserDevice is a device a person registered for scanning. Registration and
// approval happen elsewhere; the engine only reads approved devices.
type UserDevice struct {
	ID         string
	PersonID   string
	Identifier string
	Name       *string
	Status     Status
	ApprovedAt *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var ErrDeviceNotFound = errors.New("device not found")

type Repository interface {
	// FindApproved returns nil when the person has no approved device with
	// that identifier.
	FindApproved(ctx context.Context, personID, identifier string) (*UserDevice, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

// Gate maps a scanning device to an approved device id. A nil id means the
// device is unknown or not approved.
type Gate interface {
	ApprovedDeviceID(ctx context.Context, personID, identifier string) (*string, error)
}
