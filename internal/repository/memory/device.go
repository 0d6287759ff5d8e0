package memory

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/qrcode"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
)

type deviceRepository struct {
	store *Store
}

// FindApproved implements device.Repository.
func (r *deviceRepository) FindApproved(_ context.Context, personID, identifier string) (*device.UserDevice, error) {
	var found *device.UserDevice
	r.store.read(func(t *tables) {
		for _, d := range t.devices {
			if d.PersonID == personID && d.Identifier == identifier && d.Status == device.StatusApproved {
				match := d
				found = &match
				return
			}
		}
	})
	return found, nil
}

// MarkUsed implements device.Repository.
func (r *deviceRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	return r.store.write(ctx, func(t *tables) error {
		d, ok := t.devices[id]
		if !ok {
			return device.ErrDeviceNotFound
		}
		d.LastUsedAt = &at
		d.UpdatedAt = r.store.stamp()
		t.devices[id] = d
		return nil
	})
}

func NewDeviceRepository(store *Store) device.Repository {
	return &deviceRepository{store: store}
}

type qrCodeRepository struct {
	store *Store
}

// FindByCode implements qrcode.Repository.
func (r *qrCodeRepository) FindByCode(_ context.Context, code string) (*qrcode.QRCode, error) {
	var found *qrcode.QRCode
	r.store.read(func(t *tables) {
		for _, c := range t.qrCodes {
			if c.Code == code {
				match := c
				found = &match
				return
			}
		}
	})
	return found, nil
}

// DeactivateExpired implements qrcode.Repository.
func (r *qrCodeRepository) DeactivateExpired(ctx context.Context, validBefore time.Time, now time.Time) (int64, error) {
	validBefore = dbtime.NormalizeDate(validBefore, r.store.loc)

	var n int64
	err := r.store.write(ctx, func(t *tables) error {
		for id, c := range t.qrCodes {
			if !c.IsActive {
				continue
			}
			pastDay := c.ValidOnDate != nil && dbtime.NormalizeDate(*c.ValidOnDate, r.store.loc).Before(validBefore)
			expired := c.ExpiresAt != nil && !c.ExpiresAt.After(now)
			if pastDay || expired {
				c.IsActive = false
				t.qrCodes[id] = c
				n++
			}
		}
		return nil
	})
	return n, err
}

func NewQRCodeRepository(store *Store) qrcode.Repository {
	return &qrCodeRepository{store: store}
}
