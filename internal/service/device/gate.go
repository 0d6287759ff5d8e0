package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
)

type gate struct {
	repo device.Repository
	now  func() time.Time
}

// ApprovedDeviceID implements device.Gate and stamps the device as used.
func (g *gate) ApprovedDeviceID(ctx context.Context, personID, identifier string) (*string, error) {
	d, err := g.repo.FindApproved(ctx, personID, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to find approved device: %w", err)
	}
	if d == nil {
		return nil, nil
	}

	if err := g.repo.MarkUsed(ctx, d.ID, g.now().UTC()); err != nil {
		slog.Warn("failed to update device last used time", "device_id", d.ID, "error", err)
	}

	id := d.ID
	return &id, nil
}

func NewGate(repo device.Repository) device.Gate {
	return &gate{repo: repo, now: time.Now}
}
