package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/qrcode"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
)

type QRCodeJobs struct {
	qrCodeRepo qrcode.Repository
	loc        *time.Location
	now        func() time.Time
}

func NewQRCodeJobs(qrCodeRepo qrcode.Repository, loc *time.Location) *QRCodeJobs {
	return &QRCodeJobs{
		qrCodeRepo: qrCodeRepo,
		loc:        loc,
		now:        time.Now,
	}
}

func (j *QRCodeJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	scheduler.AddJob("deactivate_expired_qr_codes", interval, time.Minute, j.DeactivateExpiredCodes)
}

// DeactivateExpiredCodes switches off daily codes older than yesterday and
// codes past their expiry. Yesterday's code stays active because a night
// shift clocks out after midnight against the code of the day it started.
func (j *QRCodeJobs) DeactivateExpiredCodes(ctx context.Context) error {
	return j.DeactivateAsOf(ctx, j.now())
}

// DeactivateAsOf runs the cleanup as if the current instant were now.
func (j *QRCodeJobs) DeactivateAsOf(ctx context.Context, now time.Time) error {
	today := dbtime.DateOf(now, j.loc)
	validBefore := dbtime.AddDays(today, -1)

	n, err := j.qrCodeRepo.DeactivateExpired(ctx, validBefore, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate expired QR codes: %w", err)
	}

	if n > 0 {
		slog.Info("Cron: deactivated expired QR codes", "count", n, "valid_before", dbtime.FormatDate(validBefore))
	}
	return nil
}
