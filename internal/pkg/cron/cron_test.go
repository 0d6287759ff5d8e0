package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/qrcode"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunOnceJoinsErrors(t *testing.T) {
	s := NewScheduler()
	var ran []string
	s.AddJob("ok", time.Hour, 0, func(ctx context.Context) error {
		ran = append(ran, "ok")
		return nil
	})
	s.AddJob("fails", time.Hour, 0, func(ctx context.Context) error {
		ran = append(ran, "fails")
		return errors.New("database unavailable")
	})
	s.AddJob("panics", time.Hour, 0, func(ctx context.Context) error {
		ran = append(ran, "panics")
		panic("nil map")
	})

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.Contains(t, err.Error(), "job panics panicked")
	assert.Equal(t, []string{"ok", "fails", "panics"}, ran)
}

func TestScheduler_TimeoutCappedByInterval(t *testing.T) {
	s := NewScheduler()
	s.AddJob("slow", 50*time.Millisecond, time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.Equal(t, 50*time.Millisecond, s.jobs[0].Timeout)

	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	s.AddJob("tick", 10*time.Millisecond, 0, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start()
	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestQRCodeJobs_DeactivateExpiredCodes(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("WIB", 7*60*60)
	store := memory.NewStore(loc)
	repo := memory.NewQRCodeRepository(store)

	// 18:00 UTC on the 10th is already the 11th in UTC+7.
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	ninth := time.Date(2025, 3, 9, 0, 0, 0, 0, loc)
	tenth := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	eleventh := time.Date(2025, 3, 11, 0, 0, 0, 0, loc)

	for _, c := range []qrcode.QRCode{
		{Code: "ninth", Type: qrcode.TypeDaily, ValidOnDate: &ninth, IsActive: true},
		{Code: "tenth", Type: qrcode.TypeDaily, ValidOnDate: &tenth, IsActive: true},
		{Code: "eleventh", Type: qrcode.TypeDaily, ValidOnDate: &eleventh, IsActive: true},
	} {
		_, err := store.PutQRCode(c)
		require.NoError(t, err)
	}

	jobs := NewQRCodeJobs(repo, loc)
	jobs.now = func() time.Time { return now }

	s := NewScheduler()
	jobs.RegisterJobs(s, time.Hour)
	require.NoError(t, s.RunOnce(ctx))

	old, err := repo.FindByCode(ctx, "ninth")
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	// Yesterday's code still serves overnight clock-outs.
	for _, code := range []string{"tenth", "eleventh"} {
		c, err := repo.FindByCode(ctx, code)
		require.NoError(t, err)
		assert.True(t, c.IsActive, code)
	}
}
