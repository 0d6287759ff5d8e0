package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkDateResolver(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, testLoc)
	next := dbtime.AddDays(day, 1)
	buffer := 3 * time.Hour

	tests := []struct {
		name      string
		shiftKey  string
		clockOut  bool
		scannedAt time.Time
		want      time.Time
	}{
		{
			name:      "no open record yesterday",
			scannedAt: at(next, 5, 0),
			want:      next,
		},
		{
			name:      "open night shift within buffer",
			shiftKey:  "night",
			scannedAt: at(next, 8, 59),
			want:      day,
		},
		{
			name:      "open night shift exactly at window end",
			shiftKey:  "night",
			scannedAt: at(next, 9, 0),
			want:      day,
		},
		{
			name:      "open night shift past buffer",
			shiftKey:  "night",
			scannedAt: at(next, 9, 1),
			want:      next,
		},
		{
			name:      "open day shift is not carried over",
			shiftKey:  "day",
			scannedAt: at(next, 1, 0),
			want:      next,
		},
		{
			name:      "closed night shift",
			shiftKey:  "night",
			clockOut:  true,
			scannedAt: at(next, 5, 0),
			want:      next,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore(testLoc)
			shiftRepo := memory.NewShiftRepository(store)
			attendanceRepo := memory.NewAttendanceRepository(store)

			night, err := shiftRepo.Create(ctx, nightShift())
			require.NoError(t, err)
			daytime, err := shiftRepo.Create(ctx, dayShift())
			require.NoError(t, err)
			ids := map[string]string{"night": night.ID, "day": daytime.ID}

			if tt.shiftKey != "" {
				shiftID := ids[tt.shiftKey]
				in := at(day, 22, 0)
				rec := attendance.Attendance{
					PersonID:  testPerson,
					WorkDate:  day,
					ShiftID:   &shiftID,
					ClockInAt: &in,
				}
				if tt.clockOut {
					out := at(next, 4, 0)
					rec.ClockOutAt = &out
				}
				_, err := attendanceRepo.Create(ctx, rec)
				require.NoError(t, err)
			}

			resolver := NewWorkDateResolver(attendanceRepo, shiftRepo, testLoc)
			got, err := resolver.Resolve(ctx, testPerson, tt.scannedAt, buffer)
			require.NoError(t, err)
			assert.Equal(t, dbtime.FormatDate(tt.want), dbtime.FormatDate(got))
		})
	}
}

func TestWorkDateResolver_UsesAppTimezone(t *testing.T) {
	ctx := context.Background()
	jakarta := time.FixedZone("WIB", 7*60*60)
	store := memory.NewStore(jakarta)
	resolver := NewWorkDateResolver(memory.NewAttendanceRepository(store), memory.NewShiftRepository(store), jakarta)

	// 18:30 UTC on the 10th is 01:30 on the 11th in UTC+7.
	got, err := resolver.Resolve(ctx, testPerson, time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC), 3*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", dbtime.FormatDate(got))
}
