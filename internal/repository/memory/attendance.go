package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
)

type attendanceRepository struct {
	store *Store
}

func attendanceKey(personID string, workDate time.Time) string {
	return personID + "|" + dbtime.FormatDate(workDate)
}

// Create implements attendance.AttendanceRepository.
func (r *attendanceRepository) Create(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	err := r.store.write(ctx, func(t *tables) error {
		key := attendanceKey(a.PersonID, a.WorkDate)
		if _, taken := t.attendanceKeys[key]; taken {
			return attendance.ErrConcurrentScan
		}
		now := r.store.stamp()
		a.ID = newID()
		a.WorkDate = dbtime.NormalizeDate(a.WorkDate, r.store.loc)
		a.CreatedAt = now
		a.UpdatedAt = now
		t.attendances[a.ID] = a
		t.attendanceKeys[key] = a.ID
		return nil
	})
	if err != nil {
		return attendance.Attendance{}, err
	}
	return a, nil
}

// Update implements attendance.AttendanceRepository.
func (r *attendanceRepository) Update(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	err := r.store.write(ctx, func(t *tables) error {
		current, ok := t.attendances[a.ID]
		if !ok {
			return attendance.ErrAttendanceNotFound
		}
		oldKey := attendanceKey(current.PersonID, current.WorkDate)
		newKey := attendanceKey(a.PersonID, a.WorkDate)
		if newKey != oldKey {
			if _, taken := t.attendanceKeys[newKey]; taken {
				return attendance.ErrWorkDateTaken
			}
			delete(t.attendanceKeys, oldKey)
			t.attendanceKeys[newKey] = a.ID
		}
		a.WorkDate = dbtime.NormalizeDate(a.WorkDate, r.store.loc)
		a.CreatedAt = current.CreatedAt
		a.UpdatedAt = r.store.stamp()
		t.attendances[a.ID] = a
		return nil
	})
	if err != nil {
		return attendance.Attendance{}, err
	}
	return a, nil
}

// GetByID implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByID(_ context.Context, id string) (attendance.Attendance, error) {
	var (
		a  attendance.Attendance
		ok bool
	)
	r.store.read(func(t *tables) {
		a, ok = t.attendances[id]
	})
	if !ok {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}
	return a, nil
}

// GetByIDForUpdate implements attendance.AttendanceRepository. The unit of
// work already holds the store exclusively.
func (r *attendanceRepository) GetByIDForUpdate(ctx context.Context, id string) (attendance.Attendance, error) {
	return r.GetByID(ctx, id)
}

// GetByPersonAndDateForUpdate implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByPersonAndDateForUpdate(_ context.Context, personID string, workDate time.Time) (*attendance.Attendance, error) {
	return r.byKey(personID, workDate), nil
}

// GetOpenByPersonAndDate implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetOpenByPersonAndDate(_ context.Context, personID string, workDate time.Time) (*attendance.Attendance, error) {
	a := r.byKey(personID, workDate)
	if attendance.StateOf(a) != attendance.StateClockedIn {
		return nil, nil
	}
	return a, nil
}

func (r *attendanceRepository) byKey(personID string, workDate time.Time) *attendance.Attendance {
	var found *attendance.Attendance
	r.store.read(func(t *tables) {
		id, ok := t.attendanceKeys[attendanceKey(personID, workDate)]
		if !ok {
			return
		}
		a := t.attendances[id]
		found = &a
	})
	return found
}

// List implements attendance.AttendanceRepository.
func (r *attendanceRepository) List(_ context.Context, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	start, end := filter.DateRange(r.store.loc)

	var matched []attendance.Attendance
	r.store.read(func(t *tables) {
		for _, a := range t.attendances {
			if filter.PersonID != nil && *filter.PersonID != "" && a.PersonID != *filter.PersonID {
				continue
			}
			if start != nil && a.WorkDate.Before(*start) {
				continue
			}
			if end != nil && a.WorkDate.After(*end) {
				continue
			}
			if !matchesStatus(filter.ClockInStatus, a.ClockInStatus) {
				continue
			}
			if !matchesStatus(filter.ClockOutStatus, a.ClockOutStatus) {
				continue
			}
			matched = append(matched, a)
		}
	})

	desc := strings.ToLower(filter.SortOrder) != "asc"
	slices.SortFunc(matched, func(x, y attendance.Attendance) int {
		c := x.WorkDate.Compare(y.WorkDate)
		if c == 0 {
			c = compareInstants(x.ClockInAt, y.ClockInAt)
		}
		if c == 0 {
			c = cmp.Compare(x.ID, y.ID)
		}
		if desc {
			return -c
		}
		return c
	})

	return paginate(matched, filter.Page, filter.Limit), int64(len(matched)), nil
}

func matchesStatus[T ~string](want *string, got *T) bool {
	if want == nil || *want == "" {
		return true
	}
	return got != nil && string(*got) == *want
}

func compareInstants(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		limit = 20
	}
	offset := (max(page, 1) - 1) * limit
	if offset >= len(items) {
		return nil
	}
	return items[offset:min(offset+limit, len(items))]
}

func NewAttendanceRepository(store *Store) attendance.AttendanceRepository {
	return &attendanceRepository{store: store}
}

type correctionLogRepository struct {
	store *Store
}

// CreateBatch implements attendance.CorrectionLogRepository.
func (r *correctionLogRepository) CreateBatch(ctx context.Context, logs []attendance.CorrectionLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.store.write(ctx, func(t *tables) error {
		for _, l := range logs {
			if _, ok := t.attendances[l.AttendanceID]; !ok {
				return attendance.ErrAttendanceNotFound
			}
			l.ID = newID()
			t.corrections = append(t.corrections, l)
		}
		return nil
	})
}

// ListByAttendance implements attendance.CorrectionLogRepository.
func (r *correctionLogRepository) ListByAttendance(_ context.Context, attendanceID string) ([]attendance.CorrectionLog, error) {
	var logs []attendance.CorrectionLog
	r.store.read(func(t *tables) {
		for _, l := range t.corrections {
			if l.AttendanceID == attendanceID {
				logs = append(logs, l)
			}
		}
	})
	return logs, nil
}

func NewCorrectionLogRepository(store *Store) attendance.CorrectionLogRepository {
	return &correctionLogRepository{store: store}
}
