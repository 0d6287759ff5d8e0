package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
)

type shiftRepository struct {
	store *Store
}

func nameTaken(t *tables, name, exceptID string) bool {
	for id, s := range t.shifts {
		if id != exceptID && strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// Create implements shift.ShiftRepository.
func (r *shiftRepository) Create(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	err := r.store.write(ctx, func(t *tables) error {
		if nameTaken(t, s.Name, "") {
			return shift.ErrShiftNameExists
		}
		now := r.store.stamp()
		s.ID = newID()
		s.CreatedAt = now
		s.UpdatedAt = now
		t.shifts[s.ID] = s
		return nil
	})
	if err != nil {
		return shift.Shift{}, err
	}
	return s, nil
}

// Update implements shift.ShiftRepository.
func (r *shiftRepository) Update(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	err := r.store.write(ctx, func(t *tables) error {
		current, ok := t.shifts[s.ID]
		if !ok {
			return shift.ErrShiftNotFound
		}
		if nameTaken(t, s.Name, s.ID) {
			return shift.ErrShiftNameExists
		}
		s.CreatedAt = current.CreatedAt
		s.UpdatedAt = r.store.stamp()
		t.shifts[s.ID] = s
		return nil
	})
	if err != nil {
		return shift.Shift{}, err
	}
	return s, nil
}

// GetByID implements shift.ShiftRepository.
func (r *shiftRepository) GetByID(_ context.Context, id string) (shift.Shift, error) {
	var (
		s  shift.Shift
		ok bool
	)
	r.store.read(func(t *tables) {
		s, ok = t.shifts[id]
	})
	if !ok {
		return shift.Shift{}, shift.ErrShiftNotFound
	}
	return s, nil
}

// GetDefault implements shift.ShiftRepository.
func (r *shiftRepository) GetDefault(_ context.Context) (*shift.Shift, error) {
	var found *shift.Shift
	r.store.read(func(t *tables) {
		for _, s := range t.shifts {
			if !s.IsDefault || !s.IsActive {
				continue
			}
			if found == nil || s.UpdatedAt.After(found.UpdatedAt) {
				def := s
				found = &def
			}
		}
	})
	return found, nil
}

// List implements shift.ShiftRepository.
func (r *shiftRepository) List(_ context.Context, filter shift.ShiftFilter) ([]shift.Shift, int64, error) {
	var matched []shift.Shift
	r.store.read(func(t *tables) {
		for _, s := range t.shifts {
			if filter.IsActive != nil && s.IsActive != *filter.IsActive {
				continue
			}
			matched = append(matched, s)
		}
	})

	slices.SortFunc(matched, func(a, b shift.Shift) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return paginate(matched, filter.Page, filter.Limit), int64(len(matched)), nil
}

// ClearDefault implements shift.ShiftRepository.
func (r *shiftRepository) ClearDefault(ctx context.Context, exceptID string) error {
	return r.store.write(ctx, func(t *tables) error {
		for id, s := range t.shifts {
			if id == exceptID || !s.IsDefault {
				continue
			}
			s.IsDefault = false
			s.UpdatedAt = r.store.stamp()
			t.shifts[id] = s
		}
		return nil
	})
}

func NewShiftRepository(store *Store) shift.ShiftRepository {
	return &shiftRepository{store: store}
}

type assignmentRepository struct {
	store *Store
}

// Create implements shift.AssignmentRepository.
func (r *assignmentRepository) Create(ctx context.Context, a shift.Assignment) (shift.Assignment, error) {
	err := r.store.write(ctx, func(t *tables) error {
		if _, ok := t.shifts[a.ShiftID]; !ok {
			return shift.ErrShiftNotFound
		}
		now := r.store.stamp()
		a.ID = newID()
		a.EffectiveStartDate = dbtime.NormalizeDate(a.EffectiveStartDate, r.store.loc)
		if a.EffectiveEndDate != nil {
			end := dbtime.NormalizeDate(*a.EffectiveEndDate, r.store.loc)
			a.EffectiveEndDate = &end
		}
		a.CreatedAt = now
		a.UpdatedAt = now
		t.assignments[a.ID] = a
		return nil
	})
	if err != nil {
		return shift.Assignment{}, err
	}
	return a, nil
}

// FindCovering implements shift.AssignmentRepository.
func (r *assignmentRepository) FindCovering(_ context.Context, personID string, date time.Time) (*shift.Assignment, error) {
	date = dbtime.NormalizeDate(date, r.store.loc)

	var found *shift.Assignment
	r.store.read(func(t *tables) {
		for _, a := range t.assignments {
			if a.PersonID != personID || !a.Covers(date) {
				continue
			}
			if found == nil || laterAssignment(a, *found) {
				match := a
				found = &match
			}
		}
	})
	return found, nil
}

// laterAssignment orders by start date, then creation time.
func laterAssignment(a, b shift.Assignment) bool {
	if !a.EffectiveStartDate.Equal(b.EffectiveStartDate) {
		return a.EffectiveStartDate.After(b.EffectiveStartDate)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// CloseOverlapping implements shift.AssignmentRepository.
func (r *assignmentRepository) CloseOverlapping(ctx context.Context, personID string, startDate time.Time) (int64, error) {
	startDate = dbtime.NormalizeDate(startDate, r.store.loc)
	dayBefore := dbtime.AddDays(startDate, -1)

	var closed int64
	err := r.store.write(ctx, func(t *tables) error {
		for id, a := range t.assignments {
			if a.PersonID != personID || !a.EffectiveStartDate.Before(startDate) {
				continue
			}
			if a.EffectiveEndDate != nil && a.EffectiveEndDate.Before(startDate) {
				continue
			}
			end := dayBefore
			a.EffectiveEndDate = &end
			a.UpdatedAt = r.store.stamp()
			t.assignments[id] = a
			closed++
		}
		return nil
	})
	return closed, err
}

// ListByPerson implements shift.AssignmentRepository.
func (r *assignmentRepository) ListByPerson(_ context.Context, personID string) ([]shift.Assignment, error) {
	var out []shift.Assignment
	r.store.read(func(t *tables) {
		for _, a := range t.assignments {
			if a.PersonID == personID {
				out = append(out, a)
			}
		}
	})
	slices.SortFunc(out, func(a, b shift.Assignment) int {
		return b.EffectiveStartDate.Compare(a.EffectiveStartDate)
	})
	return out, nil
}

func NewAssignmentRepository(store *Store) shift.AssignmentRepository {
	return &assignmentRepository{store: store}
}
