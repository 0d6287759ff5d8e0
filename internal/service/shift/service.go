package shift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type ShiftServiceImpl struct {
	tx             database.Transactor
	shiftRepo      shift.ShiftRepository
	assignmentRepo shift.AssignmentRepository
	loc            *time.Location
}

// ResolveActiveShift implements shift.Resolver. An explicit assignment wins
// while its shift is active; otherwise the active default applies.
func (s *ShiftServiceImpl) ResolveActiveShift(ctx context.Context, personID string, date time.Time) (shift.Resolution, error) {
	date = dbtime.NormalizeDate(date, s.loc)

	assignment, err := s.assignmentRepo.FindCovering(ctx, personID, date)
	if err != nil {
		return shift.Resolution{}, fmt.Errorf("failed to find shift assignment: %w", err)
	}

	if assignment != nil {
		sh, err := s.shiftRepo.GetByID(ctx, assignment.ShiftID)
		switch {
		case err == nil && sh.IsActive:
			return shift.Resolved(sh, shift.SourceAssignment), nil
		case err == nil:
			slog.Warn("assigned shift is inactive, falling back to default", "person_id", personID, "shift_id", sh.ID)
		case errors.Is(err, shift.ErrShiftNotFound):
			slog.Warn("assignment references a missing shift", "assignment_id", assignment.ID, "shift_id", assignment.ShiftID)
		default:
			return shift.Resolution{}, fmt.Errorf("failed to get assigned shift: %w", err)
		}
	}

	def, err := s.shiftRepo.GetDefault(ctx)
	if err != nil {
		return shift.Resolution{}, fmt.Errorf("failed to get default shift: %w", err)
	}
	if def == nil {
		return shift.Unresolved(), nil
	}
	return shift.Resolved(*def, shift.SourceDefault), nil
}

// CreateShift implements shift.Service.
func (s *ShiftServiceImpl) CreateShift(ctx context.Context, req shift.CreateShiftRequest) (shift.ShiftResponse, error) {
	if err := req.Validate(); err != nil {
		return shift.ShiftResponse{}, err
	}

	newShift := req.ToShift()

	var created shift.Shift
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if newShift.IsDefault {
			if err := s.shiftRepo.ClearDefault(ctx, ""); err != nil {
				return fmt.Errorf("failed to clear previous default shift: %w", err)
			}
		}

		var err error
		created, err = s.shiftRepo.Create(ctx, newShift)
		return err
	})
	if err != nil {
		if errors.Is(err, shift.ErrShiftNameExists) {
			return shift.ShiftResponse{}, validator.NewFieldError("name", err.Error())
		}
		return shift.ShiftResponse{}, fmt.Errorf("failed to create shift: %w", err)
	}

	slog.Info("shift created", "shift_id", created.ID, "name", created.Name, "is_default", created.IsDefault)
	return shift.NewShiftResponse(created), nil
}

// UpdateShift implements shift.Service.
func (s *ShiftServiceImpl) UpdateShift(ctx context.Context, req shift.UpdateShiftRequest) (shift.ShiftResponse, error) {
	if err := req.Validate(); err != nil {
		return shift.ShiftResponse{}, err
	}

	var updated shift.Shift
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.shiftRepo.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}

		next, err := req.Apply(current)
		if err != nil {
			return err
		}

		if next.IsDefault {
			if err := s.shiftRepo.ClearDefault(ctx, next.ID); err != nil {
				return fmt.Errorf("failed to clear previous default shift: %w", err)
			}
		}

		updated, err = s.shiftRepo.Update(ctx, next)
		return err
	})
	if err != nil {
		var vErrs validator.ValidationErrors
		switch {
		case errors.As(err, &vErrs), errors.Is(err, shift.ErrShiftNotFound):
			return shift.ShiftResponse{}, err
		case errors.Is(err, shift.ErrShiftNameExists):
			return shift.ShiftResponse{}, validator.NewFieldError("name", err.Error())
		}
		return shift.ShiftResponse{}, fmt.Errorf("failed to update shift: %w", err)
	}

	return shift.NewShiftResponse(updated), nil
}

// GetShift implements shift.Service.
func (s *ShiftServiceImpl) GetShift(ctx context.Context, id string) (shift.ShiftResponse, error) {
	if !validator.IsValidUUID(id) {
		return shift.ShiftResponse{}, shift.ErrShiftNotFound
	}

	sh, err := s.shiftRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shift.ErrShiftNotFound) {
			return shift.ShiftResponse{}, err
		}
		return shift.ShiftResponse{}, fmt.Errorf("failed to get shift: %w", err)
	}
	return shift.NewShiftResponse(sh), nil
}

// ListShifts implements shift.Service.
func (s *ShiftServiceImpl) ListShifts(ctx context.Context, filter shift.ShiftFilter) (shift.ListShiftResponse, error) {
	if err := filter.Validate(); err != nil {
		return shift.ListShiftResponse{}, err
	}

	shifts, total, err := s.shiftRepo.List(ctx, filter)
	if err != nil {
		return shift.ListShiftResponse{}, fmt.Errorf("failed to list shifts: %w", err)
	}

	responses := make([]shift.ShiftResponse, 0, len(shifts))
	for _, sh := range shifts {
		responses = append(responses, shift.NewShiftResponse(sh))
	}

	return shift.ListShiftResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
		Shifts:     responses,
	}, nil
}

// AssignShift implements shift.Service. Assignments of the person still open
// on the new start date are closed the day before it.
func (s *ShiftServiceImpl) AssignShift(ctx context.Context, req shift.AssignShiftRequest) (shift.AssignmentResponse, error) {
	if err := req.Validate(); err != nil {
		return shift.AssignmentResponse{}, err
	}

	start, err := dbtime.ParseDate(req.EffectiveStartDate, s.loc)
	if err != nil {
		return shift.AssignmentResponse{}, shift.ErrInvalidDateFormat
	}
	assignment := shift.Assignment{
		PersonID:           req.PersonID,
		ShiftID:            req.ShiftID,
		EffectiveStartDate: start,
		Notes:              req.Notes,
	}
	if req.EffectiveEndDate != nil && *req.EffectiveEndDate != "" {
		end, err := dbtime.ParseDate(*req.EffectiveEndDate, s.loc)
		if err != nil {
			return shift.AssignmentResponse{}, shift.ErrInvalidDateFormat
		}
		assignment.EffectiveEndDate = &end
	}
	if req.AssignedBy != "" {
		assignedBy := req.AssignedBy
		assignment.AssignedBy = &assignedBy
	}

	var created shift.Assignment
	var closed int64
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		sh, err := s.shiftRepo.GetByID(ctx, req.ShiftID)
		if err != nil {
			return err
		}
		if !sh.IsActive {
			return shift.ErrShiftInactive
		}

		closed, err = s.assignmentRepo.CloseOverlapping(ctx, req.PersonID, start)
		if err != nil {
			return fmt.Errorf("failed to close previous assignments: %w", err)
		}

		created, err = s.assignmentRepo.Create(ctx, assignment)
		if err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, shift.ErrShiftNotFound):
			return shift.AssignmentResponse{}, err
		case errors.Is(err, shift.ErrShiftInactive):
			return shift.AssignmentResponse{}, validator.NewFieldError("shift_id", "cannot assign an inactive shift")
		}
		return shift.AssignmentResponse{}, err
	}

	slog.Info("shift assigned",
		"person_id", created.PersonID,
		"shift_id", created.ShiftID,
		"effective_start_date", dbtime.FormatDate(created.EffectiveStartDate),
		"closed_previous", closed,
	)

	resp := shift.NewAssignmentResponse(created)
	resp.ClosedPrevious = closed
	return resp, nil
}

// ListAssignments implements shift.Service.
func (s *ShiftServiceImpl) ListAssignments(ctx context.Context, personID string) ([]shift.AssignmentResponse, error) {
	if validator.IsEmpty(personID) {
		return nil, validator.NewFieldError("person_id", "person_id is required")
	}

	assignments, err := s.assignmentRepo.ListByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	responses := make([]shift.AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		responses = append(responses, shift.NewAssignmentResponse(a))
	}
	return responses, nil
}

// GetActiveShift implements shift.Service.
func (s *ShiftServiceImpl) GetActiveShift(ctx context.Context, req shift.ActiveShiftRequest) (shift.ActiveShiftResponse, error) {
	if err := req.Validate(); err != nil {
		return shift.ActiveShiftResponse{}, err
	}

	date, err := dbtime.ParseDate(req.Date, s.loc)
	if err != nil {
		return shift.ActiveShiftResponse{}, shift.ErrInvalidDateFormat
	}

	res, err := s.ResolveActiveShift(ctx, req.PersonID, date)
	if err != nil {
		return shift.ActiveShiftResponse{}, err
	}

	resp := shift.ActiveShiftResponse{
		PersonID: req.PersonID,
		Date:     dbtime.FormatDate(date),
	}
	if sh, ok := res.Get(); ok {
		src := res.Source
		shResp := shift.NewShiftResponse(sh)
		resp.Source = &src
		resp.Shift = &shResp
	}
	return resp, nil
}

func NewShiftService(tx database.Transactor, shiftRepo shift.ShiftRepository, assignmentRepo shift.AssignmentRepository, loc *time.Location) shift.Service {
	return &ShiftServiceImpl{
		tx:             tx,
		shiftRepo:      shiftRepo,
		assignmentRepo: assignmentRepo,
		loc:            loc,
	}
}
