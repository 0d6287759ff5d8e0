package shift

import (
	"context"
	"time"
)

// Resolver answers which shift applies to a person on a calendar date.
type Resolver interface {
	ResolveActiveShift(ctx context.Context, personID string, date time.Time) (Resolution, error)
}

type Service interface {
	Resolver

	CreateShift(ctx context.Context, req CreateShiftRequest) (ShiftResponse, error)
	UpdateShift(ctx context.Context, req UpdateShiftRequest) (ShiftResponse, error)
	GetShift(ctx context.Context, id string) (ShiftResponse, error)
	ListShifts(ctx context.Context, filter ShiftFilter) (ListShiftResponse, error)

	AssignShift(ctx context.Context, req AssignShiftRequest) (AssignmentResponse, error)
	ListAssignments(ctx context.Context, personID string) ([]AssignmentResponse, error)
	GetActiveShift(ctx context.Context, req ActiveShiftRequest) (ActiveShiftResponse, error)
}
