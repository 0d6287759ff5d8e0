package shift

import (
	"context"
	"time"
)

type ShiftRepository interface {
	Create(ctx context.Context, s Shift) (Shift, error)
	Update(ctx context.Context, s Shift) (Shift, error)
	// GetByID returns ErrShiftNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (Shift, error)
	// GetDefault returns the active default shift, or nil when there is none.
	GetDefault(ctx context.Context) (*Shift, error)
	List(ctx context.Context, filter ShiftFilter) ([]Shift, int64, error)
	// ClearDefault unsets is_default on every shift except exceptID. An empty
	// exceptID clears all of them.
	ClearDefault(ctx context.Context, exceptID string) error
}

type AssignmentRepository interface {
	Create(ctx context.Context, a Assignment) (Assignment, error)
	// FindCovering returns the latest-starting assignment whose range covers
	// date, or nil.
	FindCovering(ctx context.Context, personID string, date time.Time) (*Assignment, error)
	// CloseOverlapping ends every assignment that starts before startDate and
	// is still open on it, setting its end to the day before startDate.
	CloseOverlapping(ctx context.Context, personID string, startDate time.Time) (int64, error)
	ListByPerson(ctx context.Context, personID string) ([]Assignment, error)
}
