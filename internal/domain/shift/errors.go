package shift

import "errors"

var (
	ErrShiftNotFound     = errors.New("shift not found")
	ErrShiftNameExists   = errors.New("shift with this name already exists")
	ErrShiftInactive     = errors.New("shift is inactive")
	ErrInvalidDateFormat = errors.New("invalid date format, use YYYY-MM-DD")
)
