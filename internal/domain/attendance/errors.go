package attendance

import "errors"

// Attendance domain errors
var (
	// ErrConcurrentScan is returned when another scan created the record for
	// the same person and work date first. Retrying observes the winner.
	ErrConcurrentScan = errors.New("attendance was modified by a concurrent scan, please retry")

	// ErrWorkDateTaken is returned by Update when the new work date collides
	// with another record of the same person.
	ErrWorkDateTaken = errors.New("another attendance record already exists for this person and work date")

	ErrAttendanceNotFound = errors.New("attendance record not found")
)
