package errors

import "errors"

var (
	ErrNotFound = errors.New("appointment not found")

	ErrVersionConflict = errors.New("appointment version does not match")

	ErrInvalidTimeRange = errors.New("end time must be after start time")
)
