package errors

import "errors"

var (
	ErrLockExists = errors.New("lock already exists for resource")

	ErrLockNotFound = errors.New("lock not found")

	ErrInvalidResourceID = errors.New("invalid appointment ID format")

	ErrUserNotFound = errors.New("user not found")
)
