package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrPreconditionFailed is returned by conditional updates when the
	// record's status no longer matches the expected value. It is the normal
	// outcome of a lost race, not a fault.
	ErrPreconditionFailed = errors.New("status precondition failed")
)
