package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a task does not exist or belongs to
	// another owner.
	ErrNotFound = errors.New("task not found")

	// ErrConflict is returned when a task with the given ID already exists.
	ErrConflict = errors.New("task already exists")
)
