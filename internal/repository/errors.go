package repository

import "errors"

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a compare-and-swap update lost to a concurrent writer.
	ErrVersionConflict = errors.New("version conflict")
)
