package model

import "errors"

// Sentinel error kinds for grid operations. Match with errors.Is.
var (
	ErrOutOfBounds    = errors.New("out of bounds")
	ErrLockedConflict = errors.New("conflicts with a locked event")
	ErrLockedSource   = errors.New("event is locked")
	ErrEmptyTitle     = errors.New("title must not be empty")
	ErrInvalidRepeat  = errors.New("repeat count must be at least 1")
	ErrNotFound       = errors.New("event not found")
	ErrCellOccupied   = errors.New("cell is occupied")
	ErrColumnReadOnly = errors.New("day column is read-only")
	ErrCancelled      = errors.New("operation cancelled")
	ErrResizeInactive = errors.New("no resize in progress")
)
