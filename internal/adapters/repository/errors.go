package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	// ErrNotFound means nothing has been persisted yet.
	ErrNotFound       = errors.New("schedule not found")
	ErrCorrupt        = errors.New("schedule data is corrupt")
	ErrUnknownBackend = errors.New("unknown store backend")
)
