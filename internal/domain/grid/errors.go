package grid

import "errors"

var (
	ErrOverlap     = errors.New("overlapping events in column")
	ErrKeyMismatch = errors.New("index key does not match event anchor")
)
