package queue

import "errors"

// ErrClosed is returned by Close on a queue that was already closed.
var ErrClosed = errors.New("snapshot queue closed")
