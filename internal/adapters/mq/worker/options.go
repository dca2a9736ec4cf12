// Package worker drains the snapshot queue into the repository.
package worker

import (
	"github.com/okian/weekgrid/pkg/logger"
)

// Option applies a configuration option to the SnapshotWriter.
type Option func(*SnapshotWriter)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *SnapshotWriter) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *SnapshotWriter) {
		if logger != nil {
			w.logger = logger
		}
	}
}
