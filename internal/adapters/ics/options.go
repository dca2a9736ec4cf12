package ics

import (
	"time"

	"github.com/okian/weekgrid/pkg/logger"
)

// Option applies a configuration option to the Exporter.
type Option func(*Exporter)

// WithCalendarName sets NAME and X-WR-CALNAME.
func WithCalendarName(name string) Option {
	return func(e *Exporter) {
		if name != "" {
			e.name = name
		}
	}
}

// WithClock sets the time source used for DTSTAMP.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}
