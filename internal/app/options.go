package service

import (
	"math/rand/v2"
	"time"

	"github.com/okian/weekgrid/internal/adapters/repository"
	"github.com/okian/weekgrid/pkg/logger"
)

// Option configures a Service.
type Option func(*Service)

// WithRepository sets where base events are loaded from and saved to.
func WithRepository(repo repository.Repository) Option {
	return func(s *Service) {
		if repo != nil {
			s.repo = repo
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithStartDate selects the week shown after Start. Zero means today.
func WithStartDate(t time.Time) Option {
	return func(s *Service) {
		s.startDate = t
	}
}

// WithColumnPolicy sets which days accept changes.
func WithColumnPolicy(p ColumnPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.columns = p
		}
	}
}

// WithNotifier sets the change listener.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithSnapshotQueueSize bounds the autosave queue.
func WithSnapshotQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the idempotency key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCalendarName sets the name of exported calendars.
func WithCalendarName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.calendarName = name
		}
	}
}

// WithEditAttempts sets how often an empty title is re-prompted.
func WithEditAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.editAttempts = n
		}
	}
}

// WithRand sets the source for generated colors.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) {
		s.rng = r
	}
}
