// Package repository persists the week store of base events.
package repository

import (
	"context"
	"time"

	"github.com/okian/weekgrid/internal/domain/recurrence"
	"github.com/okian/weekgrid/pkg/logger"
	"github.com/okian/weekgrid/pkg/metrics"
)

// Backend names.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Repository loads and saves the complete set of base events.
type Repository interface {
	// Load returns the persisted store. It returns ErrNotFound when nothing
	// has been saved yet.
	Load(ctx context.Context) (*recurrence.WeekStore, error)

	// Save replaces the persisted store with store.
	Save(ctx context.Context, store *recurrence.WeekStore) error

	// Name identifies the backend in logs and metrics.
	Name() string
}

// observe records latency and failures of a repository call.
func observe(ctx context.Context, log logger.Logger, backend, op string, start time.Time, err error) {
	ms := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordPersist(backend, op, ms, err)
	if err != nil {
		metrics.RecordErrorByComponent("repository", op)
		log.Warn(ctx, "persistence failed",
			logger.String("backend", backend),
			logger.String("op", op),
			logger.Error(err))
		return
	}
	log.Debug(ctx, "persistence done",
		logger.String("backend", backend),
		logger.String("op", op),
		logger.Float64("ms", ms))
}
