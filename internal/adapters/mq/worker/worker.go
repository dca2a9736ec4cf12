package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/weekgrid/internal/adapters/mq/queue"
	"github.com/okian/weekgrid/pkg/logger"
	"github.com/okian/weekgrid/pkg/metrics"
)

// Saver persists a snapshot.
type Saver interface {
	Save(ctx context.Context, s queue.Snapshot) error
}

// Queue is the consuming side of the snapshot queue.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Snapshot
}

// Worker is a long-running consumer.
type Worker interface {
	Run(ctx context.Context)

	Shutdown(ctx context.Context) error
}

// SnapshotWriter saves snapshots one at a time. When several are waiting only
// the newest is written, and a snapshot older than the last one written is
// ignored.
type SnapshotWriter struct {
	queue Queue
	saver Saver
	name  string

	lastSeq atomic.Uint64
	written atomic.Int64
	failed  atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewSnapshotWriter creates a writer.
func NewSnapshotWriter(q Queue, saver Saver, opts ...Option) *SnapshotWriter {
	w := &SnapshotWriter{
		queue:    q,
		saver:    saver,
		name:     "snapshot-writer",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Default().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run consumes snapshots until ctx is done, Shutdown is called or the queue
// is closed and drained.
func (w *SnapshotWriter) Run(ctx context.Context) {
	defer close(w.done)

	ch := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, ch)
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			s, open := latest(s, ch)
			if err := w.process(ctx, s); err != nil {
				w.logger.Error(ctx, "error writing snapshot", logger.Error(err))
			}
			if !open {
				return
			}
		}
	}
}

// drain writes whatever is immediately available.
func (w *SnapshotWriter) drain(ctx context.Context, ch <-chan queue.Snapshot) {
	select {
	case s, ok := <-ch:
		if !ok {
			return
		}
		s, _ = latest(s, ch)
		if err := w.process(ctx, s); err != nil {
			w.logger.Error(ctx, "error writing snapshot during shutdown", logger.Error(err))
		}
	default:
	}
}

// latest skips to the newest snapshot already waiting on ch. The second result
// is false when ch was found closed.
func latest(s queue.Snapshot, ch <-chan queue.Snapshot) (queue.Snapshot, bool) {
	for {
		select {
		case next, ok := <-ch:
			if !ok {
				return s, false
			}
			if next.Seq > s.Seq {
				s = next
			}
		default:
			return s, true
		}
	}
}

// Wait blocks until Run has returned, which happens on its own once the
// queue is closed and drained.
func (w *SnapshotWriter) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for writer: %w", ctx.Err())
	}
}

// Shutdown stops Run and waits for it to return.
func (w *SnapshotWriter) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *SnapshotWriter) process(ctx context.Context, s queue.Snapshot) error {
	if last := w.lastSeq.Load(); s.Seq != 0 && s.Seq <= last {
		w.logger.Debug(ctx, "stale snapshot skipped",
			logger.Any("seq", s.Seq), logger.Any("last", last))
		return nil
	}

	start := time.Now()
	if err := w.saver.Save(ctx, s); err != nil {
		w.failed.Add(1)
		metrics.RecordErrorByComponent("worker", "save_error")
		return fmt.Errorf("save snapshot %d: %w", s.Seq, err)
	}

	w.lastSeq.Store(s.Seq)
	w.written.Add(1)
	metrics.RecordSnapshotWritten()
	w.logger.Info(ctx, "snapshot saved",
		logger.Any("seq", s.Seq),
		logger.String("reason", s.Reason),
		logger.Int("events", s.Store.Len()),
		logger.Duration("took", time.Since(start)))
	return nil
}

// Stats reports counters for GetStats.
func (w *SnapshotWriter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"last_seq": w.lastSeq.Load(),
		"written":  w.written.Load(),
		"failed":   w.failed.Load(),
	}
}

// LastSeq returns the sequence number of the last snapshot written.
func (w *SnapshotWriter) LastSeq() uint64 { return w.lastSeq.Load() }
