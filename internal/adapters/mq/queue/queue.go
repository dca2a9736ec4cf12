// Package queue buffers week store snapshots on their way to persistence.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/weekgrid/internal/domain/recurrence"
	"github.com/okian/weekgrid/pkg/metrics"
)

const (
	defaultQueueCapacity = 16
	defaultBufferSize    = 16
)

// Snapshot is an immutable copy of the week store taken at one point in time.
// Seq increases with every snapshot the service takes.
type Snapshot struct {
	Seq     uint64
	Store   *recurrence.WeekStore
	TakenAt time.Time
	Reason  string
}

// Queue hands snapshots from the service to the writer.
type Queue interface {
	// Enqueue never blocks; it reports false when the snapshot was dropped.
	Enqueue(ctx context.Context, s Snapshot) bool

	Dequeue(ctx context.Context) <-chan Snapshot

	Len(ctx context.Context) int

	Close() error

	IsClosed() bool
}

// InMemoryQueue is a bounded channel-backed Queue.
type InMemoryQueue struct {
	snapshots  chan Snapshot
	capacity   int
	bufferSize int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.bufferSize = max(q.bufferSize, q.capacity)
	q.snapshots = make(chan Snapshot, q.bufferSize)

	metrics.UpdateSnapshotQueue(0, q.capacity)
	return q
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

func (q *InMemoryQueue) Enqueue(ctx context.Context, s Snapshot) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordSnapshotDropped()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if len(q.snapshots) >= q.capacity {
		metrics.RecordSnapshotDropped()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}

	select {
	case q.snapshots <- s:
		metrics.RecordSnapshotEnqueued()
		metrics.UpdateSnapshotQueue(len(q.snapshots), q.capacity)
		return true
	case <-ctx.Done():
		metrics.RecordSnapshotDropped()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordSnapshotDropped()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel yielding snapshots in enqueue order until the
// queue is closed and drained or ctx is done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		for s := range q.snapshots {
			select {
			case out <- s:
				metrics.UpdateSnapshotQueue(len(q.snapshots), q.capacity)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) Len(context.Context) int {
	size := len(q.snapshots)
	metrics.UpdateSnapshotQueue(size, q.capacity)
	return size
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	close(q.snapshots)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
