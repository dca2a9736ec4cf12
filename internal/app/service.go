// Package service owns the visible week and applies every user operation to it.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/weekgrid/internal/adapters/ics"
	"github.com/okian/weekgrid/internal/adapters/mq/queue"
	"github.com/okian/weekgrid/internal/adapters/mq/worker"
	"github.com/okian/weekgrid/internal/adapters/repository"
	"github.com/okian/weekgrid/internal/domain/dedupe"
	"github.com/okian/weekgrid/internal/domain/grid"
	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/move"
	"github.com/okian/weekgrid/internal/domain/overlap"
	"github.com/okian/weekgrid/internal/domain/recurrence"
	"github.com/okian/weekgrid/internal/domain/resize"
	"github.com/okian/weekgrid/internal/domain/types"
	"github.com/okian/weekgrid/pkg/logger"
	"github.com/okian/weekgrid/pkg/metrics"
)

const (
	defaultDataPath     = "weekgrid.json"
	defaultQueueSize    = 16
	defaultDedupeSize   = 10000
	defaultEditAttempts = 3
)

// Notification entities.
const (
	EntityEvent = "event"
	EntityWeek  = "week"
)

// Service is the single mutator of the schedule. Every exported method is
// safe for concurrent use; operations are applied one at a time.
type Service struct {
	mu sync.RWMutex

	repo      repository.Repository
	persister *persister
	store     *recurrence.WeekStore
	monday    time.Time
	index     *grid.Index
	report    recurrence.Report
	resolver  *overlap.Resolver
	mover     *move.Engine
	resizer   *resize.Engine

	deduper       dedupe.Deduper
	snapshotQueue *queue.InMemoryQueue
	writer        *worker.SnapshotWriter
	exporter      *ics.Exporter
	seq           uint64

	columns      ColumnPolicy
	notifier     Notifier
	clock        func() time.Time
	rng          *rand.Rand
	startDate    time.Time
	queueSize    int
	dedupeSize   int
	editAttempts int
	calendarName string

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New creates a service. Nothing is loaded until Start.
func New(opts ...Option) *Service {
	s := &Service{
		columns:      AllEditable(),
		notifier:     noopNotifier{},
		clock:        time.Now,
		queueSize:    defaultQueueSize,
		dedupeSize:   defaultDedupeSize,
		editAttempts: defaultEditAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Default().Named("service")
	}
	if s.repo == nil {
		s.repo = repository.NewFileStore(defaultDataPath)
	}
	s.persister = &persister{repo: s.repo}
	return s
}

// Start loads the persisted schedule, shows the start week and launches the
// snapshot writer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.store = recurrence.NewWeekStore()
	loaded, err := s.repo.Load(ctx)
	switch {
	case err == nil:
		s.store = loaded
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Info(ctx, "no saved schedule, starting empty", logger.String("backend", s.repo.Name()))
	default:
		return fmt.Errorf("load schedule: %w", err)
	}
	metrics.UpdateStoredBaseEvents(s.store.Len())

	start := s.startDate
	if start.IsZero() {
		start = s.clock()
	}
	s.monday = recurrence.MondayOf(start)
	s.expandLocked(ctx)

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.exporter = ics.New(
		ics.WithCalendarName(s.calendarName),
		ics.WithClock(s.clock),
		ics.WithLogger(s.logger.Named("ics")),
	)
	s.snapshotQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.writer = worker.NewSnapshotWriter(s.snapshotQueue, s.persister, worker.WithLogger(s.logger))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.writer.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "schedule service started",
		logger.String("backend", s.repo.Name()),
		logger.String("week", recurrence.FormatDate(s.monday)),
		logger.Int("stored", s.store.Len()),
	)
	return nil
}

// Stop flushes pending snapshots and stops the writer.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping schedule service...")

	_ = s.snapshotQueue.Close()
	err := s.writer.Wait(ctx)
	if err != nil {
		s.logger.Warn(ctx, "snapshot writer did not drain", logger.Error(err))
	}
	s.cancel()

	if c, ok := s.repo.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			s.logger.Warn(ctx, "closing repository failed", logger.Error(cerr))
		}
	}

	s.started = false
	s.logger.Info(ctx, "schedule service stopped")
	return err
}

func (s *Service) ready() error {
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) editable(day int) bool {
	return s.columns.IsColumnEditable(s.monday, day)
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	metrics.RecordOperation(op, outcome(err))
	metrics.RecordOperationDuration(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		s.logger.Debug(ctx, "operation rejected", logger.String("op", op), logger.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrCancelled):
		return "cancelled"
	case errors.Is(err, model.ErrLockedConflict), errors.Is(err, model.ErrLockedSource):
		return "locked"
	case errors.Is(err, model.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrColumnReadOnly):
		return "read_only"
	case errors.Is(err, model.ErrCellOccupied):
		return "occupied"
	default:
		return "error"
	}
}

// expandLocked rebuilds the index and its engines for s.monday.
// Any resize in progress is dropped with the old engine.
func (s *Service) expandLocked(ctx context.Context) {
	start := time.Now()
	ix, rep := recurrence.Expand(s.store, s.monday)
	s.index, s.report = ix, rep
	s.resolver = overlap.New(ix, overlap.WithLogger(s.logger.Named("overlap")))
	s.mover = move.New(ix, s.resolver, move.WithLogger(s.logger.Named("move")))
	s.resizer = resize.New(ix, resize.WithLogger(s.logger.Named("resize")))

	metrics.RecordExpand(float64(time.Since(start).Microseconds())/1000, len(rep.Collisions))
	s.updateGauges()
	for _, c := range rep.Collisions {
		if c.Base {
			s.logger.Warn(ctx, "stored event hidden, rows taken by another stored event",
				logger.String("id", c.Event.ID),
				logger.String("title", c.Event.Title),
				logger.String("date", recurrence.FormatDate(c.Date)),
				logger.String("blocked_by", c.Blocker),
			)
			continue
		}
		s.logger.Warn(ctx, "occurrence skipped, rows taken",
			logger.String("id", c.Event.ID),
			logger.String("date", recurrence.FormatDate(c.Date)),
			logger.String("blocked_by", c.Blocker),
		)
	}
}

// foldLocked writes the visible week's base events back into the store,
// including those hidden by a collision at the last expansion.
func (s *Service) foldLocked() {
	recurrence.Fold(s.index, s.monday, s.store, s.report.Stranded()...)
	metrics.UpdateStoredBaseEvents(s.store.Len())
}

func (s *Service) updateGauges() {
	generated := 0
	for _, ev := range s.index.Events() {
		if ev.Generated {
			generated++
		}
	}
	metrics.UpdateVisibleEvents(s.index.Len(), generated)
}

func (s *Service) find(id string) (*model.Event, error) {
	ev, ok := s.index.Find(id)
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, model.ErrNotFound)
	}
	return ev, nil
}

// Week returns the visible week.
func (s *Service) Week() (types.WeekView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return types.WeekView{}, err
	}
	return types.NewWeekView(s.monday, s.editable, s.index.Snapshot()), nil
}

// Event returns one visible event.
func (s *Service) Event(id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return model.Event{}, err
	}
	ev, err := s.find(id)
	if err != nil {
		return model.Event{}, err
	}
	return *ev, nil
}

// GotoWeek shows the week containing date.
func (s *Service) GotoWeek(ctx context.Context, date time.Time) (types.WeekView, error) {
	return s.navigate(ctx, func(time.Time) time.Time { return date })
}

// NextWeek shows the following week.
func (s *Service) NextWeek(ctx context.Context) (types.WeekView, error) {
	return s.navigate(ctx, func(m time.Time) time.Time { return m.AddDate(0, 0, model.DaysPerWeek) })
}

// PrevWeek shows the preceding week.
func (s *Service) PrevWeek(ctx context.Context) (types.WeekView, error) {
	return s.navigate(ctx, func(m time.Time) time.Time { return m.AddDate(0, 0, -model.DaysPerWeek) })
}

func (s *Service) navigate(ctx context.Context, target func(monday time.Time) time.Time) (view types.WeekView, err error) {
	defer func(start time.Time) { s.observe(ctx, "navigate", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return types.WeekView{}, err
	}
	s.foldLocked()
	s.monday = recurrence.MondayOf(target(s.monday))
	s.expandLocked(ctx)

	monday := recurrence.FormatDate(s.monday)
	s.logger.Debug(ctx, "week shown", logger.String("monday", monday))
	s.notifier.Publish(ctx, EntityWeek, "changed", monday)
	return types.NewWeekView(s.monday, s.editable, s.index.Snapshot()), nil
}

// CreateEvent adds a one-hour event on an empty cell with details from editor.
func (s *Service) CreateEvent(ctx context.Context, day, hour int, editor Editor) (ev model.Event, err error) {
	defer func(start time.Time) { s.observe(ctx, "create", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return model.Event{}, err
	}
	return s.createLocked(ctx, day, hour, editor)
}

// CreateEventOnce is CreateEvent keyed by an idempotency key. Repeating a
// key returns the event the first call created with created set to false.
func (s *Service) CreateEventOnce(ctx context.Context, key string, day, hour int, editor Editor) (ev model.Event, created bool, err error) {
	defer func(start time.Time) { s.observe(ctx, "create", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return model.Event{}, false, err
	}
	if key == "" {
		ev, err := s.createLocked(ctx, day, hour, editor)
		return ev, err == nil, err
	}

	if id, seen := s.deduper.Claim(ctx, key); seen {
		if existing, ok := s.index.Find(id); ok {
			s.logger.Debug(ctx, "duplicate create", logger.String("key", key), logger.String("id", id))
			return *existing, false, nil
		}
		return model.Event{}, false, fmt.Errorf("key %q: %w", key, ErrDuplicateRequest)
	}
	ev, err = s.createLocked(ctx, day, hour, editor)
	if err != nil {
		s.deduper.Unrecord(ctx, key)
		return model.Event{}, false, err
	}
	s.deduper.Complete(ctx, key, ev.ID)
	return ev, true, nil
}

func (s *Service) createLocked(ctx context.Context, day, hour int, editor Editor) (model.Event, error) {
	if !model.ValidDay(day) || !model.ValidHour(hour) {
		return model.Event{}, fmt.Errorf("create at day %d hour %d: %w", day, hour, model.ErrOutOfBounds)
	}
	if !s.editable(day) {
		return model.Event{}, fmt.Errorf("day %d: %w", day, model.ErrColumnReadOnly)
	}
	if other, ok := s.index.Query(day, hour); ok {
		return model.Event{}, fmt.Errorf("day %d hour %d taken by %q: %w", day, hour, other.Title, model.ErrCellOccupied)
	}
	d, err := s.prompt(ctx, editor, nil)
	if err != nil {
		return model.Event{}, err
	}

	ev := &model.Event{
		ID:            uuid.NewString(),
		Title:         d.Title,
		Description:   d.Description,
		Day:           day,
		Start:         hour,
		Duration:      1,
		Color:         model.RandomPastel(s.rng),
		Locked:        d.Locked,
		RepeatCount:   max(1, d.RepeatCount),
		RepeatForever: d.RepeatForever,
	}
	if d.Color != nil {
		ev.Color = *d.Color
	}
	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}

	s.resizer.Cancel(ctx)
	s.index.Place(ev, day, hour)
	s.updateGauges()
	s.logger.Debug(ctx, "event created",
		logger.String("id", ev.ID),
		logger.Int("day", day),
		logger.Int("hour", hour),
	)
	s.notifier.Publish(ctx, EntityEvent, "created", ev.ID)
	return *ev, nil
}

// prompt asks editor for details until it returns a title, at most
// editAttempts times.
func (s *Service) prompt(ctx context.Context, editor Editor, current *model.Event) (Details, error) {
	if editor == nil {
		return Details{}, model.ErrCancelled
	}
	for attempt := 1; attempt <= s.editAttempts; attempt++ {
		d, ok := editor.Edit(ctx, current)
		if !ok {
			return Details{}, model.ErrCancelled
		}
		d.Title = strings.TrimSpace(d.Title)
		if d.Title != "" {
			return d, nil
		}
		s.logger.Debug(ctx, "empty title, asking again", logger.Int("attempt", attempt))
	}
	return Details{}, model.ErrEmptyTitle
}

// EditEvent replaces the details of an event. Locked events may be edited,
// which is how they get unlocked.
func (s *Service) EditEvent(ctx context.Context, id string, editor Editor) (ev model.Event, err error) {
	defer func(start time.Time) { s.observe(ctx, "edit", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return model.Event{}, err
	}
	target, err := s.find(id)
	if err != nil {
		return model.Event{}, err
	}
	if !s.editable(target.Day) {
		return model.Event{}, fmt.Errorf("day %d: %w", target.Day, model.ErrColumnReadOnly)
	}

	current := *target
	d, err := s.prompt(ctx, editor, &current)
	if err != nil {
		return model.Event{}, err
	}
	if st := s.resizer.State(); st.Active && st.EventID == target.ID {
		s.resizer.Cancel(ctx)
	}
	target.Title = d.Title
	target.Description = d.Description
	target.Locked = d.Locked
	target.RepeatCount = max(1, d.RepeatCount)
	target.RepeatForever = d.RepeatForever
	if d.Color != nil {
		target.Color = *d.Color
	}

	s.notifier.Publish(ctx, EntityEvent, "updated", target.ID)
	return *target, nil
}

// DeleteEvent removes an unlocked event after confirmation.
func (s *Service) DeleteEvent(ctx context.Context, id string, confirm overlap.Confirmer) (err error) {
	defer func(start time.Time) { s.observe(ctx, "delete", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	ev, err := s.find(id)
	if err != nil {
		return err
	}
	if !s.editable(ev.Day) {
		return fmt.Errorf("day %d: %w", ev.Day, model.ErrColumnReadOnly)
	}
	if ev.Locked {
		metrics.RecordLockedRejection("delete")
		return fmt.Errorf("delete %q: %w", ev.Title, model.ErrLockedSource)
	}
	if confirm == nil || !confirm.Confirm(ctx, fmt.Sprintf("Delete %q?", ev.Title)) {
		return model.ErrCancelled
	}

	s.resizer.Cancel(ctx)
	s.index.Delete(ev)
	s.updateGauges()
	s.notifier.Publish(ctx, EntityEvent, "deleted", id)
	return nil
}

// MoveEvent moves an event to a new start row of its own column, carving
// whatever it lands on once confirm agrees. A declined confirmation returns
// a *ConfirmationError listing the events that would have been carved.
func (s *Service) MoveEvent(ctx context.Context, id string, day, hour int, confirm overlap.Confirmer) (res move.Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "move", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return move.Result{}, err
	}
	ev, err := s.find(id)
	if err != nil {
		return move.Result{}, err
	}
	if !s.editable(ev.Day) {
		return move.Result{}, fmt.Errorf("day %d: %w", ev.Day, model.ErrColumnReadOnly)
	}

	p, err := s.mover.Propose(ctx, ev, day, hour)
	if err != nil {
		return move.Result{}, err
	}
	if p.NoOp() {
		return move.Result{Before: *ev, After: *ev, DayRejected: p.DayRejected}, nil
	}
	if !p.Plan.Empty() && (confirm == nil || !confirm.Confirm(ctx, p.Plan.Message())) {
		return move.Result{}, &ConfirmationError{Message: p.Plan.Message(), Conflicts: conflicts(p.Plan)}
	}

	s.resizer.Cancel(ctx)
	res = s.mover.Commit(ctx, p)
	s.updateGauges()
	s.notifier.Publish(ctx, EntityEvent, "moved", id)
	return res, nil
}

func conflicts(p overlap.Plan) []types.Conflict {
	out := make([]types.Conflict, len(p.Steps))
	for i, st := range p.Steps {
		out[i] = types.Conflict{
			ID:       st.Target.ID,
			Title:    st.Target.Title,
			Day:      st.Target.Day,
			Hour:     st.Target.Start,
			Duration: st.Target.Duration,
			Locked:   st.Target.Locked,
			Action:   st.Action.String(),
		}
	}
	return out
}

// BeginResize starts dragging one edge of an event.
func (s *Service) BeginResize(ctx context.Context, id, edge string) (st resize.State, err error) {
	defer func(start time.Time) { s.observe(ctx, "resize_begin", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return resize.State{}, err
	}
	e, err := resize.ParseEdge(edge)
	if err != nil {
		return resize.State{}, err
	}
	ev, err := s.find(id)
	if err != nil {
		return resize.State{}, err
	}
	if !s.editable(ev.Day) {
		return resize.State{}, fmt.Errorf("day %d: %w", ev.Day, model.ErrColumnReadOnly)
	}
	if err := s.resizer.Begin(ctx, ev, e); err != nil {
		return resize.State{}, err
	}
	return s.resizer.State(), nil
}

// UpdateResize moves the dragged edge to row and returns the preview.
func (s *Service) UpdateResize(ctx context.Context, row int) (resize.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return resize.State{}, err
	}
	if _, err := s.resizer.Update(ctx, row); err != nil {
		return resize.State{}, err
	}
	return s.resizer.State(), nil
}

// CommitResize applies the previewed span.
func (s *Service) CommitResize(ctx context.Context) (res resize.Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "resize", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return resize.Result{}, err
	}
	return s.commitResizeLocked(ctx)
}

func (s *Service) commitResizeLocked(ctx context.Context) (resize.Result, error) {
	res, err := s.resizer.Commit(ctx)
	if err != nil {
		return resize.Result{}, err
	}
	if res.Changed {
		s.notifier.Publish(ctx, EntityEvent, "resized", res.After.ID)
	}
	return res, nil
}

// CancelResize abandons the resize in progress, if any.
func (s *Service) CancelResize(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready() != nil {
		return false
	}
	return s.resizer.Cancel(ctx)
}

// ResizeState returns the resize in progress.
func (s *Service) ResizeState() resize.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ready() != nil {
		return resize.State{}
	}
	return s.resizer.State()
}

// ResizeEvent drags edge of an event to row and commits in one step.
func (s *Service) ResizeEvent(ctx context.Context, id, edge string, row int) (res resize.Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "resize", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return resize.Result{}, err
	}
	e, err := resize.ParseEdge(edge)
	if err != nil {
		return resize.Result{}, err
	}
	ev, err := s.find(id)
	if err != nil {
		return resize.Result{}, err
	}
	if !s.editable(ev.Day) {
		return resize.Result{}, fmt.Errorf("day %d: %w", ev.Day, model.ErrColumnReadOnly)
	}
	if err := s.resizer.Begin(ctx, ev, e); err != nil {
		return resize.Result{}, err
	}
	if _, err := s.resizer.Update(ctx, row); err != nil {
		s.resizer.Cancel(ctx)
		return resize.Result{}, err
	}
	return s.commitResizeLocked(ctx)
}

// snapshotLocked folds the visible week and returns a numbered copy of the store.
func (s *Service) snapshotLocked(reason string) queue.Snapshot {
	s.foldLocked()
	s.seq++
	return queue.Snapshot{Seq: s.seq, Store: s.store.Clone(), TakenAt: s.clock(), Reason: reason}
}

// Save persists the schedule synchronously.
func (s *Service) Save(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe(ctx, "save", start, err) }(time.Now())
	s.mu.Lock()
	if err := s.ready(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked("manual")
	s.mu.Unlock()

	if err := s.persister.Save(ctx, snap); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	s.logger.Info(ctx, "schedule saved",
		logger.String("backend", s.repo.Name()),
		logger.Int("events", snap.Store.Len()),
	)
	s.notifier.Publish(ctx, EntityWeek, "saved", "")
	return nil
}

// Autosave queues a snapshot for the background writer. It reports false
// when the snapshot was dropped.
func (s *Service) Autosave(ctx context.Context, reason string) bool {
	s.mu.Lock()
	if s.ready() != nil {
		s.mu.Unlock()
		return false
	}
	snap := s.snapshotLocked(reason)
	q := s.snapshotQueue
	s.mu.Unlock()

	if !q.Enqueue(ctx, snap) {
		s.logger.Warn(ctx, "snapshot dropped", logger.Any("seq", snap.Seq), logger.String("reason", reason))
		return false
	}
	return true
}

// Load replaces the schedule with the persisted one. Nothing persisted yet
// is not an error and leaves the schedule unchanged.
func (s *Service) Load(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe(ctx, "load", start, err) }(time.Now())

	loaded, err := s.repo.Load(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info(ctx, "nothing to load", logger.String("backend", s.repo.Name()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	s.store = loaded
	metrics.UpdateStoredBaseEvents(s.store.Len())
	s.expandLocked(ctx)

	s.logger.Info(ctx, "schedule loaded", logger.Int("events", s.store.Len()))
	s.notifier.Publish(ctx, EntityWeek, "loaded", recurrence.FormatDate(s.monday))
	return nil
}

// ExportICS writes every base event as an iCalendar feed.
func (s *Service) ExportICS(ctx context.Context, w io.Writer) (err error) {
	defer func(start time.Time) { s.observe(ctx, "export", start, err) }(time.Now())
	s.mu.Lock()
	if err := s.ready(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.foldLocked()
	store := s.store.Clone()
	s.mu.Unlock()

	return s.exporter.Export(ctx, w, store)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
		"backend": s.repo.Name(),
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	stats["week"] = recurrence.FormatDate(s.monday)
	stats["visibleEvents"] = s.index.Len()
	stats["generatedEvents"] = s.report.Generated
	stats["collisions"] = len(s.report.Collisions)
	stats["storedBaseEvents"] = s.store.Len()
	stats["snapshotQueueLength"] = s.snapshotQueue.Len(ctx)
	stats["snapshotSeq"] = s.seq
	stats["writer"] = s.writer.Stats()
	stats["idempotencyKeys"] = s.deduper.Size()
	stats["resizeActive"] = s.resizer.State().Active
	return stats
}

// persister serializes repository writes and never lets an older snapshot
// overwrite a newer one.
type persister struct {
	mu   sync.Mutex
	repo repository.Repository
	last uint64
}

func (p *persister) Save(ctx context.Context, snap queue.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Seq != 0 && snap.Seq <= p.last {
		return nil
	}
	if err := p.repo.Save(ctx, snap.Store); err != nil {
		return err
	}
	p.last = snap.Seq
	return nil
}
