// Package move relocates an event to a new start row within its own column.
package move

import (
	"context"
	"fmt"

	"github.com/okian/weekgrid/internal/domain/grid"
	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/overlap"
	"github.com/okian/weekgrid/pkg/logger"
	"github.com/okian/weekgrid/pkg/metrics"
)

// Proposal is a validated move that has not been applied yet.
type Proposal struct {
	Event    *model.Event
	Day      int
	Start    int
	Duration int
	// DayRejected is set when a different column was requested.
	DayRejected bool
	// Shortened is set when the duration was cut to fit before midnight.
	Shortened bool
	Plan      overlap.Plan
}

// Span returns the target span of the proposal.
func (p Proposal) Span() model.Span { return model.NewSpan(p.Start, p.Duration) }

// NoOp reports whether applying the proposal would change nothing.
func (p Proposal) NoOp() bool {
	return p.Start == p.Event.Start && p.Duration == p.Event.Duration && p.Plan.Empty()
}

// Result describes a committed move.
type Result struct {
	Before      model.Event       `json:"before"`
	After       model.Event       `json:"after"`
	Carved      []overlap.Outcome `json:"carved"`
	DayRejected bool              `json:"day_rejected"`
	Shortened   bool              `json:"shortened"`
}

// Engine moves events inside an index.
type Engine struct {
	index    *grid.Index
	resolver *overlap.Resolver
	logger   logger.Logger
}

// New creates an Engine over ix using resolver for conflicts.
func New(ix *grid.Index, resolver *overlap.Resolver, opts ...Option) *Engine {
	e := &Engine{
		index:    ix,
		resolver: resolver,
		logger:   logger.Default().Named("move"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propose validates a move of ev to (targetDay, targetStart) and plans its conflicts.
// The column never changes; the duration is shortened if the event would run past midnight.
func (e *Engine) Propose(ctx context.Context, ev *model.Event, targetDay, targetStart int) (Proposal, error) {
	if ev.Locked {
		metrics.RecordLockedRejection("move")
		return Proposal{}, fmt.Errorf("move %q: %w", ev.Title, model.ErrLockedSource)
	}
	if !model.ValidDay(targetDay) || !model.ValidHour(targetStart) {
		return Proposal{}, fmt.Errorf("move to day %d hour %d: %w", targetDay, targetStart, model.ErrOutOfBounds)
	}

	p := Proposal{Event: ev, Day: ev.Day, Start: targetStart, Duration: ev.Duration}
	if targetDay != ev.Day {
		p.DayRejected = true
		e.logger.Debug(ctx, "cross-day move rejected, keeping column",
			logger.String("id", ev.ID),
			logger.Int("requested_day", targetDay),
			logger.Int("day", ev.Day),
		)
	}
	if p.Start+p.Duration > model.HoursPerDay {
		p.Duration = max(1, model.HoursPerDay-p.Start)
		p.Shortened = true
	}

	plan, err := e.resolver.Plan(p.Day, p.Span(), ev.ID)
	if err != nil {
		return Proposal{}, err
	}
	p.Plan = plan
	return p, nil
}

// Commit applies a proposal: carves the conflicts, then relocates the event.
func (e *Engine) Commit(ctx context.Context, p Proposal) Result {
	res := Result{Before: *p.Event, DayRejected: p.DayRejected, Shortened: p.Shortened}
	if !p.Plan.Empty() {
		res.Carved = e.resolver.Apply(ctx, p.Plan)
	}
	e.index.Relocate(p.Event, p.Day, p.Start, p.Duration)
	res.After = *p.Event
	e.logger.Debug(ctx, "event moved",
		logger.String("id", p.Event.ID),
		logger.Int("from", res.Before.Start),
		logger.Int("to", res.After.Start),
		logger.Int("carved", len(res.Carved)),
	)
	return res
}

// Move proposes, confirms when conflicts exist, and commits.
// A declined confirmation returns model.ErrCancelled and leaves the index unchanged.
func (e *Engine) Move(ctx context.Context, ev *model.Event, targetDay, targetStart int, confirm overlap.Confirmer) (Result, error) {
	p, err := e.Propose(ctx, ev, targetDay, targetStart)
	if err != nil {
		return Result{}, err
	}
	if p.NoOp() {
		return Result{Before: *ev, After: *ev, DayRejected: p.DayRejected}, nil
	}
	if !p.Plan.Empty() && (confirm == nil || !confirm.Confirm(ctx, p.Plan.Message())) {
		return Result{}, model.ErrCancelled
	}
	return e.Commit(ctx, p), nil
}
