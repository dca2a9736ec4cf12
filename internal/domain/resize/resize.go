// Package resize implements the begin/update/commit/cancel resize cycle.
//
// A resize drags one edge of an event while the opposite edge stays fixed.
// It never carves other events: the span stops at the nearest neighbour on
// the side being extended. Update only previews; the index changes on Commit.
package resize

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/weekgrid/internal/domain/grid"
	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/pkg/logger"
	"github.com/okian/weekgrid/pkg/metrics"
)

// Edge is the side of the event being dragged.
type Edge int

const (
	Top Edge = iota + 1
	Bottom
)

func (e Edge) String() string {
	switch e {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// ParseEdge reads "top" or "bottom".
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top":
		return Top, nil
	case "bottom":
		return Bottom, nil
	default:
		return 0, fmt.Errorf("edge %q: %w", s, ErrInvalidEdge)
	}
}

// State is the resize in progress.
type State struct {
	Active       bool   `json:"active"`
	EventID      string `json:"event_id,omitempty"`
	Edge         string `json:"edge,omitempty"`
	Anchor       int    `json:"anchor"`
	Column       int    `json:"column"`
	OriginalTop  int    `json:"original_top"`
	OriginalSpan int    `json:"original_span"`
	Start        int    `json:"start"`
	Span         int    `json:"span"`

	edge Edge
}

// Preview returns the rows the event would occupy if committed now.
func (s State) Preview() model.Span { return model.NewSpan(s.Start, s.Span) }

// Result describes a committed resize.
type Result struct {
	Before  model.Event `json:"before"`
	After   model.Event `json:"after"`
	Changed bool        `json:"changed"`
}

// Engine drives one resize at a time over an index.
type Engine struct {
	index  *grid.Index
	state  State
	logger logger.Logger
}

// New creates an Engine over ix.
func New(ix *grid.Index, opts ...Option) *Engine {
	e := &Engine{index: ix, logger: logger.Default().Named("resize")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns a copy of the current resize state.
func (e *Engine) State() State { return e.state }

// Begin starts resizing ev from edge. Locked events are refused and leave the engine idle.
func (e *Engine) Begin(ctx context.Context, ev *model.Event, edge Edge) error {
	if ev.Locked {
		metrics.RecordLockedRejection("resize")
		return fmt.Errorf("resize %q: %w", ev.Title, model.ErrLockedSource)
	}
	if edge != Top && edge != Bottom {
		return ErrInvalidEdge
	}
	anchor := ev.Start
	if edge == Top {
		anchor = ev.End()
	}
	e.state = State{
		Active:       true,
		EventID:      ev.ID,
		Edge:         edge.String(),
		edge:         edge,
		Anchor:       anchor,
		Column:       ev.Day,
		OriginalTop:  ev.Start,
		OriginalSpan: ev.Duration,
		Start:        ev.Start,
		Span:         ev.Duration,
	}
	e.logger.Debug(ctx, "resize started",
		logger.String("id", ev.ID),
		logger.String("edge", edge.String()),
		logger.Int("anchor", anchor),
	)
	return nil
}

// Update previews dragging the active edge to targetRow.
func (e *Engine) Update(ctx context.Context, targetRow int) (model.Span, error) {
	if !e.state.Active {
		return model.Span{}, model.ErrResizeInactive
	}
	target := model.ClampHour(targetRow)
	anchor := e.state.Anchor

	var start, span int
	if e.state.edge == Bottom {
		start = anchor
		span = max(1, max(target, anchor)-anchor+1)
	} else {
		start = min(target, anchor)
		span = max(1, anchor-start+1)
	}
	start, span = e.clampToNeighbours(start, span)

	e.state.Start, e.state.Span = start, span
	return e.state.Preview(), nil
}

// clampToNeighbours stops the extending edge at the nearest other event.
func (e *Engine) clampToNeighbours(start, span int) (int, int) {
	end := start + span - 1
	for _, other := range e.index.Column(e.state.Column) {
		if other.ID == e.state.EventID {
			continue
		}
		switch e.state.edge {
		case Bottom:
			if other.Start > e.state.Anchor && other.Start <= end {
				end = other.Start - 1
			}
		case Top:
			if other.End() < e.state.Anchor && other.End() >= start {
				start = other.End() + 1
			}
		}
	}
	start = model.ClampHour(start)
	end = model.ClampHour(end)
	return start, max(1, end-start+1)
}

// Commit writes the previewed span into the index and clears the state.
// Committing the original span is a no-op. An event locked since Begin is
// left untouched.
func (e *Engine) Commit(ctx context.Context) (Result, error) {
	if !e.state.Active {
		return Result{}, model.ErrResizeInactive
	}
	st := e.state
	e.state = State{}

	ev, ok := e.index.Find(st.EventID)
	if !ok {
		return Result{}, fmt.Errorf("resize %s: %w", st.EventID, model.ErrNotFound)
	}
	if ev.Locked {
		metrics.RecordLockedRejection("resize")
		return Result{}, fmt.Errorf("resize %q: %w", ev.Title, model.ErrLockedSource)
	}
	res := Result{Before: *ev}
	if st.Start == st.OriginalTop && st.Span == st.OriginalSpan {
		res.After = *ev
		return res, nil
	}
	e.index.Relocate(ev, st.Column, st.Start, st.Span)
	res.After = *ev
	res.Changed = true
	e.logger.Debug(ctx, "resize committed",
		logger.String("id", ev.ID),
		logger.Int("start", st.Start),
		logger.Int("span", st.Span),
	)
	return res, nil
}

// Cancel abandons the resize. The index is left as it was before Begin.
func (e *Engine) Cancel(ctx context.Context) bool {
	was := e.state.Active
	if was {
		e.logger.Debug(ctx, "resize cancelled", logger.String("id", e.state.EventID))
	}
	e.state = State{}
	return was
}

// Resize runs a full begin/update/commit cycle.
func (e *Engine) Resize(ctx context.Context, ev *model.Event, edge Edge, targetRow int) (Result, error) {
	if err := e.Begin(ctx, ev, edge); err != nil {
		return Result{}, err
	}
	if _, err := e.Update(ctx, targetRow); err != nil {
		e.Cancel(ctx)
		return Result{}, err
	}
	return e.Commit(ctx)
}
