// Package overlap carves existing events out of the way of a candidate span.
//
// Resolution is two-phase. Plan inspects the column and fails with
// model.ErrLockedConflict without touching anything; Apply then performs
// the carve in ascending start order. Callers confirm between the two.
package overlap

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/weekgrid/internal/domain/grid"
	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/pkg/logger"
	"github.com/okian/weekgrid/pkg/metrics"
)

// Action is the carve applied to one overlapped event.
type Action int

const (
	// Split cuts the candidate out of the middle of the event.
	Split Action = iota + 1
	// ShrinkTop moves the event's start below the candidate.
	ShrinkTop
	// ShrinkBottom pulls the event's end above the candidate.
	ShrinkBottom
	// Delete removes an event the candidate fully covers.
	Delete
)

func (a Action) String() string {
	switch a {
	case Split:
		return "split"
	case ShrinkTop:
		return "shrink_top"
	case ShrinkBottom:
		return "shrink_bottom"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Classify picks the carve for an existing span against a candidate span.
// The rules are tried in order and the first match wins.
func Classify(existing, candidate model.Span) Action {
	switch {
	case candidate.Start > existing.Start && candidate.End < existing.End:
		return Split
	case candidate.Start <= existing.Start && existing.Start <= candidate.End && candidate.End < existing.End:
		return ShrinkTop
	case existing.Start < candidate.Start && candidate.Start <= existing.End && existing.End <= candidate.End:
		return ShrinkBottom
	default:
		return Delete
	}
}

// Step is one planned carve.
type Step struct {
	Action Action
	Target *model.Event
}

// Plan is the full set of carves needed to make room for a candidate span.
type Plan struct {
	Day     int
	Span    model.Span
	Exclude string
	Steps   []Step
}

// Empty reports whether the candidate overlaps nothing.
func (p Plan) Empty() bool { return len(p.Steps) == 0 }

// Conflicts returns value copies of the overlapped events.
func (p Plan) Conflicts() []model.Event {
	out := make([]model.Event, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = *s.Target
	}
	return out
}

// Message renders the confirmation prompt shown before Apply.
func (p Plan) Message() string {
	titles := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		titles[i] = fmt.Sprintf("%q (%02d:00-%02d:00)", s.Target.Title, s.Target.Start, s.Target.End()+1)
	}
	return fmt.Sprintf("This overlaps %d event(s): %s. Overwrite?", len(p.Steps), strings.Join(titles, ", "))
}

// Outcome records what a carve did.
type Outcome struct {
	Action Action        `json:"-"`
	Kind   string        `json:"action"`
	Before model.Event   `json:"before"`
	After  []model.Event `json:"after"`
}

// Resolver plans and applies carves against an index.
type Resolver struct {
	index  *grid.Index
	newID  func() string
	logger logger.Logger
}

// New creates a Resolver bound to ix.
func New(ix *grid.Index, opts ...Option) *Resolver {
	r := &Resolver{
		index:  ix,
		newID:  uuid.NewString,
		logger: logger.Default().Named("overlap"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindOverlaps returns the events in day that intersect span, sorted by start row.
func (r *Resolver) FindOverlaps(day int, span model.Span, excludeID string) []*model.Event {
	var out []*model.Event
	for _, ev := range r.index.Column(day) {
		if excludeID != "" && ev.ID == excludeID {
			continue
		}
		if ev.Span().Overlaps(span) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Plan computes the carves for span without mutating the index.
func (r *Resolver) Plan(day int, span model.Span, excludeID string) (Plan, error) {
	if !model.ValidDay(day) || !span.InGrid() {
		return Plan{}, fmt.Errorf("plan day %d rows %d-%d: %w", day, span.Start, span.End, model.ErrOutOfBounds)
	}
	p := Plan{Day: day, Span: span, Exclude: excludeID}
	for _, ev := range r.FindOverlaps(day, span, excludeID) {
		if ev.Locked {
			metrics.RecordLockedRejection("conflict")
			return Plan{}, fmt.Errorf("event %q at %02d:00: %w", ev.Title, ev.Start, model.ErrLockedConflict)
		}
		p.Steps = append(p.Steps, Step{Action: Classify(ev.Span(), span), Target: ev})
	}
	return p, nil
}

// Apply performs a plan's carves in ascending start order.
func (r *Resolver) Apply(ctx context.Context, p Plan) []Outcome {
	outcomes := make([]Outcome, 0, len(p.Steps))
	for _, s := range p.Steps {
		out := r.carve(s, p.Span)
		metrics.RecordConflictResolution(out.Kind)
		r.logger.Debug(ctx, "carved event",
			logger.String("id", out.Before.ID),
			logger.String("action", out.Kind),
			logger.Int("pieces", len(out.After)),
		)
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Resolve plans, asks confirm when anything would be carved, then applies.
// A declined prompt returns model.ErrCancelled with the index untouched.
func (r *Resolver) Resolve(ctx context.Context, day int, span model.Span, excludeID string, confirm Confirmer) ([]Outcome, error) {
	p, err := r.Plan(day, span, excludeID)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return nil, nil
	}
	if confirm == nil || !confirm.Confirm(ctx, p.Message()) {
		return nil, model.ErrCancelled
	}
	return r.Apply(ctx, p), nil
}

func (r *Resolver) carve(s Step, cand model.Span) Outcome {
	ev := s.Target
	out := Outcome{Action: s.Action, Kind: s.Action.String(), Before: *ev}
	evStart, evEnd := ev.Start, ev.End()

	switch s.Action {
	case Split:
		if topLen := cand.Start - evStart; topLen >= 1 {
			r.index.Relocate(ev, ev.Day, evStart, topLen)
			out.After = append(out.After, *ev)
		} else {
			r.index.Delete(ev)
		}
		if bottomLen := evEnd - cand.End; bottomLen >= 1 {
			rest := &model.Event{
				ID:          r.newID(),
				Title:       ev.Title,
				Description: ev.Description,
				Color:       ev.Color,
				Duration:    bottomLen,
				RepeatCount: 1,
				Generated:   ev.Generated,
			}
			r.index.Place(rest, ev.Day, cand.End+1)
			out.After = append(out.After, *rest)
		}
	case ShrinkTop:
		cut := cand.End - evStart + 1
		if ev.Duration-cut <= 0 {
			r.index.Delete(ev)
			break
		}
		r.index.Relocate(ev, ev.Day, evStart+cut, ev.Duration-cut)
		out.After = append(out.After, *ev)
	case ShrinkBottom:
		cut := evEnd - cand.Start + 1
		r.index.Relocate(ev, ev.Day, evStart, max(1, ev.Duration-cut))
		out.After = append(out.After, *ev)
	case Delete:
		r.index.Delete(ev)
	}
	return out
}
