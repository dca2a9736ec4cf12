// Package grid holds the occupancy index of the visible week.
//
// Entries are keyed by the top row of each event; interior rows are not
// keyed. The index does not enforce disjointness itself: the engines that
// mutate it check conflicts first and Validate reports any violation.
package grid

import (
	"fmt"
	"sort"

	"github.com/okian/weekgrid/internal/domain/model"
)

// Key addresses an event by its column and top row.
type Key struct {
	Day  int
	Hour int
}

// Index maps (day, top row) to the event anchored there.
type Index struct {
	entries map[Key]*model.Event
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[Key]*model.Event)}
}

// Place stores ev at (day, top), overwriting any previous entry under that key.
// The event's Day and Start are updated to match the key.
func (ix *Index) Place(ev *model.Event, day, top int) {
	ev.Day = day
	ev.Start = top
	ix.entries[Key{Day: day, Hour: top}] = ev
}

// Remove deletes the entry anchored at (day, top) and returns it.
func (ix *Index) Remove(day, top int) (*model.Event, bool) {
	k := Key{Day: day, Hour: top}
	ev, ok := ix.entries[k]
	if ok {
		delete(ix.entries, k)
	}
	return ev, ok
}

// Get returns the event anchored exactly at (day, top).
func (ix *Index) Get(day, top int) (*model.Event, bool) {
	ev, ok := ix.entries[Key{Day: day, Hour: top}]
	return ev, ok
}

// Query returns the event whose span covers hour in day.
func (ix *Index) Query(day, hour int) (*model.Event, bool) {
	if ev, ok := ix.Get(day, hour); ok {
		return ev, true
	}
	for k, ev := range ix.entries {
		if k.Day == day && ev.Covers(hour) {
			return ev, true
		}
	}
	return nil, false
}

// Relocate moves ev to a new anchor and duration, removing its old key first.
func (ix *Index) Relocate(ev *model.Event, day, top, duration int) {
	if cur, ok := ix.Get(ev.Day, ev.Start); ok && cur == ev {
		delete(ix.entries, Key{Day: ev.Day, Hour: ev.Start})
	}
	ev.Duration = duration
	ix.Place(ev, day, top)
}

// Delete removes ev if it is the entry stored under its own key.
func (ix *Index) Delete(ev *model.Event) bool {
	if cur, ok := ix.Get(ev.Day, ev.Start); ok && cur == ev {
		delete(ix.entries, Key{Day: ev.Day, Hour: ev.Start})
		return true
	}
	return false
}

// Find looks an event up by ID.
func (ix *Index) Find(id string) (*model.Event, bool) {
	for _, ev := range ix.entries {
		if ev.ID == id {
			return ev, true
		}
	}
	return nil, false
}

// Column returns the events of day ordered by start row.
func (ix *Index) Column(day int) []*model.Event {
	var out []*model.Event
	for k, ev := range ix.entries {
		if k.Day == day {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Events returns every event ordered by day then start row.
func (ix *Index) Events() []*model.Event {
	out := make([]*model.Event, 0, len(ix.entries))
	for _, ev := range ix.entries {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// Snapshot copies every event by value in Events order.
func (ix *Index) Snapshot() []model.Event {
	evs := ix.Events()
	out := make([]model.Event, len(evs))
	for i, ev := range evs {
		out[i] = *ev
	}
	return out
}

// Len returns the number of anchored events.
func (ix *Index) Len() int { return len(ix.entries) }

// Free reports whether span in day is not covered by any event other than excludeID.
func (ix *Index) Free(day int, span model.Span, excludeID string) bool {
	for k, ev := range ix.entries {
		if k.Day == day && ev.ID != excludeID && ev.Span().Overlaps(span) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the index.
func (ix *Index) Clone() *Index {
	cp := New()
	for k, ev := range ix.entries {
		dup := *ev
		cp.entries[k] = &dup
	}
	return cp
}

// Reset drops every entry.
func (ix *Index) Reset() {
	ix.entries = make(map[Key]*model.Event)
}

// Validate checks key consistency and that spans are disjoint within each column.
func (ix *Index) Validate() error {
	for k, ev := range ix.entries {
		if k.Day != ev.Day || k.Hour != ev.Start {
			return fmt.Errorf("event %s keyed at %d/%d but anchored at %d/%d: %w",
				ev.ID, k.Day, k.Hour, ev.Day, ev.Start, ErrKeyMismatch)
		}
		if !model.ValidDay(ev.Day) || !ev.Span().InGrid() {
			return fmt.Errorf("event %s: %w", ev.ID, model.ErrOutOfBounds)
		}
	}
	for day := 0; day < model.DaysPerWeek; day++ {
		col := ix.Column(day)
		for i := 1; i < len(col); i++ {
			if col[i-1].End() >= col[i].Start {
				return fmt.Errorf("day %d: %s [%d-%d] and %s [%d-%d]: %w", day,
					col[i-1].ID, col[i-1].Start, col[i-1].End(),
					col[i].ID, col[i].Start, col[i].End(), ErrOverlap)
			}
		}
	}
	return nil
}
