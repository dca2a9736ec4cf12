// Package recurrence stores base events by date and materializes weeks from them.
//
// Expand turns the store into the occupancy index of one visible week,
// generating weekly occurrences of repeating events. Fold writes the
// visible week's base events back. Generated occurrences are never folded.
package recurrence

import (
	"time"

	"github.com/okian/weekgrid/internal/domain/grid"
	"github.com/okian/weekgrid/internal/domain/model"
)

// Collision records an occurrence that could not be placed because its rows were taken.
// Base is set when the occurrence is a stored event on its own date rather
// than a generated repeat.
type Collision struct {
	Date    time.Time   `json:"date"`
	Event   model.Event `json:"event"`
	Blocker string      `json:"blocker"`
	Base    bool        `json:"base"`
}

// Report summarizes an expansion.
type Report struct {
	Base       int         `json:"base"`
	Generated  int         `json:"generated"`
	Collisions []Collision `json:"collisions,omitempty"`
}

// Stranded returns the base events that lost their rows to another base
// event. They are not in the index but must survive a Fold.
func (r Report) Stranded() []Dated {
	var out []Dated
	for _, c := range r.Collisions {
		if c.Base {
			out = append(out, Dated{Date: c.Date, Event: c.Event})
		}
	}
	return out
}

type occurrence struct {
	date time.Time
	ev   model.Event
}

// Expand materializes the week starting at monday.
//
// An event anchored on date A appears on day d of the week when d-A is a
// non-negative multiple of 7 days and its occurrence number k = (d-A)/7
// satisfies k == 0, RepeatForever, or k < RepeatCount. Base occurrences are
// placed before generated ones, so a base event always wins its rows.
func Expand(store *WeekStore, monday time.Time) (*grid.Index, Report) {
	monday = MondayOf(monday)
	end := monday.AddDate(0, 0, model.DaysPerWeek)

	var base, generated []occurrence
	for _, anchor := range store.Dates() {
		if !anchor.Before(end) {
			break
		}
		for _, ev := range store.byDate[FormatDate(anchor)] {
			for d := 0; d < model.DaysPerWeek; d++ {
				date := monday.AddDate(0, 0, d)
				diff := DaysBetween(anchor, date)
				if diff < 0 || diff%model.DaysPerWeek != 0 {
					continue
				}
				k := diff / model.DaysPerWeek
				if !ev.OccursInWeek(k) {
					continue
				}
				occ := occurrence{date: date, ev: ev.Occurrence(k)}
				occ.ev.Day = d
				if k == 0 {
					base = append(base, occ)
				} else {
					generated = append(generated, occ)
				}
			}
		}
	}

	ix := grid.New()
	var rep Report
	for _, group := range [][]occurrence{base, generated} {
		for _, occ := range group {
			ev := occ.ev
			if blocker := firstOverlap(ix, ev.Day, ev.Span()); blocker != "" {
				rep.Collisions = append(rep.Collisions, Collision{Date: occ.date, Event: ev, Blocker: blocker, Base: !ev.Generated})
				continue
			}
			ix.Place(&ev, ev.Day, ev.Start)
			if ev.Generated {
				rep.Generated++
			} else {
				rep.Base++
			}
		}
	}
	return ix, rep
}

func firstOverlap(ix *grid.Index, day int, span model.Span) string {
	for _, ev := range ix.Column(day) {
		if ev.Span().Overlaps(span) {
			return ev.ID
		}
	}
	return ""
}

// Fold replaces the store's entries for the week starting at monday with
// the non-generated events currently in ix plus the stranded entries in keep.
func Fold(ix *grid.Index, monday time.Time, store *WeekStore, keep ...Dated) {
	monday = MondayOf(monday)
	end := monday.AddDate(0, 0, model.DaysPerWeek)
	store.DropRange(monday, end)
	for _, ev := range ix.Events() {
		if ev.Generated {
			continue
		}
		store.Add(monday.AddDate(0, 0, ev.Day), *ev)
	}
	for _, d := range keep {
		if !d.Date.Before(monday) && d.Date.Before(end) {
			store.Add(d.Date, d.Event)
		}
	}
}
