// Package model contains the schedule grid domain types shared by every layer.
package model

import (
	"fmt"
	"strings"
)

// Grid dimensions.
const (
	DaysPerWeek = 7
	HoursPerDay = 24
	LastHour    = HoursPerDay - 1
	LastDay     = DaysPerWeek - 1
)

// Event is a block of hours inside a single day column.
type Event struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Day           int    `json:"day"`
	Start         int    `json:"hour"`
	Duration      int    `json:"duration"`
	Color         Color  `json:"color"`
	Locked        bool   `json:"locked"`
	RepeatCount   int    `json:"repeat_count"`
	RepeatForever bool   `json:"repeat_forever"`
	// Generated marks occurrences materialized from a recurring base event.
	Generated bool `json:"generated"`
}

// End returns the last hour row covered by the event (inclusive).
func (e *Event) End() int { return e.Start + e.Duration - 1 }

// Span returns the closed row interval the event occupies.
func (e *Event) Span() Span { return Span{Start: e.Start, End: e.End()} }

// Covers reports whether hour lies inside the event's span.
func (e *Event) Covers(hour int) bool { return e.Span().Contains(hour) }

// Validate checks the invariants every committed event must satisfy.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if !ValidDay(e.Day) || !ValidHour(e.Start) {
		return fmt.Errorf("day %d hour %d: %w", e.Day, e.Start, ErrOutOfBounds)
	}
	if e.Duration < 1 || e.Start+e.Duration > HoursPerDay {
		return fmt.Errorf("hour %d duration %d: %w", e.Start, e.Duration, ErrOutOfBounds)
	}
	if e.RepeatCount < 1 {
		return fmt.Errorf("repeat count %d: %w", e.RepeatCount, ErrInvalidRepeat)
	}
	return nil
}

// Occurrence returns the k-th weekly copy of a base event.
// k == 0 is the base itself; later weeks are marked generated and get a derived ID.
func (e *Event) Occurrence(k int) Event {
	occ := *e
	occ.Generated = k > 0
	if k > 0 {
		occ.ID = OccurrenceID(e.ID, k)
	}
	return occ
}

// OccursInWeek reports whether weekly occurrence k exists under the repeat policy.
func (e *Event) OccursInWeek(k int) bool {
	if k < 0 {
		return false
	}
	return k == 0 || e.RepeatForever || k < e.RepeatCount
}

// OccurrenceID derives the identifier of the k-th generated occurrence.
func OccurrenceID(baseID string, k int) string {
	return fmt.Sprintf("%s-w%d", baseID, k)
}

// ValidDay reports whether day is a column of the grid.
func ValidDay(day int) bool { return day >= 0 && day <= LastDay }

// ValidHour reports whether hour is a row of the grid.
func ValidHour(hour int) bool { return hour >= 0 && hour <= LastHour }

// ClampHour forces hour into [0, LastHour].
func ClampHour(hour int) int {
	switch {
	case hour < 0:
		return 0
	case hour > LastHour:
		return LastHour
	default:
		return hour
	}
}
