package recurrence

import (
	"sort"
	"time"

	"github.com/okian/weekgrid/internal/domain/model"
)

// WeekStore holds base events keyed by the date of their first occurrence.
type WeekStore struct {
	byDate map[string][]model.Event
}

// NewWeekStore returns an empty store.
func NewWeekStore() *WeekStore {
	return &WeekStore{byDate: make(map[string][]model.Event)}
}

// Add stores ev as a base event anchored on date.
// The event's Day is derived from the date and its generated flag is cleared.
func (s *WeekStore) Add(date time.Time, ev model.Event) {
	ev.Day = Weekday(date)
	ev.Generated = false
	key := FormatDate(date)
	list := append(s.byDate[key], ev)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Start < list[j].Start })
	s.byDate[key] = list
}

// Entries returns a copy of the events anchored on date.
func (s *WeekStore) Entries(date time.Time) []model.Event {
	list := s.byDate[FormatDate(date)]
	out := make([]model.Event, len(list))
	copy(out, list)
	return out
}

// Dates returns the anchor dates in ascending order.
func (s *WeekStore) Dates() []time.Time {
	out := make([]time.Time, 0, len(s.byDate))
	for k := range s.byDate {
		t, err := ParseDate(k)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// DropRange removes every entry anchored in [from, to) and returns how many events went.
func (s *WeekStore) DropRange(from, to time.Time) int {
	from, to = Day(from), Day(to)
	n := 0
	for k, list := range s.byDate {
		t, err := ParseDate(k)
		if err != nil {
			continue
		}
		if !t.Before(from) && t.Before(to) {
			n += len(list)
			delete(s.byDate, k)
		}
	}
	return n
}

// Each visits every base event in date then start order.
func (s *WeekStore) Each(fn func(date time.Time, ev model.Event)) {
	for _, d := range s.Dates() {
		for _, ev := range s.byDate[FormatDate(d)] {
			fn(d, ev)
		}
	}
}

// Len returns the number of base events.
func (s *WeekStore) Len() int {
	n := 0
	for _, list := range s.byDate {
		n += len(list)
	}
	return n
}

// Clone returns an independent copy.
func (s *WeekStore) Clone() *WeekStore {
	cp := NewWeekStore()
	for k, list := range s.byDate {
		dup := make([]model.Event, len(list))
		copy(dup, list)
		cp.byDate[k] = dup
	}
	return cp
}

// Dated pairs a base event with its anchor date.
type Dated struct {
	Date  time.Time
	Event model.Event
}

// Within returns the entries anchored in the week starting at monday.
func (s *WeekStore) Within(monday time.Time) []Dated {
	monday = Day(monday)
	end := monday.AddDate(0, 0, model.DaysPerWeek)
	var out []Dated
	s.Each(func(d time.Time, ev model.Event) {
		if !d.Before(monday) && d.Before(end) {
			out = append(out, Dated{Date: d, Event: ev})
		}
	})
	return out
}

// All returns every entry in date then start order.
func (s *WeekStore) All() []Dated {
	var out []Dated
	s.Each(func(d time.Time, ev model.Event) { out = append(out, Dated{Date: d, Event: ev}) })
	return out
}
