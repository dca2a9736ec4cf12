package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/recurrence"
)

// Record is one persisted base event.
type Record struct {
	ID            string       `json:"id,omitempty"`
	Date          string       `json:"date"`
	Title         string       `json:"title"`
	Hour          int          `json:"hour"`
	Duration      int          `json:"duration"`
	Color         *model.Color `json:"color,omitempty"`
	Description   string       `json:"description"`
	Locked        bool         `json:"locked"`
	RepeatCount   int          `json:"repeat_count"`
	RepeatForever bool         `json:"repeat_forever"`
}

// Document is the on-disk layout.
type Document struct {
	Events []Record `json:"events"`
}

// Records flattens a store into records ordered by date then hour.
func Records(store *recurrence.WeekStore) []Record {
	all := store.All()
	out := make([]Record, 0, len(all))
	for _, d := range all {
		c := d.Event.Color
		out = append(out, Record{
			ID:            d.Event.ID,
			Date:          recurrence.FormatDate(d.Date),
			Title:         d.Event.Title,
			Hour:          d.Event.Start,
			Duration:      d.Event.Duration,
			Color:         &c,
			Description:   d.Event.Description,
			Locked:        d.Event.Locked,
			RepeatCount:   d.Event.RepeatCount,
			RepeatForever: d.Event.RepeatForever,
		})
	}
	return out
}

// FromRecords rebuilds a store. Missing IDs and colors are filled in,
// repeat_count is clamped to at least 1 and the span is clamped to the day.
func FromRecords(records []Record) (*recurrence.WeekStore, error) {
	store := recurrence.NewWeekStore()
	for i, r := range records {
		date, err := recurrence.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w: %w", i, ErrCorrupt, err)
		}
		ev := model.Event{
			ID:            r.ID,
			Title:         r.Title,
			Description:   r.Description,
			Start:         model.ClampHour(r.Hour),
			Duration:      r.Duration,
			Color:         model.DefaultColor,
			Locked:        r.Locked,
			RepeatCount:   max(r.RepeatCount, 1),
			RepeatForever: r.RepeatForever,
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if r.Color != nil {
			ev.Color = *r.Color
		}
		ev.Duration = min(max(ev.Duration, 1), model.HoursPerDay-ev.Start)
		store.Add(date, ev)
	}
	return store, nil
}

// Encode renders a store as an indented document.
func Encode(store *recurrence.WeekStore) ([]byte, error) {
	data, err := json.MarshalIndent(Document{Events: Records(store)}, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	return data, nil
}

// Decode parses either a document or a bare array of records.
func Decode(data []byte) (*recurrence.WeekStore, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return recurrence.NewWeekStore(), nil
	}

	var records []Record
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	} else {
		var doc Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		records = doc.Events
	}
	return FromRecords(records)
}
