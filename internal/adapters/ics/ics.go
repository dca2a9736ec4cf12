// Package ics exports the schedule as an iCalendar feed.
package ics

import (
	"context"
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/recurrence"
	"github.com/okian/weekgrid/pkg/logger"
)

// PropertyLocked marks events that cannot be moved or resized.
const PropertyLocked = ical.ComponentProperty("X-WEEKGRID-LOCKED")

const productID = "-//okian//weekgrid//EN"

// Exporter renders base events as VEVENTs with weekly recurrence rules.
type Exporter struct {
	name   string
	now    func() time.Time
	logger logger.Logger
}

// New creates an exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		name:   "Weekgrid",
		now:    time.Now,
		logger: logger.Default().Named("ics"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calendar builds the calendar for every base event in store.
func (e *Exporter) Calendar(ctx context.Context, store *recurrence.WeekStore) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(e.name)
	cal.SetXWRCalName(e.name)

	stamp := e.now().UTC()
	for _, d := range store.All() {
		if err := e.addEvent(cal, d.Date, d.Event, stamp); err != nil {
			return nil, fmt.Errorf("event %s: %w", d.Event.ID, err)
		}
	}
	e.logger.Debug(ctx, "calendar exported", logger.Int("events", store.Len()))
	return cal, nil
}

// Export writes the serialized calendar to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer, store *recurrence.WeekStore) error {
	cal, err := e.Calendar(ctx, store)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

func (e *Exporter) addEvent(cal *ical.Calendar, date time.Time, ev model.Event, stamp time.Time) error {
	start := recurrence.Day(date).Add(time.Duration(ev.Start) * time.Hour)
	end := start.Add(time.Duration(ev.Duration) * time.Hour)

	vev := cal.AddEvent(ev.ID)
	vev.SetDtStampTime(stamp)
	vev.SetStartAt(start)
	vev.SetEndAt(end)
	vev.SetSummary(ev.Title)
	if ev.Description != "" {
		vev.SetDescription(ev.Description)
	}
	vev.SetColor(ev.Color.Hex())
	if ev.Locked {
		vev.SetProperty(PropertyLocked, "TRUE")
	}

	rule, err := RecurrenceRule(ev)
	if err != nil {
		return err
	}
	if rule != "" {
		vev.AddRrule(rule)
	}
	return nil
}

// RecurrenceRule returns the RRULE value for ev, or "" for a single occurrence.
func RecurrenceRule(ev model.Event) (string, error) {
	opt := rrule.ROption{Freq: rrule.WEEKLY}
	switch {
	case ev.RepeatForever:
	case ev.RepeatCount > 1:
		opt.Count = ev.RepeatCount
	default:
		return "", nil
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("build rrule: %w", err)
	}
	return r.OrigOptions.RRuleString(), nil
}
