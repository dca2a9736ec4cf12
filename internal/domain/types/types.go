// Package types contains the read shapes the service hands to its callers.
package types

import (
	"fmt"
	"time"

	"github.com/okian/weekgrid/internal/domain/model"
)

const (
	dateLayout      = "2006-01-02"
	dayLabelLayout  = "Mon 02/01"
	weekLabelLayout = "02 Jan 2006"
)

// WeekView is the visible week: headers, editable columns and every event.
type WeekView struct {
	Monday    string        `json:"monday"`
	Dates     []string      `json:"dates"`
	DayLabels []string      `json:"day_labels"`
	WeekLabel string        `json:"week_label"`
	ReadOnly  []bool        `json:"read_only"`
	Events    []model.Event `json:"events"`
}

// NewWeekView builds the view of the week starting at monday.
// editable may be nil, in which case every column is editable.
func NewWeekView(monday time.Time, editable func(day int) bool, events []model.Event) WeekView {
	v := WeekView{
		Monday:    monday.Format(dateLayout),
		Dates:     make([]string, model.DaysPerWeek),
		DayLabels: make([]string, model.DaysPerWeek),
		ReadOnly:  make([]bool, model.DaysPerWeek),
		Events:    events,
	}
	for d := 0; d < model.DaysPerWeek; d++ {
		date := monday.AddDate(0, 0, d)
		v.Dates[d] = date.Format(dateLayout)
		v.DayLabels[d] = date.Format(dayLabelLayout)
		v.ReadOnly[d] = editable != nil && !editable(d)
	}
	v.WeekLabel = fmt.Sprintf("Week: %s - %s",
		monday.Format(weekLabelLayout),
		monday.AddDate(0, 0, model.LastDay).Format(weekLabelLayout))
	if v.Events == nil {
		v.Events = []model.Event{}
	}
	return v
}

// Conflict describes one event a pending placement would carve.
type Conflict struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Day      int    `json:"day"`
	Hour     int    `json:"hour"`
	Duration int    `json:"duration"`
	Locked   bool   `json:"locked"`
	Action   string `json:"action"`
}
