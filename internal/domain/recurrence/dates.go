package recurrence

import (
	"fmt"
	"time"

	"github.com/okian/weekgrid/internal/domain/model"
)

// DateLayout is the calendar date format used for store keys and records.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string { return Day(t).Format(DateLayout) }

// Weekday returns the column of t with Monday as 0.
func Weekday(t time.Time) int { return (int(t.Weekday()) + 6) % model.DaysPerWeek }

// MondayOf returns the Monday starting the week that contains t.
func MondayOf(t time.Time) time.Time {
	d := Day(t)
	return d.AddDate(0, 0, -Weekday(d))
}

// DaysBetween returns the whole number of days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
