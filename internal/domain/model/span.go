package model

// Span is a closed interval of hour rows [Start, End].
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewSpan builds the span covered by duration rows starting at start.
func NewSpan(start, duration int) Span {
	return Span{Start: start, End: start + duration - 1}
}

// Len returns the number of rows in the span.
func (s Span) Len() int { return s.End - s.Start + 1 }

// Overlaps reports whether the two spans share at least one row.
func (s Span) Overlaps(o Span) bool { return s.Start <= o.End && o.Start <= s.End }

// Contains reports whether hour is inside the span.
func (s Span) Contains(hour int) bool { return hour >= s.Start && hour <= s.End }

// InGrid reports whether the span is non-empty and fits inside one day.
func (s Span) InGrid() bool {
	return s.Start <= s.End && ValidHour(s.Start) && ValidHour(s.End)
}
