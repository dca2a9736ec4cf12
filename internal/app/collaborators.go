package service

import (
	"context"
	"time"

	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/recurrence"
)

// Details are the user-editable fields of an event.
type Details struct {
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Locked        bool         `json:"locked"`
	RepeatCount   int          `json:"repeat_count"`
	RepeatForever bool         `json:"repeat_forever"`
	Color         *model.Color `json:"color,omitempty"`
}

// Editor collects event details from the user. current is nil when a new
// event is being created. ok is false when the user cancelled.
type Editor interface {
	Edit(ctx context.Context, current *model.Event) (d Details, ok bool)
}

// EditorFunc adapts a function to Editor.
type EditorFunc func(ctx context.Context, current *model.Event) (Details, bool)

func (f EditorFunc) Edit(ctx context.Context, current *model.Event) (Details, bool) {
	return f(ctx, current)
}

// StaticEditor answers every prompt with d.
func StaticEditor(d Details) Editor {
	return EditorFunc(func(context.Context, *model.Event) (Details, bool) { return d, true })
}

// ColumnPolicy decides whether a day of the visible week accepts changes.
type ColumnPolicy interface {
	IsColumnEditable(monday time.Time, day int) bool
}

// ColumnFunc adapts a function to ColumnPolicy.
type ColumnFunc func(monday time.Time, day int) bool

func (f ColumnFunc) IsColumnEditable(monday time.Time, day int) bool { return f(monday, day) }

// AllEditable accepts changes on every day.
func AllEditable() ColumnPolicy {
	return ColumnFunc(func(time.Time, int) bool { return true })
}

// PastReadOnly rejects changes on days strictly before today.
func PastReadOnly(now func() time.Time) ColumnPolicy {
	return ColumnFunc(func(monday time.Time, day int) bool {
		date := recurrence.Day(monday).AddDate(0, 0, day)
		return !date.Before(recurrence.Day(now()))
	})
}

// Notifier is told about every committed change.
type Notifier interface {
	Publish(ctx context.Context, entity, action, id string)
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, string, string, string) {}
