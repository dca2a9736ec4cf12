package move_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/weekgrid/internal/domain/grid"
	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/move"
	"github.com/okian/weekgrid/internal/domain/overlap"
	. "github.com/smartystreets/goconvey/convey"
)

func put(ix *grid.Index, id string, day, start, duration int) *model.Event {
	ev := &model.Event{ID: id, Title: id, Duration: duration, RepeatCount: 1}
	ix.Place(ev, day, start)
	return ev
}

func TestMove(t *testing.T) {
	ctx := context.Background()

	Convey("Given a move engine", t, func() {
		ix := grid.New()
		eng := move.New(ix, overlap.New(ix))

		Convey("When an event moves into free rows", func() {
			ev := put(ix, "a", 2, 3, 2)
			res, err := eng.Move(ctx, ev, 2, 10, overlap.Never())

			Convey("Then only its anchor changes", func() {
				So(err, ShouldBeNil)
				So(res.Before.Start, ShouldEqual, 3)
				So(res.After.Start, ShouldEqual, 10)
				So(res.Carved, ShouldBeEmpty)
				_, ok := ix.Get(2, 3)
				So(ok, ShouldBeFalse)
				got, _ := ix.Get(2, 10)
				So(got, ShouldEqual, ev)
			})
		})

		Convey("When a different day is requested", func() {
			ev := put(ix, "a", 2, 3, 2)
			res, err := eng.Move(ctx, ev, 5, 6, overlap.Never())

			Convey("Then the row changes but the column stays", func() {
				So(err, ShouldBeNil)
				So(res.DayRejected, ShouldBeTrue)
				So(ev.Day, ShouldEqual, 2)
				So(ev.Start, ShouldEqual, 6)
			})
		})

		Convey("When the event would run past midnight", func() {
			ev := put(ix, "a", 0, 2, 5)
			res, err := eng.Move(ctx, ev, 0, 21, overlap.Never())

			Convey("Then its duration is shortened to fit", func() {
				So(err, ShouldBeNil)
				So(res.Shortened, ShouldBeTrue)
				So(ev.Start, ShouldEqual, 21)
				So(ev.Duration, ShouldEqual, 3)
			})
		})

		Convey("When the target row is off the grid", func() {
			ev := put(ix, "a", 0, 2, 1)
			_, err := eng.Move(ctx, ev, 0, 24, overlap.Always())
			So(errors.Is(err, model.ErrOutOfBounds), ShouldBeTrue)
			_, err = eng.Move(ctx, ev, -1, 3, overlap.Always())
			So(errors.Is(err, model.ErrOutOfBounds), ShouldBeTrue)
		})

		Convey("When the event is locked", func() {
			ev := put(ix, "a", 0, 2, 1)
			ev.Locked = true
			before := ix.Snapshot()
			_, err := eng.Move(ctx, ev, 0, 5, overlap.Always())

			Convey("Then it is rejected and the index is unchanged", func() {
				So(errors.Is(err, model.ErrLockedSource), ShouldBeTrue)
				So(ix.Snapshot(), ShouldResemble, before)
			})
		})

		Convey("When the target overlaps a locked event", func() {
			ev := put(ix, "a", 0, 0, 2)
			lock := put(ix, "l", 0, 6, 2)
			lock.Locked = true
			before := ix.Snapshot()
			_, err := eng.Move(ctx, ev, 0, 5, overlap.Always())

			Convey("Then it fails with a locked conflict", func() {
				So(errors.Is(err, model.ErrLockedConflict), ShouldBeTrue)
				So(ix.Snapshot(), ShouldResemble, before)
			})
		})

		Convey("When the target overlaps another event", func() {
			ev := put(ix, "a", 0, 0, 2)
			other := put(ix, "b", 0, 4, 6) // 4-9

			Convey("And the user declines", func() {
				before := ix.Snapshot()
				_, err := eng.Move(ctx, ev, 0, 5, overlap.Never())
				So(errors.Is(err, model.ErrCancelled), ShouldBeTrue)
				So(ix.Snapshot(), ShouldResemble, before)
			})

			Convey("And the user confirms", func() {
				res, err := eng.Move(ctx, ev, 0, 5, overlap.Always())

				Convey("Then the other event is split around it", func() {
					So(err, ShouldBeNil)
					So(len(res.Carved), ShouldEqual, 1)
					So(res.Carved[0].Action, ShouldEqual, overlap.Split)
					So(other.Span(), ShouldResemble, model.Span{Start: 4, End: 4})
					So(ix.Validate(), ShouldBeNil)
					So(ix.Len(), ShouldEqual, 3)
				})
			})
		})

		Convey("When an event moves onto its own rows", func() {
			ev := put(ix, "a", 0, 4, 4)
			res, err := eng.Move(ctx, ev, 0, 6, overlap.Never())

			Convey("Then it does not conflict with itself", func() {
				So(err, ShouldBeNil)
				So(res.After.Span(), ShouldResemble, model.Span{Start: 6, End: 9})
			})
		})
	})
}
