package recurrence_test

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/recurrence"
	. "github.com/smartystreets/goconvey/convey"
)

func date(s string) time.Time {
	t, err := recurrence.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func base(id string, hour, duration int) model.Event {
	return model.Event{ID: id, Title: id, Start: hour, Duration: duration, RepeatCount: 1}
}

func TestDates(t *testing.T) {
	Convey("Given calendar helpers", t, func() {
		// 2024-01-03 is a Wednesday.
		wed := date("2024-01-03")
		So(recurrence.Weekday(wed), ShouldEqual, 2)
		So(recurrence.FormatDate(recurrence.MondayOf(wed)), ShouldEqual, "2024-01-01")
		So(recurrence.FormatDate(recurrence.MondayOf(date("2024-01-07"))), ShouldEqual, "2024-01-01")
		So(recurrence.DaysBetween(date("2024-01-01"), date("2024-03-01")), ShouldEqual, 60)
		_, err := recurrence.ParseDate("01/02/2024")
		So(err, ShouldNotBeNil)
	})
}

func TestExpand(t *testing.T) {
	Convey("Given a store with an event repeating forever on Monday week 1 at 09:00", t, func() {
		store := recurrence.NewWeekStore()
		ev := base("standup", 9, 1)
		ev.RepeatForever = true
		store.Add(date("2024-01-01"), ev)

		Convey("Then the original week shows the base event", func() {
			ix, rep := recurrence.Expand(store, date("2024-01-01"))
			got, ok := ix.Get(0, 9)
			So(ok, ShouldBeTrue)
			So(got.Generated, ShouldBeFalse)
			So(got.ID, ShouldEqual, "standup")
			So(rep.Base, ShouldEqual, 1)
			So(rep.Generated, ShouldEqual, 0)
		})

		Convey("Then every later week shows a generated copy at the same slot", func() {
			for k := 1; k <= 60; k++ {
				monday := date("2024-01-01").AddDate(0, 0, 7*k)
				ix, _ := recurrence.Expand(store, monday)
				got, ok := ix.Get(0, 9)
				So(ok, ShouldBeTrue)
				So(got.Generated, ShouldBeTrue)
				So(got.ID, ShouldEqual, fmt.Sprintf("standup-w%d", k))
				So(ix.Len(), ShouldEqual, 1)
			}
		})

		Convey("Then earlier weeks are empty", func() {
			ix, _ := recurrence.Expand(store, date("2023-12-25"))
			So(ix.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given an event on a Thursday repeating three times", t, func() {
		store := recurrence.NewWeekStore()
		ev := base("class", 14, 2)
		ev.RepeatCount = 3
		store.Add(date("2024-01-04"), ev)

		Convey("Then it appears in three consecutive weeks on Thursday", func() {
			for k, monday := range []string{"2024-01-01", "2024-01-08", "2024-01-15"} {
				ix, _ := recurrence.Expand(store, date(monday))
				got, ok := ix.Get(3, 14)
				So(ok, ShouldBeTrue)
				So(got.Generated, ShouldEqual, k > 0)
			}
			ix, _ := recurrence.Expand(store, date("2024-01-22"))
			So(ix.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given a generated occurrence that collides with a base event", t, func() {
		store := recurrence.NewWeekStore()
		rep := base("weekly", 10, 2)
		rep.RepeatForever = true
		store.Add(date("2024-01-01"), rep)
		store.Add(date("2024-01-08"), base("oneoff", 11, 1))

		Convey("Then the base event wins and the collision is reported", func() {
			ix, report := recurrence.Expand(store, date("2024-01-08"))
			So(ix.Len(), ShouldEqual, 1)
			got, _ := ix.Get(0, 11)
			So(got.ID, ShouldEqual, "oneoff")
			So(len(report.Collisions), ShouldEqual, 1)
			So(report.Collisions[0].Blocker, ShouldEqual, "oneoff")
			So(report.Collisions[0].Base, ShouldBeFalse)
			So(report.Stranded(), ShouldBeEmpty)
			So(ix.Validate(), ShouldBeNil)
		})
	})
}

func TestFold(t *testing.T) {
	Convey("Given a visible week with a base and a generated event", t, func() {
		store := recurrence.NewWeekStore()
		rep := base("weekly", 8, 1)
		rep.RepeatForever = true
		store.Add(date("2024-01-01"), rep)
		store.Add(date("2024-01-10"), base("wed", 12, 3))
		monday := date("2024-01-08")
		ix, _ := recurrence.Expand(store, monday)
		So(ix.Len(), ShouldEqual, 2)

		Convey("When edits are folded back", func() {
			wed, _ := ix.Find("wed")
			ix.Relocate(wed, wed.Day, 15, 2)
			gen, _ := ix.Find("weekly-w1")
			gen.Title = "edited"
			recurrence.Fold(ix, monday, store)

			Convey("Then base edits are kept and generated edits are dropped", func() {
				got := store.Entries(date("2024-01-10"))
				So(len(got), ShouldEqual, 1)
				So(got[0].Start, ShouldEqual, 15)
				So(got[0].Duration, ShouldEqual, 2)
				So(store.Entries(date("2024-01-08")), ShouldBeEmpty)
				So(store.Entries(date("2024-01-01"))[0].Title, ShouldEqual, "weekly")
				So(store.Len(), ShouldEqual, 2)
			})
		})

		Convey("When an event is deleted from the visible week", func() {
			wed, _ := ix.Find("wed")
			ix.Delete(wed)
			recurrence.Fold(ix, monday, store)
			So(store.Len(), ShouldEqual, 1)
		})
	})
}

func TestFoldKeepsHiddenBaseEvents(t *testing.T) {
	Convey("Given two stored events on one date whose rows overlap", t, func() {
		store := recurrence.NewWeekStore()
		store.Add(date("2024-01-03"), base("long", 9, 3))
		store.Add(date("2024-01-03"), base("short", 10, 1))
		monday := date("2024-01-01")
		ix, rep := recurrence.Expand(store, monday)

		Convey("Then only one is shown and the other is reported as a base collision", func() {
			So(ix.Len(), ShouldEqual, 1)
			So(len(rep.Collisions), ShouldEqual, 1)
			So(rep.Collisions[0].Base, ShouldBeTrue)
			So(len(rep.Stranded()), ShouldEqual, 1)
		})

		Convey("When the week is folded with the stranded entries", func() {
			recurrence.Fold(ix, monday, store, rep.Stranded()...)

			Convey("Then both events are still stored", func() {
				ids := map[string]bool{}
				for _, ev := range store.Entries(date("2024-01-03")) {
					ids[ev.ID] = true
				}
				So(ids, ShouldResemble, map[string]bool{"long": true, "short": true})
			})
		})

		Convey("When the week is folded without them", func() {
			recurrence.Fold(ix, monday, store)

			Convey("Then the hidden one is lost", func() {
				So(store.Len(), ShouldEqual, 1)
			})
		})
	})
}

func TestRoundTrip(t *testing.T) {
	Convey("Given randomly generated stores", t, func() {
		rng := rand.New(rand.NewPCG(7, 11))
		monday := date("2024-02-05")

		for trial := 0; trial < 40; trial++ {
			store := recurrence.NewWeekStore()
			for day := 0; day < model.DaysPerWeek; day++ {
				hour := 0
				for hour < model.HoursPerDay {
					hour += rng.IntN(4)
					if hour >= model.HoursPerDay {
						break
					}
					dur := 1 + rng.IntN(min(3, model.HoursPerDay-hour))
					ev := base(fmt.Sprintf("t%d-d%d-h%d", trial, day, hour), hour, dur)
					ev.RepeatCount = 1 + rng.IntN(3)
					store.Add(monday.AddDate(0, 0, day), ev)
					hour += dur
				}
			}
			// Entries outside the visible week must survive untouched.
			store.Add(monday.AddDate(0, 0, -14), base(fmt.Sprintf("old-%d", trial), 0, 1))
			before := store.Clone()

			ix, rep := recurrence.Expand(store, monday)
			So(rep.Collisions, ShouldBeEmpty)
			So(ix.Validate(), ShouldBeNil)
			recurrence.Fold(ix, monday, store)

			So(store.Within(monday), ShouldResemble, before.Within(monday))
			So(store.All(), ShouldResemble, before.All())
		}
	})
}
