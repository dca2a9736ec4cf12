package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/weekgrid/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is claimed for the first time", func() {
			id, seen := d.Claim(ctx, "req-1")

			Convey("Then it is reserved", func() {
				So(seen, ShouldBeFalse)
				So(id, ShouldBeEmpty)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a completed key is claimed again", func() {
			d.Claim(ctx, "req-1")
			d.Complete(ctx, "req-1", "event-9")
			id, seen := d.Claim(ctx, "req-1")

			Convey("Then the first event ID is returned", func() {
				So(seen, ShouldBeTrue)
				So(id, ShouldEqual, "event-9")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claim is released", func() {
			d.Claim(ctx, "req-1")
			d.Unrecord(ctx, "req-1")
			_, seen := d.Claim(ctx, "req-1")

			Convey("Then the key can be claimed again", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unknown keys are completed or released", func() {
			d.Complete(ctx, "nope", "x")
			d.Unrecord(ctx, "nope")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))

		Convey("When more keys than the bound are claimed", func() {
			d.Claim(ctx, "a")
			d.Claim(ctx, "b")
			d.Claim(ctx, "c")

			Convey("Then the oldest key is forgotten", func() {
				So(d.Size(), ShouldEqual, 2)
				_, seenA := d.Claim(ctx, "a")
				So(seenA, ShouldBeFalse)
				_, seenC := d.Claim(ctx, "c")
				So(seenC, ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("When many keys are claimed", func() {
			for i := 0; i < 500; i++ {
				d.Claim(ctx, fmt.Sprintf("k-%d", i))
			}

			Convey("Then all are kept", func() {
				So(d.Size(), ShouldEqual, 500)
			})
		})
	})
}

func TestDeduperConcurrentClaims(t *testing.T) {
	Convey("Given concurrent claims of one key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0

		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, seen := d.Claim(context.Background(), "shared"); !seen {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one claim wins", func() {
			So(winners, ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}
