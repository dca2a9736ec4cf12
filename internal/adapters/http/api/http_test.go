package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/weekgrid/internal/adapters/http/api"
	"github.com/okian/weekgrid/internal/adapters/repository"
	service "github.com/okian/weekgrid/internal/app"
	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/types"
	"github.com/okian/weekgrid/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// wednesday is 3 January 2024; its week starts on Monday 1 January.
var wednesday = time.Date(2024, time.January, 3, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return wednesday }

func newRouter(t *testing.T, opts ...service.Option) *mux.Router {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.json")
	opts = append([]service.Option{
		service.WithRepository(repository.NewFileStore(path)),
		service.WithClock(fixedClock),
	}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	Reset(func() { _ = svc.Stop(context.Background()) })

	r := mux.NewRouter()
	api.NewServer(svc, svc).Register(context.Background(), r)
	return r
}

func do(r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type created struct {
	Event     model.Event `json:"event"`
	Duplicate bool        `json:"duplicate"`
}

type apiError struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Conflicts []types.Conflict `json:"conflicts"`
}

func create(r http.Handler, day, hour int, title string, extra ...func(map[string]any)) model.Event {
	body := map[string]any{"day": day, "hour": hour, "title": title}
	for _, fn := range extra {
		fn(body)
	}
	w := do(r, http.MethodPost, "/events", body)
	So(w.Code, ShouldEqual, http.StatusCreated)
	var out created
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out.Event
}

func locked(body map[string]any) { body["locked"] = true }

func decodeError(w *httptest.ResponseRecorder) apiError {
	var e apiError
	So(json.Unmarshal(w.Body.Bytes(), &e), ShouldBeNil)
	return e
}

func TestServer_Infrastructure(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		r := newRouter(t)

		Convey("Then health answers ok", func() {
			w := do(r, http.MethodGet, "/healthz", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("Then metrics are exposed", func() {
			do(r, http.MethodGet, "/healthz", nil)
			w := do(r, http.MethodGet, "/metrics", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "weekgrid_")
		})

		Convey("Then stats report a started service", func() {
			w := do(r, http.MethodGet, "/stats", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
			So(stats["week"], ShouldEqual, "2024-01-01")
		})

		Convey("Then unknown routes and methods are rejected", func() {
			So(do(r, http.MethodGet, "/nowhere", nil).Code, ShouldEqual, http.StatusNotFound)
			So(do(r, http.MethodGet, "/save", nil).Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Week(t *testing.T) {
	Convey("Given the API on the week of 1 January 2024", t, func() {
		r := newRouter(t)

		Convey("When reading the week", func() {
			w := do(r, http.MethodGet, "/week", nil)
			var view types.WeekView
			So(json.Unmarshal(w.Body.Bytes(), &view), ShouldBeNil)

			Convey("Then it shows the headers and no events", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(view.Monday, ShouldEqual, "2024-01-01")
				So(view.DayLabels[0], ShouldEqual, "Mon 01/01")
				So(view.WeekLabel, ShouldEqual, "Week: 01 Jan 2024 - 07 Jan 2024")
				So(view.Events, ShouldBeEmpty)
			})
		})

		Convey("When a repeating event exists and the week advances", func() {
			create(r, 2, 9, "Standup", func(b map[string]any) { b["repeat_count"] = 2 })
			w := do(r, http.MethodPost, "/week/next", nil)
			var view types.WeekView
			So(json.Unmarshal(w.Body.Bytes(), &view), ShouldBeNil)

			Convey("Then the next week shows the occurrence", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(view.Monday, ShouldEqual, "2024-01-08")
				So(len(view.Events), ShouldEqual, 1)
				So(view.Events[0].Generated, ShouldBeTrue)
				So(view.Events[0].Title, ShouldEqual, "Standup")
			})

			Convey("Then going back shows the base event", func() {
				w := do(r, http.MethodPost, "/week/prev", nil)
				So(json.Unmarshal(w.Body.Bytes(), &view), ShouldBeNil)
				So(view.Monday, ShouldEqual, "2024-01-01")
				So(len(view.Events), ShouldEqual, 1)
				So(view.Events[0].Generated, ShouldBeFalse)
			})
		})

		Convey("When jumping to a date", func() {
			w := do(r, http.MethodPost, "/week/goto", map[string]string{"date": "2024-03-14"})
			var view types.WeekView
			So(json.Unmarshal(w.Body.Bytes(), &view), ShouldBeNil)

			Convey("Then the containing week is shown", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(view.Monday, ShouldEqual, "2024-03-11")
			})
		})

		Convey("When the date is malformed", func() {
			w := do(r, http.MethodPost, "/week/goto", map[string]string{"date": "14/03/2024"})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_CreateAndEdit(t *testing.T) {
	Convey("Given the API", t, func() {
		r := newRouter(t)

		Convey("When creating an event", func() {
			ev := create(r, 3, 10, "Review", func(b map[string]any) {
				b["color"] = []int{10, 20, 30}
				b["description"] = "quarterly"
			})

			Convey("Then it is one hour long and readable by id", func() {
				So(ev.ID, ShouldNotBeEmpty)
				So(ev.Duration, ShouldEqual, 1)
				So(ev.RepeatCount, ShouldEqual, 1)
				So(int(ev.Color.R), ShouldEqual, 10)

				w := do(r, http.MethodGet, "/events/"+ev.ID, nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "quarterly")
			})

			Convey("Then the same cell cannot be created again", func() {
				w := do(r, http.MethodPost, "/events", map[string]any{"day": 3, "hour": 10, "title": "Other"})
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(w).Code, ShouldEqual, "occupied")
			})

			Convey("Then editing replaces the details", func() {
				w := do(r, http.MethodPut, "/events/"+ev.ID, map[string]any{"title": "Retro", "locked": true})
				So(w.Code, ShouldEqual, http.StatusOK)
				var out model.Event
				So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
				So(out.Title, ShouldEqual, "Retro")
				So(out.Locked, ShouldBeTrue)
				So(int(out.Color.G), ShouldEqual, 20)
			})

			Convey("Then editing with an empty title is rejected", func() {
				w := do(r, http.MethodPut, "/events/"+ev.ID, map[string]any{"title": "  "})
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the same idempotency key is sent twice", func() {
			body := map[string]any{"day": 1, "hour": 8, "title": "Gym"}
			first := do(r, http.MethodPost, "/events", body, api.IdempotencyHeader, "k-1")
			second := do(r, http.MethodPost, "/events", body, api.IdempotencyHeader, "k-1")

			Convey("Then the second call returns the first event", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusOK)
				var a, b created
				So(json.Unmarshal(first.Body.Bytes(), &a), ShouldBeNil)
				So(json.Unmarshal(second.Body.Bytes(), &b), ShouldBeNil)
				So(b.Duplicate, ShouldBeTrue)
				So(b.Event.ID, ShouldEqual, a.Event.ID)
			})
		})

		Convey("When requests are malformed", func() {
			So(do(r, http.MethodPost, "/events", map[string]any{"hour": 3, "title": "x"}).Code, ShouldEqual, http.StatusBadRequest)
			So(do(r, http.MethodPost, "/events", map[string]any{"day": 0, "hour": 3}).Code, ShouldEqual, http.StatusBadRequest)
			So(do(r, http.MethodPost, "/events", map[string]any{"day": 0, "hour": 3, "title": "x", "bogus": 1}).Code, ShouldEqual, http.StatusBadRequest)

			w := do(r, http.MethodPost, "/events", map[string]any{"day": 0, "hour": 24, "title": "x"})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w).Code, ShouldEqual, "out_of_bounds")
		})

		Convey("When the event does not exist", func() {
			So(do(r, http.MethodGet, "/events/missing", nil).Code, ShouldEqual, http.StatusNotFound)
			So(do(r, http.MethodPut, "/events/missing", map[string]any{"title": "x"}).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_ReadOnlyPast(t *testing.T) {
	Convey("Given the API with past days read-only", t, func() {
		r := newRouter(t, service.WithColumnPolicy(service.PastReadOnly(fixedClock)))

		Convey("Then Monday rejects new events", func() {
			w := do(r, http.MethodPost, "/events", map[string]any{"day": 0, "hour": 9, "title": "Late"})
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("Then today accepts new events", func() {
			create(r, 2, 9, "Now")
		})
	})
}

func TestServer_MoveAndDelete(t *testing.T) {
	Convey("Given two events in the same column", t, func() {
		r := newRouter(t)
		mover := create(r, 4, 8, "Mover")
		target := create(r, 4, 12, "Target")

		Convey("When moving onto the other without confirmation", func() {
			w := do(r, http.MethodPost, "/events/"+mover.ID+"/move", map[string]any{"day": 4, "hour": 12})
			e := decodeError(w)

			Convey("Then the conflicts are listed and nothing changes", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(e.Code, ShouldEqual, "confirmation_required")
				So(len(e.Conflicts), ShouldEqual, 1)
				So(e.Conflicts[0].ID, ShouldEqual, target.ID)
				So(e.Conflicts[0].Action, ShouldEqual, "delete")
				So(do(r, http.MethodGet, "/events/"+target.ID, nil).Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When moving onto the other with confirmation", func() {
			w := do(r, http.MethodPost, "/events/"+mover.ID+"/move", map[string]any{"day": 4, "hour": 12, "confirm": true})

			Convey("Then the target is removed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(do(r, http.MethodGet, "/events/"+target.ID, nil).Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the move body leaves out the hour", func() {
			w := do(r, http.MethodPost, "/events/"+mover.ID+"/move", map[string]any{"day": 4})
			empty := do(r, http.MethodPost, "/events/"+mover.ID+"/move", map[string]any{})

			Convey("Then it is rejected and the event stays put", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(empty.Code, ShouldEqual, http.StatusBadRequest)
				var ev model.Event
				So(json.Unmarshal(do(r, http.MethodGet, "/events/"+mover.ID, nil).Body.Bytes(), &ev), ShouldBeNil)
				So(ev.Start, ShouldEqual, 8)
			})
		})

		Convey("When moving to another day", func() {
			w := do(r, http.MethodPost, "/events/"+mover.ID+"/move", map[string]any{"day": 5, "hour": 9})
			var res struct {
				After       model.Event `json:"after"`
				DayRejected bool        `json:"day_rejected"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)

			Convey("Then only the row changes", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(res.DayRejected, ShouldBeTrue)
				So(res.After.Day, ShouldEqual, 4)
				So(res.After.Start, ShouldEqual, 9)
			})
		})

		Convey("When the target is locked", func() {
			do(r, http.MethodPut, "/events/"+target.ID, map[string]any{"title": "Target", "locked": true})

			Convey("Then moving onto it is refused", func() {
				w := do(r, http.MethodPost, "/events/"+mover.ID+"/move", map[string]any{"day": 4, "hour": 12, "confirm": true})
				So(w.Code, ShouldEqual, http.StatusLocked)
			})

			Convey("Then it cannot be moved or deleted", func() {
				So(do(r, http.MethodPost, "/events/"+target.ID+"/move", map[string]any{"day": 4, "hour": 20}).Code, ShouldEqual, http.StatusLocked)
				So(do(r, http.MethodDelete, "/events/"+target.ID+"?confirm=true", nil).Code, ShouldEqual, http.StatusLocked)
			})
		})

		Convey("When deleting", func() {
			Convey("Then an unconfirmed delete keeps the event", func() {
				So(do(r, http.MethodDelete, "/events/"+target.ID, nil).Code, ShouldEqual, http.StatusConflict)
				So(do(r, http.MethodGet, "/events/"+target.ID, nil).Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then a confirmed delete removes it", func() {
				So(do(r, http.MethodDelete, "/events/"+target.ID+"?confirm=true", nil).Code, ShouldEqual, http.StatusNoContent)
				So(do(r, http.MethodGet, "/events/"+target.ID, nil).Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestServer_Resize(t *testing.T) {
	Convey("Given an event below a neighbour", t, func() {
		r := newRouter(t)
		ev := create(r, 5, 6, "Stretch")
		create(r, 5, 10, "Wall")

		Convey("When resizing in one call", func() {
			w := do(r, http.MethodPost, "/events/"+ev.ID+"/resize", map[string]any{"edge": "bottom", "row": 15})
			var res struct {
				After   model.Event `json:"after"`
				Changed bool        `json:"changed"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)

			Convey("Then it stops above the neighbour", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(res.Changed, ShouldBeTrue)
				So(res.After.Start, ShouldEqual, 6)
				So(res.After.Duration, ShouldEqual, 4)
			})
		})

		Convey("When resizing step by step", func() {
			So(do(r, http.MethodPost, "/resize/begin", map[string]any{"id": ev.ID, "edge": "top"}).Code, ShouldEqual, http.StatusOK)
			w := do(r, http.MethodPost, "/resize/update", map[string]any{"row": 3})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(do(r, http.MethodGet, "/resize", nil).Body.String(), ShouldContainSubstring, `"active":true`)

			w = do(r, http.MethodPost, "/resize/commit", nil)
			var res struct {
				After model.Event `json:"after"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)

			Convey("Then the top edge moved up", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(res.After.Start, ShouldEqual, 3)
				So(res.After.Duration, ShouldEqual, 4)
			})

			Convey("Then a second commit has nothing to apply", func() {
				So(do(r, http.MethodPost, "/resize/commit", nil).Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When a resize is cancelled", func() {
			do(r, http.MethodPost, "/resize/begin", map[string]any{"id": ev.ID, "edge": "bottom"})
			w := do(r, http.MethodPost, "/resize/cancel", nil)
			So(w.Body.String(), ShouldContainSubstring, `"cancelled":true`)
			So(do(r, http.MethodGet, "/resize", nil).Body.String(), ShouldContainSubstring, `"active":false`)
		})

		Convey("When the edge is unknown", func() {
			w := do(r, http.MethodPost, "/events/"+ev.ID+"/resize", map[string]any{"edge": "left", "row": 2})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the row is missing", func() {
			So(do(r, http.MethodPost, "/resize/update", map[string]any{}).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Persistence(t *testing.T) {
	Convey("Given the API with one event", t, func() {
		r := newRouter(t)
		ev := create(r, 0, 7, "Breakfast", func(b map[string]any) { b["repeat_forever"] = true })

		Convey("When loading before anything was saved", func() {
			w := do(r, http.MethodPost, "/load", nil)

			Convey("Then the schedule is unchanged", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(do(r, http.MethodGet, "/events/"+ev.ID, nil).Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When saving, deleting and loading", func() {
			So(do(r, http.MethodPost, "/save", nil).Code, ShouldEqual, http.StatusOK)
			So(do(r, http.MethodDelete, "/events/"+ev.ID+"?confirm=true", nil).Code, ShouldEqual, http.StatusNoContent)
			So(do(r, http.MethodPost, "/load", nil).Code, ShouldEqual, http.StatusOK)

			Convey("Then the saved event is back", func() {
				So(do(r, http.MethodGet, "/events/"+ev.ID, nil).Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When exporting", func() {
			w := do(r, http.MethodGet, "/export.ics", nil)

			Convey("Then a weekly calendar is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/calendar")
				body := w.Body.String()
				So(body, ShouldContainSubstring, "BEGIN:VCALENDAR")
				So(body, ShouldContainSubstring, "Breakfast")
				So(strings.Contains(body, "RRULE:FREQ=WEEKLY"), ShouldBeTrue)
			})
		})
	})
}
