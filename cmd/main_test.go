package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/weekgrid/internal/adapters/repository"
	"github.com/okian/weekgrid/internal/adapters/ws"
	service "github.com/okian/weekgrid/internal/app"
	"github.com/okian/weekgrid/internal/config"
	"github.com/okian/weekgrid/pkg/logger"
	"github.com/okian/weekgrid/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type countingAutosaver struct {
	calls atomic.Int32
}

func (c *countingAutosaver) Autosave(context.Context, string) bool {
	c.calls.Add(1)
	return true
}

func TestServiceOptions(t *testing.T) {
	convey.Convey("Given a default configuration", t, func() {
		cfg := config.New()
		repo := repository.NewFileStore(filepath.Join(t.TempDir(), "week.json"))
		log := logger.Get()

		convey.Convey("When the start date is set", func() {
			cfg.StartDate = "2024-05-15"
			opts, err := serviceOptions(cfg, repo, ws.NewHub(log), log)
			convey.So(err, convey.ShouldBeNil)

			svc := service.New(opts...)
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop(context.Background()) //nolint:errcheck // test cleanup

			convey.Convey("Then the service opens on that week", func() {
				view, err := svc.Week()
				convey.So(err, convey.ShouldBeNil)
				convey.So(view.Monday, convey.ShouldEqual, "2024-05-13")
			})
		})

		convey.Convey("When past days are read-only and the week is long gone", func() {
			cfg.StartDate = "2001-01-01"
			cfg.ReadOnlyPast = true
			opts, err := serviceOptions(cfg, repo, ws.NewHub(log), log)
			convey.So(err, convey.ShouldBeNil)

			svc := service.New(opts...)
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop(context.Background()) //nolint:errcheck // test cleanup

			convey.Convey("Then every column is read-only", func() {
				view, err := svc.Week()
				convey.So(err, convey.ShouldBeNil)
				convey.So(view.ReadOnly, convey.ShouldResemble, []bool{true, true, true, true, true, true, true})
			})
		})

		convey.Convey("When the start date is malformed", func() {
			cfg.StartDate = "soon"
			_, err := serviceOptions(cfg, repo, ws.NewHub(log), log)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMetricsOptions(t *testing.T) {
	convey.Convey("Given a metrics section with a custom interval and label", t, func() {
		cfg := config.New().Metrics
		cfg.RefreshInterval = 2 * time.Second
		cfg.Labels = map[string]string{"instance": "test"}
		before := metrics.RefreshInterval()
		defer metrics.Configure(metrics.WithRefreshInterval(before))

		convey.Convey("When the collectors are configured from it", func() {
			metrics.Configure(metricsOptions(cfg)...)
			metrics.RecordOperation("create", "ok")

			convey.Convey("Then the interval and names follow the section", func() {
				convey.So(metrics.RefreshInterval(), convey.ShouldEqual, 2*time.Second)
				families, err := metrics.GetRegistry().Gather()
				convey.So(err, convey.ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				convey.So(names["weekgrid_schedule_operations_total"], convey.ShouldBeTrue)
			})
		})
	})
}

func TestNewRouter(t *testing.T) {
	convey.Convey("Given the full router", t, func() {
		ctx := context.Background()
		log := logger.Get()
		hub := ws.NewHub(log)
		svc := service.New(
			service.WithRepository(repository.NewFileStore(filepath.Join(t.TempDir(), "week.json"))),
			service.WithNotifier(hub),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx) //nolint:errcheck // test cleanup

		r := newRouter(ctx, svc, hub)

		convey.Convey("Then API, docs and metrics are served", func() {
			for _, path := range []string{"/healthz", "/week", "/openapi.yaml", "/api-docs", "/metrics"} {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then the websocket route rejects plain requests", func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", http.NoBody))
			convey.So(w.Code, convey.ShouldNotEqual, http.StatusNotFound)
			convey.So(w.Code, convey.ShouldBeGreaterThanOrEqualTo, http.StatusBadRequest)
		})
	})
}

func TestStartAutosave(t *testing.T) {
	convey.Convey("Given an autosave target", t, func() {
		ctx := context.Background()
		log := logger.Get()
		target := &countingAutosaver{}

		convey.Convey("When the schedule is empty", func() {
			c, err := startAutosave(ctx, "", target, log)

			convey.Convey("Then autosave is disabled", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(c, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the schedule does not parse", func() {
			_, err := startAutosave(ctx, "whenever", target, log)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the schedule ticks every second", func() {
			c, err := startAutosave(ctx, "@every 1s", target, log)
			convey.So(err, convey.ShouldBeNil)
			defer c.Stop()

			convey.Convey("Then the target is saved", func() {
				deadline := time.Now().Add(5 * time.Second)
				for target.calls.Load() == 0 && time.Now().Before(deadline) {
					time.Sleep(50 * time.Millisecond)
				}
				convey.So(target.calls.Load(), convey.ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			startSystemMetricsUpdater(ctx, 10*time.Millisecond)
			close(done)
		}()
		time.Sleep(30 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("metrics updater did not stop")
		}
	})
}
