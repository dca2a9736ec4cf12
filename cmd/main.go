package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/okian/weekgrid/internal/adapters/http/api"
	"github.com/okian/weekgrid/internal/adapters/http/swagger"
	"github.com/okian/weekgrid/internal/adapters/repository"
	"github.com/okian/weekgrid/internal/adapters/ws"
	service "github.com/okian/weekgrid/internal/app"
	"github.com/okian/weekgrid/internal/config"
	"github.com/okian/weekgrid/pkg/logger"
	"github.com/okian/weekgrid/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "weekgrid stopped with error", logger.Error(err))
		os.Exit(1) //nolint:gocritic // deferred stop is irrelevant on exit
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.Configure(metricsOptions(cfg.Metrics)...)

	repo, err := repository.Open(ctx, repository.Settings{
		Backend:    cfg.StoreBackend,
		DataPath:   cfg.DataPath,
		SQLitePath: cfg.SQLitePath,
		RedisAddr:  cfg.RedisAddr,
		RedisKey:   cfg.RedisKey,
	}, repository.WithLogger(log.Named("repository")))
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	hub := ws.NewHub(log)
	opts, err := serviceOptions(cfg, repo, hub, log)
	if err != nil {
		return err
	}
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	autosave, err := startAutosave(ctx, cfg.AutosaveCron, svc, log)
	if err != nil {
		_ = svc.Stop(context.WithoutCancel(ctx))
		return err
	}

	go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("backend", repo.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if autosave != nil {
		<-autosave.Stop().Done()
		// One last snapshot so the writer drains it before Stop returns.
		svc.Autosave(shutdownCtx, "shutdown")
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service stop failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// metricsOptions maps the metrics section onto collector options.
func metricsOptions(cfg config.Metrics) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.Enabled),
		metrics.WithNamespace(cfg.Namespace),
		metrics.WithSubsystem(cfg.Subsystem),
		metrics.WithRefreshInterval(cfg.RefreshInterval),
		metrics.WithHistogramBuckets(cfg.Buckets),
		metrics.WithCustomLabels(cfg.Labels),
	}
}

// serviceOptions maps configuration onto service options.
func serviceOptions(cfg *config.Config, repo repository.Repository, notifier service.Notifier, log logger.Logger) ([]service.Option, error) {
	start, err := cfg.Start()
	if err != nil {
		return nil, err
	}
	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithRepository(repo),
		service.WithNotifier(notifier),
		service.WithStartDate(start),
		service.WithSnapshotQueueSize(cfg.SnapshotQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithCalendarName(cfg.ICSCalendarName),
	}
	if cfg.ReadOnlyPast {
		opts = append(opts, service.WithColumnPolicy(service.PastReadOnly(time.Now)))
	}
	return opts, nil
}

// newRouter registers the API, the docs and the live update socket.
func newRouter(ctx context.Context, svc *service.Service, hub *ws.Hub) *mux.Router {
	r := mux.NewRouter()
	api.NewServer(svc, svc).Register(ctx, r)
	swagger.Register(ctx, r)
	r.HandleFunc("/ws", ws.Handler(hub)).Methods(http.MethodGet)
	return r
}

// autosaver is the part of the service the scheduler drives.
type autosaver interface {
	Autosave(ctx context.Context, reason string) bool
}

// startAutosave queues a snapshot on every tick of schedule. An empty
// schedule disables autosave and returns a nil scheduler.
func startAutosave(ctx context.Context, schedule string, svc autosaver, log logger.Logger) (*cron.Cron, error) {
	if schedule == "" {
		log.Info(ctx, "autosave disabled")
		return nil, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if !svc.Autosave(ctx, "cron") {
			log.Warn(ctx, "autosave skipped")
		}
	}); err != nil {
		return nil, fmt.Errorf("autosave schedule %q: %w", schedule, err)
	}
	c.Start()
	log.Info(ctx, "autosave scheduled", logger.String("schedule", schedule))
	return c, nil
}

// startSystemMetricsUpdater refreshes runtime gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
