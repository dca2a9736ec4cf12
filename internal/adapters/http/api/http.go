// Package api exposes the schedule over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	service "github.com/okian/weekgrid/internal/app"
	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/move"
	"github.com/okian/weekgrid/internal/domain/overlap"
	"github.com/okian/weekgrid/internal/domain/resize"
	"github.com/okian/weekgrid/internal/domain/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Schedule is everything the handlers need from the service.
type Schedule interface {
	WeekDependencies
	EventDependencies
	ResizeDependencies
	PersistenceDependencies
}

// WeekDependencies covers reading and navigating the visible week.
type WeekDependencies interface {
	Week() (types.WeekView, error)
	GotoWeek(ctx context.Context, date time.Time) (types.WeekView, error)
	NextWeek(ctx context.Context) (types.WeekView, error)
	PrevWeek(ctx context.Context) (types.WeekView, error)
}

// EventDependencies covers single-event operations.
type EventDependencies interface {
	Event(id string) (model.Event, error)
	CreateEventOnce(ctx context.Context, key string, day, hour int, editor service.Editor) (model.Event, bool, error)
	EditEvent(ctx context.Context, id string, editor service.Editor) (model.Event, error)
	DeleteEvent(ctx context.Context, id string, confirm overlap.Confirmer) error
	MoveEvent(ctx context.Context, id string, day, hour int, confirm overlap.Confirmer) (move.Result, error)
	ResizeEvent(ctx context.Context, id, edge string, row int) (resize.Result, error)
}

// ResizeDependencies covers the step-by-step resize gesture.
type ResizeDependencies interface {
	BeginResize(ctx context.Context, id, edge string) (resize.State, error)
	UpdateResize(ctx context.Context, row int) (resize.State, error)
	CommitResize(ctx context.Context) (resize.Result, error)
	CancelResize(ctx context.Context) bool
	ResizeState() resize.State
}

// PersistenceDependencies covers saving, loading and exporting.
type PersistenceDependencies interface {
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	ExportICS(ctx context.Context, w io.Writer) error
}

// Server wires HTTP routes for the schedule API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	weekHandler    *WeekHandler
	eventsHandler  *EventsHandler
	resizeHandler  *ResizeHandler
	persistHandler *PersistHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Schedule, statsProvider StatsProvider, opts ...Option) *Server {
	o := buildOptions(opts)
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		weekHandler:    NewWeekHandler(deps),
		eventsHandler:  NewEventsHandler(deps, o.logger),
		resizeHandler:  NewResizeHandler(deps),
		persistHandler: NewPersistHandler(deps, o.logger),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.Handle("/metrics", s.healthHandler.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	r.HandleFunc("/week", MetricsMiddleware(s.weekHandler.HandleGetWeek, "week")).Methods(http.MethodGet)
	r.HandleFunc("/week/next", MetricsMiddleware(s.weekHandler.HandleNextWeek, "week_next")).Methods(http.MethodPost)
	r.HandleFunc("/week/prev", MetricsMiddleware(s.weekHandler.HandlePrevWeek, "week_prev")).Methods(http.MethodPost)
	r.HandleFunc("/week/goto", MetricsMiddleware(s.weekHandler.HandleGotoWeek, "week_goto")).Methods(http.MethodPost)

	r.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandleCreate, "events_create")).Methods(http.MethodPost)
	r.HandleFunc("/events/{id}", MetricsMiddleware(s.eventsHandler.HandleGet, "events_get")).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}", MetricsMiddleware(s.eventsHandler.HandleEdit, "events_edit")).Methods(http.MethodPut)
	r.HandleFunc("/events/{id}", MetricsMiddleware(s.eventsHandler.HandleDelete, "events_delete")).Methods(http.MethodDelete)
	r.HandleFunc("/events/{id}/move", MetricsMiddleware(s.eventsHandler.HandleMove, "events_move")).Methods(http.MethodPost)
	r.HandleFunc("/events/{id}/resize", MetricsMiddleware(s.eventsHandler.HandleResize, "events_resize")).Methods(http.MethodPost)

	r.HandleFunc("/resize", MetricsMiddleware(s.resizeHandler.HandleState, "resize_state")).Methods(http.MethodGet)
	r.HandleFunc("/resize/begin", MetricsMiddleware(s.resizeHandler.HandleBegin, "resize_begin")).Methods(http.MethodPost)
	r.HandleFunc("/resize/update", MetricsMiddleware(s.resizeHandler.HandleUpdate, "resize_update")).Methods(http.MethodPost)
	r.HandleFunc("/resize/commit", MetricsMiddleware(s.resizeHandler.HandleCommit, "resize_commit")).Methods(http.MethodPost)
	r.HandleFunc("/resize/cancel", MetricsMiddleware(s.resizeHandler.HandleCancel, "resize_cancel")).Methods(http.MethodPost)

	r.HandleFunc("/save", MetricsMiddleware(s.persistHandler.HandleSave, "save")).Methods(http.MethodPost)
	r.HandleFunc("/load", MetricsMiddleware(s.persistHandler.HandleLoad, "load")).Methods(http.MethodPost)
	r.HandleFunc("/export.ics", MetricsMiddleware(s.persistHandler.HandleExport, "export")).Methods(http.MethodGet)
}

type errorResponse struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Conflicts []types.Conflict `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates a service error into a status code and body.
func writeServiceError(w http.ResponseWriter, err error) {
	var confirm *service.ConfirmationError
	if errors.As(err, &confirm) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:      "confirmation_required",
			Message:   confirm.Message,
			Conflicts: confirm.Conflicts,
		})
		return
	}
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrOutOfBounds):
		return http.StatusBadRequest, "out_of_bounds"
	case errors.Is(err, model.ErrEmptyTitle), errors.Is(err, model.ErrInvalidRepeat),
		errors.Is(err, resize.ErrInvalidEdge), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrColumnReadOnly):
		return http.StatusForbidden, "read_only"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrLockedSource), errors.Is(err, model.ErrLockedConflict):
		return http.StatusLocked, "locked"
	case errors.Is(err, model.ErrCellOccupied):
		return http.StatusConflict, "occupied"
	case errors.Is(err, model.ErrCancelled):
		return http.StatusConflict, "confirmation_required"
	case errors.Is(err, model.ErrResizeInactive):
		return http.StatusConflict, "resize_inactive"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%v: %w", err, ErrBadRequest)
	}
	return nil
}
