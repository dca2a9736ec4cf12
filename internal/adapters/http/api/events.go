package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	service "github.com/okian/weekgrid/internal/app"
	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/overlap"
	"github.com/okian/weekgrid/pkg/logger"
)

// IdempotencyHeader makes POST /events safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// EventsHandler handles single-event requests.
type EventsHandler struct {
	deps   EventDependencies
	logger logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, l logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, logger: l}
}

type detailsRequest struct {
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Locked        bool         `json:"locked"`
	RepeatCount   int          `json:"repeat_count"`
	RepeatForever bool         `json:"repeat_forever"`
	Color         *model.Color `json:"color,omitempty"`
}

func (d detailsRequest) editor() service.Editor {
	return service.StaticEditor(service.Details{
		Title:         d.Title,
		Description:   d.Description,
		Locked:        d.Locked,
		RepeatCount:   d.RepeatCount,
		RepeatForever: d.RepeatForever,
		Color:         d.Color,
	})
}

func (d detailsRequest) validate() error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return model.ErrEmptyTitle
	case d.RepeatCount < 0:
		return model.ErrInvalidRepeat
	}
	return nil
}

type createRequest struct {
	Day  *int `json:"day"`
	Hour *int `json:"hour"`
	detailsRequest
}

type createResponse struct {
	Event     model.Event `json:"event"`
	Duplicate bool        `json:"duplicate"`
}

type moveRequest struct {
	Day     *int `json:"day"`
	Hour    *int `json:"hour"`
	Confirm bool `json:"confirm"`
}

type resizeRequest struct {
	Edge string `json:"edge"`
	Row  *int   `json:"row"`
}

// confirmation answers every prompt with ok.
func confirmation(ok bool) overlap.Confirmer {
	if ok {
		return overlap.Always()
	}
	return overlap.Never()
}

// HandleGet handles GET /events/{id} requests.
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ev, err := h.deps.Event(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HandleCreate handles POST /events requests. Repeating a request with the
// same Idempotency-Key returns the first result with duplicate set.
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Day == nil || req.Hour == nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("day and hour are required"))
		return
	}
	if err := req.validate(); err != nil {
		writeServiceError(w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	ev, created, err := h.deps.CreateEventOnce(r.Context(), key, *req.Day, *req.Hour, req.editor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, createResponse{Event: ev, Duplicate: true})
		return
	}
	h.logger.Debug(r.Context(), "event created over http", logger.String("id", ev.ID))
	writeJSON(w, http.StatusCreated, createResponse{Event: ev})
}

// HandleEdit handles PUT /events/{id} requests.
func (h *EventsHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req detailsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeServiceError(w, err)
		return
	}
	ev, err := h.deps.EditEvent(r.Context(), mux.Vars(r)["id"], req.editor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HandleDelete handles DELETE /events/{id}?confirm=true requests.
func (h *EventsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := h.deps.DeleteEvent(r.Context(), mux.Vars(r)["id"], confirmation(confirmed)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMove handles POST /events/{id}/move requests. Without confirm, a
// move that would carve other events answers 409 with the conflict list.
func (h *EventsHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Day == nil || req.Hour == nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("day and hour are required"))
		return
	}
	res, err := h.deps.MoveEvent(r.Context(), mux.Vars(r)["id"], *req.Day, *req.Hour, confirmation(req.Confirm))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleResize handles POST /events/{id}/resize requests.
func (h *EventsHandler) HandleResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Row == nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("row is required"))
		return
	}
	res, err := h.deps.ResizeEvent(r.Context(), mux.Vars(r)["id"], req.Edge, *req.Row)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
