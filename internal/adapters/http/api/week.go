package api

import (
	"fmt"
	"net/http"

	"github.com/okian/weekgrid/internal/domain/recurrence"
)

// WeekHandler serves the visible week and moves between weeks.
type WeekHandler struct {
	deps WeekDependencies
}

// NewWeekHandler creates a new week handler.
func NewWeekHandler(deps WeekDependencies) *WeekHandler {
	return &WeekHandler{deps: deps}
}

type gotoRequest struct {
	Date string `json:"date"`
}

// HandleGetWeek handles GET /week requests.
func (h *WeekHandler) HandleGetWeek(w http.ResponseWriter, _ *http.Request) {
	view, err := h.deps.Week()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleNextWeek handles POST /week/next requests.
func (h *WeekHandler) HandleNextWeek(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.NextWeek(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandlePrevWeek handles POST /week/prev requests.
func (h *WeekHandler) HandlePrevWeek(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.PrevWeek(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGotoWeek handles POST /week/goto requests. Any date of the target
// week may be given.
func (h *WeekHandler) HandleGotoWeek(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	date, err := recurrence.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("date %q: %w", req.Date, ErrBadRequest))
		return
	}
	view, err := h.deps.GotoWeek(r.Context(), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
