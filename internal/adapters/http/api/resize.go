package api

import (
	"errors"
	"net/http"
)

// ResizeHandler drives a resize gesture one step per request.
type ResizeHandler struct {
	deps ResizeDependencies
}

// NewResizeHandler creates a new resize handler.
func NewResizeHandler(deps ResizeDependencies) *ResizeHandler {
	return &ResizeHandler{deps: deps}
}

type beginRequest struct {
	ID   string `json:"id"`
	Edge string `json:"edge"`
}

type updateRequest struct {
	Row *int `json:"row"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// HandleState handles GET /resize requests.
func (h *ResizeHandler) HandleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.ResizeState())
}

// HandleBegin handles POST /resize/begin requests.
func (h *ResizeHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	st, err := h.deps.BeginResize(r.Context(), req.ID, req.Edge)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleUpdate handles POST /resize/update requests.
func (h *ResizeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Row == nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("row is required"))
		return
	}
	st, err := h.deps.UpdateResize(r.Context(), *req.Row)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleCommit handles POST /resize/commit requests.
func (h *ResizeHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.CommitResize(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCancel handles POST /resize/cancel requests.
func (h *ResizeHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cancelResponse{Cancelled: h.deps.CancelResize(r.Context())})
}
