package api

import (
	"bytes"
	"net/http"

	"github.com/okian/weekgrid/pkg/logger"
)

// PersistHandler saves, loads and exports the schedule.
type PersistHandler struct {
	deps   PersistenceDependencies
	logger logger.Logger
}

// NewPersistHandler creates a new persistence handler.
func NewPersistHandler(deps PersistenceDependencies, l logger.Logger) *PersistHandler {
	return &PersistHandler{deps: deps, logger: l}
}

type statusResponse struct {
	Status string `json:"status"`
}

// HandleSave handles POST /save requests.
func (h *PersistHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Save(r.Context()); err != nil {
		h.logger.Error(r.Context(), "save failed", logger.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "saved"})
}

// HandleLoad handles POST /load requests. Nothing saved yet still answers 200.
func (h *PersistHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Load(r.Context()); err != nil {
		h.logger.Error(r.Context(), "load failed", logger.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "loaded"})
}

// HandleExport handles GET /export.ics requests.
func (h *PersistHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.deps.ExportICS(r.Context(), &buf); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="weekgrid.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
