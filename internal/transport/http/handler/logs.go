package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meditrack-api/internal/application/audit"
	"github.com/meditrack-api/internal/application/profile"
)

// timelineLimit caps the access-log timeline response.
const timelineLimit = 200

// LogHandler serves the per-profile access timeline.
type LogHandler struct {
	profiles profile.Service
	audit    audit.Service
}

func NewLogHandler(profiles profile.Service, auditSvc audit.Service) *LogHandler {
	return &LogHandler{profiles: profiles, audit: auditSvc}
}

func (h *LogHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	nid := chi.URLParam(r, "nid")
	if _, err := h.profiles.Get(r.Context(), nid); err != nil {
		writeDomainError(w, err)
		return
	}
	entries, err := h.audit.Timeline(r.Context(), nid, timelineLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, AccessLogsEnvelope{Data: entries})
}
