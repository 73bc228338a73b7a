package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/meditrack-api/internal/application/profile"
	"github.com/meditrack-api/internal/domain"
)

// ProfileHandler handles profile registry CRUD, the owner health-sync
// endpoint, and registry stats.
type ProfileHandler struct {
	svc profile.Service
}

func NewProfileHandler(svc profile.Service) *ProfileHandler { return &ProfileHandler{svc: svc} }

func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "nid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cursor := r.URL.Query().Get("cursor")
	profiles, next, err := h.svc.List(r.Context(), int32(limit), cursor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if profiles == nil {
		profiles = []domain.MedicalProfile{}
	}
	writeJSON(w, http.StatusOK, PaginatedProfilesEnvelope{Data: profiles, NextCursor: next})
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "nid"), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "nid")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "profile deleted"})
}

type healthSyncRequest struct {
	OwnerEmail string                 `json:"owner_email"`
	Data       map[string]interface{} `json:"data"`
}

func (h *ProfileHandler) HealthSync(w http.ResponseWriter, r *http.Request) {
	var req healthSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Data) == 0 {
		writeError(w, http.StatusBadRequest, "no health data in payload")
		return
	}
	if err := h.svc.SyncHealthData(r.Context(), chi.URLParam(r, "nid"), req.OwnerEmail, req.Data); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "health data synced"})
}

func (h *ProfileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
