package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/meditrack-api/internal/application/access"
	"github.com/meditrack-api/internal/application/audit"
	"github.com/meditrack-api/internal/application/notify"
	"github.com/meditrack-api/internal/application/profile"
	"github.com/meditrack-api/internal/domain"
	"github.com/meditrack-api/internal/transport/http/middleware"
)

// AccessHandler serves the public emergency view and the OTP-gated doctor
// surface of a profile.
type AccessHandler struct {
	profiles profile.Service
	access   access.Service
	audit    audit.Service
	gate     notify.Gate
	baseURL  string
}

func NewAccessHandler(profiles profile.Service, accessSvc access.Service, auditSvc audit.Service, gate notify.Gate, baseURL string) *AccessHandler {
	return &AccessHandler{
		profiles: profiles,
		access:   accessSvc,
		audit:    auditSvc,
		gate:     gate,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	AccessCode string `json:"access_code"`
	Reason     string `json:"reason"`
}

// PublicView serves the limited emergency field set. No challenge required.
func (h *AccessHandler) PublicView(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), chi.URLParam(r, "nid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logAndNotify(r, p, domain.EventPublicView, "", "")
	writeJSON(w, http.StatusOK, p.Public())
}

func (h *AccessHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "session required")
		return
	}
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.profiles.Get(r.Context(), chi.URLParam(r, "nid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.access.IssueOTP(r.Context(), sid, p, req.Email); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "an access code has been sent to your email"})
}

func (h *AccessHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "session required")
		return
	}
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.profiles.Get(r.Context(), chi.URLParam(r, "nid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := h.access.VerifyOTP(r.Context(), sid, p, strings.TrimSpace(req.AccessCode), req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{
		Message:   "access granted",
		DoctorURL: fmt.Sprintf("%s/v1/profiles/%s/doctor", h.baseURL, p.NationalID),
	})
}

// DoctorView serves the full clinical record to a verified doctor.
func (h *AccessHandler) DoctorView(w http.ResponseWriter, r *http.Request) {
	p, g, ok := h.requireGrant(w, r)
	if !ok {
		return
	}
	h.logAndNotify(r, p, domain.EventDoctorView, g.VerifierEmail, g.Reason)

	// Owner contacts and raw device data stay off the doctor view.
	v := *p
	v.OwnerEmail = ""
	v.OwnerPhone = ""
	v.HealthData = nil
	writeJSON(w, http.StatusOK, v)
}

// DoctorHealthView serves the owner-synced health data to a verified doctor.
func (h *AccessHandler) DoctorHealthView(w http.ResponseWriter, r *http.Request) {
	p, g, ok := h.requireGrant(w, r)
	if !ok {
		return
	}
	h.logAndNotify(r, p, domain.EventDoctorHealthView, g.VerifierEmail, g.Reason)
	writeJSON(w, http.StatusOK, map[string]interface{}{"health_data": p.HealthData})
}

// Export streams the profile as a downloadable document.
func (h *AccessHandler) Export(w http.ResponseWriter, r *http.Request) {
	p, g, ok := h.requireGrant(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "html"
	}
	switch format {
	case "html":
		h.logAndNotify(r, p, domain.EventDownloadHTML, g.VerifierEmail, g.Reason)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "medical_profile_"+p.NationalID+".html"))
		if err := renderProfileHTML(w, p); err != nil {
			slog.Warn("failed to render profile export", "profile_id", p.NationalID, "err", err)
		}
	case "pdf":
		h.logAndNotify(r, p, domain.EventDownloadPDF, g.VerifierEmail, g.Reason)
		writeError(w, http.StatusNotImplemented, "pdf export is not available, use format=html")
	default:
		writeError(w, http.StatusBadRequest, "unknown export format")
	}
}

// requireGrant resolves the profile and checks the caller's session for a
// doctor grant. On failure the response is already written.
func (h *AccessHandler) requireGrant(w http.ResponseWriter, r *http.Request) (*domain.MedicalProfile, *domain.DoctorGrant, bool) {
	nid := chi.URLParam(r, "nid")
	p, err := h.profiles.Get(r.Context(), nid)
	if err != nil {
		writeDomainError(w, err)
		return nil, nil, false
	}
	sid, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.writeChallenge(w, nid)
		return nil, nil, false
	}
	g, err := h.access.Grant(r.Context(), sid, nid)
	if err != nil || !g.Granted {
		h.writeChallenge(w, nid)
		return nil, nil, false
	}
	return p, g, true
}

func (h *AccessHandler) writeChallenge(w http.ResponseWriter, nid string) {
	writeJSON(w, http.StatusUnauthorized, ChallengeEnvelope{
		Error:      "doctor access not granted for this profile",
		SendOTPURL: fmt.Sprintf("%s/v1/profiles/%s/access/send-otp", h.baseURL, nid),
	})
}

// logAndNotify records the audit entry and runs the owner notifier. Neither
// failure blocks the response that triggered them.
func (h *AccessHandler) logAndNotify(r *http.Request, p *domain.MedicalProfile, event domain.AccessEvent, email, reason string) {
	entry, err := h.audit.Record(r.Context(), p.NationalID, event, audit.Actor{
		Email:     email,
		Reason:    reason,
		IP:        middleware.RealIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		slog.Warn("failed to record access", "profile_id", p.NationalID, "event", event, "err", err)
		return
	}
	if err := h.gate.NotifyOwnerIfDue(r.Context(), p, entry); err != nil {
		slog.Warn("failed to notify owner", "profile_id", p.NationalID, "event", event, "err", err)
	}
}
