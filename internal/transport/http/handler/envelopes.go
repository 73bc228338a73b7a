package handler

import (
	"encoding/json"
	"net/http"

	"github.com/meditrack-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// VerifyEnvelope wraps a successful OTP verification. DoctorURL is where the
// now-granted doctor view is served.
type VerifyEnvelope struct {
	Message   string `json:"message"`
	DoctorURL string `json:"doctor_url"`
}

// ChallengeEnvelope is the 401 answer on the doctor surface when no grant is
// held; SendOTPURL points at the challenge entry point.
type ChallengeEnvelope struct {
	Error      string `json:"error"`
	SendOTPURL string `json:"send_otp_url"`
}

// PaginatedProfilesEnvelope wraps profile list responses. NextCursor is empty
// on the last page.
type PaginatedProfilesEnvelope struct {
	Data       []domain.MedicalProfile `json:"data"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

// AccessLogsEnvelope wraps the per-profile access timeline, newest first.
type AccessLogsEnvelope struct {
	Data []domain.AccessLogEntry `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
