package domain

import "time"

// AccessEvent is the kind of profile access being audited.
type AccessEvent string

const (
	EventPublicView       AccessEvent = "public_view"
	EventDoctorView       AccessEvent = "doctor_view"
	EventDoctorHealthView AccessEvent = "doctor_health_view"
	EventDownloadHTML     AccessEvent = "download_html"
	EventDownloadPDF      AccessEvent = "download_pdf"
)

var eventLabels = map[AccessEvent]string{
	EventPublicView:       "Public Profile Viewed",
	EventDoctorView:       "Doctor Full View",
	EventDoctorHealthView: "Doctor Health Monitoring View",
	EventDownloadHTML:     "Doctor Download HTML",
	EventDownloadPDF:      "Doctor Download PDF",
}

// Label returns the human-readable name used in notification emails.
func (e AccessEvent) Label() string {
	if l, ok := eventLabels[e]; ok {
		return l
	}
	return string(e)
}

// Valid reports whether e is a known event kind.
func (e AccessEvent) Valid() bool {
	_, ok := eventLabels[e]
	return ok
}

// AccessLogEntry is one append-only audit record of a profile access.
// Entries are immutable once written except for the Notified flag, which the
// notifier gate flips at most once after a successful owner alert.
type AccessLogEntry struct {
	LogID       string      `json:"id" dynamodbav:"log_id"`
	ProfileID   string      `json:"profile_id" dynamodbav:"profile_id"` // national_id
	EventType   AccessEvent `json:"event_type" dynamodbav:"event_type"`
	ViewerEmail string      `json:"viewer_email,omitempty" dynamodbav:"viewer_email"`
	Reason      string      `json:"reason,omitempty" dynamodbav:"reason"`
	IPAddress   string      `json:"ip_address,omitempty" dynamodbav:"ip_address"`
	UserAgent   string      `json:"user_agent,omitempty" dynamodbav:"user_agent"`
	CreatedAt   time.Time   `json:"created" dynamodbav:"created_at"`
	Notified    bool        `json:"notified" dynamodbav:"notified"`
}
