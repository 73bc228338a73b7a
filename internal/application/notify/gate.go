package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/meditrack-api/internal/domain"
)

// LogRepo is the slice of the access log the gate needs: cooldown lookups and
// the single permitted mutation.
type LogRepo interface {
	HasNotifiedSince(ctx context.Context, profileID string, event domain.AccessEvent, since time.Time) (bool, error)
	MarkNotified(ctx context.Context, logID string) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Gate rate-limits "your profile was accessed" alerts to the profile owner.
// The cooldown is scoped per (profile, event type) pair; a second access of
// the same kind inside the window is suppressed, even by a different doctor.
type Gate interface {
	// NotifyOwnerIfDue sends the owner alert for entry unless one of the same
	// kind went out within the cooldown. Callers on the serving path discard
	// the error; a failed dispatch leaves notified=false so a later event of
	// the same kind can retry.
	NotifyOwnerIfDue(ctx context.Context, profile *domain.MedicalProfile, entry *domain.AccessLogEntry) error
}

type gate struct {
	logs     LogRepo
	mailer   Mailer
	sms      SMSSender // optional SMS fallback, may be nil
	cooldown time.Duration
}

func NewGate(logs LogRepo, mailer Mailer, sms SMSSender, cooldown time.Duration) Gate {
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	return &gate{logs: logs, mailer: mailer, sms: sms, cooldown: cooldown}
}

func (g *gate) NotifyOwnerIfDue(ctx context.Context, profile *domain.MedicalProfile, entry *domain.AccessLogEntry) error {
	viaEmail := profile.OwnerEmail != ""
	viaSMS := !viaEmail && profile.OwnerPhone != "" && g.sms != nil
	if !viaEmail && !viaSMS {
		return nil
	}

	since := time.Now().Add(-g.cooldown)
	recent, err := g.logs.HasNotifiedSince(ctx, profile.NationalID, entry.EventType, since)
	if err != nil {
		return fmt.Errorf("cooldown lookup: %w", err)
	}
	if recent {
		return nil
	}

	if viaEmail {
		subject := fmt.Sprintf("Access to your medical profile (%s)", profile.FullName)
		if err := g.mailer.SendEmail(profile.OwnerEmail, subject, emailBody(profile, entry)); err != nil {
			return fmt.Errorf("dispatch owner notification: %w", err)
		}
	} else {
		if err := g.sms.SendSMS(ctx, profile.OwnerPhone, smsBody(profile, entry)); err != nil {
			return fmt.Errorf("dispatch owner SMS: %w", err)
		}
	}

	if err := g.logs.MarkNotified(ctx, entry.LogID); err != nil {
		return fmt.Errorf("mark entry notified: %w", err)
	}
	entry.Notified = true
	return nil
}

func emailBody(profile *domain.MedicalProfile, entry *domain.AccessLogEntry) string {
	return fmt.Sprintf(
		"Hello %s,\n\n"+
			"Your medical profile was accessed.\n"+
			"Event: %s\n"+
			"When: %s\n"+
			"By: %s\n"+
			"Reason: %s\n"+
			"IP: %s\n"+
			"User-Agent: %s\n\n"+
			"If this was unexpected, please contact support.",
		profile.FullName,
		entry.EventType.Label(),
		entry.CreatedAt.Format("2006-01-02 15:04 MST"),
		orDefault(entry.ViewerEmail, "unknown"),
		orDefault(entry.Reason, "N/A"),
		orDefault(entry.IPAddress, "N/A"),
		truncate(entry.UserAgent, 200),
	)
}

func smsBody(profile *domain.MedicalProfile, entry *domain.AccessLogEntry) string {
	return fmt.Sprintf("MediTrack: your medical profile (%s) was accessed. Event: %s at %s by %s.",
		profile.FullName,
		entry.EventType.Label(),
		entry.CreatedAt.Format("2006-01-02 15:04 MST"),
		orDefault(entry.ViewerEmail, "unknown"),
	)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
