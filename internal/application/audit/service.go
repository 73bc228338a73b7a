package audit

import (
	"context"
	"time"

	"github.com/meditrack-api/internal/domain"
	"github.com/meditrack-api/internal/pkg/id"
)

// LogRepo is the durable append-only store behind the audit trail.
type LogRepo interface {
	Put(ctx context.Context, e *domain.AccessLogEntry) error
	ListByProfile(ctx context.Context, profileID string, limit int32) ([]domain.AccessLogEntry, error)
}

// Actor describes who performed an access and from where.
type Actor struct {
	Email     string
	Reason    string
	IP        string
	UserAgent string
}

type Service interface {
	// Record appends one audit entry. Callers on the serving path discard the
	// error: an audit outage must never block access to the clinical data.
	Record(ctx context.Context, profileID string, event domain.AccessEvent, actor Actor) (*domain.AccessLogEntry, error)
	// Timeline returns the newest entries first.
	Timeline(ctx context.Context, profileID string, limit int32) ([]domain.AccessLogEntry, error)
}

type service struct {
	repo LogRepo
}

func NewService(repo LogRepo) Service {
	return &service{repo: repo}
}

func (s *service) Record(ctx context.Context, profileID string, event domain.AccessEvent, actor Actor) (*domain.AccessLogEntry, error) {
	e := &domain.AccessLogEntry{
		LogID:       id.New(),
		ProfileID:   profileID,
		EventType:   event,
		ViewerEmail: actor.Email,
		Reason:      actor.Reason,
		IPAddress:   actor.IP,
		UserAgent:   actor.UserAgent,
		CreatedAt:   time.Now().UTC(),
		Notified:    false,
	}
	if err := s.repo.Put(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *service) Timeline(ctx context.Context, profileID string, limit int32) ([]domain.AccessLogEntry, error) {
	return s.repo.ListByProfile(ctx, profileID, limit)
}
