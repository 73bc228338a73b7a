package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meditrack-api/internal/domain"
	"github.com/meditrack-api/internal/pkg/validate"
)

// Repo is the profile persistence the service needs.
type Repo interface {
	Put(ctx context.Context, p *domain.MedicalProfile) error
	Get(ctx context.Context, nationalID string) (*domain.MedicalProfile, error)
	Update(ctx context.Context, nationalID string, updates map[string]interface{}) error
	Delete(ctx context.Context, nationalID string) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.MedicalProfile, string, error)
	Count(ctx context.Context) (int64, error)
}

// LogRepo is the slice of the access log the service needs for the deletion
// cascade and aggregate stats.
type LogRepo interface {
	DeleteByProfile(ctx context.Context, profileID string) error
	CountByEvent(ctx context.Context) (map[domain.AccessEvent]int64, error)
}

// Stats is the registry-wide aggregate served to administrators.
type Stats struct {
	Profiles      int64            `json:"profiles"`
	AccessesTotal int64            `json:"accesses_total"`
	ByEvent       map[string]int64 `json:"by_event"`
}

type Service interface {
	Create(ctx context.Context, req *domain.CreateProfileRequest) (*domain.MedicalProfile, error)
	Get(ctx context.Context, nationalID string) (*domain.MedicalProfile, error)
	Update(ctx context.Context, nationalID string, req *domain.UpdateProfileRequest) (*domain.MedicalProfile, error)
	// Delete removes the profile and cascades into its access log entries.
	Delete(ctx context.Context, nationalID string) error
	List(ctx context.Context, limit int32, cursor string) ([]domain.MedicalProfile, string, error)
	// SyncHealthData merges a device payload into the profile's health data.
	// The caller must prove ownership by presenting the profile's owner email.
	SyncHealthData(ctx context.Context, nationalID, ownerEmail string, payload map[string]interface{}) error
	HealthData(ctx context.Context, nationalID string) (map[string]interface{}, error)
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	repo Repo
	logs LogRepo
}

func NewService(repo Repo, logs LogRepo) Service {
	return &service{repo: repo, logs: logs}
}

func (s *service) Create(ctx context.Context, req *domain.CreateProfileRequest) (*domain.MedicalProfile, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	p := &domain.MedicalProfile{
		NationalID:        req.NationalID,
		FullName:          req.FullName,
		DateOfBirth:       req.DateOfBirth,
		Country:           req.Country,
		Gender:            req.Gender,
		BloodType:         req.BloodType,
		Allergies:         req.Allergies,
		MedicalConditions: req.MedicalConditions,
		Medications:       req.Medications,
		EmergencyContact:  req.EmergencyContact,
		EmergencyPhone:    req.EmergencyPhone,
		OwnerEmail:        req.OwnerEmail,
		OwnerPhone:        req.OwnerPhone,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) Get(ctx context.Context, nationalID string) (*domain.MedicalProfile, error) {
	return s.repo.Get(ctx, nationalID)
}

func (s *service) Update(ctx context.Context, nationalID string, req *domain.UpdateProfileRequest) (*domain.MedicalProfile, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	updates := updateFields(req)
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, nationalID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, nationalID)
}

func (s *service) Delete(ctx context.Context, nationalID string) error {
	if _, err := s.repo.Get(ctx, nationalID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, nationalID); err != nil {
		return err
	}
	// Best effort: orphaned log entries are harmless, they reference a
	// profile that no longer resolves.
	if err := s.logs.DeleteByProfile(ctx, nationalID); err != nil {
		slog.Warn("failed to cascade access log deletion", "profile_id", nationalID, "err", err)
	}
	return nil
}

func (s *service) List(ctx context.Context, limit int32, cursor string) ([]domain.MedicalProfile, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ScanPage(ctx, limit, cursor)
}

// healthDataKeys whitelists what a device sync may write. Everything else in
// the payload is silently dropped.
var healthDataKeys = map[string]bool{
	"prefs":         true,
	"meds":          true,
	"bp":            true,
	"hr":            true,
	"steps":         true,
	"water":         true,
	"habits":        true,
	"snapshot_html": true,
	"synced_at":     true,
}

func (s *service) SyncHealthData(ctx context.Context, nationalID, ownerEmail string, payload map[string]interface{}) error {
	p, err := s.repo.Get(ctx, nationalID)
	if err != nil {
		return err
	}
	if p.OwnerEmail == "" || p.OwnerEmail != ownerEmail {
		return fmt.Errorf("owner email does not match: %w", domain.ErrForbidden)
	}

	merged := make(map[string]interface{}, len(p.HealthData)+len(payload))
	for k, v := range p.HealthData {
		merged[k] = v
	}
	for k, v := range payload {
		if healthDataKeys[k] {
			merged[k] = v
		}
	}
	if _, ok := merged["synced_at"]; !ok {
		merged["synced_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	return s.repo.Update(ctx, nationalID, map[string]interface{}{"health_data": merged})
}

func (s *service) HealthData(ctx context.Context, nationalID string) (map[string]interface{}, error) {
	p, err := s.repo.Get(ctx, nationalID)
	if err != nil {
		return nil, err
	}
	return p.HealthData, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	profiles, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	byEvent, err := s.logs.CountByEvent(ctx)
	if err != nil {
		return nil, err
	}
	out := &Stats{Profiles: profiles, ByEvent: make(map[string]int64, len(byEvent))}
	for ev, n := range byEvent {
		out.ByEvent[string(ev)] = n
		out.AccessesTotal += n
	}
	return out, nil
}

func updateFields(req *domain.UpdateProfileRequest) map[string]interface{} {
	updates := make(map[string]interface{})
	set := func(field string, v *string) {
		if v != nil {
			updates[field] = *v
		}
	}
	set("full_name", req.FullName)
	set("date_of_birth", req.DateOfBirth)
	set("country", req.Country)
	set("gender", req.Gender)
	set("blood_type", req.BloodType)
	set("allergies", req.Allergies)
	set("medical_conditions", req.MedicalConditions)
	set("medications", req.Medications)
	set("emergency_contact", req.EmergencyContact)
	set("emergency_phone", req.EmergencyPhone)
	set("owner_email", req.OwnerEmail)
	set("owner_phone", req.OwnerPhone)
	return updates
}
