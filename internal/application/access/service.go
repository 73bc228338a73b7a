package access

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/meditrack-api/internal/domain"
)

// Config tunes the doctor-access challenge flow.
type Config struct {
	TTL         time.Duration // challenge lifetime, default 5 minutes
	MaxAttempts int           // wrong-code guesses before lockout, default 5
}

// SessionStore is the per-session challenge and grant state the service needs.
// State is keyed by (session, profile) and must expire with the session.
type SessionStore interface {
	PutChallenge(ctx context.Context, sessionID, profileID string, c *domain.OtpChallenge) error
	GetChallenge(ctx context.Context, sessionID, profileID string) (*domain.OtpChallenge, error)
	DeleteChallenge(ctx context.Context, sessionID, profileID string) error
	PutGrant(ctx context.Context, sessionID, profileID string, g *domain.DoctorGrant) error
	GetGrant(ctx context.Context, sessionID, profileID string) (*domain.DoctorGrant, error)
}

// Mailer dispatches the one-time code.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type Service interface {
	// IssueOTP creates a fresh challenge for (session, profile) and emails the
	// code. Any prior challenge for the pair is overwritten.
	IssueOTP(ctx context.Context, sessionID string, profile *domain.MedicalProfile, email string) error
	// VerifyOTP runs the challenge state machine and on success converts the
	// pending challenge into a session-scoped doctor grant.
	VerifyOTP(ctx context.Context, sessionID string, profile *domain.MedicalProfile, code, reason string) (*domain.DoctorGrant, error)
	// Grant returns the doctor grant for (session, profile), or ErrNotFound.
	Grant(ctx context.Context, sessionID, profileID string) (*domain.DoctorGrant, error)
}

type service struct {
	store  SessionStore
	mailer Mailer
	cfg    Config
}

func NewService(store SessionStore, mailer Mailer, cfg Config) Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &service{store: store, mailer: mailer, cfg: cfg}
}

func (s *service) IssueOTP(ctx context.Context, sessionID string, profile *domain.MedicalProfile, email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("enter a valid email address to receive the OTP: %w", domain.ErrInvalidEmail)
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}

	c := &domain.OtpChallenge{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(s.cfg.TTL).UTC(),
		Attempts:  0,
	}
	if err := s.store.PutChallenge(ctx, sessionID, profile.NationalID, c); err != nil {
		return err
	}

	subject := "Your One-Time Access Code"
	body := fmt.Sprintf(
		"Dear Doctor,\n\n"+
			"Your one-time access code for patient %s (%s) is: %s.\n"+
			"This code expires in %d minutes.\n\n"+
			"If you did not request this code, you can ignore this email.",
		profile.FullName, profile.NationalID, code, int(s.cfg.TTL.Minutes()),
	)
	// Dispatch failure is deliberately indistinguishable from a slow delivery:
	// the challenge stands either way so delivery outcomes leak nothing.
	if err := s.mailer.SendEmail(email, subject, body); err != nil {
		slog.Warn("failed to dispatch OTP email", "profile_id", profile.NationalID, "err", err)
	}
	return nil
}

func (s *service) VerifyOTP(ctx context.Context, sessionID string, profile *domain.MedicalProfile, code, reason string) (*domain.DoctorGrant, error) {
	c, err := s.store.GetChallenge(ctx, sessionID, profile.NationalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("request an OTP first by entering your email: %w", domain.ErrNoChallenge)
		}
		return nil, err
	}

	if c.Expired(time.Now()) {
		if err := s.store.DeleteChallenge(ctx, sessionID, profile.NationalID); err != nil {
			slog.Warn("failed to clear expired challenge", "profile_id", profile.NationalID, "err", err)
		}
		return nil, fmt.Errorf("the OTP has expired, please request a new one: %w", domain.ErrChallengeExpired)
	}

	if c.Attempts >= s.cfg.MaxAttempts {
		return nil, fmt.Errorf("too many attempts, please request a new OTP: %w", domain.ErrTooManyAttempts)
	}

	// Checked before the code so a missing reason never costs a guess.
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("reason for access is required: %w", domain.ErrReasonRequired)
	}

	if code == "" || code != c.Code {
		c.Attempts++
		if err := s.store.PutChallenge(ctx, sessionID, profile.NationalID, c); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("invalid code, please try again: %w", domain.ErrInvalidCode)
	}

	if err := s.store.DeleteChallenge(ctx, sessionID, profile.NationalID); err != nil {
		slog.Warn("failed to consume verified challenge", "profile_id", profile.NationalID, "err", err)
	}
	g := &domain.DoctorGrant{
		Granted:       true,
		VerifierEmail: c.Email,
		Reason:        strings.TrimSpace(reason),
	}
	if err := s.store.PutGrant(ctx, sessionID, profile.NationalID, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *service) Grant(ctx context.Context, sessionID, profileID string) (*domain.DoctorGrant, error) {
	return s.store.GetGrant(ctx, sessionID, profileID)
}

// generateOTP draws a uniform value in [0, 999999] from crypto/rand.
// A predictable code here would be a full authentication bypass.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate OTP: %w", err)
	}
	return formatOTP(n.Int64()), nil
}

// formatOTP renders a code value as exactly 6 digits, preserving leading zeros.
func formatOTP(n int64) string {
	return fmt.Sprintf("%06d", n)
}
