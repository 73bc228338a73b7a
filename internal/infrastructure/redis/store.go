package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/meditrack-api/internal/config"
	"github.com/meditrack-api/internal/domain"
)

// NewClient creates a Redis client from config.
func NewClient(cfg *config.Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// SessionStore keeps per-session doctor-access state (pending OTP challenges
// and grants) in Redis. Every record carries the session TTL so all challenge
// and grant state dies with the browser session; nothing here is durable.
//
// Challenge records deliberately outlive their own OTP expiry: expiry is a
// field checked by the verifier so an expired code is reported as expired,
// not as missing.
type SessionStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewSessionStore(client *goredis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func challengeKey(sessionID, profileID string) string {
	return fmt.Sprintf("otp:%s:%s", sessionID, profileID)
}

func grantKey(sessionID, profileID string) string {
	return fmt.Sprintf("grant:%s:%s", sessionID, profileID)
}

// PutChallenge stores the pending challenge for (session, profile),
// overwriting any prior one.
func (s *SessionStore) PutChallenge(ctx context.Context, sessionID, profileID string, c *domain.OtpChallenge) error {
	return s.put(ctx, challengeKey(sessionID, profileID), c)
}

func (s *SessionStore) GetChallenge(ctx context.Context, sessionID, profileID string) (*domain.OtpChallenge, error) {
	var c domain.OtpChallenge
	if err := s.get(ctx, challengeKey(sessionID, profileID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SessionStore) DeleteChallenge(ctx context.Context, sessionID, profileID string) error {
	return s.client.Del(ctx, challengeKey(sessionID, profileID)).Err()
}

func (s *SessionStore) PutGrant(ctx context.Context, sessionID, profileID string, g *domain.DoctorGrant) error {
	return s.put(ctx, grantKey(sessionID, profileID), g)
}

func (s *SessionStore) GetGrant(ctx context.Context, sessionID, profileID string) (*domain.DoctorGrant, error) {
	var g domain.DoctorGrant
	if err := s.get(ctx, grantKey(sessionID, profileID), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *SessionStore) put(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *SessionStore) get(ctx context.Context, key string, v interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return fmt.Errorf("session record not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
