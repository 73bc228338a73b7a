package domain

import "time"

// OtpChallenge is the pending doctor-access challenge for one
// (session, profile) pair. At most one live challenge exists per pair;
// issuing a new one overwrites any prior state.
type OtpChallenge struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"` // exactly 6 decimal digits, leading zeros preserved
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Expired reports whether the challenge TTL has elapsed at the given time.
func (c *OtpChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// DoctorGrant is the session-scoped authorization created by a successful
// OTP verification. It lives until the session expires and unlocks every
// protected view of the profile it was verified for.
type DoctorGrant struct {
	Granted       bool   `json:"granted"`
	VerifierEmail string `json:"verifier_email"`
	Reason        string `json:"reason"`
}
