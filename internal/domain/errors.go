package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Doctor-access challenge failures. Each kind gets its own user-facing
// message and HTTP status; none of them are retried server-side.
var (
	ErrInvalidEmail     = errors.New("invalid email")
	ErrNoChallenge      = errors.New("no pending challenge")
	ErrChallengeExpired = errors.New("challenge expired")
	ErrTooManyAttempts  = errors.New("too many attempts")
	ErrReasonRequired   = errors.New("reason required")
	ErrInvalidCode      = errors.New("invalid code")
)
