package models

import (
	"errors"
	"time"
)

// Record is what the store keeps for an issued token. The token itself is
// never stored; records are keyed by its digest.
type Record struct {
	OwnerID   string    `json:"owner_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRecord creates a record valid for ttl from now.
func NewRecord(ownerID string, now time.Time, ttl time.Duration) Record {
	return Record{OwnerID: ownerID, IssuedAt: now, ExpiresAt: now.Add(ttl)}
}

// Expired reports whether now is past the expiry instant.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Verify checks the record against the presenting identity. A non-nil
// result means the record must be evicted.
func (r Record) Verify(ownerID string, now time.Time) error {
	if r.OwnerID != ownerID {
		return ErrTokenInvalid
	}
	if r.Expired(now) {
		return ErrTokenExpired
	}
	return nil
}

var (
	ErrTokenMissing = errors.New("csrf token missing")
	ErrTokenInvalid = errors.New("csrf token invalid")
	ErrTokenExpired = errors.New("csrf token expired")
)

// Reason is the machine-readable cause of a rejection, returned to clients
// so they can decide whether to re-fetch a token and retry.
type Reason string

const (
	ReasonMissing Reason = "missing"
	ReasonInvalid Reason = "invalid"
	ReasonExpired Reason = "expired"
)

// ReasonOf classifies a validation error. Anything unrecognised, including
// store failures, is reported as invalid.
func ReasonOf(err error) Reason {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return ReasonMissing
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpired
	default:
		return ReasonInvalid
	}
}

// TokenResponse is the body of the token issuance endpoint.
type TokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
}
