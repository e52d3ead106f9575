// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "pollster/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a PollID where an OptionID is expected.
type (
	UserID   uuid.UUID
	PollID   uuid.UUID
	OptionID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, token claims).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParsePollID(s string) (PollID, error) {
	id, err := parseUUID(s, "poll ID")
	return PollID(id), err
}

func ParseOptionID(s string) (OptionID, error) {
	id, err := parseUUID(s, "option ID")
	return OptionID(id), err
}

// New functions generate random (v4) identifiers.

func NewPollID() PollID     { return PollID(uuid.New()) }
func NewOptionID() OptionID { return OptionID(uuid.New()) }

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id PollID) String() string   { return uuid.UUID(id).String() }
func (id OptionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PollID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id OptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text encoding keeps ids as canonical strings in JSON.

func (id UserID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id PollID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id OptionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PollID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OptionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// parseUUID is the shared validation logic.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" cannot be nil")
	}
	return id, nil
}
