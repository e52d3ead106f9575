// Package identity resolves the caller from credentials issued by the hosted
// auth service and talks to that service on the caller's behalf.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "pollster/pkg/domain"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/requestcontext"
)

// Claims are the access-token claims the hosted auth service signs.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenValidator verifies HS256 access tokens signed with the project's
// shared JWT secret.
type TokenValidator struct {
	signingKey []byte
	leeway     time.Duration
}

// NewTokenValidator creates a validator for the given shared secret.
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{signingKey: []byte(secret), leeway: 30 * time.Second}
}

// Validate parses and verifies raw, returning the caller identity. Expiry is
// evaluated against the request time.
func (v *TokenValidator) Validate(ctx context.Context, raw string) (*requestcontext.Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.CodeAuthenticationRequired, "token expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeAuthenticationRequired, "invalid token")
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeAuthenticationRequired, "invalid token subject")
	}

	return &requestcontext.Identity{
		UserID:              userID,
		Email:               claims.Email,
		CredentialExpiresAt: claims.ExpiresAt.Time,
		AccessToken:         raw,
	}, nil
}
