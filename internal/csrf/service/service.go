package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"pollster/internal/csrf/config"
	"pollster/internal/csrf/metrics"
	"pollster/internal/csrf/models"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/requestcontext"
)

const (
	tokenBytes = 32
	keyBytes   = 32
)

// TokenStore persists token records keyed by token digest.
type TokenStore interface {
	Save(ctx context.Context, digest string, rec models.Record) error
	// Verify checks the record for ownerID at now, evicting it when the
	// owner mismatches or it has expired.
	Verify(ctx context.Context, digest, ownerID string, now time.Time) error
	RevokeForOwner(ctx context.Context, ownerID string) (int, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Service issues and validates per-identity anti-forgery tokens.
type Service struct {
	tokens  TokenStore
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	random  io.Reader
	secret  string
	key     []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSecret sets the digest key so every instance sharing a store computes
// the same digests. Without it a random per-process key is used.
func WithSecret(secret string) Option {
	return func(s *Service) {
		s.secret = secret
	}
}

// WithRandom replaces the token entropy source.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.random = r
		}
	}
}

func New(tokens TokenStore, opts ...Option) (*Service, error) {
	if tokens == nil {
		return nil, fmt.Errorf("tokens store is required")
	}
	svc := &Service{
		tokens: tokens,
		config: config.DefaultConfig(),
		logger: slog.Default(),
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.secret != "" {
		sum := blake2b.Sum256([]byte(svc.secret))
		svc.key = sum[:]
	} else {
		svc.key = make([]byte, keyBytes)
		if _, err := rand.Read(svc.key); err != nil {
			return nil, fmt.Errorf("generate csrf digest key: %w", err)
		}
	}
	return svc, nil
}

// Issue creates a token for ownerID and stores its digest. The raw token is
// returned to the caller and never persisted.
func (s *Service) Issue(ctx context.Context, ownerID string) (string, models.Record, error) {
	if ownerID == "" {
		return "", models.Record{}, dErrors.New(dErrors.CodeAuthenticationRequired, "")
	}

	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate csrf token")
	}
	token := hex.EncodeToString(raw)

	rec := models.NewRecord(ownerID, requestcontext.Now(ctx), s.config.TokenTTL)
	if err := s.tokens.Save(ctx, s.digest(token), rec); err != nil {
		return "", models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "store csrf token")
	}

	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	return token, rec, nil
}

// Validate checks token for ownerID. Errors carry CodeCSRFInvalid and wrap
// models.ErrTokenMissing, ErrTokenInvalid or ErrTokenExpired; store failures
// carry CodeInternal.
func (s *Service) Validate(ctx context.Context, ownerID, token string) error {
	if token == "" {
		return dErrors.Wrap(models.ErrTokenMissing, dErrors.CodeCSRFInvalid, "CSRF token missing")
	}
	if !wellFormed(token) {
		return dErrors.Wrap(models.ErrTokenInvalid, dErrors.CodeCSRFInvalid, "CSRF token invalid")
	}

	err := s.tokens.Verify(ctx, s.digest(token), ownerID, requestcontext.Now(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrTokenExpired):
		return dErrors.Wrap(err, dErrors.CodeCSRFInvalid, "CSRF token expired")
	case errors.Is(err, models.ErrTokenInvalid):
		return dErrors.Wrap(err, dErrors.CodeCSRFInvalid, "CSRF token invalid")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "verify csrf token")
	}
}

// RevokeForOwner deletes every token issued to ownerID.
func (s *Service) RevokeForOwner(ctx context.Context, ownerID string) (int, error) {
	removed, err := s.tokens.RevokeForOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("revoke csrf tokens: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AddRevoked(removed)
	}
	return removed, nil
}

// Sweep deletes expired records. It satisfies the cleanup worker's Sweeper.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	removed, err := s.tokens.Sweep(ctx, requestcontext.Now(ctx))
	if err != nil {
		return 0, fmt.Errorf("sweep csrf records: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AddRecordsSwept(removed)
	}
	return removed, nil
}

func (s *Service) digest(token string) string {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(s.key)
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

func wellFormed(token string) bool {
	if len(token) != hex.EncodedLen(tokenBytes) {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
