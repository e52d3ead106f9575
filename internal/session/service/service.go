package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pollster/internal/session/config"
	"pollster/internal/session/metrics"
	"pollster/internal/session/models"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/sentinel"
	"pollster/pkg/requestcontext"
)

// ActivityStore persists per-user session activity.
type ActivityStore interface {
	Touch(ctx context.Context, userID string, now time.Time, device string) (models.Activity, error)
	Restart(ctx context.Context, userID string, now time.Time, device string) (models.Activity, error)
	Get(ctx context.Context, userID string) (models.Activity, error)
	// MarkWarned atomically sets the warning flag when due and reports
	// whether this call set it.
	MarkWarned(ctx context.Context, userID string, now time.Time, inactivity, lead time.Duration) (bool, error)
	Delete(ctx context.Context, userID string) (bool, error)
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// CredentialRevoker revokes an access token at the hosted auth service.
type CredentialRevoker interface {
	SignOut(ctx context.Context, accessToken string) error
}

// TokenRevoker deletes the anti-forgery tokens issued to a user.
type TokenRevoker interface {
	RevokeForOwner(ctx context.Context, ownerID string) (int, error)
}

// Service tracks session activity and decides when sessions end.
type Service struct {
	activity    ActivityStore
	config      *config.Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	credentials CredentialRevoker
	csrfTokens  TokenRevoker
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

func WithCredentialRevoker(r CredentialRevoker) Option {
	return func(s *Service) {
		s.credentials = r
	}
}

func WithTokenRevoker(r TokenRevoker) Option {
	return func(s *Service) {
		s.csrfTokens = r
	}
}

func New(activity ActivityStore, opts ...Option) (*Service, error) {
	if activity == nil {
		return nil, fmt.Errorf("activity store is required")
	}
	svc := &Service{
		activity: activity,
		config:   config.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if err := svc.config.Validate(); err != nil {
		return nil, err
	}
	return svc, nil
}

// Start begins a new session for the caller after hosted sign-in, replacing
// any previous record.
func (s *Service) Start(ctx context.Context, identity *requestcontext.Identity, device string) (*models.Status, error) {
	now := requestcontext.Now(ctx)
	userID := identity.UserID.String()
	a, err := s.activity.Restart(ctx, userID, now, device)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "start session")
	}
	if s.metrics != nil {
		s.metrics.IncrementStarted()
	}
	s.logger.InfoContext(ctx, "session_started",
		"user_id", userID,
		"device", device,
		"request_id", requestcontext.RequestID(ctx),
	)
	return s.status(a, now, false, identity), nil
}

// RecordActivity stamps the session with now. The session start is kept if
// a record exists and the warning flag is cleared.
func (s *Service) RecordActivity(ctx context.Context, userID string) (models.Activity, error) {
	a, err := s.activity.Touch(ctx, userID, requestcontext.Now(ctx), "")
	if err != nil {
		return models.Activity{}, dErrors.Wrap(err, dErrors.CodeInternal, "record session activity")
	}
	return a, nil
}

// ShouldTerminate reports whether the session has ended: no record, idle for
// the inactivity timeout, or older than the maximum duration.
func (s *Service) ShouldTerminate(ctx context.Context, userID string) (models.TerminationDecision, error) {
	a, err := s.activity.Get(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.TerminationDecision{Terminate: true, Reason: models.ReasonNotFound}, nil
	}
	if err != nil {
		return models.TerminationDecision{}, dErrors.Wrap(err, dErrors.CodeInternal, "load session activity")
	}
	reason := a.TerminationReason(requestcontext.Now(ctx), s.config.InactivityTimeout, s.config.MaxDuration)
	return models.TerminationDecision{Terminate: reason != "", Reason: reason}, nil
}

// ShouldWarn is true exactly once per approach to the inactivity cutoff,
// when the remaining idle time first drops to the warning lead or below.
func (s *Service) ShouldWarn(ctx context.Context, userID string) (bool, error) {
	warned, err := s.activity.MarkWarned(ctx, userID, requestcontext.Now(ctx), s.config.InactivityTimeout, s.config.WarningLead)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "mark session warned")
	}
	if warned && s.metrics != nil {
		s.metrics.IncrementWarnings()
	}
	return warned, nil
}

// ValidateAndMaybeRefresh combines ShouldTerminate with the credential
// expiry of identity. ShouldRefresh is set whenever the credential expires
// within the refresh lead, whether or not the session is valid.
func (s *Service) ValidateAndMaybeRefresh(ctx context.Context, identity *requestcontext.Identity) (models.Validation, error) {
	if identity == nil {
		return models.Validation{Reason: models.ReasonNotFound}, nil
	}
	decision, err := s.ShouldTerminate(ctx, identity.UserID.String())
	if err != nil {
		return models.Validation{}, err
	}
	v := models.Validation{
		Valid:         !decision.Terminate,
		Reason:        decision.Reason,
		ShouldRefresh: s.shouldRefresh(identity, requestcontext.Now(ctx)),
	}
	if v.ShouldRefresh && s.metrics != nil {
		s.metrics.IncrementRefreshSignals()
	}
	return v, nil
}

// Terminate deletes the session record and revokes the credential at the
// hosted auth service. Revocation is best effort; only the delete can fail.
func (s *Service) Terminate(ctx context.Context, identity *requestcontext.Identity, reason models.Reason) error {
	userID := identity.UserID.String()
	if _, err := s.activity.Delete(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete session activity")
	}
	s.revokeCredential(ctx, identity)

	if s.metrics != nil {
		s.metrics.IncrementTermination(string(reason))
	}
	s.logger.WarnContext(ctx, "session_terminated",
		"user_id", userID,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// SignOut ends the session at the caller's request and revokes every CSRF
// token issued to them.
func (s *Service) SignOut(ctx context.Context, identity *requestcontext.Identity) error {
	if err := s.Terminate(ctx, identity, models.ReasonSignedOut); err != nil {
		return err
	}
	if s.csrfTokens == nil {
		return nil
	}
	if _, err := s.csrfTokens.RevokeForOwner(ctx, identity.UserID.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke csrf tokens")
	}
	return nil
}

// Status reports the advisory session state without recording activity.
// The warning flag is consumed, so Warn is true on one call only.
func (s *Service) Status(ctx context.Context, identity *requestcontext.Identity) (*models.Status, error) {
	now := requestcontext.Now(ctx)
	userID := identity.UserID.String()

	a, err := s.activity.Get(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &models.Status{Reason: models.ReasonNotFound, ShouldRefresh: s.shouldRefresh(identity, now)}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load session activity")
	}

	status := s.status(a, now, false, identity)
	if status.Valid {
		if status.Warn, err = s.ShouldWarn(ctx, userID); err != nil {
			return nil, err
		}
	}
	return status, nil
}

// Sweep deletes records idle for longer than the inactivity timeout and
// refreshes the active-session gauge. It satisfies the cleanup worker's
// Sweeper.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.config.InactivityTimeout)
	removed, err := s.activity.Sweep(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep session activity: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AddRecordsSwept(removed)
		if n, err := s.activity.Count(ctx); err == nil {
			s.metrics.SetActiveSessions(n)
		}
	}
	return removed, nil
}

func (s *Service) status(a models.Activity, now time.Time, warn bool, identity *requestcontext.Identity) *models.Status {
	reason := a.TerminationReason(now, s.config.InactivityTimeout, s.config.MaxDuration)
	return &models.Status{
		Valid:                   reason == "",
		Reason:                  reason,
		Warn:                    warn,
		ShouldRefresh:           s.shouldRefresh(identity, now),
		IdleExpiresInSeconds:    wholeSeconds(a.IdleRemaining(now, s.config.InactivityTimeout)),
		SessionExpiresInSeconds: wholeSeconds(a.SessionRemaining(now, s.config.MaxDuration)),
		Device:                  a.Device,
	}
}

func wholeSeconds(d time.Duration) int64 {
	return max(int64(d/time.Second), 0)
}

func (s *Service) shouldRefresh(identity *requestcontext.Identity, now time.Time) bool {
	if identity == nil || identity.CredentialExpiresAt.IsZero() {
		return false
	}
	return identity.CredentialExpiresAt.Sub(now) < s.config.RefreshLead
}

func (s *Service) revokeCredential(ctx context.Context, identity *requestcontext.Identity) {
	if s.credentials == nil || identity.AccessToken == "" {
		return
	}
	if err := s.credentials.SignOut(ctx, identity.AccessToken); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementRevokeFailures()
		}
		s.logger.WarnContext(ctx, "credential revocation failed",
			"error", err,
			"user_id", identity.UserID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
