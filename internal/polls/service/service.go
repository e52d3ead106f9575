package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pollster/internal/polls/metrics"
	"pollster/internal/polls/models"
	id "pollster/pkg/domain"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/sentinel"
	"pollster/pkg/requestcontext"
)

// Store persists polls and votes.
type Store interface {
	Create(ctx context.Context, poll *models.Poll) error
	Get(ctx context.Context, pollID id.PollID) (*models.Poll, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Poll, error)
	Delete(ctx context.Context, pollID id.PollID) error
	CastVote(ctx context.Context, vote models.Vote) error
}

// Service implements poll creation, voting and results.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("poll store is required")
	}
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create stores a new poll owned by ownerID. req must already be validated.
func (s *Service) Create(ctx context.Context, ownerID id.UserID, req *models.CreatePollRequest) (*models.Poll, error) {
	poll := &models.Poll{
		ID:        id.NewPollID(),
		OwnerID:   ownerID,
		Question:  req.Question,
		CreatedAt: requestcontext.Now(ctx),
		Options:   make([]models.Option, 0, len(req.Options)),
	}
	for i, text := range req.Options {
		poll.Options = append(poll.Options, models.Option{ID: id.NewOptionID(), Text: text, Position: i})
	}

	if err := s.store.Create(ctx, poll); err != nil {
		return nil, s.translate(err, "create poll")
	}
	if s.metrics != nil {
		s.metrics.IncrementPollsCreated()
	}
	s.logger.InfoContext(ctx, "poll_created",
		"poll_id", poll.ID.String(),
		"owner_id", ownerID.String(),
		"options", len(poll.Options),
		"request_id", requestcontext.RequestID(ctx),
	)
	return poll, nil
}

// List returns the most recent polls. limit is clamped to [1, MaxListLimit].
func (s *Service) List(ctx context.Context, limit int) ([]*models.Poll, error) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	limit = min(limit, models.MaxListLimit)
	polls, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, s.translate(err, "list polls")
	}
	if polls == nil {
		polls = []*models.Poll{}
	}
	return polls, nil
}

func (s *Service) Get(ctx context.Context, pollID id.PollID) (*models.Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, s.translate(err, "get poll")
	}
	return poll, nil
}

// Delete removes a poll. Only its owner may delete it.
func (s *Service) Delete(ctx context.Context, callerID id.UserID, pollID id.PollID) error {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return s.translate(err, "load poll")
	}
	if !poll.IsOwner(callerID) {
		return dErrors.New(dErrors.CodeForbidden, "only the poll owner can delete it")
	}
	if err := s.store.Delete(ctx, pollID); err != nil {
		return s.translate(err, "delete poll")
	}
	if s.metrics != nil {
		s.metrics.IncrementPollsDeleted()
	}
	s.logger.InfoContext(ctx, "poll_deleted",
		"poll_id", pollID.String(),
		"owner_id", callerID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Vote records the caller's choice and returns the updated results. A
// second vote in the same poll is a conflict.
func (s *Service) Vote(ctx context.Context, callerID id.UserID, pollID id.PollID, optionID id.OptionID) (*models.Results, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, s.translate(err, "load poll")
	}
	if !poll.HasOption(optionID) {
		s.rejectVote("unknown_option")
		return nil, dErrors.New(dErrors.CodeValidation, "option does not belong to this poll")
	}

	err = s.store.CastVote(ctx, models.Vote{
		PollID:    pollID,
		OptionID:  optionID,
		UserID:    callerID,
		CreatedAt: requestcontext.Now(ctx),
	})
	if errors.Is(err, sentinel.ErrConflict) {
		s.rejectVote("duplicate")
		return nil, dErrors.New(dErrors.CodeConflict, "you have already voted in this poll")
	}
	if err != nil {
		return nil, s.translate(err, "cast vote")
	}
	if s.metrics != nil {
		s.metrics.IncrementVotesCast()
	}
	return s.Results(ctx, pollID)
}

// Results aggregates the current vote counts for a poll.
func (s *Service) Results(ctx context.Context, pollID id.PollID) (*models.Results, error) {
	poll, err := s.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return models.ResultsOf(poll), nil
}

func (s *Service) rejectVote(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementVotesRejected(reason)
	}
}

func (s *Service) translate(err error, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "poll not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "poll already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, op)
	}
}
