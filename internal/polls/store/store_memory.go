package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"pollster/internal/polls/models"
	id "pollster/pkg/domain"
	"pollster/pkg/platform/sentinel"
)

// InMemoryStore keeps polls in process memory for development without a
// database.
type InMemoryStore struct {
	mu    sync.RWMutex
	polls map[id.PollID]*models.Poll
	// votes maps poll -> user -> option.
	votes map[id.PollID]map[id.UserID]id.OptionID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		polls: make(map[id.PollID]*models.Poll),
		votes: make(map[id.PollID]map[id.UserID]id.OptionID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, poll *models.Poll) error {
	if poll == nil {
		return fmt.Errorf("poll is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.polls[poll.ID]; exists {
		return sentinel.ErrConflict
	}
	s.polls[poll.ID] = clonePoll(poll)
	s.votes[poll.ID] = make(map[id.UserID]id.OptionID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, pollID id.PollID) (*models.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.polls[pollID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.withCounts(p), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]*models.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Poll, 0, len(s.polls))
	for _, p := range s.polls {
		out = append(out, s.withCounts(p))
	}
	slices.SortFunc(out, func(a, b *models.Poll) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, pollID id.PollID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[pollID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.polls, pollID)
	delete(s.votes, pollID)
	return nil
}

func (s *InMemoryStore) CastVote(_ context.Context, vote models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[vote.PollID]
	if !ok || !p.HasOption(vote.OptionID) {
		return sentinel.ErrNotFound
	}
	ballots := s.votes[vote.PollID]
	if _, voted := ballots[vote.UserID]; voted {
		return sentinel.ErrConflict
	}
	ballots[vote.UserID] = vote.OptionID
	return nil
}

// withCounts returns a copy of p with vote counts filled. Callers hold mu.
func (s *InMemoryStore) withCounts(p *models.Poll) *models.Poll {
	out := clonePoll(p)
	counts := make(map[id.OptionID]int, len(out.Options))
	for _, optionID := range s.votes[p.ID] {
		counts[optionID]++
	}
	for i := range out.Options {
		out.Options[i].Votes = counts[out.Options[i].ID]
	}
	return out
}

func clonePoll(p *models.Poll) *models.Poll {
	out := *p
	out.Options = slices.Clone(p.Options)
	return &out
}
