package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pollster/internal/polls/models"
	id "pollster/pkg/domain"
	"pollster/pkg/platform/sentinel"
	tu "pollster/pkg/testutil"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newPoll(pollID id.PollID, createdAt time.Time) *models.Poll {
	return &models.Poll{
		ID:        pollID,
		OwnerID:   tu.TestIDs.UserID1,
		Question:  "Lunch?",
		CreatedAt: createdAt,
		Options: []models.Option{
			{ID: id.NewOptionID(), Text: "tacos", Position: 0},
			{ID: id.NewOptionID(), Text: "pho", Position: 1},
		},
	}
}

func (s *InMemoryStoreSuite) TestCreateAndGet() {
	p := newPoll(tu.TestIDs.PollID1, tu.T0)
	s.Require().NoError(s.store.Create(s.ctx, p))
	s.ErrorIs(s.store.Create(s.ctx, p), sentinel.ErrConflict)

	got, err := s.store.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Question, got.Question)
	s.Len(got.Options, 2)

	_, err = s.store.Get(s.ctx, tu.TestIDs.PollID2)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestOneVotePerUser() {
	p := newPoll(tu.TestIDs.PollID1, tu.T0)
	s.Require().NoError(s.store.Create(s.ctx, p))
	vote := models.Vote{PollID: p.ID, OptionID: p.Options[1].ID, UserID: tu.TestIDs.UserID2, CreatedAt: tu.T0}

	s.Require().NoError(s.store.CastVote(s.ctx, vote))
	vote.OptionID = p.Options[0].ID
	s.ErrorIs(s.store.CastVote(s.ctx, vote), sentinel.ErrConflict)

	got, err := s.store.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(0, got.Options[0].Votes)
	s.Equal(1, got.Options[1].Votes)
}

func (s *InMemoryStoreSuite) TestConcurrentVotesCountOnce() {
	p := newPoll(tu.TestIDs.PollID1, tu.T0)
	s.Require().NoError(s.store.Create(s.ctx, p))

	res := tu.RunConcurrent(50, func(int) error {
		return s.store.CastVote(s.ctx, models.Vote{PollID: p.ID, OptionID: p.Options[0].ID, UserID: tu.TestIDs.UserID1})
	})
	s.Equal(int32(1), res.Successes)
	s.Equal(int32(49), res.Conflicts)
}

func (s *InMemoryStoreSuite) TestVoteForUnknownOption() {
	p := newPoll(tu.TestIDs.PollID1, tu.T0)
	s.Require().NoError(s.store.Create(s.ctx, p))

	err := s.store.CastVote(s.ctx, models.Vote{PollID: p.ID, OptionID: id.NewOptionID(), UserID: tu.TestIDs.UserID1})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListRecentNewestFirst() {
	s.Require().NoError(s.store.Create(s.ctx, newPoll(tu.TestIDs.PollID1, tu.T0)))
	s.Require().NoError(s.store.Create(s.ctx, newPoll(tu.TestIDs.PollID2, tu.T0.Add(time.Minute))))

	polls, err := s.store.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(polls, 2)
	s.Equal(tu.TestIDs.PollID2, polls[0].ID)

	polls, err = s.store.ListRecent(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(polls, 1)
}

func (s *InMemoryStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Create(s.ctx, newPoll(tu.TestIDs.PollID1, tu.T0)))
	s.Require().NoError(s.store.Delete(s.ctx, tu.TestIDs.PollID1))
	s.ErrorIs(s.store.Delete(s.ctx, tu.TestIDs.PollID1), sentinel.ErrNotFound)
}
