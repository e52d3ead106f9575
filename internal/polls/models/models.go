package models

import (
	"strings"
	"time"

	id "pollster/pkg/domain"
)

const (
	MinOptions       = 2
	MaxOptions       = 10
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Poll is a question with a fixed set of options.
type Poll struct {
	ID        id.PollID `json:"id"`
	OwnerID   id.UserID `json:"owner_id"`
	Question  string    `json:"question"`
	Options   []Option  `json:"options"`
	CreatedAt time.Time `json:"created_at"`
}

// Option is one answer of a poll. Votes is filled on reads.
type Option struct {
	ID       id.OptionID `json:"id"`
	Text     string      `json:"text"`
	Position int         `json:"position"`
	Votes    int         `json:"votes"`
}

// HasOption reports whether optionID belongs to the poll.
func (p *Poll) HasOption(optionID id.OptionID) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// IsOwner reports whether userID created the poll.
func (p *Poll) IsOwner(userID id.UserID) bool {
	return p.OwnerID == userID
}

// TotalVotes sums the option counts.
func (p *Poll) TotalVotes() int {
	total := 0
	for _, o := range p.Options {
		total += o.Votes
	}
	return total
}

// Vote is one user's choice in one poll. A user votes at most once per poll.
type Vote struct {
	PollID    id.PollID
	OptionID  id.OptionID
	UserID    id.UserID
	CreatedAt time.Time
}

// CreatePollRequest is the body of POST /api/polls.
type CreatePollRequest struct {
	Question string   `json:"question" validate:"required,notblank,max=280"`
	Options  []string `json:"options" validate:"min=2,max=10,unique,dive,required,notblank,max=100"`
}

func (r *CreatePollRequest) Normalize() {
	r.Question = strings.TrimSpace(r.Question)
	for i, o := range r.Options {
		r.Options[i] = strings.TrimSpace(o)
	}
}

// VoteRequest is the body of POST /api/polls/{id}/votes.
type VoteRequest struct {
	OptionID string `json:"option_id" validate:"required,uuid"`
}

func (r *VoteRequest) Normalize() {
	r.OptionID = strings.TrimSpace(r.OptionID)
}

// OptionResult is one row of the results view.
type OptionResult struct {
	OptionID id.OptionID `json:"option_id"`
	Text     string      `json:"text"`
	Votes    int         `json:"votes"`
	Percent  float64     `json:"percent"`
}

// Results is the aggregated vote count for a poll.
type Results struct {
	PollID     id.PollID      `json:"poll_id"`
	TotalVotes int            `json:"total_votes"`
	Options    []OptionResult `json:"options"`
}

// ResultsOf aggregates the vote counts loaded with p. Percentages are
// rounded to one decimal place.
func ResultsOf(p *Poll) *Results {
	res := &Results{PollID: p.ID, TotalVotes: p.TotalVotes(), Options: make([]OptionResult, 0, len(p.Options))}
	for _, o := range p.Options {
		r := OptionResult{OptionID: o.ID, Text: o.Text, Votes: o.Votes}
		if res.TotalVotes > 0 {
			r.Percent = float64(o.Votes*1000/res.TotalVotes) / 10
		}
		res.Options = append(res.Options, r)
	}
	return res
}

// PollListResponse is the body of GET /api/polls.
type PollListResponse struct {
	Polls []*Poll `json:"polls"`
}

// VoteResponse is the body returned after a vote is cast.
type VoteResponse struct {
	Success bool     `json:"success"`
	Results *Results `json:"results"`
}
