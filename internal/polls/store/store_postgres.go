package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"pollster/internal/polls/models"
	id "pollster/pkg/domain"
	"pollster/pkg/platform/sentinel"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore persists polls, options and votes in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed poll store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the poll and its options in one transaction.
func (s *PostgresStore) Create(ctx context.Context, poll *models.Poll) error {
	if poll == nil {
		return fmt.Errorf("poll is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create poll tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO polls (id, owner_id, question, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(poll.ID), uuid.UUID(poll.OwnerID), poll.Question, poll.CreatedAt)
	if err != nil {
		if isViolation(err, pgUniqueViolation) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert poll: %w", err)
	}

	for _, o := range poll.Options {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO poll_options (id, poll_id, text, position)
			VALUES ($1, $2, $3, $4)
		`, uuid.UUID(o.ID), uuid.UUID(poll.ID), o.Text, o.Position)
		if err != nil {
			return fmt.Errorf("insert poll option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create poll: %w", err)
	}
	return nil
}

const pollColumns = `
	SELECT p.id, p.owner_id, p.question, p.created_at,
	       o.id, o.text, o.position, COUNT(v.user_id)
	FROM polls p
	JOIN poll_options o ON o.poll_id = p.id
	LEFT JOIN votes v ON v.option_id = o.id
`

// Get loads a poll with per-option vote counts.
func (s *PostgresStore) Get(ctx context.Context, pollID id.PollID) (*models.Poll, error) {
	rows, err := s.db.QueryContext(ctx, pollColumns+`
		WHERE p.id = $1
		GROUP BY p.id, o.id
		ORDER BY o.position
	`, uuid.UUID(pollID))
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}
	polls, err := collectPolls(rows)
	if err != nil {
		return nil, err
	}
	if len(polls) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return polls[0], nil
}

// ListRecent returns the newest polls first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*models.Poll, error) {
	rows, err := s.db.QueryContext(ctx, pollColumns+`
		WHERE p.id IN (SELECT id FROM polls ORDER BY created_at DESC LIMIT $1)
		GROUP BY p.id, o.id
		ORDER BY p.created_at DESC, o.position
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	return collectPolls(rows)
}

// Delete removes a poll; options and votes cascade.
func (s *PostgresStore) Delete(ctx context.Context, pollID id.PollID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, uuid.UUID(pollID))
	if err != nil {
		return fmt.Errorf("delete poll: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete poll rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// CastVote records a vote. A second vote by the same user in the same poll
// is ErrConflict; a vote for a deleted poll or option is ErrNotFound.
func (s *PostgresStore) CastVote(ctx context.Context, vote models.Vote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (poll_id, option_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(vote.PollID), uuid.UUID(vote.OptionID), uuid.UUID(vote.UserID), vote.CreatedAt)
	switch {
	case err == nil:
		return nil
	case isViolation(err, pgUniqueViolation):
		return sentinel.ErrConflict
	case isViolation(err, pgForeignKeyViolation):
		return sentinel.ErrNotFound
	default:
		return fmt.Errorf("insert vote: %w", err)
	}
}

func collectPolls(rows *sql.Rows) ([]*models.Poll, error) {
	defer rows.Close()

	var polls []*models.Poll
	byID := make(map[uuid.UUID]*models.Poll)
	for rows.Next() {
		var (
			pollID, ownerID, optionID uuid.UUID
			p                         models.Poll
			o                         models.Option
		)
		if err := rows.Scan(&pollID, &ownerID, &p.Question, &p.CreatedAt, &optionID, &o.Text, &o.Position, &o.Votes); err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		o.ID = id.OptionID(optionID)

		poll, ok := byID[pollID]
		if !ok {
			p.ID = id.PollID(pollID)
			p.OwnerID = id.UserID(ownerID)
			poll = &p
			byID[pollID] = poll
			polls = append(polls, poll)
		}
		poll.Options = append(poll.Options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate polls: %w", err)
	}
	return polls, nil
}

func isViolation(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
