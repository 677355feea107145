package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/contribmint/contribmint-api/internal/models"
	"github.com/contribmint/contribmint-api/pkg/database"
)

// VoteRepository persists votes and applies their effect on the event status.
type VoteRepository struct {
	db *sqlx.DB
}

// NewVoteRepository constructs the repository.
func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// CastAndTally upserts the vote, re-tallies the event and stores the decided status in one
// transaction holding the event row lock. sql.ErrNoRows is returned unwrapped for unknown events.
func (r *VoteRepository) CastAndTally(ctx context.Context, vote *models.Vote, decide models.StatusDecider) (*models.VoteOutcome, error) {
	var outcome models.VoteOutcome
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const lockQuery = `SELECT mint_status FROM contribution_events WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &outcome.PreviousStatus, lockQuery, vote.ContributionEventID); err != nil {
			return err
		}

		const upsertQuery = `INSERT INTO votes (id, contribution_event_id, user_id, score, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (contribution_event_id, user_id)
DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`
		now := time.Now().UTC()
		if vote.ID == "" {
			vote.ID = uuid.NewString()
		}
		vote.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, upsertQuery, vote.ID, vote.ContributionEventID, vote.UserID, vote.Score, now); err != nil {
			return fmt.Errorf("upsert vote: %w", err)
		}

		const tallyQuery = `SELECT COUNT(*) AS vote_count, COALESCE(SUM(score), 0) AS score_sum FROM votes WHERE contribution_event_id = $1`
		if err := tx.GetContext(ctx, &outcome.Tally, tallyQuery, vote.ContributionEventID); err != nil {
			return fmt.Errorf("tally votes: %w", err)
		}

		next, err := decide(outcome.PreviousStatus, outcome.Tally)
		if err != nil {
			return err
		}
		outcome.Status = next
		if next == outcome.PreviousStatus {
			return nil
		}

		const updateQuery = `UPDATE contribution_events SET mint_status = $1, updated_at = $2 WHERE id = $3`
		if _, err := tx.ExecContext(ctx, updateQuery, next, now, vote.ContributionEventID); err != nil {
			return fmt.Errorf("update mint status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// ListByEvent returns the current votes of an event, oldest first.
func (r *VoteRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Vote, error) {
	const query = `SELECT id, contribution_event_id, user_id, score, created_at, updated_at
FROM votes WHERE contribution_event_id = $1 ORDER BY created_at ASC, user_id ASC`
	var votes []models.Vote
	if err := r.db.SelectContext(ctx, &votes, query, eventID); err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return votes, nil
}

// Tally returns the aggregate of an event's current votes.
func (r *VoteRepository) Tally(ctx context.Context, eventID string) (models.VoteTally, error) {
	const query = `SELECT COUNT(*) AS vote_count, COALESCE(SUM(score), 0) AS score_sum FROM votes WHERE contribution_event_id = $1`
	var tally models.VoteTally
	if err := r.db.GetContext(ctx, &tally, query, eventID); err != nil {
		return models.VoteTally{}, fmt.Errorf("tally votes: %w", err)
	}
	return tally, nil
}
