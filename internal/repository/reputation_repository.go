package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/contribmint/contribmint-api/internal/models"
	"github.com/contribmint/contribmint-api/pkg/database"
)

// ReputationRepository persists the derived per-contributor reputation snapshot.
type ReputationRepository struct {
	db *sqlx.DB
}

// NewReputationRepository constructs the repository.
func NewReputationRepository(db *sqlx.DB) *ReputationRepository {
	return &ReputationRepository{db: db}
}

// Replace swaps the project's reputation rows for rows atomically.
func (r *ReputationRepository) Replace(ctx context.Context, projectID string, rows []models.ProjectReputation) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_reputations WHERE project_id = $1`, projectID); err != nil {
			return fmt.Errorf("delete reputation: %w", err)
		}
		const insert = `INSERT INTO project_reputations (id, project_id, username, points, computed_at)
VALUES (:id, :project_id, :username, :points, :computed_at)`
		for i := range rows {
			if _, err := tx.NamedExecContext(ctx, insert, rows[i]); err != nil {
				return fmt.Errorf("insert reputation for %s: %w", rows[i].Username, err)
			}
		}
		return nil
	})
}

// ListByProject returns the project's leaderboard ordering.
func (r *ReputationRepository) ListByProject(ctx context.Context, projectID string) ([]models.ProjectReputation, error) {
	const query = `SELECT id, project_id, username, points, computed_at FROM project_reputations
WHERE project_id = $1 ORDER BY points DESC, username ASC`
	var rows []models.ProjectReputation
	if err := r.db.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, fmt.Errorf("list reputation: %w", err)
	}
	return rows, nil
}
