package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/contribmint/contribmint-api/internal/models"
)

const contributionColumns = `id, project_id, category, actor_username, target_ref, title, url, occurred_at, metadata, mint_status, created_at, updated_at`

// ContributionRepository persists contribution events.
type ContributionRepository struct {
	db *sqlx.DB
}

// NewContributionRepository constructs the repository.
func NewContributionRepository(db *sqlx.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

// Insert stores the event unless one with the same id exists. It reports whether a row was written.
func (r *ContributionRepository) Insert(ctx context.Context, event *models.ContributionEvent) (bool, error) {
	const query = `INSERT INTO contribution_events (` + contributionColumns + `)
VALUES (:id, :project_id, :category, :actor_username, :target_ref, :title, :url, :occurred_at, :metadata, :mint_status, :created_at, :updated_at)
ON CONFLICT (id) DO NOTHING`
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.MintStatus == "" {
		event.MintStatus = models.MintStatusAwaitingVotes
	}
	if len(event.Metadata) == 0 {
		event.Metadata = []byte("{}")
	}

	res, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return false, fmt.Errorf("insert contribution event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert contribution event rows: %w", err)
	}
	return affected > 0, nil
}

// FindByID fetches a single event. sql.ErrNoRows is returned unwrapped.
func (r *ContributionRepository) FindByID(ctx context.Context, id string) (*models.ContributionEvent, error) {
	const query = `SELECT ` + contributionColumns + ` FROM contribution_events WHERE id = $1`
	var event models.ContributionEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListByProject returns every event of a project in occurrence order.
func (r *ContributionRepository) ListByProject(ctx context.Context, projectID string) ([]models.ContributionEvent, error) {
	const query = `SELECT ` + contributionColumns + ` FROM contribution_events WHERE project_id = $1 ORDER BY occurred_at ASC, id ASC`
	var events []models.ContributionEvent
	if err := r.db.SelectContext(ctx, &events, query, projectID); err != nil {
		return nil, fmt.Errorf("list project contributions: %w", err)
	}
	return events, nil
}

// List returns events matching the filter, newest first.
func (r *ContributionRepository) List(ctx context.Context, filter models.ContributionFilter) ([]models.ContributionEvent, error) {
	where, args := contributionConditions(filter)
	query := `SELECT ` + contributionColumns + ` FROM contribution_events` + where + " ORDER BY occurred_at DESC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var events []models.ContributionEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	return events, nil
}

// Count returns how many events match the filter. Limit and Offset are ignored.
func (r *ContributionRepository) Count(ctx context.Context, filter models.ContributionFilter) (int, error) {
	where, args := contributionConditions(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM contribution_events`+where, args...); err != nil {
		return 0, fmt.Errorf("count contributions: %w", err)
	}
	return total, nil
}

func contributionConditions(filter models.ContributionFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.ActorUsername != "" {
		args = append(args, filter.ActorUsername)
		conditions = append(conditions, fmt.Sprintf("actor_username = $%d", len(args)))
	}
	if filter.MintStatus != "" {
		args = append(args, filter.MintStatus)
		conditions = append(conditions, fmt.Sprintf("mint_status = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// UpdateMintStatus moves an event from one status to another. It reports false when the
// event was no longer in the expected status.
func (r *ContributionRepository) UpdateMintStatus(ctx context.Context, id string, from, to models.MintStatus) (bool, error) {
	const query = `UPDATE contribution_events SET mint_status = $1, updated_at = $2 WHERE id = $3 AND mint_status = $4`
	res, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update mint status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update mint status rows: %w", err)
	}
	return affected > 0, nil
}
