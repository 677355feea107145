package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/contribmint/contribmint-api/internal/models"
)

const projectColumns = `id, name, description, github_owner, github_repo, github_url, primary_language, topics, tags, website_url, stars, forks, open_issues_count, status, source, gsoc_year, submitted_by, last_synced_at, created_at, updated_at`

// ProjectRepository persists tracked projects.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindByID fetches a project. sql.ErrNoRows is returned unwrapped.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindByLocator fetches a project by its GitHub owner and repository, case-insensitively.
func (r *ProjectRepository) FindByLocator(ctx context.Context, owner, repo string) (*models.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE LOWER(github_owner) = LOWER($1) AND LOWER(github_repo) = LOWER($2) LIMIT 1`
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, owner, repo); err != nil {
		return nil, err
	}
	return &project, nil
}

// ExistsByNameOrLocator reports whether a project with the name or owner/repo is tracked.
func (r *ProjectRepository) ExistsByNameOrLocator(ctx context.Context, name, owner, repo string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM projects WHERE LOWER(name) = LOWER($1)
OR ($2 <> '' AND LOWER(github_owner) = LOWER($2) AND LOWER(github_repo) = LOWER($3)))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, owner, repo); err != nil {
		return false, fmt.Errorf("check project exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new project row.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	const query = `INSERT INTO projects (` + projectColumns + `)
VALUES (:id, :name, :description, :github_owner, :github_repo, :github_url, :primary_language, :topics, :tags, :website_url, :stars, :forks, :open_issues_count, :status, :source, :gsoc_year, :submitted_by, :last_synced_at, :created_at, :updated_at)`
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// UpdateMetadata refreshes source-derived fields and stamps the sync time.
func (r *ProjectRepository) UpdateMetadata(ctx context.Context, id string, meta models.ProjectMetadata, topics string, syncedAt time.Time) error {
	const query = `UPDATE projects SET description = $1, primary_language = $2, stars = $3, forks = $4,
open_issues_count = $5, topics = $6, last_synced_at = $7, updated_at = $7 WHERE id = $8`
	res, err := r.db.ExecContext(ctx, query, meta.Description, meta.PrimaryLanguage, meta.Stars, meta.Forks, meta.OpenIssuesCount, topics, syncedAt, id)
	if err != nil {
		return fmt.Errorf("update project metadata: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("update project metadata: project %s vanished", id)
	}
	return nil
}

// List returns projects matching the filter, most starred first.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error) {
	where, args := projectConditions(filter)
	query := `SELECT ` + projectColumns + ` FROM projects` + where + " ORDER BY stars DESC, name ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Count returns how many projects match the filter.
func (r *ProjectRepository) Count(ctx context.Context, filter models.ProjectFilter) (int, error) {
	where, args := projectConditions(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM projects`+where, args...); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return total, nil
}

func projectConditions(filter models.ProjectFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SubmittedBy != "" {
		args = append(args, filter.SubmittedBy)
		conditions = append(conditions, fmt.Sprintf("submitted_by = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// UpdateStatus moves a project between moderation states. It reports false when the
// project was not in the expected state.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, id string, from, to models.ProjectStatus) (bool, error) {
	const query = `UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update project status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update project status rows: %w", err)
	}
	return affected > 0, nil
}

// AddSponsor records userID as a sponsor of the project. It reports false when the
// sponsorship already existed.
func (r *ProjectRepository) AddSponsor(ctx context.Context, sponsorship *models.Sponsorship) (bool, error) {
	const query = `INSERT INTO sponsorships (id, project_id, sponsor_user_id, created_at)
VALUES (:id, :project_id, :sponsor_user_id, :created_at)
ON CONFLICT (project_id, sponsor_user_id) DO NOTHING`
	if sponsorship.CreatedAt.IsZero() {
		sponsorship.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.NamedExecContext(ctx, query, sponsorship)
	if err != nil {
		return false, fmt.Errorf("add sponsor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add sponsor rows: %w", err)
	}
	return affected > 0, nil
}

// ListSponsored returns the projects a user sponsors, newest sponsorship first.
func (r *ProjectRepository) ListSponsored(ctx context.Context, userID string) ([]models.Project, error) {
	query := `SELECT p.` + strings.ReplaceAll(projectColumns, ", ", ", p.") + ` FROM projects p
JOIN sponsorships s ON s.project_id = p.id
WHERE s.sponsor_user_id = $1
ORDER BY s.created_at DESC`
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, userID); err != nil {
		return nil, fmt.Errorf("list sponsored projects: %w", err)
	}
	return projects, nil
}
