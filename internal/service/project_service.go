package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
)

const (
	insightWindow     = 30 * 24 * time.Hour
	insightEventLimit = 100
	dashboardLimit    = 10
)

type projectCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	ExistsByNameOrLocator(ctx context.Context, name, owner, repo string) (bool, error)
	Create(ctx context.Context, project *models.Project) error
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error)
	Count(ctx context.Context, filter models.ProjectFilter) (int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ProjectStatus) (bool, error)
	AddSponsor(ctx context.Context, sponsorship *models.Sponsorship) (bool, error)
	ListSponsored(ctx context.Context, userID string) ([]models.Project, error)
}

type projectActivityReader interface {
	List(ctx context.Context, filter models.ContributionFilter) ([]models.ContributionEvent, error)
	Count(ctx context.Context, filter models.ContributionFilter) (int, error)
}

type repositoryMetadataFetcher interface {
	FetchMetadata(ctx context.Context, locator string) (*models.ProjectMetadata, error)
}

// ProjectService manages the project catalogue: submission, moderation, sponsorship and
// the role-specific views built on top of contribution activity.
type ProjectService struct {
	projects  projectCatalog
	events    projectActivityReader
	source    repositoryMetadataFetcher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewProjectService constructs the service. source may be nil, which disables import by URL.
func NewProjectService(projects projectCatalog, events projectActivityReader, source repositoryMetadataFetcher, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{
		projects:  projects,
		events:    events,
		source:    source,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns one page of approved projects, optionally searched by name or description.
func (s *ProjectService) List(ctx context.Context, query dto.ProjectListQuery) ([]models.Project, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project query")
	}
	page, size := query.Page, query.PageSize
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = 20
	}
	filter := models.ProjectFilter{
		Status: models.ProjectStatusApproved,
		Search: query.Search,
		Limit:  size,
		Offset: (page - 1) * size,
	}
	projects, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	total, err := s.projects.Count(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count projects")
	}
	return projects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a project with its most recent contributions.
func (s *ProjectService) Get(ctx context.Context, id string) (*dto.ProjectDetail, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	filter := models.ContributionFilter{ProjectID: id, Limit: 20}
	recent, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contributions")
	}
	total, err := s.events.Count(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count contributions")
	}
	if recent == nil {
		recent = []models.ContributionEvent{}
	}
	return &dto.ProjectDetail{Project: *project, ContributionCount: total, RecentContributions: recent}, nil
}

// Submit proposes a project for listing. It stays PENDING until an administrator approves it.
func (s *ProjectService) Submit(ctx context.Context, userID string, req dto.SubmitProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	owner, repo, ok := models.ParseGitHubURL(req.GithubURL)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "github_url must point to a repository")
	}
	if err := s.ensureUnlisted(ctx, strings.TrimSpace(req.Name), owner, repo); err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		GithubOwner: owner,
		GithubRepo:  repo,
		GithubURL:   repositoryURL(owner, repo),
		Tags:        strings.Join(req.Tags, ","),
		Status:      models.ProjectStatusPending,
		Source:      models.ProjectSourceManual,
		SubmittedBy: optionalString(userID),
		Description: optionalString(strings.TrimSpace(req.Description)),
		WebsiteURL:  optionalString(req.WebsiteURL),
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "project not saved, retry later")
	}
	s.logger.Info("project submitted", zap.String("project_id", project.ID), zap.String("locator", project.Locator()), zap.String("user_id", userID))
	return project, nil
}

// Import registers a project from its repository URL, filling the listing from source metadata.
func (s *ProjectService) Import(ctx context.Context, userID string, req dto.ImportProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	owner, repo, ok := models.ParseGitHubURL(req.RepoURL)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "repo_url must point to a repository")
	}
	if s.source == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "no source adapter configured")
	}
	if err := s.ensureUnlisted(ctx, "", owner, repo); err != nil {
		return nil, err
	}

	locator := owner + "/" + repo
	meta, err := s.source.FetchMetadata(ctx, locator)
	if err != nil {
		s.logger.Warn("repository metadata unavailable", zap.String("locator", locator), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "repository not found or source unavailable")
	}

	name := meta.Name
	if name == "" {
		name = repo
	}
	topics := strings.Join(meta.Topics, ",")
	synced := s.now().UTC()
	project := &models.Project{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     meta.Description,
		GithubOwner:     owner,
		GithubRepo:      repo,
		GithubURL:       repositoryURL(owner, repo),
		PrimaryLanguage: meta.PrimaryLanguage,
		Topics:          topics,
		Tags:            topics,
		Stars:           meta.Stars,
		Forks:           meta.Forks,
		OpenIssuesCount: meta.OpenIssuesCount,
		Status:          models.ProjectStatusPending,
		Source:          models.ProjectSourceGitHub,
		SubmittedBy:     optionalString(userID),
		LastSyncedAt:    &synced,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "project not saved, retry later")
	}
	s.logger.Info("project imported", zap.String("project_id", project.ID), zap.String("locator", locator), zap.Int("stars", project.Stars))
	return project, nil
}

// Approve lists a pending project.
func (s *ProjectService) Approve(ctx context.Context, id string) (*models.Project, error) {
	return s.moderate(ctx, id, models.ProjectStatusApproved)
}

// Reject declines a pending project.
func (s *ProjectService) Reject(ctx context.Context, id string) (*models.Project, error) {
	return s.moderate(ctx, id, models.ProjectStatusRejected)
}

func (s *ProjectService) moderate(ctx context.Context, id string, to models.ProjectStatus) (*models.Project, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Status == to {
		return project, nil
	}
	if project.Status != models.ProjectStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("project is already %s", strings.ToLower(string(project.Status))))
	}
	moved, err := s.projects.UpdateStatus(ctx, id, models.ProjectStatusPending, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "project status not saved, retry later")
	}
	if !moved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "project status changed concurrently")
	}
	s.logger.Info("project reviewed", zap.String("project_id", id), zap.String("status", string(to)))
	project.Status = to
	return project, nil
}

// Sponsor records the caller as a sponsor of an approved project. Repeat calls are no-ops.
func (s *ProjectService) Sponsor(ctx context.Context, userID, projectID string) (*dto.SponsorResult, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != models.ProjectStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only approved projects accept sponsors")
	}
	created, err := s.projects.AddSponsor(ctx, &models.Sponsorship{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		SponsorUserID: userID,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "sponsorship not saved, retry later")
	}
	if created {
		s.logger.Info("project sponsored", zap.String("project_id", projectID), zap.String("user_id", userID))
	}
	return &dto.SponsorResult{ProjectID: projectID, Created: created}, nil
}

// Insights summarises the last 30 days of a project's activity for the caller's role.
func (s *ProjectService) Insights(ctx context.Context, projectID string, role models.UserRole) (*dto.ProjectInsights, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	events, err := s.events.List(ctx, models.ContributionFilter{ProjectID: projectID, Limit: insightEventLimit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	a := summarizeActivity(events, s.now())

	insights := &dto.ProjectInsights{ProjectID: projectID, Role: role}
	switch role {
	case models.RoleMaintainer:
		insights.Snippet = fmt.Sprintf("Merges (30d): %d | Issues closed (30d): %d", a.merges, a.issues)
		insights.Metrics = []dto.InsightMetric{
			{Label: "Open issues", Value: project.OpenIssuesCount, Helper: "As of last sync"},
			{Label: "Issues closed (30d)", Value: a.issues},
			{Label: "Returning contributors (30d)", Value: a.returning},
			{Label: "Velocity", Value: fmt.Sprintf("%d merges (30d)", a.merges)},
		}
	case models.RoleSponsor:
		insights.Snippet = fmt.Sprintf("Impact 30d: %d merges, %d contributors", a.merges, a.contributors)
		insights.Metrics = []dto.InsightMetric{
			{Label: "Impact (30d)", Value: fmt.Sprintf("%d merges", a.merges)},
			{Label: "Unique contributors", Value: a.contributors},
			{Label: "Momentum", Value: fmt.Sprintf("%d activities", a.merges+a.issues+a.reviews)},
		}
	case models.RoleAdmin:
		health := a.merges*2 + a.contributors*3
		if health > 100 {
			health = 100
		}
		insights.Snippet = fmt.Sprintf("Status: %s", project.Status)
		insights.Metrics = []dto.InsightMetric{
			{Label: "Project health", Value: health},
			{Label: "Events stored", Value: len(events)},
			{Label: "Unique actors", Value: a.contributors},
		}
	default:
		insights.Role = models.RoleContributor
		insights.Snippet = fmt.Sprintf("Open issues: %d | Avg activity age: %d days", project.OpenIssuesCount, a.averageAgeDays)
		insights.Metrics = []dto.InsightMetric{
			{Label: "Good first issues", Value: hasTag(project.Tags, "good-first-issue")},
			{Label: "Open issues", Value: project.OpenIssuesCount, Helper: "As of last sync"},
			{Label: "Avg activity age", Value: fmt.Sprintf("%d days", a.averageAgeDays)},
			{Label: "Unique contributors (30d)", Value: a.contributors},
		}
	}
	return insights, nil
}

// Dashboard builds the caller's landing view.
func (s *ProjectService) Dashboard(ctx context.Context, claims *models.JWTClaims) (*dto.Dashboard, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	view := &dto.Dashboard{Role: claims.Role}
	var err error
	switch claims.Role {
	case models.RoleAdmin:
		view.Pending, err = s.projects.List(ctx, models.ProjectFilter{Status: models.ProjectStatusPending, Limit: 50})
		if err != nil {
			break
		}
		view.Stats = &dto.DashboardStats{}
		if view.Stats.TotalProjects, err = s.projects.Count(ctx, models.ProjectFilter{}); err != nil {
			break
		}
		if view.Stats.PendingProjects, err = s.projects.Count(ctx, models.ProjectFilter{Status: models.ProjectStatusPending}); err != nil {
			break
		}
		view.Stats.Contributions, err = s.events.Count(ctx, models.ContributionFilter{})
	case models.RoleMaintainer:
		view.Projects, err = s.projects.List(ctx, models.ProjectFilter{SubmittedBy: claims.UserID, Limit: 50})
	case models.RoleSponsor:
		view.Sponsorships, err = s.projects.ListSponsored(ctx, claims.UserID)
	default:
		if claims.GithubUsername != "" {
			view.Contributions, err = s.events.List(ctx, models.ContributionFilter{ActorUsername: claims.GithubUsername, Limit: dashboardLimit})
		}
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
	}
	return view, nil
}

func (s *ProjectService) getProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

func (s *ProjectService) ensureUnlisted(ctx context.Context, name, owner, repo string) error {
	exists, err := s.projects.ExistsByNameOrLocator(ctx, name, owner, repo)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check listing")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "project already listed")
	}
	return nil
}

type activitySummary struct {
	merges         int
	issues         int
	reviews        int
	contributors   int
	returning      int
	averageAgeDays int
}

// summarizeActivity folds newest-first events into 30-day counters relative to now.
func summarizeActivity(events []models.ContributionEvent, now time.Time) activitySummary {
	var (
		summary  activitySummary
		recent   = map[string]struct{}{}
		earlier  = map[string]struct{}{}
		ageTotal int
	)
	for _, e := range events {
		age := now.Sub(e.OccurredAt)
		days := int(age.Hours() / 24)
		if days < 1 {
			days = 1
		}
		ageTotal += days
		if age > insightWindow {
			earlier[e.ActorUsername] = struct{}{}
			continue
		}
		recent[e.ActorUsername] = struct{}{}
		switch e.Category {
		case models.CategoryMergedPullRequest:
			summary.merges++
		case models.CategoryClosedIssue:
			summary.issues++
		case models.CategoryApprovedReview:
			summary.reviews++
		}
	}
	summary.contributors = len(recent)
	for actor := range recent {
		if _, ok := earlier[actor]; ok {
			summary.returning++
		}
	}
	if len(events) > 0 {
		summary.averageAgeDays = ageTotal / len(events)
	}
	return summary
}

func hasTag(tags, tag string) bool {
	for _, t := range strings.Split(tags, ",") {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

func repositoryURL(owner, repo string) string {
	return "https://github.com/" + owner + "/" + repo
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
