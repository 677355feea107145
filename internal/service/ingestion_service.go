package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
	"github.com/contribmint/contribmint-api/pkg/jobs"
)

// SyncJobType labels project sync jobs on the background queue.
const SyncJobType = "project.sync"

// SourceAdapter reads projects and their activity from a code hosting source.
type SourceAdapter interface {
	FetchMetadata(ctx context.Context, locator string) (*models.ProjectMetadata, error)
	ListActivities(ctx context.Context, locator string) ([]models.ExternalActivity, error)
	VerifyActivity(ctx context.Context, locator string, activity models.ExternalActivity) (bool, error)
}

type ingestProjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindByLocator(ctx context.Context, owner, repo string) (*models.Project, error)
	UpdateMetadata(ctx context.Context, id string, meta models.ProjectMetadata, topics string, syncedAt time.Time) error
}

type ingestContributionRepository interface {
	Insert(ctx context.Context, event *models.ContributionEvent) (bool, error)
	FindByID(ctx context.Context, id string) (*models.ContributionEvent, error)
}

type reputationRecomputer interface {
	Recompute(ctx context.Context, projectID string) ([]models.ProjectReputation, error)
}

type voteCaster interface {
	CastVote(ctx context.Context, userID string, req dto.CastVoteRequest) (*dto.VoteResult, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// IngestionService turns source activity into contribution events.
type IngestionService struct {
	projects      ingestProjectRepository
	contributions ingestContributionRepository
	adapter       SourceAdapter
	reputation    reputationRecomputer
	votes         voteCaster
	queue         jobEnqueuer
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewIngestionService wires the ingestion pipeline. The adapter may be nil when no source is configured.
func NewIngestionService(projects ingestProjectRepository, contributions ingestContributionRepository, adapter SourceAdapter, reputation reputationRecomputer, votes voteCaster, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *IngestionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{
		projects:      projects,
		contributions: contributions,
		adapter:       adapter,
		reputation:    reputation,
		votes:         votes,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// UseQueue attaches the background queue used by EnqueueSync.
func (s *IngestionService) UseQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Ingest verifies a reported activity with the source and records it once.
// Re-ingesting an activity returns the stored event untouched.
func (s *IngestionService) Ingest(ctx context.Context, req dto.IngestRequest) (*dto.IngestResult, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordIngestion(IngestRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ingest payload")
	}
	if err := s.validator.Struct(req.Activity); err != nil {
		s.metrics.RecordIngestion(IngestRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity")
	}

	project, err := s.resolveProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if s.adapter == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "no source adapter configured")
	}

	verified, err := s.adapter.VerifyActivity(ctx, project.Locator(), *req.Activity)
	if err != nil {
		s.metrics.RecordIngestion(IngestFailed)
		s.logger.Warn("activity verification failed", zap.String("project_id", project.ID), zap.String("activity_id", req.Activity.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "activity verification unavailable")
	}
	if !verified {
		s.metrics.RecordIngestion(IngestRejected)
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity verification failed")
	}

	return s.record(ctx, project, *req.Activity)
}

// SyncProject refreshes a project from its source and ingests its recent activity.
// Individual activity failures are counted and do not abort the batch.
func (s *IngestionService) SyncProject(ctx context.Context, projectID string) (*dto.SyncResult, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.adapter == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "no source adapter configured")
	}
	if project.GithubOwner == "" || project.GithubRepo == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "project has no source repository")
	}

	locator := project.Locator()
	meta, err := s.adapter.FetchMetadata(ctx, locator)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to fetch project metadata")
	}
	syncedAt := s.now().UTC()
	if err := s.projects.UpdateMetadata(ctx, project.ID, *meta, strings.Join(meta.Topics, ","), syncedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to store project metadata")
	}

	activities, err := s.adapter.ListActivities(ctx, locator)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list project activity")
	}

	result := &dto.SyncResult{ProjectID: project.ID, SyncedAt: syncedAt}
	for _, activity := range activities {
		if err := s.validator.Struct(activity); err != nil {
			s.metrics.RecordIngestion(IngestRejected)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", activity.ID, err))
			continue
		}
		recorded, err := s.record(ctx, project, activity)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", activity.ID, err))
		case recorded.Created:
			result.Imported++
		default:
			result.Skipped++
		}
	}

	if s.reputation != nil {
		if _, err := s.reputation.Recompute(ctx, project.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reputation: %v", err))
		}
	}

	s.logger.Info("project synced",
		zap.String("project_id", project.ID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// EnqueueSync schedules a background sync of the project.
func (s *IngestionService) EnqueueSync(ctx context.Context, projectID string) (*dto.SyncAccepted, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "sync queue is not running")
	}

	job := jobs.Job{ID: uuid.NewString(), Key: project.ID, Type: SyncJobType, Payload: project.ID}
	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, jobs.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "sync already queued for project")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "sync queue unavailable, retry later")
	}
	return &dto.SyncAccepted{JobID: job.ID, ProjectID: project.ID}, nil
}

// HandleSyncJob runs a queued sync. Only retryable failures are handed back to the queue for retry.
func (s *IngestionService) HandleSyncJob(ctx context.Context, job jobs.Job) error {
	projectID, ok := job.Payload.(string)
	if !ok || projectID == "" {
		return backoff.Permanent(fmt.Errorf("job %s: missing project id", job.ID))
	}
	if _, err := s.SyncProject(ctx, projectID); err != nil {
		if appErrors.Retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	return nil
}

// Simulate records a synthetic merged pull request for demos and local testing.
func (s *IngestionService) Simulate(ctx context.Context, req dto.SimulateEventRequest) (*models.ContributionEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid simulation payload")
	}
	project, err := s.findProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stamp := now.UnixNano()
	title := req.Title
	if title == "" {
		title = "Simulated PR: " + req.Username
	}
	metadata, _ := json.Marshal(map[string]interface{}{"simulated": true})
	event := &models.ContributionEvent{
		ID:            fmt.Sprintf("%s:sim-%d", project.ID, stamp),
		ProjectID:     project.ID,
		Category:      models.CategoryMergedPullRequest,
		ActorUsername: req.Username,
		TargetRef:     fmt.Sprintf("sim-%d", stamp),
		Title:         title,
		URL:           fmt.Sprintf("https://github.com/simulated/pr/%d", stamp),
		OccurredAt:    now,
		Metadata:      metadata,
		MintStatus:    models.MintStatusAwaitingVotes,
	}
	if _, err := s.contributions.Insert(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "simulated event not stored")
	}
	s.metrics.RecordIngestion(IngestImported)
	return s.readBack(ctx, event.ID)
}

// SimulateVotes casts VoteCount synthetic votes whose scores round to AverageScore.
func (s *IngestionService) SimulateVotes(ctx context.Context, req dto.SimulateVotesRequest) (*dto.VoteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid simulation payload")
	}
	if s.votes == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "vote simulation is not configured")
	}

	score := int(math.Round(req.AverageScore))
	if score < models.MinVoteScore {
		score = models.MinVoteScore
	}
	if score > models.MaxVoteScore {
		score = models.MaxVoteScore
	}

	var result *dto.VoteResult
	for i := 1; i <= req.VoteCount; i++ {
		var err error
		result, err = s.votes.CastVote(ctx, fmt.Sprintf("sim-voter-%d", i), dto.CastVoteRequest{ContributionID: req.ContributionID, Score: score})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *IngestionService) record(ctx context.Context, project *models.Project, activity models.ExternalActivity) (*dto.IngestResult, error) {
	event, err := s.buildEvent(project, activity)
	if err != nil {
		s.metrics.RecordIngestion(IngestRejected)
		return nil, err
	}

	created, err := s.contributions.Insert(ctx, event)
	if err != nil {
		s.metrics.RecordIngestion(IngestFailed)
		s.logger.Error("contribution not stored", zap.String("contribution_id", event.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "contribution not stored, retry later")
	}
	if created {
		s.metrics.RecordIngestion(IngestImported)
	} else {
		s.metrics.RecordIngestion(IngestSkipped)
	}

	stored, err := s.readBack(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	return &dto.IngestResult{Event: stored, Created: created}, nil
}

func (s *IngestionService) buildEvent(project *models.Project, activity models.ExternalActivity) (*models.ContributionEvent, error) {
	category, prefix, ok := categorize(activity.Kind)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported activity type %q", activity.Kind))
	}
	if activity.Status != "" && activity.Status != completedStatus(activity.Kind) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s activity %s is %s", strings.ToLower(string(activity.Kind)), activity.ID, activity.Status))
	}

	metadata, err := json.Marshal(activity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "activity metadata not encodable")
	}
	occurred := activity.CreatedAt
	if occurred.IsZero() {
		occurred = s.now()
	}

	return &models.ContributionEvent{
		ID:            fmt.Sprintf("%s:%s-%s", project.ID, prefix, activity.ID),
		ProjectID:     project.ID,
		Category:      category,
		ActorUsername: activity.AuthorUsername,
		TargetRef:     fmt.Sprintf("%s#%s", project.Locator(), activity.ID),
		Title:         activity.Title,
		URL:           activity.URL,
		OccurredAt:    occurred.UTC(),
		Metadata:      metadata,
		MintStatus:    models.MintStatusAwaitingVotes,
	}, nil
}

func categorize(kind models.ActivityKind) (models.EventCategory, string, bool) {
	switch kind {
	case models.ActivityPullRequest:
		return models.CategoryMergedPullRequest, "pr", true
	case models.ActivityIssue:
		return models.CategoryClosedIssue, "issue", true
	case models.ActivityReview:
		return models.CategoryApprovedReview, "review", true
	}
	return "", "", false
}

func completedStatus(kind models.ActivityKind) models.ActivityStatus {
	switch kind {
	case models.ActivityPullRequest:
		return models.ActivityMerged
	case models.ActivityIssue:
		return models.ActivityClosed
	default:
		return models.ActivityApproved
	}
}

func (s *IngestionService) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	owner, repo, isLocator := strings.Cut(ref, "/")
	if !isLocator {
		return s.findProject(ctx, ref)
	}
	project, err := s.projects.FindByLocator(ctx, owner, repo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load project")
	}
	return project, nil
}

func (s *IngestionService) findProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load project")
	}
	return project, nil
}

func (s *IngestionService) readBack(ctx context.Context, id string) (*models.ContributionEvent, error) {
	event, err := s.contributions.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to read stored contribution")
	}
	return event, nil
}
