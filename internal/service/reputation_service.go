package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
	"github.com/contribmint/contribmint-api/pkg/export"
)

// reputationNamespace seeds the name-based ids of reputation rows.
var reputationNamespace = uuid.MustParse("6f0c9a51-3f0e-4b8e-9a53-5b8f1c1e2d7a")

type reputationRepository interface {
	Replace(ctx context.Context, projectID string, rows []models.ProjectReputation) error
	ListByProject(ctx context.Context, projectID string) ([]models.ProjectReputation, error)
}

type reputationEventReader interface {
	ListByProject(ctx context.Context, projectID string) ([]models.ContributionEvent, error)
}

type projectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
}

// ReputationService maintains the derived per-contributor point totals of projects.
type ReputationService struct {
	repo      reputationRepository
	events    reputationEventReader
	projects  projectFinder
	cache     *CacheService
	cacheTTL  time.Duration
	metrics   *MetricsService
	renderers map[string]export.Renderer
	logger    *zap.Logger
}

// NewReputationService constructs the aggregator.
func NewReputationService(repo reputationRepository, events reputationEventReader, projects projectFinder, cache *CacheService, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *ReputationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReputationService{
		repo:     repo,
		events:   events,
		projects: projects,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  metrics,
		renderers: map[string]export.Renderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		logger: logger,
	}
}

// Recompute rebuilds the project's reputation snapshot from its full event history and swaps it in atomically.
func (s *ReputationService) Recompute(ctx context.Context, projectID string) ([]models.ProjectReputation, error) {
	if _, err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	events, err := s.events.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load contributions")
	}

	rows := aggregateReputation(projectID, events)
	if err := s.repo.Replace(ctx, projectID, rows); err != nil {
		s.logger.Error("reputation swap failed", zap.String("project_id", projectID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "reputation not recomputed, retry later")
	}

	s.cache.Invalidate(ctx, leaderboardCacheKey(projectID))
	s.metrics.RecordRecompute()
	s.logger.Info("reputation recomputed", zap.String("project_id", projectID), zap.Int("contributors", len(rows)), zap.Int("events", len(events)))
	return rows, nil
}

// Leaderboard returns the ranked reputation of a project, served from cache when possible.
func (s *ReputationService) Leaderboard(ctx context.Context, projectID string) (*dto.Leaderboard, error) {
	key := leaderboardCacheKey(projectID)
	var cached dto.Leaderboard
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	if _, err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reputation")
	}

	board := &dto.Leaderboard{ProjectID: projectID, Entries: make([]dto.LeaderboardEntry, 0, len(rows))}
	for i, row := range rows {
		board.Entries = append(board.Entries, dto.LeaderboardEntry{
			Rank:       i + 1,
			Username:   row.Username,
			Points:     row.Points,
			ComputedAt: row.ComputedAt,
		})
	}
	s.cache.Set(ctx, key, board, s.cacheTTL)
	return board, nil
}

// Export renders the leaderboard as csv or pdf.
func (s *ReputationService) Export(ctx context.Context, projectID, format string) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	board, err := s.Leaderboard(ctx, projectID)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title:   fmt.Sprintf("Reputation %s", projectID),
		Headers: []string{"rank", "username", "points", "computed_at"},
		Rows:    make([][]string, 0, len(board.Entries)),
	}
	for _, entry := range board.Entries {
		data.Rows = append(data.Rows, []string{
			strconv.Itoa(entry.Rank),
			entry.Username,
			strconv.Itoa(entry.Points),
			entry.ComputedAt.UTC().Format(time.RFC3339),
		})
	}

	content, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("reputation-%s.%s", sanitizeFilename(projectID), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

func (s *ReputationService) requireProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

// aggregateReputation folds events into one row per contributor. Row ids and timestamps
// derive only from the events, so an unchanged history yields identical rows.
func aggregateReputation(projectID string, events []models.ContributionEvent) []models.ProjectReputation {
	totals := make(map[string]*models.ProjectReputation)
	for _, event := range events {
		row, ok := totals[event.ActorUsername]
		if !ok {
			row = &models.ProjectReputation{
				ID:        uuid.NewSHA1(reputationNamespace, []byte(projectID+"/"+event.ActorUsername)).String(),
				ProjectID: projectID,
				Username:  event.ActorUsername,
			}
			totals[event.ActorUsername] = row
		}
		row.Points += ScoreEvent(event.Category)
		if event.OccurredAt.After(row.ComputedAt) {
			row.ComputedAt = event.OccurredAt.UTC()
		}
	}

	rows := make([]models.ProjectReputation, 0, len(totals))
	for _, row := range totals {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].Username < rows[j].Username
	})
	return rows
}

func leaderboardCacheKey(projectID string) string {
	return "leaderboard:" + projectID
}

func sanitizeFilename(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, value)
}
