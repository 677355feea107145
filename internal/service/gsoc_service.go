package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
)

type gsocFetcher interface {
	Projects(ctx context.Context, year int) ([]dto.GSOCProject, error)
}

type gsocProjectRepository interface {
	ExistsByNameOrLocator(ctx context.Context, name, owner, repo string) (bool, error)
	Create(ctx context.Context, project *models.Project) error
}

// GSOCService discovers GSOC organizations and imports them as projects.
type GSOCService struct {
	fetcher   gsocFetcher
	projects  gsocProjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGSOCService constructs the importer.
func NewGSOCService(fetcher gsocFetcher, projects gsocProjectRepository, validate *validator.Validate, logger *zap.Logger) *GSOCService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GSOCService{fetcher: fetcher, projects: projects, validator: validate, logger: logger}
}

// Preview fetches candidates for each year, keeping the first occurrence of every organization name.
func (s *GSOCService) Preview(ctx context.Context, req dto.GSOCPreviewRequest) (*dto.GSOCPreviewResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preview request")
	}

	result := &dto.GSOCPreviewResult{Projects: []dto.GSOCProject{}}
	seen := make(map[string]struct{})
	for _, year := range req.Years {
		candidates, err := s.fetcher.Projects(ctx, year)
		if err != nil {
			s.logger.Warn("gsoc fetch failed", zap.Int("year", year), zap.Error(err))
			result.Failures = append(result.Failures, fmt.Sprintf("%d: %v", year, err))
			continue
		}
		for _, candidate := range candidates {
			key := strings.ToLower(candidate.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result.Projects = append(result.Projects, candidate)
		}
	}

	if len(result.Failures) == len(req.Years) {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "gsoc organizations unavailable")
	}
	result.Count = len(result.Projects)
	return result, nil
}

// Import stores candidates that are not yet listed. A failing candidate is counted as skipped.
func (s *GSOCService) Import(ctx context.Context, req dto.GSOCImportRequest) (*dto.GSOCImportResult, error) {
	if len(req.Projects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no projects to import")
	}

	result := &dto.GSOCImportResult{Total: len(req.Projects)}
	for _, candidate := range req.Projects {
		if err := s.importOne(ctx, candidate); err != nil {
			result.Skipped++
			if err != errAlreadyListed {
				result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", candidate.Name, err))
			}
			continue
		}
		result.Imported++
	}

	s.logger.Info("gsoc import finished", zap.Int("imported", result.Imported), zap.Int("skipped", result.Skipped), zap.Int("total", result.Total))
	return result, nil
}

var errAlreadyListed = appErrors.Clone(appErrors.ErrConflict, "project already listed")

func (s *GSOCService) importOne(ctx context.Context, candidate dto.GSOCProject) error {
	if err := s.validator.Struct(candidate); err != nil {
		return err
	}
	exists, err := s.projects.ExistsByNameOrLocator(ctx, candidate.Name, candidate.GithubOwner, candidate.GithubRepo)
	if err != nil {
		return err
	}
	if exists {
		return errAlreadyListed
	}

	project := &models.Project{
		ID:              uuid.NewString(),
		Name:            candidate.Name,
		GithubOwner:     candidate.GithubOwner,
		GithubRepo:      candidate.GithubRepo,
		GithubURL:       candidate.GithubURL,
		PrimaryLanguage: candidate.PrimaryLanguage,
		Topics:          candidate.Topics,
		Tags:            candidate.Tags,
		Status:          models.ProjectStatusApproved,
		Source:          models.ProjectSourceGSOC,
	}
	if candidate.Description != "" {
		description := candidate.Description
		project.Description = &description
	}
	if candidate.OfficialWebsite != "" {
		website := candidate.OfficialWebsite
		project.WebsiteURL = &website
	}
	if candidate.GsocYear > 0 {
		year := candidate.GsocYear
		project.GsocYear = &year
	}
	return s.projects.Create(ctx, project)
}
