package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
)

type consensusVoteRepository interface {
	CastAndTally(ctx context.Context, vote *models.Vote, decide models.StatusDecider) (*models.VoteOutcome, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Vote, error)
	Tally(ctx context.Context, eventID string) (models.VoteTally, error)
}

type consensusContributionReader interface {
	FindByID(ctx context.Context, id string) (*models.ContributionEvent, error)
	List(ctx context.Context, filter models.ContributionFilter) ([]models.ContributionEvent, error)
	Count(ctx context.Context, filter models.ContributionFilter) (int, error)
}

// ConsensusService records peer votes and promotes contributions once consensus is reached.
type ConsensusService struct {
	votes         consensusVoteRepository
	contributions consensusContributionReader
	rule          ConsensusRule
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewConsensusService constructs the consensus engine.
func NewConsensusService(votes consensusVoteRepository, contributions consensusContributionReader, rule ConsensusRule, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ConsensusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rule.MinVotes <= 0 {
		rule.MinVotes = DefaultConsensusRule.MinVotes
	}
	if rule.MinMean <= 0 {
		rule.MinMean = DefaultConsensusRule.MinMean
	}
	return &ConsensusService{
		votes:         votes,
		contributions: contributions,
		rule:          rule,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// CastVote stores userID's standing score for a contribution and applies the eligibility rule.
func (s *ConsensusService) CastVote(ctx context.Context, userID string, req dto.CastVoteRequest) (*dto.VoteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vote payload")
	}
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if req.Score < models.MinVoteScore || req.Score > models.MaxVoteScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score must be between %d and %d", models.MinVoteScore, models.MaxVoteScore))
	}

	vote := &models.Vote{ContributionEventID: req.ContributionID, UserID: userID, Score: req.Score}
	outcome, err := s.votes.CastAndTally(ctx, vote, func(current models.MintStatus, tally models.VoteTally) (models.MintStatus, error) {
		return s.rule.Transition(current, VoteTallied{Tally: tally})
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "contribution not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.logger.Error("vote not recorded", zap.String("contribution_id", req.ContributionID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "vote not recorded, retry later")
	}

	s.metrics.RecordVote(outcome.PreviousStatus, outcome.Status)
	if outcome.Status != outcome.PreviousStatus {
		s.logger.Info("contribution status changed",
			zap.String("contribution_id", req.ContributionID),
			zap.String("from", string(outcome.PreviousStatus)),
			zap.String("to", string(outcome.Status)),
			zap.Int("votes", outcome.Tally.Count),
		)
	}

	return &dto.VoteResult{
		ContributionID: req.ContributionID,
		MeanScore:      roundMean(outcome.Tally.Mean()),
		VoteCount:      outcome.Tally.Count,
		Status:         outcome.Status,
		PreviousStatus: outcome.PreviousStatus,
	}, nil
}

// ListVotes returns the current votes of a contribution.
func (s *ConsensusService) ListVotes(ctx context.Context, contributionID string) ([]models.Vote, error) {
	if _, err := s.getContribution(ctx, contributionID); err != nil {
		return nil, err
	}
	votes, err := s.votes.ListByEvent(ctx, contributionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list votes")
	}
	return votes, nil
}

// GetContribution returns a contribution with its current tally.
func (s *ConsensusService) GetContribution(ctx context.Context, contributionID string) (*dto.ContributionDetail, error) {
	event, err := s.getContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	tally, err := s.votes.Tally(ctx, contributionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to tally votes")
	}
	return &dto.ContributionDetail{
		ContributionEvent: *event,
		VoteCount:         tally.Count,
		MeanScore:         roundMean(tally.Mean()),
	}, nil
}

// ListContributions returns one page of contributions matching the query.
func (s *ConsensusService) ListContributions(ctx context.Context, query dto.ContributionListQuery) ([]models.ContributionEvent, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contribution filter")
	}
	page, size := query.Page, query.Limit
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = 50
	}
	filter := models.ContributionFilter{
		ProjectID:     query.ProjectID,
		ActorUsername: query.Username,
		MintStatus:    models.MintStatus(query.MintStatus),
		Limit:         size,
		Offset:        (page - 1) * size,
	}
	events, err := s.contributions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contributions")
	}
	total, err := s.contributions.Count(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count contributions")
	}
	return events, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *ConsensusService) getContribution(ctx context.Context, id string) (*models.ContributionEvent, error) {
	event, err := s.contributions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contribution")
	}
	return event, nil
}

// roundMean trims the mean to two decimals for display. Eligibility never sees this value.
func roundMean(mean float64) float64 {
	return math.Round(mean*100) / 100
}
