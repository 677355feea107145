package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
	"github.com/contribmint/contribmint-api/pkg/response"
)

type consensusService interface {
	CastVote(ctx context.Context, userID string, req dto.CastVoteRequest) (*dto.VoteResult, error)
	ListVotes(ctx context.Context, contributionID string) ([]models.Vote, error)
	GetContribution(ctx context.Context, contributionID string) (*dto.ContributionDetail, error)
	ListContributions(ctx context.Context, query dto.ContributionListQuery) ([]models.ContributionEvent, *models.Pagination, error)
}

// ConsensusHandler exposes peer voting and contribution lookups.
type ConsensusHandler struct {
	service consensusService
}

// NewConsensusHandler builds a new handler.
func NewConsensusHandler(service consensusService) *ConsensusHandler {
	return &ConsensusHandler{service: service}
}

// CastVote godoc
// @Summary Cast or replace a vote on a contribution
// @Tags Consensus
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CastVoteRequest true "Vote payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /consensus/votes [post]
func (h *ConsensusHandler) CastVote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid vote payload"))
		return
	}
	result, err := h.service.CastVote(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListContributions godoc
// @Summary List contributions
// @Tags Contributions
// @Produce json
// @Security BearerAuth
// @Param project_id query string false "Project ID"
// @Param username query string false "Contributor username"
// @Param mint_status query string false "Mint status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contributions [get]
func (h *ConsensusHandler) ListContributions(c *gin.Context) {
	var query dto.ContributionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	items, pagination, err := h.service.ListContributions(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetContribution godoc
// @Summary Get a contribution with its tally
// @Tags Contributions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contribution ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contributions/{id} [get]
func (h *ConsensusHandler) GetContribution(c *gin.Context) {
	detail, err := h.service.GetContribution(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ListVotes godoc
// @Summary List the votes of a contribution
// @Tags Contributions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contribution ID"
// @Success 200 {object} response.Envelope
// @Router /contributions/{id}/votes [get]
func (h *ConsensusHandler) ListVotes(c *gin.Context) {
	votes, err := h.service.ListVotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, votes, nil)
}
