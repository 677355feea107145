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

type ingestionService interface {
	Ingest(ctx context.Context, req dto.IngestRequest) (*dto.IngestResult, error)
	EnqueueSync(ctx context.Context, projectID string) (*dto.SyncAccepted, error)
	Simulate(ctx context.Context, req dto.SimulateEventRequest) (*models.ContributionEvent, error)
	SimulateVotes(ctx context.Context, req dto.SimulateVotesRequest) (*dto.VoteResult, error)
}

// IngestHandler accepts activity pushed by source integrations and admin simulations.
type IngestHandler struct {
	service ingestionService
}

// NewIngestHandler builds a new handler.
func NewIngestHandler(service ingestionService) *IngestHandler {
	return &IngestHandler{service: service}
}

// Ingest godoc
// @Summary Ingest a source activity
// @Description Requires the ingest API key as a bearer token. Re-ingesting returns the stored event with 200.
// @Tags Ingestion
// @Accept json
// @Produce json
// @Param payload body dto.IngestRequest true "Activity"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ingest [post]
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ingest payload"))
		return
	}
	result, err := h.service.Ingest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, result.Event, nil)
}

// Sync godoc
// @Summary Queue a project sync from its source
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects/{id}/sync [post]
func (h *IngestHandler) Sync(c *gin.Context) {
	accepted, err := h.service.EnqueueSync(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, accepted, nil)
}

// SimulateEvent godoc
// @Summary Create a simulated merged pull request
// @Tags Simulation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SimulateEventRequest true "Simulation"
// @Success 201 {object} response.Envelope
// @Router /simulate/events [post]
func (h *IngestHandler) SimulateEvent(c *gin.Context) {
	var req dto.SimulateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid simulation payload"))
		return
	}
	event, err := h.service.Simulate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// SimulateVotes godoc
// @Summary Cast simulated votes on a contribution
// @Tags Simulation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SimulateVotesRequest true "Simulation"
// @Success 200 {object} response.Envelope
// @Router /simulate/votes [post]
func (h *IngestHandler) SimulateVotes(c *gin.Context) {
	var req dto.SimulateVotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid simulation payload"))
		return
	}
	result, err := h.service.SimulateVotes(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
