package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	"github.com/contribmint/contribmint-api/pkg/response"
)

type reputationService interface {
	Recompute(ctx context.Context, projectID string) ([]models.ProjectReputation, error)
	Leaderboard(ctx context.Context, projectID string) (*dto.Leaderboard, error)
	Export(ctx context.Context, projectID, format string) (*dto.ExportFile, error)
}

// ReputationHandler exposes project leaderboards.
type ReputationHandler struct {
	service reputationService
}

// NewReputationHandler builds a new handler.
func NewReputationHandler(service reputationService) *ReputationHandler {
	return &ReputationHandler{service: service}
}

// Recompute godoc
// @Summary Recompute a project's reputation from its contributions
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id}/reputation/recompute [post]
func (h *ReputationHandler) Recompute(c *gin.Context) {
	rows, err := h.service.Recompute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"contributors": len(rows)})
}

// Leaderboard godoc
// @Summary Project reputation leaderboard
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/reputation [get]
func (h *ReputationHandler) Leaderboard(c *gin.Context) {
	board, err := h.service.Leaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// Export godoc
// @Summary Download a project leaderboard
// @Tags Projects
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /projects/{id}/reputation/export [get]
func (h *ReputationHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
