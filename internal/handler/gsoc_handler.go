package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contribmint/contribmint-api/internal/dto"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
	"github.com/contribmint/contribmint-api/pkg/response"
)

type gsocService interface {
	Preview(ctx context.Context, req dto.GSOCPreviewRequest) (*dto.GSOCPreviewResult, error)
	Import(ctx context.Context, req dto.GSOCImportRequest) (*dto.GSOCImportResult, error)
}

// GSOCHandler exposes the admin GSOC discovery flow.
type GSOCHandler struct {
	service gsocService
}

// NewGSOCHandler builds a new handler.
func NewGSOCHandler(service gsocService) *GSOCHandler {
	return &GSOCHandler{service: service}
}

// Preview godoc
// @Summary Preview GSOC organizations as project candidates
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GSOCPreviewRequest true "Years"
// @Success 200 {object} response.Envelope
// @Router /admin/gsoc/preview [post]
func (h *GSOCHandler) Preview(c *gin.Context) {
	var req dto.GSOCPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid years array"))
		return
	}
	result, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Import godoc
// @Summary Import previewed GSOC candidates
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GSOCImportRequest true "Candidates"
// @Success 200 {object} response.Envelope
// @Router /admin/gsoc/import [post]
func (h *GSOCHandler) Import(c *gin.Context) {
	var req dto.GSOCImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}
	result, err := h.service.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
