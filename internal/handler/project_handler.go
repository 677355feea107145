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

type projectService interface {
	List(ctx context.Context, query dto.ProjectListQuery) ([]models.Project, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.ProjectDetail, error)
	Submit(ctx context.Context, userID string, req dto.SubmitProjectRequest) (*models.Project, error)
	Import(ctx context.Context, userID string, req dto.ImportProjectRequest) (*models.Project, error)
	Approve(ctx context.Context, id string) (*models.Project, error)
	Reject(ctx context.Context, id string) (*models.Project, error)
	Sponsor(ctx context.Context, userID, projectID string) (*dto.SponsorResult, error)
	Insights(ctx context.Context, projectID string, role models.UserRole) (*dto.ProjectInsights, error)
	Dashboard(ctx context.Context, claims *models.JWTClaims) (*dto.Dashboard, error)
}

// ProjectHandler serves the project catalogue and role dashboards.
type ProjectHandler struct {
	service projectService
}

// NewProjectHandler builds a new handler.
func NewProjectHandler(service projectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// List godoc
// @Summary List approved projects
// @Tags Projects
// @Produce json
// @Param search query string false "Name or description search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	var query dto.ProjectListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	projects, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, pagination)
}

// Get godoc
// @Summary Get a project with recent contributions
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Submit godoc
// @Summary Propose a project for listing
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitProjectRequest true "Project payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid project payload"))
		return
	}
	project, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Import godoc
// @Summary Import a project from its repository URL
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ImportProjectRequest true "Repository URL"
// @Success 201 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /projects/import [post]
func (h *ProjectHandler) Import(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ImportProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}
	project, err := h.service.Import(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Approve godoc
// @Summary Approve a pending project
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/projects/{id}/approve [post]
func (h *ProjectHandler) Approve(c *gin.Context) {
	project, err := h.service.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Reject godoc
// @Summary Reject a pending project
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/projects/{id}/reject [post]
func (h *ProjectHandler) Reject(c *gin.Context) {
	project, err := h.service.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Sponsor godoc
// @Summary Sponsor an approved project
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/sponsor [post]
func (h *ProjectHandler) Sponsor(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Sponsor(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, nil)
}

// Insights godoc
// @Summary Role-specific activity insights for a project
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/insights [get]
func (h *ProjectHandler) Insights(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	insights, err := h.service.Insights(c.Request.Context(), c.Param("id"), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insights, nil)
}

// Dashboard godoc
// @Summary Landing view for the caller's role
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *ProjectHandler) Dashboard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.service.Dashboard(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
