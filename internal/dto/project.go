package dto

import "github.com/contribmint/contribmint-api/internal/models"

// ProjectListQuery filters the public project catalogue.
type ProjectListQuery struct {
	Search   string `form:"search" validate:"max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// SubmitProjectRequest proposes a project for listing.
type SubmitProjectRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	GithubURL   string   `json:"github_url" validate:"required,url"`
	WebsiteURL  string   `json:"website_url" validate:"omitempty,url"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
}

// ImportProjectRequest registers a project straight from its repository.
type ImportProjectRequest struct {
	RepoURL string `json:"repo_url" validate:"required,url"`
}

// ProjectDetail is a project with its most recent contributions.
type ProjectDetail struct {
	models.Project
	ContributionCount   int                        `json:"contribution_count"`
	RecentContributions []models.ContributionEvent `json:"recent_contributions"`
}

// SponsorResult acknowledges a sponsorship.
type SponsorResult struct {
	ProjectID string `json:"project_id"`
	Created   bool   `json:"created"`
}

// InsightMetric is one labelled figure on an insights panel.
type InsightMetric struct {
	Label  string      `json:"label"`
	Value  interface{} `json:"value"`
	Helper string      `json:"helper,omitempty"`
}

// ProjectInsights is a role-specific summary of recent project activity.
type ProjectInsights struct {
	ProjectID string          `json:"project_id"`
	Role      models.UserRole `json:"role"`
	Snippet   string          `json:"snippet"`
	Metrics   []InsightMetric `json:"metrics"`
}

// DashboardStats are platform totals shown to administrators.
type DashboardStats struct {
	TotalProjects   int `json:"total_projects"`
	PendingProjects int `json:"pending_projects"`
	Contributions   int `json:"contributions"`
}

// Dashboard is the landing view for the caller's role. Only the sections for that role are set.
type Dashboard struct {
	Role          models.UserRole            `json:"role"`
	Contributions []models.ContributionEvent `json:"contributions,omitempty"`
	Projects      []models.Project           `json:"projects,omitempty"`
	Sponsorships  []models.Project           `json:"sponsorships,omitempty"`
	Pending       []models.Project           `json:"pending,omitempty"`
	Stats         *DashboardStats            `json:"stats,omitempty"`
}
