package models

import (
	"regexp"
	"strings"
	"time"
)

// ProjectStatus captures moderation state of a listed project.
type ProjectStatus string

const (
	ProjectStatusPending  ProjectStatus = "PENDING"
	ProjectStatusApproved ProjectStatus = "APPROVED"
	ProjectStatusRejected ProjectStatus = "REJECTED"
)

// ProjectSource records where a project listing came from.
type ProjectSource string

const (
	ProjectSourceManual ProjectSource = "MANUAL"
	ProjectSourceGitHub ProjectSource = "GITHUB"
	ProjectSourceGSOC   ProjectSource = "GSOC"
)

// Project is an open-source project tracked by the platform.
type Project struct {
	ID              string        `db:"id" json:"id"`
	Name            string        `db:"name" json:"name"`
	Description     *string       `db:"description" json:"description,omitempty"`
	GithubOwner     string        `db:"github_owner" json:"github_owner"`
	GithubRepo      string        `db:"github_repo" json:"github_repo"`
	GithubURL       string        `db:"github_url" json:"github_url"`
	PrimaryLanguage *string       `db:"primary_language" json:"primary_language,omitempty"`
	Topics          string        `db:"topics" json:"topics"`
	Tags            string        `db:"tags" json:"tags"`
	WebsiteURL      *string       `db:"website_url" json:"website_url,omitempty"`
	Stars           int           `db:"stars" json:"stars"`
	Forks           int           `db:"forks" json:"forks"`
	OpenIssuesCount int           `db:"open_issues_count" json:"open_issues_count"`
	Status          ProjectStatus `db:"status" json:"status"`
	Source          ProjectSource `db:"source" json:"source"`
	GsocYear        *int          `db:"gsoc_year" json:"gsoc_year,omitempty"`
	SubmittedBy     *string       `db:"submitted_by" json:"submitted_by,omitempty"`
	LastSyncedAt    *time.Time    `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// Locator returns the "owner/repo" source locator of the project.
func (p Project) Locator() string {
	return p.GithubOwner + "/" + p.GithubRepo
}

// ProjectMetadata is the refreshed source view of a project.
type ProjectMetadata struct {
	Locator         string     `json:"locator"`
	Name            string     `json:"name"`
	Description     *string    `json:"description,omitempty"`
	PrimaryLanguage *string    `json:"primary_language,omitempty"`
	Stars           int        `json:"stars"`
	Forks           int        `json:"forks"`
	OpenIssuesCount int        `json:"open_issues_count"`
	Topics          []string   `json:"topics"`
	LastPushedAt    *time.Time `json:"last_pushed_at,omitempty"`
}

// ProjectFilter narrows project listings. Search matches name or description.
type ProjectFilter struct {
	Status      ProjectStatus
	Search      string
	SubmittedBy string
	Limit       int
	Offset      int
}

var githubRepoPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/?#]+)`)

// ParseGitHubURL extracts owner and repository from a github.com URL.
func ParseGitHubURL(raw string) (owner, repo string, ok bool) {
	match := githubRepoPattern.FindStringSubmatch(raw)
	if match == nil {
		return "", "", false
	}
	repo = strings.TrimSuffix(match[2], ".git")
	if repo == "" {
		return "", "", false
	}
	return match[1], repo, true
}

// Sponsorship links a sponsor account to a project it backs.
type Sponsorship struct {
	ID            string    `db:"id" json:"id"`
	ProjectID     string    `db:"project_id" json:"project_id"`
	SponsorUserID string    `db:"sponsor_user_id" json:"sponsor_user_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
