package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
)

func newTestProjectService(store *memoryStore, source repositoryMetadataFetcher) (*ProjectService, *projectCatalogStore) {
	catalog := newProjectCatalogStore(store)
	svc := NewProjectService(catalog, store, source, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC) }
	return svc, catalog
}

func TestProjectListOnlyApprovedAndPages(t *testing.T) {
	store := newMemoryStore()
	for i := 0; i < 3; i++ {
		store.addProject(models.Project{ID: fmt.Sprintf("a%d", i), Name: fmt.Sprintf("Widget %d", i), Stars: 10 - i, Status: models.ProjectStatusApproved})
	}
	store.addProject(models.Project{ID: "p", Name: "Widget pending", Stars: 99, Status: models.ProjectStatusPending})
	store.addProject(models.Project{ID: "g", Name: "Gadget", Status: models.ProjectStatusApproved})
	svc, _ := newTestProjectService(store, nil)

	projects, page, err := svc.List(context.Background(), dto.ProjectListQuery{Search: "widget", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "a2", projects[0].ID)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 2, TotalCount: 3}, page)

	_, page, err = svc.List(context.Background(), dto.ProjectListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = svc.List(context.Background(), dto.ProjectListQuery{PageSize: 500})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProjectGetIncludesRecentContributions(t *testing.T) {
	store := newMemoryStore()
	store.addProject(models.Project{ID: "proj-1", Name: "Widgets", Status: models.ProjectStatusApproved})
	store.addEvent(models.ContributionEvent{ID: "e1", ProjectID: "proj-1"})
	store.addEvent(models.ContributionEvent{ID: "e2", ProjectID: "other"})
	svc, _ := newTestProjectService(store, nil)

	detail, err := svc.Get(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 1, detail.ContributionCount)
	require.Len(t, detail.RecentContributions, 1)
	assert.Equal(t, "e1", detail.RecentContributions[0].ID)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestProjectSubmitCreatesPendingListing(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestProjectService(store, nil)

	project, err := svc.Submit(context.Background(), "user-7", dto.SubmitProjectRequest{
		Name:        " Widgets ",
		Description: "Widget toolkit",
		GithubURL:   "https://github.com/acme/widgets.git",
		WebsiteURL:  "https://widgets.dev",
		Tags:        []string{"go", "cli"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPending, project.Status)
	assert.Equal(t, models.ProjectSourceManual, project.Source)
	assert.Equal(t, "acme/widgets", project.Locator())
	assert.Equal(t, "https://github.com/acme/widgets", project.GithubURL)
	assert.Equal(t, "go,cli", project.Tags)
	require.NotNil(t, project.SubmittedBy)
	assert.Equal(t, "user-7", *project.SubmittedBy)
	require.NotNil(t, store.projectNamed("Widgets"))

	_, err = svc.Submit(context.Background(), "user-8", dto.SubmitProjectRequest{Name: "Other", GithubURL: "https://github.com/ACME/widgets"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Submit(context.Background(), "user-8", dto.SubmitProjectRequest{Name: "Elsewhere", GithubURL: "https://gitlab.com/acme/widgets"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Submit(context.Background(), "user-8", dto.SubmitProjectRequest{GithubURL: "https://github.com/a/b"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProjectImportUsesSourceMetadata(t *testing.T) {
	store := newMemoryStore()
	desc := "Fast widgets"
	source := &fakeAdapter{meta: &models.ProjectMetadata{
		Locator:         "acme/widgets",
		Name:            "widgets",
		Description:     &desc,
		Stars:           120,
		Forks:           8,
		OpenIssuesCount: 4,
		Topics:          []string{"go", "hacktoberfest"},
	}}
	svc, _ := newTestProjectService(store, source)

	project, err := svc.Import(context.Background(), "maint-1", dto.ImportProjectRequest{RepoURL: "https://github.com/acme/widgets"})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPending, project.Status)
	assert.Equal(t, models.ProjectSourceGitHub, project.Source)
	assert.Equal(t, 120, project.Stars)
	assert.Equal(t, "go,hacktoberfest", project.Topics)
	assert.Equal(t, project.Topics, project.Tags)
	require.NotNil(t, project.LastSyncedAt)

	_, err = svc.Import(context.Background(), "maint-1", dto.ImportProjectRequest{RepoURL: "https://github.com/acme/widgets"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestProjectImportFailures(t *testing.T) {
	svc, _ := newTestProjectService(newMemoryStore(), nil)
	_, err := svc.Import(context.Background(), "u", dto.ImportProjectRequest{RepoURL: "https://github.com/acme/widgets"})
	assert.ErrorIs(t, err, appErrors.ErrConfiguration)

	store := newMemoryStore()
	svc, _ = newTestProjectService(store, &fakeAdapter{err: errors.New("404 Not Found")})
	_, err = svc.Import(context.Background(), "u", dto.ImportProjectRequest{RepoURL: "https://github.com/acme/gone"})
	assert.ErrorIs(t, err, appErrors.ErrUpstream)
	assert.Nil(t, store.projectNamed("gone"))

	_, err = svc.Import(context.Background(), "u", dto.ImportProjectRequest{RepoURL: "not a url"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProjectModerationIsGuarded(t *testing.T) {
	store := newMemoryStore()
	store.addProject(models.Project{ID: "p1", Name: "Pending", Status: models.ProjectStatusPending})
	store.addProject(models.Project{ID: "p2", Name: "Declined", Status: models.ProjectStatusRejected})
	svc, _ := newTestProjectService(store, nil)

	project, err := svc.Approve(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusApproved, project.Status)

	project, err = svc.Approve(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusApproved, project.Status)

	_, err = svc.Reject(context.Background(), "p1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Approve(context.Background(), "p2")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Reject(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestProjectSponsorIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	store.addProject(models.Project{ID: "p1", Name: "Listed", Status: models.ProjectStatusApproved})
	store.addProject(models.Project{ID: "p2", Name: "Waiting", Status: models.ProjectStatusPending})
	svc, catalog := newTestProjectService(store, nil)

	result, err := svc.Sponsor(context.Background(), "sponsor-1", "p1")
	require.NoError(t, err)
	assert.True(t, result.Created)

	result, err = svc.Sponsor(context.Background(), "sponsor-1", "p1")
	require.NoError(t, err)
	assert.False(t, result.Created)

	sponsored, err := catalog.ListSponsored(context.Background(), "sponsor-1")
	require.NoError(t, err)
	assert.Len(t, sponsored, 1)

	_, err = svc.Sponsor(context.Background(), "sponsor-1", "p2")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Sponsor(context.Background(), "", "p1")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestProjectInsightsPerRole(t *testing.T) {
	store := newMemoryStore()
	store.addProject(models.Project{ID: "p1", Name: "Widgets", Status: models.ProjectStatusApproved, OpenIssuesCount: 7, Tags: "go, good-first-issue"})
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	store.addEvent(models.ContributionEvent{ID: "e1", ProjectID: "p1", ActorUsername: "alice", Category: models.CategoryMergedPullRequest, OccurredAt: now.Add(-2 * 24 * time.Hour)})
	store.addEvent(models.ContributionEvent{ID: "e2", ProjectID: "p1", ActorUsername: "bob", Category: models.CategoryMergedPullRequest, OccurredAt: now.Add(-4 * 24 * time.Hour)})
	store.addEvent(models.ContributionEvent{ID: "e3", ProjectID: "p1", ActorUsername: "bob", Category: models.CategoryClosedIssue, OccurredAt: now.Add(-6 * 24 * time.Hour)})
	store.addEvent(models.ContributionEvent{ID: "e4", ProjectID: "p1", ActorUsername: "alice", Category: models.CategoryApprovedReview, OccurredAt: now.Add(-60 * 24 * time.Hour)})
	svc, _ := newTestProjectService(store, nil)

	insights, err := svc.Insights(context.Background(), "p1", models.RoleMaintainer)
	require.NoError(t, err)
	assert.Equal(t, "Merges (30d): 2 | Issues closed (30d): 1", insights.Snippet)
	assert.Equal(t, dto.InsightMetric{Label: "Returning contributors (30d)", Value: 1}, insights.Metrics[2])

	insights, err = svc.Insights(context.Background(), "p1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Status: APPROVED", insights.Snippet)
	assert.Equal(t, dto.InsightMetric{Label: "Project health", Value: 10}, insights.Metrics[0])

	insights, err = svc.Insights(context.Background(), "p1", models.RoleSponsor)
	require.NoError(t, err)
	assert.Equal(t, "Impact 30d: 2 merges, 2 contributors", insights.Snippet)
	assert.Equal(t, dto.InsightMetric{Label: "Momentum", Value: "3 activities"}, insights.Metrics[2])

	insights, err = svc.Insights(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleContributor, insights.Role)
	assert.Equal(t, "Open issues: 7 | Avg activity age: 18 days", insights.Snippet)
	assert.Equal(t, true, insights.Metrics[0].Value)

	_, err = svc.Insights(context.Background(), "missing", models.RoleAdmin)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestProjectDashboardPerRole(t *testing.T) {
	store := newMemoryStore()
	maintainer := "maint-1"
	store.addProject(models.Project{ID: "p1", Name: "Mine", Status: models.ProjectStatusApproved, SubmittedBy: &maintainer})
	store.addProject(models.Project{ID: "p2", Name: "Queued", Status: models.ProjectStatusPending})
	store.addEvent(models.ContributionEvent{ID: "e1", ProjectID: "p1", ActorUsername: "alice"})
	store.addEvent(models.ContributionEvent{ID: "e2", ProjectID: "p1", ActorUsername: "bob"})
	svc, catalog := newTestProjectService(store, nil)
	_, err := catalog.AddSponsor(context.Background(), &models.Sponsorship{ProjectID: "p1", SponsorUserID: "sponsor-1"})
	require.NoError(t, err)

	view, err := svc.Dashboard(context.Background(), &models.JWTClaims{UserID: "u1", Role: models.RoleContributor, GithubUsername: "alice"})
	require.NoError(t, err)
	require.Len(t, view.Contributions, 1)
	assert.Equal(t, "e1", view.Contributions[0].ID)
	assert.Nil(t, view.Stats)

	view, err = svc.Dashboard(context.Background(), &models.JWTClaims{UserID: maintainer, Role: models.RoleMaintainer})
	require.NoError(t, err)
	require.Len(t, view.Projects, 1)
	assert.Equal(t, "p1", view.Projects[0].ID)

	view, err = svc.Dashboard(context.Background(), &models.JWTClaims{UserID: "sponsor-1", Role: models.RoleSponsor})
	require.NoError(t, err)
	require.Len(t, view.Sponsorships, 1)

	view, err = svc.Dashboard(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, view.Pending, 1)
	assert.Equal(t, &dto.DashboardStats{TotalProjects: 2, PendingProjects: 1, Contributions: 2}, view.Stats)

	_, err = svc.Dashboard(context.Background(), nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
