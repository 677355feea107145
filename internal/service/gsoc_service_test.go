package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
)

type stubGSOCFetcher map[int][]dto.GSOCProject

func (f stubGSOCFetcher) Projects(ctx context.Context, year int) ([]dto.GSOCProject, error) {
	projects, ok := f[year]
	if !ok {
		return nil, errors.New("404")
	}
	return projects, nil
}

func TestGSOCPreviewDeduplicatesAcrossYears(t *testing.T) {
	fetcher := stubGSOCFetcher{
		2023: {{Name: "Widgets", GsocYear: 2023}, {Name: "Gadgets", GsocYear: 2023}},
		2024: {{Name: "widgets", GsocYear: 2024}, {Name: "Docs", GsocYear: 2024}},
	}
	svc := NewGSOCService(fetcher, newMemoryStore(), nil, nil)

	result, err := svc.Preview(context.Background(), dto.GSOCPreviewRequest{Years: []int{2023, 2024, 2019}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, 2023, result.Projects[0].GsocYear)
	require.Len(t, result.Failures, 1)

	_, err = svc.Preview(context.Background(), dto.GSOCPreviewRequest{Years: []int{2019}})
	assert.ErrorIs(t, err, appErrors.ErrUpstream)

	_, err = svc.Preview(context.Background(), dto.GSOCPreviewRequest{Years: []int{1990}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGSOCImportSkipsExisting(t *testing.T) {
	store := newMemoryStore()
	store.addProject(models.Project{ID: "p1", Name: "Existing", GithubOwner: "acme", GithubRepo: "widgets"})
	svc := NewGSOCService(stubGSOCFetcher{}, store, nil, nil)

	lang := "Go"
	result, err := svc.Import(context.Background(), dto.GSOCImportRequest{Projects: []dto.GSOCProject{
		{Name: "Fresh", GithubOwner: "fresh", GithubRepo: "app", PrimaryLanguage: &lang, Description: "new", GsocYear: 2024},
		{Name: "Renamed", GithubOwner: "ACME", GithubRepo: "widgets"},
		{Name: "existing"},
		{Name: ""},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 4, result.Total)
	assert.Len(t, result.Failures, 1)

	exists, err := store.ExistsByNameOrLocator(context.Background(), "Fresh", "", "")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = svc.Import(context.Background(), dto.GSOCImportRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGSOCImportKeepsTagsAndWebsite(t *testing.T) {
	store := newMemoryStore()
	svc := NewGSOCService(stubGSOCFetcher{}, store, nil, nil)

	_, err := svc.Import(context.Background(), dto.GSOCImportRequest{Projects: []dto.GSOCProject{
		{Name: "Docs Org", Tags: "python,sphinx", Topics: "documentation", OfficialWebsite: "https://docs.example.org", GsocYear: 2023},
	}})
	require.NoError(t, err)

	project := store.projectNamed("Docs Org")
	require.NotNil(t, project)
	assert.Equal(t, "python,sphinx", project.Tags)
	assert.Equal(t, "documentation", project.Topics)
	require.NotNil(t, project.WebsiteURL)
	assert.Equal(t, "https://docs.example.org", *project.WebsiteURL)
	assert.Equal(t, models.ProjectSourceGSOC, project.Source)
	require.NotNil(t, project.GsocYear)
	assert.Equal(t, 2023, *project.GsocYear)
}
