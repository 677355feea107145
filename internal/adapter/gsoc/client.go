package gsoc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/contribmint/contribmint-api/internal/dto"
	"github.com/contribmint/contribmint-api/internal/models"
)

// DefaultBaseURL is the public GSOC organizations API.
const DefaultBaseURL = "https://api.gsocorganizations.dev"

// Organization is one GSOC participating organization as published by the API.
type Organization struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Category     string   `json:"category"`
	Technologies []string `json:"technologies"`
	Topics       []string `json:"topics"`
}

// Client fetches GSOC organizations.
type Client struct {
	http *resty.Client
}

// NewClient builds a client against baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// Organizations returns the organizations that took part in year, ordered by name.
func (c *Client) Organizations(ctx context.Context, year int) ([]Organization, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		Get("/" + strconv.Itoa(year) + ".json")
	if err != nil {
		return nil, fmt.Errorf("fetch gsoc %d: %w", year, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch gsoc %d: unexpected status %d", year, resp.StatusCode())
	}
	return decodeOrganizations(resp.Body())
}

// Projects fetches year and converts each organization into a project candidate.
func (c *Client) Projects(ctx context.Context, year int) ([]dto.GSOCProject, error) {
	orgs, err := c.Organizations(ctx, year)
	if err != nil {
		return nil, err
	}
	projects := make([]dto.GSOCProject, 0, len(orgs))
	for _, org := range orgs {
		projects = append(projects, Transform(org, year))
	}
	return projects, nil
}

// The API publishes either an object keyed by organization name or a plain list.
func decodeOrganizations(body []byte) ([]Organization, error) {
	var keyed map[string]Organization
	if err := json.Unmarshal(body, &keyed); err == nil {
		orgs := make([]Organization, 0, len(keyed))
		for name, org := range keyed {
			if org.Name == "" {
				org.Name = name
			}
			orgs = append(orgs, org)
		}
		sort.Slice(orgs, func(i, j int) bool { return orgs[i].Name < orgs[j].Name })
		return orgs, nil
	}

	var list []Organization
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode gsoc organizations: %w", err)
	}
	return list, nil
}

// Transform maps an organization onto a project candidate.
func Transform(org Organization, year int) dto.GSOCProject {
	project := dto.GSOCProject{
		Name:        strings.TrimSpace(org.Name),
		Description: org.Description,
		Tags:        strings.Join(org.Technologies, ","),
		Topics:      strings.Join(org.Topics, ","),
		GsocYear:    year,
	}
	if len(org.Technologies) > 0 && org.Technologies[0] != "" {
		language := org.Technologies[0]
		project.PrimaryLanguage = &language
	}

	if owner, repo, ok := models.ParseGitHubURL(org.URL); ok {
		project.GithubURL = org.URL
		project.GithubOwner = owner
		project.GithubRepo = repo
	} else {
		project.OfficialWebsite = org.URL
	}
	return project
}
