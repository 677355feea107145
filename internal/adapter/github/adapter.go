package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v68/github"

	"github.com/contribmint/contribmint-api/internal/models"
)

var pullNumberPattern = regexp.MustCompile(`/pull/(\d+)`)

// Config configures the GitHub source adapter.
type Config struct {
	Token      string
	BaseURL    string
	SyncLimit  int
	MaxRetries uint64
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Adapter reads repository metadata and contribution activity from GitHub.
type Adapter struct {
	client     *gh.Client
	limit      int
	maxRetries uint64
	retryDelay time.Duration
}

// New builds an adapter. A token is optional; unauthenticated calls are rate limited by GitHub.
func New(cfg Config) (*Adapter, error) {
	client := gh.NewClient(cfg.HTTPClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = base
	}
	if cfg.SyncLimit <= 0 || cfg.SyncLimit > 100 {
		cfg.SyncLimit = 50
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Adapter{client: client, limit: cfg.SyncLimit, maxRetries: cfg.MaxRetries, retryDelay: cfg.RetryDelay}, nil
}

// FetchMetadata returns the repository's current public metadata.
func (a *Adapter) FetchMetadata(ctx context.Context, locator string) (*models.ProjectMetadata, error) {
	owner, repo, err := splitLocator(locator)
	if err != nil {
		return nil, err
	}

	var repository *gh.Repository
	err = a.retry(ctx, func() error {
		var callErr error
		repository, _, callErr = a.client.Repositories.Get(ctx, owner, repo)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", locator, err)
	}

	meta := &models.ProjectMetadata{
		Locator:         locator,
		Name:            repository.GetName(),
		Stars:           repository.GetStargazersCount(),
		Forks:           repository.GetForksCount(),
		OpenIssuesCount: repository.GetOpenIssuesCount(),
		Topics:          repository.Topics,
	}
	if description := repository.GetDescription(); description != "" {
		meta.Description = &description
	}
	if language := repository.GetLanguage(); language != "" {
		meta.PrimaryLanguage = &language
	}
	if repository.PushedAt != nil {
		pushed := repository.PushedAt.Time
		meta.LastPushedAt = &pushed
	}
	return meta, nil
}

// ListActivities returns recently merged pull requests and closed issues, one page of each.
func (a *Adapter) ListActivities(ctx context.Context, locator string) ([]models.ExternalActivity, error) {
	owner, repo, err := splitLocator(locator)
	if err != nil {
		return nil, err
	}

	var pulls []*gh.PullRequest
	err = a.retry(ctx, func() error {
		var callErr error
		pulls, _, callErr = a.client.PullRequests.List(ctx, owner, repo, &gh.PullRequestListOptions{
			State:       "closed",
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: gh.ListOptions{PerPage: a.limit},
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("list pull requests %s: %w", locator, err)
	}

	var issues []*gh.Issue
	err = a.retry(ctx, func() error {
		var callErr error
		issues, _, callErr = a.client.Issues.ListByRepo(ctx, owner, repo, &gh.IssueListByRepoOptions{
			State:       "closed",
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: gh.ListOptions{PerPage: a.limit},
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("list issues %s: %w", locator, err)
	}

	activities := make([]models.ExternalActivity, 0, len(pulls)+len(issues))
	for _, pr := range pulls {
		if pr.MergedAt == nil {
			continue
		}
		activities = append(activities, models.ExternalActivity{
			ID:             strconv.Itoa(pr.GetNumber()),
			Title:          pr.GetTitle(),
			AuthorUsername: pr.GetUser().GetLogin(),
			URL:            pr.GetHTMLURL(),
			Kind:           models.ActivityPullRequest,
			Status:         models.ActivityMerged,
			CreatedAt:      pr.MergedAt.Time,
		})
	}
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		occurred := issue.GetCreatedAt().Time
		if issue.ClosedAt != nil {
			occurred = issue.ClosedAt.Time
		}
		activities = append(activities, models.ExternalActivity{
			ID:             strconv.Itoa(issue.GetNumber()),
			Title:          issue.GetTitle(),
			AuthorUsername: issue.GetUser().GetLogin(),
			URL:            issue.GetHTMLURL(),
			Kind:           models.ActivityIssue,
			Status:         models.ActivityClosed,
			CreatedAt:      occurred,
		})
	}
	return activities, nil
}

// VerifyActivity confirms the activity happened as reported: the pull request is merged,
// the issue is closed or the review is an approval. Unknown activities verify as false.
func (a *Adapter) VerifyActivity(ctx context.Context, locator string, activity models.ExternalActivity) (bool, error) {
	owner, repo, err := splitLocator(locator)
	if err != nil {
		return false, err
	}

	var verified bool
	err = a.retry(ctx, func() error {
		var callErr error
		verified, callErr = a.verify(ctx, owner, repo, activity)
		return callErr
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify %s %s#%s: %w", activity.Kind, locator, activity.ID, err)
	}
	return verified, nil
}

func (a *Adapter) verify(ctx context.Context, owner, repo string, activity models.ExternalActivity) (bool, error) {
	switch activity.Kind {
	case models.ActivityPullRequest:
		number, err := strconv.Atoi(activity.ID)
		if err != nil {
			return false, backoff.Permanent(errNotFound)
		}
		pr, _, err := a.client.PullRequests.Get(ctx, owner, repo, number)
		if err != nil {
			return false, err
		}
		return pr.GetMerged(), nil
	case models.ActivityIssue:
		number, err := strconv.Atoi(activity.ID)
		if err != nil {
			return false, backoff.Permanent(errNotFound)
		}
		issue, _, err := a.client.Issues.Get(ctx, owner, repo, number)
		if err != nil {
			return false, err
		}
		return issue.GetState() == "closed" && !issue.IsPullRequest(), nil
	case models.ActivityReview:
		reviewID, err := strconv.ParseInt(activity.ID, 10, 64)
		if err != nil {
			return false, backoff.Permanent(errNotFound)
		}
		match := pullNumberPattern.FindStringSubmatch(activity.URL)
		if match == nil {
			return false, backoff.Permanent(errNotFound)
		}
		number, _ := strconv.Atoi(match[1])
		review, _, err := a.client.PullRequests.GetReview(ctx, owner, repo, number, reviewID)
		if err != nil {
			return false, err
		}
		return review.GetState() == "APPROVED", nil
	}
	return false, backoff.Permanent(errNotFound)
}

var errNotFound = errors.New("activity not found")

// retry repeats op on transient failures. Client errors other than rate limiting are returned at once.
func (a *Adapter) retry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.retryDelay
	return backoff.Retry(func() error {
		err := op()
		if err == nil || transient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, a.maxRetries), ctx))
}

func transient(err error) bool {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var rateLimited *gh.RateLimitError
	if errors.As(err, &rateLimited) {
		return false
	}
	var response *gh.ErrorResponse
	if errors.As(err, &response) && response.Response != nil {
		status := response.Response.StatusCode
		return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
	}
	return true
}

func isNotFound(err error) bool {
	if errors.Is(err, errNotFound) {
		return true
	}
	var response *gh.ErrorResponse
	return errors.As(err, &response) && response.Response != nil && response.Response.StatusCode == http.StatusNotFound
}

func splitLocator(locator string) (string, string, error) {
	owner, repo, ok := strings.Cut(locator, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository locator %q", locator)
	}
	return owner, repo, nil
}
