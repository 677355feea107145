package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/contribmint/contribmint-api/internal/models"
)

// memoryStore is an in-memory stand-in for the contribution, vote, reputation and project repositories.
type memoryStore struct {
	mu          sync.Mutex
	events      map[string]*models.ContributionEvent
	votes       map[string]map[string]int
	reputations map[string][]models.ProjectReputation
	projects    map[string]*models.Project

	failVotes   error
	failReplace error
	replaces    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:      map[string]*models.ContributionEvent{},
		votes:       map[string]map[string]int{},
		reputations: map[string][]models.ProjectReputation{},
		projects:    map[string]*models.Project{},
	}
}

func (m *memoryStore) addEvent(e models.ContributionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.MintStatus == "" {
		e.MintStatus = models.MintStatusAwaitingVotes
	}
	m.events[e.ID] = &e
}

func (m *memoryStore) addProject(p models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = &p
}

func (m *memoryStore) projectNamed(name string) *models.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if p.Name == name {
			copied := *p
			return &copied
		}
	}
	return nil
}

func (m *memoryStore) status(id string) models.MintStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id].MintStatus
}

func (m *memoryStore) voteCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.votes[id])
}

func (m *memoryStore) CastAndTally(ctx context.Context, vote *models.Vote, decide models.StatusDecider) (*models.VoteOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failVotes != nil {
		return nil, m.failVotes
	}
	event, ok := m.events[vote.ContributionEventID]
	if !ok {
		return nil, sql.ErrNoRows
	}

	staged := map[string]int{}
	for user, score := range m.votes[event.ID] {
		staged[user] = score
	}
	staged[vote.UserID] = vote.Score

	tally := models.VoteTally{Count: len(staged)}
	for _, score := range staged {
		tally.Sum += score
	}
	next, err := decide(event.MintStatus, tally)
	if err != nil {
		return nil, err
	}

	outcome := &models.VoteOutcome{Tally: tally, PreviousStatus: event.MintStatus, Status: next}
	m.votes[event.ID] = staged
	event.MintStatus = next
	return outcome, nil
}

func (m *memoryStore) ListByEvent(ctx context.Context, eventID string) ([]models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var votes []models.Vote
	for user, score := range m.votes[eventID] {
		votes = append(votes, models.Vote{ContributionEventID: eventID, UserID: user, Score: score})
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].UserID < votes[j].UserID })
	return votes, nil
}

func (m *memoryStore) Tally(ctx context.Context, eventID string) (models.VoteTally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tally := models.VoteTally{Count: len(m.votes[eventID])}
	for _, score := range m.votes[eventID] {
		tally.Sum += score
	}
	return tally, nil
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.ContributionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *event
	return &copied, nil
}

func (m *memoryStore) Insert(ctx context.Context, event *models.ContributionEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[event.ID]; exists {
		return false, nil
	}
	if event.MintStatus == "" {
		event.MintStatus = models.MintStatusAwaitingVotes
	}
	copied := *event
	m.events[event.ID] = &copied
	return true, nil
}

func (m *memoryStore) List(ctx context.Context, filter models.ContributionFilter) ([]models.ContributionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ContributionEvent
	for _, e := range m.events {
		if filter.ProjectID != "" && e.ProjectID != filter.ProjectID {
			continue
		}
		if filter.MintStatus != "" && e.MintStatus != filter.MintStatus {
			continue
		}
		if filter.ActorUsername != "" && e.ActorUsername != filter.ActorUsername {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryStore) Count(ctx context.Context, filter models.ContributionFilter) (int, error) {
	filter.Limit, filter.Offset = 0, 0
	events, err := m.List(ctx, filter)
	return len(events), err
}

func (m *memoryStore) ListByProject(ctx context.Context, projectID string) ([]models.ContributionEvent, error) {
	return m.List(ctx, models.ContributionFilter{ProjectID: projectID})
}

func (m *memoryStore) UpdateMintStatus(ctx context.Context, id string, from, to models.MintStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok || event.MintStatus != from {
		return false, nil
	}
	event.MintStatus = to
	return true, nil
}

func (m *memoryStore) Replace(ctx context.Context, projectID string, rows []models.ProjectReputation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReplace != nil {
		return m.failReplace
	}
	m.replaces++
	m.reputations[projectID] = append([]models.ProjectReputation(nil), rows...)
	return nil
}

func (m *memoryStore) ListReputation(projectID string) []models.ProjectReputation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ProjectReputation(nil), m.reputations[projectID]...)
}

func (m *memoryStore) FindProject(ctx context.Context, id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (m *memoryStore) FindByLocator(ctx context.Context, owner, repo string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if strings.EqualFold(p.GithubOwner, owner) && strings.EqualFold(p.GithubRepo, repo) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryStore) ExistsByNameOrLocator(ctx context.Context, name, owner, repo string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if strings.EqualFold(p.Name, name) {
			return true, nil
		}
		if owner != "" && strings.EqualFold(p.GithubOwner, owner) && strings.EqualFold(p.GithubRepo, repo) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Create(ctx context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *project
	m.projects[project.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateMetadata(ctx context.Context, id string, meta models.ProjectMetadata, topics string, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Stars = meta.Stars
	p.Forks = meta.Forks
	p.OpenIssuesCount = meta.OpenIssuesCount
	p.Topics = topics
	p.LastSyncedAt = &syncedAt
	return nil
}

// projectReader adapts memoryStore's project lookups to the name services expect.
type projectReader struct{ *memoryStore }

func (p projectReader) FindByID(ctx context.Context, id string) (*models.Project, error) {
	return p.FindProject(ctx, id)
}

// reputationStore adapts memoryStore's reputation rows to the repository shape.
type reputationStore struct{ *memoryStore }

func (r reputationStore) ListByProject(ctx context.Context, projectID string) ([]models.ProjectReputation, error) {
	return r.ListReputation(projectID), nil
}

// projectCatalogStore adapts memoryStore's projects and sponsorships to the catalogue shape.
type projectCatalogStore struct {
	*memoryStore
	sponsors map[string][]string
}

func newProjectCatalogStore(m *memoryStore) *projectCatalogStore {
	return &projectCatalogStore{memoryStore: m, sponsors: map[string][]string{}}
}

func (p *projectCatalogStore) FindByID(ctx context.Context, id string) (*models.Project, error) {
	return p.FindProject(ctx, id)
}

func (p *projectCatalogStore) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Project
	for _, project := range p.projects {
		if filter.Status != "" && project.Status != filter.Status {
			continue
		}
		if filter.SubmittedBy != "" && (project.SubmittedBy == nil || *project.SubmittedBy != filter.SubmittedBy) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(project.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *project)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stars != out[j].Stars {
			return out[i].Stars > out[j].Stars
		}
		return out[i].Name < out[j].Name
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (p *projectCatalogStore) Count(ctx context.Context, filter models.ProjectFilter) (int, error) {
	filter.Limit, filter.Offset = 0, 0
	projects, err := p.List(ctx, filter)
	return len(projects), err
}

func (p *projectCatalogStore) UpdateStatus(ctx context.Context, id string, from, to models.ProjectStatus) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	project, ok := p.projects[id]
	if !ok || project.Status != from {
		return false, nil
	}
	project.Status = to
	return true, nil
}

func (p *projectCatalogStore) AddSponsor(ctx context.Context, sponsorship *models.Sponsorship) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, projectID := range p.sponsors[sponsorship.SponsorUserID] {
		if projectID == sponsorship.ProjectID {
			return false, nil
		}
	}
	p.sponsors[sponsorship.SponsorUserID] = append(p.sponsors[sponsorship.SponsorUserID], sponsorship.ProjectID)
	return true, nil
}

func (p *projectCatalogStore) ListSponsored(ctx context.Context, userID string) ([]models.Project, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Project
	for _, projectID := range p.sponsors[userID] {
		if project, ok := p.projects[projectID]; ok {
			out = append(out, *project)
		}
	}
	return out, nil
}
