package dto

import (
	"time"

	"github.com/contribmint/contribmint-api/internal/models"
)

// CastVoteRequest is submitted by a peer scoring a contribution.
type CastVoteRequest struct {
	ContributionID string `json:"contribution_id" validate:"required"`
	Score          int    `json:"score"`
}

// VoteResult reports the state of a contribution after a vote.
type VoteResult struct {
	ContributionID string            `json:"contribution_id"`
	MeanScore      float64           `json:"mean_score"`
	VoteCount      int               `json:"vote_count"`
	Status         models.MintStatus `json:"status"`
	PreviousStatus models.MintStatus `json:"previous_status"`
}

// ContributionDetail bundles an event with its current tally.
type ContributionDetail struct {
	models.ContributionEvent
	VoteCount int     `json:"vote_count"`
	MeanScore float64 `json:"mean_score"`
}

// ContributionListQuery filters contribution listings.
type ContributionListQuery struct {
	ProjectID  string `form:"project_id"`
	Username   string `form:"username"`
	MintStatus string `form:"mint_status" validate:"omitempty,oneof=AWAITING_VOTES MINT_ELIGIBLE MINTED"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	Limit      int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// SimulateEventRequest creates a synthetic merged pull request.
type SimulateEventRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
	Username  string `json:"github_username" validate:"required"`
	Title     string `json:"title"`
}

// SimulateVotesRequest casts synthetic votes on a contribution.
type SimulateVotesRequest struct {
	ContributionID string  `json:"contribution_id" validate:"required"`
	VoteCount      int     `json:"vote_count" validate:"required,min=1,max=20"`
	AverageScore   float64 `json:"average_score" validate:"required,min=1,max=5"`
}

// IngestRequest is posted by source integrations.
type IngestRequest struct {
	ProjectID string                   `json:"project_id" validate:"required"`
	Activity  *models.ExternalActivity `json:"activity" validate:"required"`
}

// SyncResult summarises a per-activity batch.
type SyncResult struct {
	ProjectID string    `json:"project_id"`
	Imported  int       `json:"imported"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
	SyncedAt  time.Time `json:"synced_at"`
}

// SyncAccepted acknowledges a queued sync.
type SyncAccepted struct {
	JobID     string `json:"job_id"`
	ProjectID string `json:"project_id"`
}

// IngestResult reports the stored event and whether this call created it.
type IngestResult struct {
	Event   *models.ContributionEvent `json:"event"`
	Created bool                      `json:"created"`
}
