package models

import (
	"encoding/json"
	"time"
)

// EventCategory classifies a recorded contribution.
type EventCategory string

const (
	CategoryMergedPullRequest EventCategory = "PR_MERGED"
	CategoryClosedIssue       EventCategory = "ISSUE_CLOSED"
	CategoryApprovedReview    EventCategory = "REVIEW_APPROVED"
)

// MintStatus is the lifecycle state of a contribution event.
type MintStatus string

const (
	MintStatusAwaitingVotes MintStatus = "AWAITING_VOTES"
	MintStatusMintEligible  MintStatus = "MINT_ELIGIBLE"
	MintStatusMinted        MintStatus = "MINTED"
)

// Valid reports whether the status is one of the known states.
func (s MintStatus) Valid() bool {
	switch s {
	case MintStatusAwaitingVotes, MintStatusMintEligible, MintStatusMinted:
		return true
	}
	return false
}

// ContributionEvent is a unit of work attributed to a contributor on a project.
type ContributionEvent struct {
	ID            string          `db:"id" json:"id"`
	ProjectID     string          `db:"project_id" json:"project_id"`
	Category      EventCategory   `db:"category" json:"category"`
	ActorUsername string          `db:"actor_username" json:"actor_username"`
	TargetRef     string          `db:"target_ref" json:"target_ref"`
	Title         string          `db:"title" json:"title"`
	URL           string          `db:"url" json:"url"`
	OccurredAt    time.Time       `db:"occurred_at" json:"occurred_at"`
	Metadata      json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	MintStatus    MintStatus      `db:"mint_status" json:"mint_status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ContributionFilter narrows contribution listings.
type ContributionFilter struct {
	ProjectID     string
	ActorUsername string
	MintStatus    MintStatus
	Limit         int
	Offset        int
}
