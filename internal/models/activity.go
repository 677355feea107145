package models

import "time"

// ActivityKind is the source-side type of an activity.
type ActivityKind string

const (
	ActivityPullRequest ActivityKind = "PR"
	ActivityIssue       ActivityKind = "ISSUE"
	ActivityReview      ActivityKind = "REVIEW"
)

// ActivityStatus is the source-side state of an activity.
type ActivityStatus string

const (
	ActivityOpen     ActivityStatus = "OPEN"
	ActivityMerged   ActivityStatus = "MERGED"
	ActivityClosed   ActivityStatus = "CLOSED"
	ActivityApproved ActivityStatus = "APPROVED"
)

// ExternalActivity is a contribution as reported by a source integration.
type ExternalActivity struct {
	ID             string         `json:"id" validate:"required"`
	Title          string         `json:"title" validate:"required"`
	AuthorUsername string         `json:"author_username" validate:"required"`
	URL            string         `json:"url" validate:"required,url"`
	Kind           ActivityKind   `json:"type" validate:"required,oneof=PR ISSUE REVIEW"`
	Status         ActivityStatus `json:"status" validate:"omitempty,oneof=OPEN MERGED CLOSED APPROVED"`
	CreatedAt      time.Time      `json:"created_at"`
}
