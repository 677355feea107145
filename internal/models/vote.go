package models

import "time"

const (
	MinVoteScore = 1
	MaxVoteScore = 5
)

// Vote is a user's single standing score for a contribution event.
type Vote struct {
	ID                  string    `db:"id" json:"id"`
	ContributionEventID string    `db:"contribution_event_id" json:"contribution_event_id"`
	UserID              string    `db:"user_id" json:"user_id"`
	Score               int       `db:"score" json:"score"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// VoteTally aggregates the current votes of one event.
type VoteTally struct {
	Count int `db:"vote_count" json:"vote_count"`
	Sum   int `db:"score_sum" json:"score_sum"`
}

// Mean returns the unrounded arithmetic mean of the tally, zero when empty.
func (t VoteTally) Mean() float64 {
	if t.Count == 0 {
		return 0
	}
	return float64(t.Sum) / float64(t.Count)
}

// VoteOutcome is what the store reports after recording a vote.
type VoteOutcome struct {
	Tally          VoteTally
	PreviousStatus MintStatus
	Status         MintStatus
}

// StatusDecider derives the next mint status from the current one and a fresh tally.
type StatusDecider func(current MintStatus, tally VoteTally) (MintStatus, error)
