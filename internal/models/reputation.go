package models

import "time"

// ProjectReputation is a derived per-contributor point total for a project.
type ProjectReputation struct {
	ID         string    `db:"id" json:"id"`
	ProjectID  string    `db:"project_id" json:"project_id"`
	Username   string    `db:"username" json:"username"`
	Points     int       `db:"points" json:"points"`
	ComputedAt time.Time `db:"computed_at" json:"computed_at"`
}
