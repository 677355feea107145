package dto

import "time"

// LeaderboardEntry is one ranked contributor.
type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	Username   string    `json:"username"`
	Points     int       `json:"points"`
	ComputedAt time.Time `json:"computed_at"`
}

// Leaderboard is the ranked reputation view of a project.
type Leaderboard struct {
	ProjectID string             `json:"project_id"`
	Entries   []LeaderboardEntry `json:"entries"`
}

// ExportFile is a rendered leaderboard download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
