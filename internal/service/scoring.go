package service

import "github.com/contribmint/contribmint-api/internal/models"

var categoryPoints = map[models.EventCategory]int{
	models.CategoryMergedPullRequest: 10,
	models.CategoryClosedIssue:       2,
	models.CategoryApprovedReview:    3,
}

// ScoreEvent returns the reputation points of a category. Unknown categories score zero.
func ScoreEvent(category models.EventCategory) int {
	return categoryPoints[category]
}
