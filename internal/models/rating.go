package models

import "time"

// Rating is a single user's 1-5 star score for a tool. One row per
// (tool, user); re-rating overwrites the prior value.
type Rating struct {
	ID        string
	ToolID    string
	UserID    string
	Username  string // joined from users for listings
	Rating    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingStats is the aggregate view served by the stats endpoint.
type RatingStats struct {
	AverageRating float64        `json:"average_rating"`
	TotalRatings  int            `json:"total_ratings"`
	Distribution  map[string]int `json:"rating_distribution"` // keys "1".."5"
}

// EmptyRatingStats returns stats for a tool with no ratings yet.
func EmptyRatingStats() *RatingStats {
	return &RatingStats{
		Distribution: map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0},
	}
}
