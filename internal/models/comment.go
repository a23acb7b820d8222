package models

import "time"

// Vote directions on a comment.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

type Comment struct {
	ID        string
	ToolID    string
	UserID    string
	Content   string
	Upvotes   int
	Downvotes int
	CreatedAt time.Time
	UpdatedAt time.Time

	// Populated by joins
	Username string
	UserVote *string // Caller's vote ("up"/"down"), nil when not voted
}

// CommentVote records one user's up/down vote on a comment. One row per
// (comment, user); switching direction updates the row in place.
type CommentVote struct {
	ID        string
	CommentID string
	UserID    string
	VoteType  string
	CreatedAt time.Time
}
