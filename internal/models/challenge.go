package models

import "time"

// MaxChallengeAttempts is the default number of wrong codes tolerated per
// challenge before it locks and the user must restart login.
const MaxChallengeAttempts = 5

// LoginChallenge is the server-side record of an issued one-time code.
// At most one row exists per user (user_id is the primary key); issuing a
// new challenge overwrites the old one, so two codes are never valid at once.
type LoginChallenge struct {
	UserID    string
	CodeHash  string // SHA-256 of the 6-digit code, hex-encoded
	Attempts  int
	Consumed  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the challenge can still be verified at t.
func (c *LoginChallenge) Active(t time.Time) bool {
	return !c.Consumed && t.Before(c.ExpiresAt)
}
