package models

import (
	"time"
)

// Roles, in increasing order of privilege.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	Role           string // "user", "moderator", "admin"
	TwoFAEnabled   bool
	TelegramChatID string // Delivery address for login codes; empty when unset
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanModerate reports whether the user may act on other users' content.
func (u *User) CanModerate() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}
