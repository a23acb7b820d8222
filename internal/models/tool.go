package models

import "time"

// Tool categories
const (
	CategoryDevelopment   = "development"
	CategoryDesign        = "design"
	CategoryProductivity  = "productivity"
	CategoryCommunication = "communication"
	CategoryAnalytics     = "analytics"
	CategoryOther         = "other"
)

// ToolCategories lists every valid category, used for stats breakdowns.
var ToolCategories = []string{
	CategoryDevelopment,
	CategoryDesign,
	CategoryProductivity,
	CategoryCommunication,
	CategoryAnalytics,
	CategoryOther,
}

// Moderation statuses. New tools start pending and stay invisible to the
// public listing until a moderator approves them.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var ToolStatuses = []string{StatusPending, StatusApproved, StatusRejected}

type Tool struct {
	ID              string
	Name            string
	Description     string
	Category        string
	Status          string
	URL             string // Optional
	CreatedBy       string
	ApprovedBy      *string
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Denormalized fields populated by joins, not stored on the tools table
	CreatorUsername  string
	ApproverUsername *string
	AverageRating    *float64
	TotalRatings     int
}

// ToolFilter narrows a catalog listing. Zero values mean "no filter".
type ToolFilter struct {
	Category  string
	Status    string
	Search    string // Matches name or description, case-insensitive
	CreatedBy string
}

// ValidCategory reports whether c is a known tool category.
func ValidCategory(c string) bool {
	for _, known := range ToolCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known moderation status.
func ValidStatus(s string) bool {
	for _, known := range ToolStatuses {
		if s == known {
			return true
		}
	}
	return false
}
