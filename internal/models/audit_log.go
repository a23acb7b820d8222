package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Audit actions
const (
	AuditActionRegister      = "register"
	AuditActionLogin         = "login"
	AuditActionTwoFAVerified = "2fa_verified"
	AuditActionSetup2FA      = "setup_2fa"
	AuditActionDisable2FA    = "disable_2fa"
	AuditActionCreate        = "create"
	AuditActionUpdate        = "update"
	AuditActionDelete        = "delete"
	AuditActionApprove       = "approve"
	AuditActionReject        = "reject"
	AuditActionChangeRole    = "change_role"
)

// Audit entity types
const (
	AuditEntityUser    = "user"
	AuditEntityTool    = "tool"
	AuditEntityRating  = "tool_rating"
	AuditEntityComment = "tool_comment"
)

type AuditLog struct {
	ID         string
	UserID     *string // Actor; nil for anonymous events
	Action     string
	EntityType string
	EntityID   *string
	Details    AuditDetails
	CreatedAt  time.Time
}

// AuditFilter narrows an audit-log listing. Zero values mean "no filter".
type AuditFilter struct {
	UserID     string
	Action     string
	EntityType string
}

// AuditDetails holds free-form event context, stored as JSONB.
type AuditDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (d *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		*d = make(AuditDetails)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*d = AuditDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}
