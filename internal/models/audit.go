package models

import "time"

// Audit actions, one constant per recorded operation. Session actions come
// from the auth service, the rest from the services that mutate rosters.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionSignup         = "SIGNUP"
	AuditActionPasswordChange = "PASSWORD_CHANGE"

	AuditActionAssignmentCreate = "ASSIGNMENT_CREATE"
	AuditActionAssignmentMove   = "ASSIGNMENT_REASSIGN"
	AuditActionAssignmentStatus = "ASSIGNMENT_STATUS"
	AuditActionAssignmentDelete = "ASSIGNMENT_DELETE"
	AuditActionRequestRespond   = "REQUEST_RESPOND"
	AuditActionGuideCreate      = "GUIDE_CREATE"
	AuditActionGuideUpdate      = "GUIDE_UPDATE"

	AuditActionUserCreate = "USER_CREATE"
	AuditActionUserUpdate = "USER_UPDATE"
	AuditActionUserDelete = "USER_DELETE"
)

// AuditLog is a row in the audit_logs table. Old and new values hold raw
// JSON snapshots and may be empty depending on the action.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
