package models

import "time"

const (
	AuditActionRegister       = "REGISTER"
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionUserBan        = "USER_BAN"
	AuditActionUserUnban      = "USER_UNBAN"
	AuditActionRoleChange     = "ROLE_CHANGE"
	AuditActionSkillsUpdate   = "SKILLS_UPDATE"
	AuditActionSwapDelete     = "SWAP_DELETE"
	AuditActionFeedbackDelete = "FEEDBACK_DELETE"
	AuditActionSwapExport     = "SWAP_EXPORT"
	AuditActionExportDownload = "EXPORT_DOWNLOAD"
	AuditActionAnnouncement   = "ANNOUNCEMENT_CREATE"
)

// AuditLog is one row of the moderation and auth trail.
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
