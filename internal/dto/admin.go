package dto

import (
	"time"

	"github.com/noah-isme/skillswap-api/internal/models"
)

// AdminUserQuery mirrors GET /admin/users.
type AdminUserQuery struct {
	Search   string `form:"search"`
	Role     string `form:"role"`
	Banned   *bool  `form:"banned"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// SetRoleRequest is the body of PUT /admin/users/:id/role.
type SetRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=USER ADMIN"`
}

// AdminUpdateSkillsRequest is the body of PUT /admin/users/:id/skills.
type AdminUpdateSkillsRequest struct {
	SkillsOffered *[]string `json:"skillsOffered" validate:"omitempty,max=50,dive,required,max=100"`
	SkillsWanted  *[]string `json:"skillsWanted" validate:"omitempty,max=50,dive,required,max=100"`
	Bio           *string   `json:"bio" validate:"omitempty,max=500"`
}

// AuditMeta carries request origin into audited admin operations.
type AuditMeta struct {
	IP        string
	UserAgent string
}

// AdminUserView is the moderation view of an account.
type AdminUserView struct {
	ProfileView
	Banned    bool       `json:"banned"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
