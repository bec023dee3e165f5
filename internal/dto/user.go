package dto

import (
	"time"

	"github.com/noah-isme/skillswap-api/internal/models"
)

// ProfileView is a public profile. Private fields are set only for the owner.
type ProfileView struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Location        string          `json:"location,omitempty"`
	Bio             string          `json:"bio,omitempty"`
	ProfilePhotoURL string          `json:"profilePhotoUrl,omitempty"`
	SkillsOffered   []string        `json:"skillsOffered"`
	SkillsWanted    []string        `json:"skillsWanted"`
	Availability    []string        `json:"availability"`
	Rating          float64         `json:"rating"`
	TotalRatings    int             `json:"totalRatings"`
	CreatedAt       time.Time       `json:"createdAt"`
	Email           string          `json:"email,omitempty"`
	Role            models.UserRole `json:"role,omitempty"`
	IsPublic        *bool           `json:"isPublic,omitempty"`
}

// UpdateProfileRequest is the body of PUT /users/:id. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Name            *string   `json:"name" validate:"omitempty,min=2,max=50"`
	Location        *string   `json:"location" validate:"omitempty,max=100"`
	Bio             *string   `json:"bio" validate:"omitempty,max=500"`
	ProfilePhotoURL *string   `json:"profilePhotoUrl" validate:"omitempty,url"`
	SkillsOffered   *[]string `json:"skillsOffered" validate:"omitempty,max=50,dive,required,max=100"`
	SkillsWanted    *[]string `json:"skillsWanted" validate:"omitempty,max=50,dive,required,max=100"`
	Availability    *[]string `json:"availability" validate:"omitempty,max=20,dive,required,max=50"`
	IsPublic        *bool     `json:"isPublic"`
}

// UserSearchQuery mirrors GET /users/search.
type UserSearchQuery struct {
	Skill        string `form:"skill"`
	Availability string `form:"availability"`
	Location     string `form:"location"`
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
}
