package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// UserRole is the authorization role carried in access tokens.
type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a row of the users table.
type User struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Email           string         `db:"email" json:"email"`
	PasswordHash    string         `db:"password_hash" json:"-"`
	Role            UserRole       `db:"role" json:"role"`
	Location        string         `db:"location" json:"location"`
	Bio             string         `db:"bio" json:"bio"`
	ProfilePhotoURL string         `db:"profile_photo_url" json:"profile_photo_url"`
	SkillsOffered   pq.StringArray `db:"skills_offered" json:"skills_offered"`
	SkillsWanted    pq.StringArray `db:"skills_wanted" json:"skills_wanted"`
	Availability    pq.StringArray `db:"availability" json:"availability"`
	IsPublic        bool           `db:"is_public" json:"is_public"`
	Banned          bool           `db:"banned" json:"banned"`
	Rating          float64        `db:"rating" json:"rating"`
	TotalRatings    int            `db:"total_ratings" json:"total_ratings"`
	LastLogin       *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Offers reports whether skill is in the user's offered list, comparing trimmed values exactly.
func (u *User) Offers(skill string) bool {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return false
	}
	for _, s := range u.SkillsOffered {
		if strings.TrimSpace(s) == skill {
			return true
		}
	}
	return false
}

// UserFilter drives the admin user listing.
type UserFilter struct {
	Role     *UserRole
	Banned   *bool
	Search   string
	Page     int
	PageSize int
}

// UserSearch drives the public directory search.
type UserSearch struct {
	Skill        string
	Availability string
	Location     string
	ExcludeID    string
	Page         int
	PageSize     int
}
