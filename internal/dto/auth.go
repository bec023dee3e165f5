package dto

import (
	"time"

	"github.com/noah-isme/skillswap-api/internal/models"
)

type RegisterRequest struct {
	Name          string   `json:"name" validate:"required,min=2,max=50"`
	Email         string   `json:"email" validate:"required,email"`
	Password      string   `json:"password" validate:"required,min=6,max=72"`
	Location      string   `json:"location" validate:"max=100"`
	SkillsOffered []string `json:"skillsOffered" validate:"max=50,dive,required,max=100"`
	SkillsWanted  []string `json:"skillsWanted" validate:"max=50,dive,required,max=100"`
	IP            string   `json:"-"`
	UserAgent     string   `json:"-"`
}

type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// AuthUser is the caller as returned by login and /auth/me.
type AuthUser struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

// TokenResponse is returned by register, login and refresh.
type TokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresIn    int64     `json:"expiresIn"`
	IssuedAt     time.Time `json:"issuedAt"`
	User         *AuthUser `json:"user,omitempty"`
}
