package dto

import (
	"time"

	"github.com/noah-isme/skillswap-api/internal/models"
)

// CreateSwapRequest is the body of POST /swaps.
type CreateSwapRequest struct {
	RecipientID    string     `json:"recipientId" validate:"required,uuid"`
	RequesterSkill string     `json:"requesterSkill" validate:"required,max=100"`
	RecipientSkill string     `json:"recipientSkill" validate:"required,max=100"`
	Message        string     `json:"message" validate:"max=500"`
	ScheduledDate  *time.Time `json:"scheduledDate"`
}

// TransitionSwapRequest is the optional body of PUT /swaps/:id/cancel.
type TransitionSwapRequest struct {
	Reason string `json:"reason"`
}

// UserSummary is the display-safe view of another user.
type UserSummary struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ProfilePhotoURL string  `json:"profilePhotoUrl,omitempty"`
	Rating          float64 `json:"rating"`
}

// SwapView is a swap with both parties resolved.
type SwapView struct {
	ID                 string            `json:"id"`
	Requester          UserSummary       `json:"requester"`
	Recipient          UserSummary       `json:"recipient"`
	RequesterSkill     string            `json:"requesterSkill"`
	RecipientSkill     string            `json:"recipientSkill"`
	Status             models.SwapStatus `json:"status"`
	Message            string            `json:"message,omitempty"`
	ScheduledDate      *time.Time        `json:"scheduledDate,omitempty"`
	CompletedAt        *time.Time        `json:"completedAt,omitempty"`
	CancelledBy        *string           `json:"cancelledBy,omitempty"`
	CancellationReason string            `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`

	IsRequester *bool        `json:"isRequester,omitempty"`
	OtherUser   *UserSummary `json:"otherUser,omitempty"`
}

// SwapListQuery mirrors GET /swaps/mine and GET /admin/swaps filters.
type SwapListQuery struct {
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
