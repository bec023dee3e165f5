package dto

import "time"

// SubmitFeedbackRequest is the body of POST /feedback.
type SubmitFeedbackRequest struct {
	SwapRequestID string `json:"swapRequestId" validate:"required,uuid"`
	ToUserID      string `json:"toUserId" validate:"required,uuid"`
	Rating        int    `json:"rating" validate:"min=1,max=5"`
	Comment       string `json:"comment" validate:"max=500"`
	SkillRated    string `json:"skillRated" validate:"required,max=100"`
}

// UpdateFeedbackRequest is the body of PUT /feedback/:id. Nil fields are left unchanged.
type UpdateFeedbackRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=500"`
}

// FeedbackView is a feedback row with the rater and ratee resolved.
type FeedbackView struct {
	ID            string      `json:"id"`
	SwapRequestID string      `json:"swapRequestId"`
	From          UserSummary `json:"from"`
	To            UserSummary `json:"to"`
	Rating        int         `json:"rating"`
	Comment       string      `json:"comment,omitempty"`
	SkillRated    string      `json:"skillRated"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// PageQuery is the common page/page_size query string.
type PageQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}
