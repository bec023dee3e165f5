package models

import "time"

// Feedback is a rating left by one participant of a completed swap for the other.
type Feedback struct {
	ID            string    `db:"id" json:"id"`
	SwapRequestID string    `db:"swap_request_id" json:"swap_request_id"`
	FromUserID    string    `db:"from_user_id" json:"from_user_id"`
	ToUserID      string    `db:"to_user_id" json:"to_user_id"`
	Rating        int       `db:"rating" json:"rating"`
	Comment       string    `db:"comment" json:"comment"`
	SkillRated    string    `db:"skill_rated" json:"skill_rated"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// RatingAggregate is the denormalised rating stored on users.
type RatingAggregate struct {
	UserID  string  `db:"user_id"`
	Average float64 `db:"rating"`
	Count   int     `db:"total_ratings"`
}

// FeedbackFilter drives feedback listings.
type FeedbackFilter struct {
	ToUserID   string
	FromUserID string
	Page       int
	PageSize   int
}
