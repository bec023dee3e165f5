package models

import "time"

type NotificationType string

const (
	NotificationSwapRequest  NotificationType = "swap_request"
	NotificationSwapAccepted NotificationType = "swap_accepted"
	NotificationSwapRejected NotificationType = "swap_rejected"
	NotificationFeedback     NotificationType = "feedback"
)

type Notification struct {
	ID            string           `db:"id" json:"id"`
	UserID        string           `db:"user_id" json:"user_id"`
	Type          NotificationType `db:"type" json:"type"`
	Message       string           `db:"message" json:"message"`
	Read          bool             `db:"read" json:"read"`
	SwapRequestID *string          `db:"swap_request_id" json:"swap_request_id,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}
