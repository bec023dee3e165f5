package dto

// UnreadCount accompanies notification listings in response meta.
type UnreadCount struct {
	Unread int `json:"unread"`
}
