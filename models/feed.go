package models

import "time"

// FeedItem is a notification as seen by one recipient: for broadcast rows
// the status/read_at come from the recipient's UserNotification, for direct
// rows from the Notification itself.
type FeedItem struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Type        string     `json:"type"`
	Priority    string     `json:"priority"`
	IsBroadcast bool       `json:"is_broadcast"`
	Status      string     `json:"status"`
	Metadata    string     `json:"metadata,omitempty"`
	ActionURL   string     `json:"action_url,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func FeedItemFromNotification(n Notification) FeedItem {
	return FeedItem{
		ID:          n.ID,
		Title:       n.Title,
		Message:     n.Message,
		Type:        n.Type,
		Priority:    n.Priority,
		IsBroadcast: n.IsBroadcast,
		Status:      n.Status,
		Metadata:    n.Metadata,
		ActionURL:   n.ActionURL,
		Icon:        n.Icon,
		ExpiresAt:   n.ExpiresAt,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func FeedItemFromUserNotification(un UserNotification, n Notification) FeedItem {
	item := FeedItemFromNotification(n)
	item.Status = un.Status
	item.ReadAt = un.ReadAt
	item.UpdatedAt = un.UpdatedAt
	return item
}
