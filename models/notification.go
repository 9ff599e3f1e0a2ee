package models

import "time"

// Notification types
const (
	TypeSystem       = "system"
	TypeAlert        = "alert"
	TypeReminder     = "reminder"
	TypeAnnouncement = "announcement"
	TypeTask         = "task"
)

// Notification priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification statuses. Status on the Notification row is authoritative
// only when IsBroadcast is false; broadcast read-state lives in
// UserNotification.
const (
	StatusUnread   = "unread"
	StatusRead     = "read"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// Notification targets exactly one of: a single employee (EmployeeID set,
// IsBroadcast false) or a broadcast scope (IsBroadcast true, optional
// CenterID/StoreID).
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(100);not null" json:"title"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Type        string    `gorm:"type:varchar(20);not null;default:'system'" json:"type"`
	Priority    string    `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	IsBroadcast bool      `gorm:"index;not null;default:false" json:"is_broadcast"`
	EmployeeID  *uint     `gorm:"index" json:"employee_id,omitempty"`
	Employee    *Employee `gorm:"foreignKey:EmployeeID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"employee,omitempty"`
	CenterID    *uint     `json:"center_id,omitempty"`
	StoreID     *uint     `json:"store_id,omitempty"`
	Status      string    `gorm:"type:varchar(10);index;not null;default:'unread'" json:"status"`
	Metadata    string    `gorm:"type:text" json:"metadata,omitempty"`
	ActionURL   string    `gorm:"type:varchar(255)" json:"action_url,omitempty"`
	Icon        string    `gorm:"type:varchar(100)" json:"icon,omitempty"`
	// Back-reference to the originating job, makes materialization idempotent
	// under dispatcher retry.
	ScheduledNotificationID *uint      `gorm:"uniqueIndex" json:"scheduled_notification_id,omitempty"`
	ExpiresAt               *time.Time `json:"expires_at,omitempty"`
	ReadAt                  *time.Time `json:"read_at,omitempty"`
	CreatedAt               time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"not null" json:"updated_at"`
}
