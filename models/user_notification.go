package models

import "time"

// UserNotification menyimpan read-state per penerima untuk notifikasi broadcast.
// One row per (notification, recipient), created at fan-out time.
type UserNotification struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	NotificationID uint         `gorm:"index;uniqueIndex:idx_user_notif_recipient;not null" json:"notification_id"`
	Notification   Notification `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE" json:"notification"`
	EmployeeID     uint         `gorm:"index;uniqueIndex:idx_user_notif_recipient;not null" json:"employee_id"`
	Status         string       `gorm:"type:varchar(10);not null;default:'unread'" json:"status"`
	ReadAt         *time.Time   `json:"read_at,omitempty"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}
