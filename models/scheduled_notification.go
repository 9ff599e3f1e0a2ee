package models

import "time"

// Scheduled job statuses. "processing" is the claim state: a job is moved
// pending -> processing by exactly one dispatcher tick before materialization.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusSent       = "sent"
	JobStatusFailed     = "failed"
	JobStatusCanceled   = "canceled"
)

// ScheduledNotification adalah deferred job yang ditulis oleh modul appointments.
// Rows are never physically deleted; terminal statuses keep the audit trail.
type ScheduledNotification struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AppointmentID uint      `gorm:"index;not null" json:"appointment_id"`
	RunAt         time.Time `gorm:"index;not null" json:"run_at"`
	EmployeeID    *uint     `json:"employee_id,omitempty"`
	CenterID      *uint     `json:"center_id,omitempty"`
	StoreID       *uint     `json:"store_id,omitempty"`
	Status        string    `gorm:"type:varchar(12);index;not null;default:'pending'" json:"status"`
	Payload       string    `gorm:"type:text;not null" json:"payload"`
	Attempts      int       `gorm:"not null;default:0" json:"attempts"`
	LastError     *string   `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}
