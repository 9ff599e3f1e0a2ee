package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shiftline/notifier/models"
)

// NotificationPayload is the serialized intent carried by a scheduled job.
// It is decoded and validated as a whole before any row is written; a
// schema mismatch fails the job instead of propagating partial data.
type NotificationPayload struct {
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Type      string          `json:"type,omitempty"`
	Priority  string          `json:"priority,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	ActionURL string          `json:"action_url,omitempty"`
	Icon      string          `json:"icon,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

func ValidNotificationType(t string) bool {
	switch t {
	case models.TypeSystem, models.TypeAlert, models.TypeReminder, models.TypeAnnouncement, models.TypeTask:
		return true
	}
	return false
}

func ValidNotificationPriority(p string) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
		return true
	}
	return false
}

// DecodePayload parses a job payload into concrete notification fields.
func DecodePayload(raw string) (*NotificationPayload, error) {
	var p NotificationPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}

	if p.Title == "" {
		return nil, errors.New("payload missing title")
	}
	if p.Message == "" {
		return nil, errors.New("payload missing message")
	}
	if p.Type == "" {
		p.Type = models.TypeReminder
	}
	if !ValidNotificationType(p.Type) {
		return nil, fmt.Errorf("unknown notification type %q", p.Type)
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}
	if !ValidNotificationPriority(p.Priority) {
		return nil, fmt.Errorf("unknown notification priority %q", p.Priority)
	}

	return &p, nil
}
