package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType tags what kind of event a notification describes.
type NotificationType string

const (
	NotificationCompetitionPublished NotificationType = "COMPETITION_PUBLISHED"
	NotificationSubmissionReviewed   NotificationType = "SUBMISSION_REVIEWED"
	NotificationPrizeAwarded         NotificationType = "PRIZE_AWARDED"
)

// RecipientStatus matches the recipient_status ENUM in the database.
type RecipientStatus string

const (
	RecipientUnread   RecipientStatus = "UNREAD"
	RecipientRead     RecipientStatus = "READ"
	RecipientArchived RecipientStatus = "ARCHIVED"
)

// Notification is an immutable event record. Delivery state lives on the
// per-recipient rows, never here.
type Notification struct {
	ID        int                  `json:"id"`
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Link      string               `json:"link,omitempty"`
	Metadata  NotificationMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// NotificationRecipient links a notification to one user. Unique per
// (notification, user); duplicate fan-out is suppressed at insert time.
type NotificationRecipient struct {
	NotificationID int             `json:"notification_id"`
	UserID         int             `json:"user_id"`
	Status         RecipientStatus `json:"status"`

	Notification *Notification `json:"notification,omitempty"`
}

// NotificationMetadata is free-form context for the client, stored as JSONB.
type NotificationMetadata map[string]interface{}

func (m NotificationMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *NotificationMetadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type %T for NotificationMetadata", src)
	}
}
