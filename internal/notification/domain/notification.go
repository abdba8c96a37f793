package domain

import (
	"context"
	"time"
)

// SendStatus records the outcome of a delivery attempt
type SendStatus string

const (
	StatusSent   SendStatus = "sent"
	StatusFailed SendStatus = "failed"
)

// EmailNotification is an append-only audit row, one per attempted send.
// The throttle check reads these rows.
type EmailNotification struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	AlertID      uint       `json:"alert_id" gorm:"not null;index"`
	Type         string     `json:"type" gorm:"not null"`
	Recipient    string     `json:"recipient" gorm:"not null"`
	Status       SendStatus `json:"status" gorm:"not null;default:'sent'"`
	SentAt       time.Time  `json:"sent_at" gorm:"autoCreateTime;index"`
	ErrorMessage string     `json:"error_message"`
}

// TableName specifies the table name
func (EmailNotification) TableName() string {
	return "email_notifications"
}

// HistoryEntry is one row of the notification history read model
type HistoryEntry struct {
	EmailNotification
	AlertMessage  string `json:"alert_message,omitempty"`
	AlertSeverity string `json:"alert_severity,omitempty"`
}

// NotificationRepository defines the contract for the send-audit log
type NotificationRepository interface {
	Create(ctx context.Context, notification *EmailNotification) error

	// CountSince counts audit rows for an alert newer than the cutoff
	CountSince(ctx context.Context, alertID uint, since time.Time) (int64, error)

	// History returns recent audit rows joined with their alert, newest first
	History(ctx context.Context, limit int) ([]HistoryEntry, error)
}
