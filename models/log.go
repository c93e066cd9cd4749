package models

import "time"

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type TickLog struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	SourceID  string    `json:"source_id" db:"source_id"`
}

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is a queued outbound message.
type Notification struct {
	ID        string             `json:"id" db:"id"`
	UserID    int64              `json:"user_id" db:"user_id"`
	Text      string             `json:"text" db:"text"`
	Status    NotificationStatus `json:"status" db:"status"`
	Attempts  int                `json:"attempts" db:"attempts"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
	SentAt    *time.Time         `json:"sent_at" db:"sent_at"`
}
