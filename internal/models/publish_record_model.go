package models

import "time"

type PublishRecord struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	Platforms    []string  `db:"platforms" json:"platforms"`
	Content      string    `db:"content" json:"content"`
	HasImage     bool      `db:"has_image" json:"has_image"`
	Status       string    `db:"status" json:"status"` // published, failed
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	PublishStatusPublished = "published"
	PublishStatusFailed    = "failed"
)
