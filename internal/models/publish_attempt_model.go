package models

import "time"

// PublishAttempt is one append-only record of a publish call for a
// (post, platform) pair. Retries never mutate old rows; each attempt
// adds a new one.
type PublishAttempt struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	PostID         int64     `db:"post_id" json:"post_id"`
	Platform       string    `db:"platform" json:"platform"`
	Success        bool      `db:"success" json:"success"`
	ExternalPostID string    `db:"external_post_id" json:"external_post_id"`
	ErrorKind      string    `db:"error_kind" json:"error_kind"`
	ErrorMessage   string    `db:"error_message" json:"error_message"`
	Automatic      bool      `db:"automatic" json:"automatic"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
