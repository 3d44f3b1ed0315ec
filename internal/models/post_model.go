package models

import (
	"database/sql"
	"time"
)

type Post struct {
	ID           int64          `db:"id" json:"id"`
	UserID       int64          `db:"user_id" json:"user_id"`
	Caption      string         `db:"caption" json:"caption"`
	Hashtags     []string       `db:"hashtags" json:"hashtags"`
	MediaAssetID sql.NullInt64  `db:"media_asset_id" json:"media_asset_id"`
	Targets      []string       `db:"targets" json:"targets"`
	ScheduledAt  sql.NullTime   `db:"scheduled_at" json:"scheduled_at"`
	ScheduleTZ   sql.NullString `db:"schedule_tz" json:"schedule_tz"`
	Status       string         `db:"status" json:"status"`
	RetryCount   int            `db:"retry_count" json:"retry_count"`
	ClaimToken   sql.NullString `db:"claim_token" json:"-"`
	ClaimedAt    sql.NullTime   `db:"claimed_at" json:"-"`
	PostedAt     sql.NullTime   `db:"posted_at" json:"posted_at"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	PostStatusDraft              = "draft"
	PostStatusReady              = "ready"
	PostStatusScheduled          = "scheduled"
	PostStatusPublished          = "published"
	PostStatusPartiallyPublished = "partially_published"
	PostStatusFailed             = "failed"
	PostStatusRescheduled        = "rescheduled"
	PostStatusArchived           = "archived"
)

// DueStatuses are the statuses the dispatcher's claim predicate matches.
var DueStatuses = []string{PostStatusScheduled, PostStatusRescheduled}

// ManualPublishStatuses are the statuses a "post now" action may start from.
// partially_published is included so a single failed platform can be retried
// without re-sending to the platforms that already succeeded.
var ManualPublishStatuses = []string{
	PostStatusReady,
	PostStatusScheduled,
	PostStatusRescheduled,
	PostStatusFailed,
	PostStatusPartiallyPublished,
}

// EditableStatuses are the statuses the authoring flow may mutate
// content or schedule in.
var EditableStatuses = []string{
	PostStatusDraft,
	PostStatusReady,
	PostStatusScheduled,
	PostStatusRescheduled,
	PostStatusFailed,
}

// HasTarget reports whether platform is one of the post's publish targets.
func (p *Post) HasTarget(platform string) bool {
	for _, t := range p.Targets {
		if t == platform {
			return true
		}
	}
	return false
}

// PublishResult is the terminal write of one dispatch cycle: the new status,
// the next schedule (rescheduled only), the retry counter, and posted_at.
// Persisting it also clears the claim fields in the same statement.
type PublishResult struct {
	Status      string
	ScheduledAt sql.NullTime
	ScheduleTZ  sql.NullString
	RetryCount  int
	PostedAt    sql.NullTime
}
