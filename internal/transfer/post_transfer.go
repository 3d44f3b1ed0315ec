package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// PostCreation is the authoring payload. Schedule fields are the author's
// local wall-clock values; they are normalized to UTC before persistence.
type PostCreation struct {
	Caption      string   `json:"caption" validate:"required,max=5000"`
	Hashtags     []string `json:"hashtags" validate:"max=30,dive,max=100"`
	Targets      []string `json:"targets" validate:"dive,oneof=mastodon telegram facebook instagram tiktok"`
	MediaAssetID int64    `json:"media_asset_id"`
	Date         string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time         string   `json:"time" validate:"omitempty,datetime=15:04"`
	Timezone     string   `json:"timezone" validate:"required_with=Date"`
}

type ScheduleRequest struct {
	PostID   int64  `json:"post_id" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"required,datetime=15:04"`
	Timezone string `json:"timezone" validate:"required"`
}

type PublishNowRequest struct {
	PostID   int64  `json:"post_id" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=mastodon telegram facebook instagram tiktok"`
}

type SettingsUpdate struct {
	WebhookURL      string `json:"webhook_url" validate:"omitempty,url"`
	NotifyOnFailure bool   `json:"notify_on_failure"`
	NotifyOnSuccess bool   `json:"notify_on_success"`
	DefaultTimezone string `json:"default_timezone" validate:"omitempty,timezone"`
}
